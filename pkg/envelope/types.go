// Package envelope implements the wire frame, routing data model and DTO
// helpers for the streaming message-passing platform: a length-prefixed
// frame carrying JSON metadata, an opaque payload, and zero or more
// binary attachments.
package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Address is a dotted participant name such as "a.b.c".
type Address string

// Parts splits the address on ".".
func (a Address) Parts() []string {
	return splitDotted(string(a))
}

// Part returns the zero-based i-th dot-separated segment.
func (a Address) Part(i int) (string, error) {
	parts := a.Parts()
	if i < 0 || i >= len(parts) {
		return "", &IndexOutOfRangeError{Index: i, Len: len(parts)}
	}
	return parts[i], nil
}

// PartBeforeLast returns the second-to-last dot-separated segment.
func (a Address) PartBeforeLast() (string, error) {
	parts := a.Parts()
	if len(parts) < 2 {
		return "", &TooFewPartsError{Have: len(parts), Need: 2}
	}
	return parts[len(parts)-2], nil
}

// CmpSpec is a component spec: an address plus the transmit-origin that
// produced it. New specs are derived from existing ones when a component
// spawns a child.
type CmpSpec struct {
	Addr string `json:"addr"`
	Tx   string `json:"tx"`
}

// NewAddr derives a child spec with an unrelated address; the child's tx
// becomes this spec's addr.
func (c CmpSpec) NewAddr(addr string) CmpSpec {
	return CmpSpec{Addr: addr, Tx: c.Addr}
}

// AddToAddr derives a child spec whose address is this spec's address with
// delta appended as a dotted suffix; the child's tx becomes this spec's addr.
func (c CmpSpec) AddToAddr(delta string) CmpSpec {
	return CmpSpec{Addr: c.Addr + "." + delta, Tx: c.Addr}
}

// ParticipatorKind discriminates the Participator sum type.
type ParticipatorKind int

const (
	ParticipatorComponent ParticipatorKind = iota
	ParticipatorService
)

func (k ParticipatorKind) String() string {
	switch k {
	case ParticipatorComponent:
		return "Component"
	case ParticipatorService:
		return "Service"
	default:
		return "Unknown"
	}
}

// Participator identifies a message's origin or RPC-response terminus:
// either a UI/app-embedded Component (with optional app/client addresses)
// or a background Service.
type Participator struct {
	Kind       ParticipatorKind
	Addr       string
	AppAddr    *string
	ClientAddr *string
}

// NewComponent builds a Component participator.
func NewComponent(addr string, appAddr, clientAddr *string) Participator {
	return Participator{Kind: ParticipatorComponent, Addr: addr, AppAddr: appAddr, ClientAddr: clientAddr}
}

// NewServiceParticipator builds a Service participator.
func NewServiceParticipator(addr string) Participator {
	return Participator{Kind: ParticipatorService, Addr: addr}
}

// participatorWire mirrors serde's externally-tagged enum encoding, e.g.
// {"Component":["a",null,"b"]} or {"Service":"a"}.
type participatorWire struct {
	Component *[3]*string `json:"Component,omitempty"`
	Service   *string     `json:"Service,omitempty"`
}

func (p Participator) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case ParticipatorComponent:
		addr := p.Addr
		arr := [3]*string{&addr, p.AppAddr, p.ClientAddr}
		return json.Marshal(participatorWire{Component: &arr})
	case ParticipatorService:
		addr := p.Addr
		return json.Marshal(participatorWire{Service: &addr})
	default:
		return nil, fmt.Errorf("envelope: unknown participator kind %d", p.Kind)
	}
}

func (p *Participator) UnmarshalJSON(data []byte) error {
	var wire participatorWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch {
	case wire.Component != nil:
		arr := *wire.Component
		if arr[0] == nil {
			return fmt.Errorf("envelope: Component participator missing addr")
		}
		p.Kind = ParticipatorComponent
		p.Addr = *arr[0]
		p.AppAddr = arr[1]
		p.ClientAddr = arr[2]
	case wire.Service != nil:
		p.Kind = ParticipatorService
		p.Addr = *wire.Service
	default:
		return fmt.Errorf("envelope: unrecognized Participator encoding")
	}
	return nil
}

// RouteSpecKind discriminates the RouteSpec sum type.
type RouteSpecKind int

const (
	RouteSimple RouteSpecKind = iota
	RouteClient
)

// RouteSpec says whether RPC responses should be redirected away from the
// sender to another participator.
type RouteSpec struct {
	Kind   RouteSpecKind
	Client Participator // valid only when Kind == RouteClient
}

// SimpleRoute builds the no-redirection RouteSpec.
func SimpleRoute() RouteSpec { return RouteSpec{Kind: RouteSimple} }

// ClientRoute builds a RouteSpec redirecting RPC responses to p.
func ClientRoute(p Participator) RouteSpec { return RouteSpec{Kind: RouteClient, Client: p} }

type routeSpecWire struct {
	Simple json.RawMessage `json:"Simple,omitempty"`
	Client *Participator   `json:"Client,omitempty"`
}

func (r RouteSpec) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RouteSimple:
		return []byte(`"Simple"`), nil
	case RouteClient:
		return json.Marshal(routeSpecWire{Client: &r.Client})
	default:
		return nil, fmt.Errorf("envelope: unknown route spec kind %d", r.Kind)
	}
}

func (r *RouteSpec) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "Simple" {
			r.Kind = RouteSimple
			return nil
		}
		return fmt.Errorf("envelope: unrecognized RouteSpec string %q", s)
	}
	var wire routeSpecWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Client == nil {
		return fmt.Errorf("envelope: unrecognized RouteSpec encoding")
	}
	r.Kind = RouteClient
	r.Client = *wire.Client
	return nil
}

// Route is the logical hop list: who originated the message, whether RPC
// responses redirect, and the ordered points a receiver forwards along.
type Route struct {
	Source Participator   `json:"source"`
	Spec   RouteSpec      `json:"spec"`
	Points []Participator `json:"points"`
}

// Key is the routing/subscription identity of a message.
type Key struct {
	Action  string `json:"action"`
	Service string `json:"service"`
	Domain  string `json:"domain"`
}

// NewKey builds a fully-qualified key.
func NewKey(action, service, domain string) Key {
	return Key{Action: action, Service: service, Domain: domain}
}

// SimpleKey builds a key with empty service/domain.
func SimpleKey(action string) Key {
	return Key{Action: action}
}

// MsgTypeKind discriminates the MsgType sum type.
type MsgTypeKind int

const (
	MsgEvent MsgTypeKind = iota
	MsgRpcRequest
	MsgRpcResponse
)

// RpcResult is the outcome carried by an RpcResponse message type.
type RpcResult int

const (
	RpcOk RpcResult = iota
	RpcErr
)

func (r RpcResult) String() string {
	if r == RpcErr {
		return "Err"
	}
	return "Ok"
}

// MsgType discriminates Event / RpcRequest / RpcResponse(result) frames.
type MsgType struct {
	Kind   MsgTypeKind
	Result RpcResult // valid only when Kind == MsgRpcResponse
}

// EventType, RpcRequestType and RpcResponseType build MsgType values.
func EventType() MsgType      { return MsgType{Kind: MsgEvent} }
func RpcRequestType() MsgType { return MsgType{Kind: MsgRpcRequest} }
func RpcResponseType(r RpcResult) MsgType {
	return MsgType{Kind: MsgRpcResponse, Result: r}
}

type msgTypeWire struct {
	RpcResponse *string `json:"RpcResponse,omitempty"`
}

func (m MsgType) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case MsgEvent:
		return []byte(`"Event"`), nil
	case MsgRpcRequest:
		return []byte(`"RpcRequest"`), nil
	case MsgRpcResponse:
		result := m.Result.String()
		return json.Marshal(msgTypeWire{RpcResponse: &result})
	default:
		return nil, fmt.Errorf("envelope: unknown msg type kind %d", m.Kind)
	}
}

func (m *MsgType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "Event":
			m.Kind = MsgEvent
			return nil
		case "RpcRequest":
			m.Kind = MsgRpcRequest
			return nil
		default:
			return fmt.Errorf("envelope: unrecognized MsgType string %q", s)
		}
	}
	var wire msgTypeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.RpcResponse == nil {
		return fmt.Errorf("envelope: unrecognized MsgType encoding")
	}
	m.Kind = MsgRpcResponse
	switch *wire.RpcResponse {
	case "Ok":
		m.Result = RpcOk
	case "Err":
		m.Result = RpcErr
	default:
		return fmt.Errorf("envelope: unrecognized RpcResult %q", *wire.RpcResponse)
	}
	return nil
}

// Attachment describes one named binary blob following the payload.
type Attachment struct {
	Name string `json:"name"`
	Size uint64 `json:"size_bytes"`
}

// MsgMeta is the full metadata record carried at the front of every frame.
type MsgMeta struct {
	Tx            string          `json:"tx"`
	Key           Key             `json:"key"`
	MsgType       MsgType         `json:"msg_type"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Route         Route           `json:"route"`
	PayloadSize   uint64          `json:"payload_size"`
	AuthToken     *string         `json:"auth_token,omitempty"`
	AuthData      json.RawMessage `json:"auth_data,omitempty"`
	Attachments   []Attachment    `json:"attachments"`
}

func splitDotted(s string) []string {
	if s == "" {
		return []string{""}
	}
	parts := []string{}
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}
