package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	ws "github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/streamhub/platform/pkg/envelope"
)

// Role is the handshake header this client authenticates with when
// dialing a hub.
type Role int

const (
	RoleApp Role = iota
	RoleService
	RoleHub
)

// Config describes a single outbound connection to a hub.
type Config struct {
	URL  string
	Role Role
	// Addr is the Service or Hub address sent in the matching handshake
	// header. Ignored for RoleApp, which the hub assigns a fresh address.
	Addr string
	// CookieValue is sent as the Cookie header for RoleApp connections.
	CookieValue string
}

// ErrRpcTimeout is returned by SendRpcRequest when no response arrives
// before the context is done.
var ErrRpcTimeout = errors.New("client: rpc request timed out")

// Client is a single connection's read loop plus RPC correlator.
type Client struct {
	conn       *ws.Conn
	correlator *Correlator
	log        *logrus.Entry

	events      chan Response
	rpcRequests chan Response

	writeMu sync.Mutex
}

// Dial opens a connection to cfg.URL with the handshake header matching
// cfg.Role, and starts the correlator and read-loop goroutines.
func Dial(ctx context.Context, cfg Config, log *logrus.Logger) (*Client, error) {
	if log == nil {
		log = logrus.New()
	}

	header := make(map[string][]string)
	switch cfg.Role {
	case RoleApp:
		header["Cookie"] = []string{cfg.CookieValue}
	case RoleService:
		header["Service"] = []string{cfg.Addr}
	case RoleHub:
		header["Hub"] = []string{cfg.Addr}
	}

	conn, _, err := ws.Dial(ctx, cfg.URL, &ws.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("client: dial: %w", err)
	}

	c := &Client{
		conn:        conn,
		correlator:  NewCorrelator(),
		log:         log.WithField("component", "client"),
		events:      make(chan Response, 64),
		rpcRequests: make(chan Response, 64),
	}

	go c.correlator.Run(ctx)
	go c.readLoop(ctx)

	return c, nil
}

// Events yields demultiplexed Event frames.
func (c *Client) Events() <-chan Response { return c.events }

// RpcRequests yields demultiplexed RpcRequest frames this connection is
// expected to answer.
func (c *Client) RpcRequests() <-chan Response { return c.rpcRequests }

// Overflow yields RpcResponse frames with no matching pending request.
func (c *Client) Overflow() <-chan Response { return c.correlator.Overflow() }

func (c *Client) readLoop(ctx context.Context) {
	for {
		msgType, data, err := c.conn.Read(ctx)
		if err != nil {
			c.log.WithError(err).Debug("read loop terminated")
			return
		}
		if msgType != ws.MessageBinary {
			continue
		}

		meta, err := envelope.PeekMeta(data)
		if err != nil {
			c.log.WithError(err).Warn("dropping frame: meta decode failed")
			continue
		}

		resp := Response{Meta: meta, Frame: data}
		switch meta.MsgType.Kind {
		case envelope.MsgEvent:
			c.deliverOrDrop(c.events, resp, "event")
		case envelope.MsgRpcRequest:
			c.deliverOrDrop(c.rpcRequests, resp, "rpc request")
		case envelope.MsgRpcResponse:
			c.correlator.Deliver(meta.CorrelationID, resp)
		}
	}
}

func (c *Client) deliverOrDrop(ch chan Response, resp Response, kind string) {
	select {
	case ch <- resp:
	default:
		c.log.WithField("kind", kind).Warn("inbound queue full, dropping frame")
	}
}

func (c *Client) write(ctx context.Context, frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.Write(ctx, ws.MessageBinary, frame)
}

// SendEvent encodes and writes a fire-and-forget frame.
func (c *Client) SendEvent(ctx context.Context, tx string, key envelope.Key, payload interface{}, route envelope.Route) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("client: marshal event payload: %w", err)
	}
	frame, err := envelope.EncodeEvent(tx, key, body, route, nil, nil)
	if err != nil {
		return err
	}
	return c.write(ctx, frame)
}

// SendRpcRequest implements the RPC call: register the correlation id,
// write the frame, block for a response or until ctx is done, then
// unregister. The unregister happens even on timeout, so a late response
// lands on Overflow instead of leaking a goroutine-held channel.
func (c *Client) SendRpcRequest(ctx context.Context, tx string, key envelope.Key, payload interface{}, route envelope.Route) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("client: marshal rpc request payload: %w", err)
	}

	id, frame, err := envelope.EncodeRpcRequest(tx, key, body, route, nil, nil)
	if err != nil {
		return Response{}, err
	}

	reply := c.correlator.AddRpc(id)
	defer c.correlator.RemoveRpc(id)

	if err := c.write(ctx, frame); err != nil {
		return Response{}, err
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ErrRpcTimeout
	}
}

// SendRpcResponse encodes and writes a response carrying the original
// request's correlation id.
func (c *Client) SendRpcResponse(ctx context.Context, correlationID uuid.UUID, tx string, key envelope.Key, result envelope.RpcResult, payload interface{}, route envelope.Route) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("client: marshal rpc response payload: %w", err)
	}
	frame, err := envelope.EncodeRpcResponse(correlationID, tx, key, result, body, route, nil, nil)
	if err != nil {
		return err
	}
	return c.write(ctx, frame)
}

// Close closes the underlying connection with a normal closure code.
func (c *Client) Close() error {
	return c.conn.Close(ws.StatusNormalClosure, "")
}
