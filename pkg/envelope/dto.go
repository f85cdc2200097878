package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// NewEvent JSON-marshals payload and builds an event frame.
func NewEvent(tx string, key Key, payload interface{}, route Route) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal event payload: %w", err)
	}
	return EncodeEvent(tx, key, body, route, nil, nil)
}

// NewRpcRequest JSON-marshals payload and builds an RPC request frame,
// returning the generated correlation id.
func NewRpcRequest(tx string, key Key, payload interface{}, route Route) (uuid.UUID, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("envelope: marshal rpc request payload: %w", err)
	}
	return EncodeRpcRequest(tx, key, body, route, nil, nil)
}

// NewRpcResponse JSON-marshals payload and builds an RPC response frame
// carrying the given correlation id.
func NewRpcResponse(correlationID uuid.UUID, tx string, key Key, result RpcResult, payload interface{}, route Route) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal rpc response payload: %w", err)
	}
	return EncodeRpcResponse(correlationID, tx, key, result, body, route, nil, nil)
}

// Reply is a builder for RPC response payloads, mirroring sp-dto's
// resp/resp_full helpers: a bare payload, or a payload with inline
// attachments.
type Reply struct {
	Result      RpcResult
	Payload     interface{}
	Attachments []AttachmentData
}

// ReplyOk builds a successful Reply carrying payload.
func ReplyOk(payload interface{}) *Reply {
	return &Reply{Result: RpcOk, Payload: payload}
}

// ReplyErr builds a failed Reply carrying payload.
func ReplyErr(payload interface{}) *Reply {
	return &Reply{Result: RpcErr, Payload: payload}
}

// WithAttachments attaches inline (name, bytes) pairs to the reply.
func (r *Reply) WithAttachments(attachments ...AttachmentData) *Reply {
	r.Attachments = attachments
	return r
}

// Encode builds the RPC response frame for this reply.
func (r *Reply) Encode(correlationID uuid.UUID, tx string, key Key, route Route) ([]byte, error) {
	body, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal reply payload: %w", err)
	}
	if len(r.Attachments) == 0 {
		return EncodeRpcResponse(correlationID, tx, key, r.Result, body, route, nil, nil)
	}
	return EncodeRpcResponseWithAttachments(correlationID, tx, key, r.Result, body, r.Attachments, route, nil, nil)
}
