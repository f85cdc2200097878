package envelope

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// AttachmentData pairs an attachment's name with its inline bytes, used by
// the *WithAttachments encode variants.
type AttachmentData struct {
	Name  string
	Bytes []byte
}

// AttachmentSize pairs an attachment's name with a declared size, used by
// the *WithLaterAttachments encode variants: the caller appends the
// matching bytes to the returned frame itself.
type AttachmentSize struct {
	Name string
	Size uint64
}

// EncodeSizes reports the byte sizes produced by an encode call, useful for
// monitoring without re-parsing the frame.
type EncodeSizes struct {
	MetaLen         uint32
	PayloadSize     uint64
	AttachmentSizes []uint64
}

func lenPrefix(n int) [4]byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(n))
	return b
}

// buildFrame assembles the wire frame for meta+payload+inline attachments,
// filling in meta.PayloadSize and meta.Attachments as it goes.
func buildFrame(meta *MsgMeta, payload []byte, attachments []AttachmentData) ([]byte, EncodeSizes, error) {
	meta.PayloadSize = uint64(len(payload))
	meta.Attachments = make([]Attachment, len(attachments))
	sizes := make([]uint64, len(attachments))
	for i, a := range attachments {
		meta.Attachments[i] = Attachment{Name: a.Name, Size: uint64(len(a.Bytes))}
		sizes[i] = uint64(len(a.Bytes))
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, EncodeSizes{}, fmt.Errorf("envelope: marshal meta: %w", err)
	}

	total := 4 + len(metaBytes) + len(payload)
	for _, a := range attachments {
		total += len(a.Bytes)
	}

	buf := make([]byte, 0, total)
	lp := lenPrefix(len(metaBytes))
	buf = append(buf, lp[:]...)
	buf = append(buf, metaBytes...)
	buf = append(buf, payload...)
	for _, a := range attachments {
		buf = append(buf, a.Bytes...)
	}

	return buf, EncodeSizes{
		MetaLen:         uint32(len(metaBytes)),
		PayloadSize:     meta.PayloadSize,
		AttachmentSizes: sizes,
	}, nil
}

// buildFrameWithLaterAttachments assembles meta+payload only, recording the
// given attachment sizes in the meta; the caller appends matching bytes
// to the result afterwards.
func buildFrameWithLaterAttachments(meta *MsgMeta, payload []byte, attachments []AttachmentSize) ([]byte, EncodeSizes, error) {
	meta.PayloadSize = uint64(len(payload))
	meta.Attachments = make([]Attachment, len(attachments))
	sizes := make([]uint64, len(attachments))
	for i, a := range attachments {
		meta.Attachments[i] = Attachment{Name: a.Name, Size: a.Size}
		sizes[i] = a.Size
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, EncodeSizes{}, fmt.Errorf("envelope: marshal meta: %w", err)
	}

	buf := make([]byte, 0, 4+len(metaBytes)+len(payload))
	lp := lenPrefix(len(metaBytes))
	buf = append(buf, lp[:]...)
	buf = append(buf, metaBytes...)
	buf = append(buf, payload...)

	return buf, EncodeSizes{
		MetaLen:         uint32(len(metaBytes)),
		PayloadSize:     meta.PayloadSize,
		AttachmentSizes: sizes,
	}, nil
}

func newMeta(tx string, key Key, msgType MsgType, correlationID uuid.UUID, route Route, authToken *string, authData json.RawMessage) *MsgMeta {
	return &MsgMeta{
		Tx:            tx,
		Key:           key,
		MsgType:       msgType,
		CorrelationID: correlationID,
		Route:         route,
		AuthToken:     authToken,
		AuthData:      authData,
	}
}

// EncodeEvent builds a fire-and-forget frame. A fresh correlation id is
// generated even though the correlator never consults it for events.
func EncodeEvent(tx string, key Key, payload []byte, route Route, authToken *string, authData json.RawMessage) ([]byte, error) {
	meta := newMeta(tx, key, EventType(), uuid.New(), route, authToken, authData)
	frame, _, err := buildFrame(meta, payload, nil)
	return frame, err
}

// EncodeEventWithAttachments is EncodeEvent plus inline attachment bytes.
func EncodeEventWithAttachments(tx string, key Key, payload []byte, attachments []AttachmentData, route Route, authToken *string, authData json.RawMessage) ([]byte, error) {
	meta := newMeta(tx, key, EventType(), uuid.New(), route, authToken, authData)
	frame, _, err := buildFrame(meta, payload, attachments)
	return frame, err
}

// EncodeEventWithLaterAttachments declares attachment sizes up front; the
// caller appends the matching bytes to the returned frame.
func EncodeEventWithLaterAttachments(tx string, key Key, payload []byte, attachments []AttachmentSize, route Route, authToken *string, authData json.RawMessage) ([]byte, error) {
	meta := newMeta(tx, key, EventType(), uuid.New(), route, authToken, authData)
	frame, _, err := buildFrameWithLaterAttachments(meta, payload, attachments)
	return frame, err
}

// EncodeEventWithSizes is EncodeEvent, additionally returning EncodeSizes.
func EncodeEventWithSizes(tx string, key Key, payload []byte, route Route, authToken *string, authData json.RawMessage) ([]byte, EncodeSizes, error) {
	meta := newMeta(tx, key, EventType(), uuid.New(), route, authToken, authData)
	return buildFrame(meta, payload, nil)
}

// EncodeRpcRequest builds an RPC request frame, generating and returning a
// fresh v4 correlation id.
func EncodeRpcRequest(tx string, key Key, payload []byte, route Route, authToken *string, authData json.RawMessage) (uuid.UUID, []byte, error) {
	id := uuid.New()
	meta := newMeta(tx, key, RpcRequestType(), id, route, authToken, authData)
	frame, _, err := buildFrame(meta, payload, nil)
	return id, frame, err
}

// EncodeRpcRequestWithAttachments is EncodeRpcRequest plus inline attachments.
func EncodeRpcRequestWithAttachments(tx string, key Key, payload []byte, attachments []AttachmentData, route Route, authToken *string, authData json.RawMessage) (uuid.UUID, []byte, error) {
	id := uuid.New()
	meta := newMeta(tx, key, RpcRequestType(), id, route, authToken, authData)
	frame, _, err := buildFrame(meta, payload, attachments)
	return id, frame, err
}

// EncodeRpcRequestWithLaterAttachments declares attachment sizes up front;
// the caller appends the matching bytes to the returned frame.
func EncodeRpcRequestWithLaterAttachments(tx string, key Key, payload []byte, attachments []AttachmentSize, route Route, authToken *string, authData json.RawMessage) (uuid.UUID, []byte, error) {
	id := uuid.New()
	meta := newMeta(tx, key, RpcRequestType(), id, route, authToken, authData)
	frame, _, err := buildFrameWithLaterAttachments(meta, payload, attachments)
	return id, frame, err
}

// EncodeRpcRequestWithSizes is EncodeRpcRequest, additionally returning EncodeSizes.
func EncodeRpcRequestWithSizes(tx string, key Key, payload []byte, route Route, authToken *string, authData json.RawMessage) (uuid.UUID, []byte, EncodeSizes, error) {
	id := uuid.New()
	meta := newMeta(tx, key, RpcRequestType(), id, route, authToken, authData)
	frame, sizes, err := buildFrame(meta, payload, nil)
	return id, frame, sizes, err
}

// EncodeRpcResponse builds an RPC response frame carrying the original
// request's correlation id.
func EncodeRpcResponse(correlationID uuid.UUID, tx string, key Key, result RpcResult, payload []byte, route Route, authToken *string, authData json.RawMessage) ([]byte, error) {
	meta := newMeta(tx, key, RpcResponseType(result), correlationID, route, authToken, authData)
	frame, _, err := buildFrame(meta, payload, nil)
	return frame, err
}

// EncodeRpcResponseWithAttachments is EncodeRpcResponse plus inline attachments.
func EncodeRpcResponseWithAttachments(correlationID uuid.UUID, tx string, key Key, result RpcResult, payload []byte, attachments []AttachmentData, route Route, authToken *string, authData json.RawMessage) ([]byte, error) {
	meta := newMeta(tx, key, RpcResponseType(result), correlationID, route, authToken, authData)
	frame, _, err := buildFrame(meta, payload, attachments)
	return frame, err
}

// EncodeRpcResponseWithLaterAttachments declares attachment sizes up front;
// the caller appends the matching bytes to the returned frame.
func EncodeRpcResponseWithLaterAttachments(correlationID uuid.UUID, tx string, key Key, result RpcResult, payload []byte, attachments []AttachmentSize, route Route, authToken *string, authData json.RawMessage) ([]byte, error) {
	meta := newMeta(tx, key, RpcResponseType(result), correlationID, route, authToken, authData)
	frame, _, err := buildFrameWithLaterAttachments(meta, payload, attachments)
	return frame, err
}

// EncodeRpcResponseWithSizes is EncodeRpcResponse, additionally returning EncodeSizes.
func EncodeRpcResponseWithSizes(correlationID uuid.UUID, tx string, key Key, result RpcResult, payload []byte, route Route, authToken *string, authData json.RawMessage) ([]byte, EncodeSizes, error) {
	meta := newMeta(tx, key, RpcResponseType(result), correlationID, route, authToken, authData)
	return buildFrame(meta, payload, nil)
}

// PeekMeta decodes only the leading length-prefixed meta, leaving payload
// and attachment bytes untouched.
func PeekMeta(buf []byte) (*MsgMeta, error) {
	if len(buf) < 4 {
		return nil, ErrInvalidLength
	}
	metaLen := binary.BigEndian.Uint32(buf[:4])
	if uint64(metaLen)+4 > uint64(len(buf)) {
		return nil, ErrInvalidLength
	}

	var meta MsgMeta
	if err := json.Unmarshal(buf[4:4+metaLen], &meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetaDecode, err)
	}
	return &meta, nil
}

func payloadBounds(meta *MsgMeta, buf []byte) (start, end int, err error) {
	if len(buf) < 4 {
		return 0, 0, ErrInvalidLength
	}
	metaLen := binary.BigEndian.Uint32(buf[:4])
	start = 4 + int(metaLen)
	end = start + int(meta.PayloadSize)
	if start > len(buf) || end > len(buf) || end < start {
		return 0, 0, ErrInvalidLength
	}
	return start, end, nil
}

// DecodePayload unmarshals the payload region into v, reusing a meta
// obtained from a prior PeekMeta/Decode call. Pass a nil v to skip
// unmarshaling.
func DecodePayload(meta *MsgMeta, buf []byte, v interface{}) error {
	start, end, err := payloadBounds(meta, buf)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(buf[start:end], v); err != nil {
		return fmt.Errorf("%w: %v", ErrPayloadDecode, err)
	}
	return nil
}

// DecodePayloadRaw returns the raw payload bytes without JSON decoding.
func DecodePayloadRaw(meta *MsgMeta, buf []byte) ([]byte, error) {
	start, end, err := payloadBounds(meta, buf)
	if err != nil {
		return nil, err
	}
	return buf[start:end], nil
}

// DecodeAttachments returns the ordered (name, bytes) pairs following the
// payload, validating that summed attachment sizes fit in the buffer.
func DecodeAttachments(meta *MsgMeta, buf []byte) ([]AttachmentData, error) {
	_, offset, err := payloadBounds(meta, buf)
	if err != nil {
		return nil, err
	}

	result := make([]AttachmentData, len(meta.Attachments))
	for i, a := range meta.Attachments {
		end := offset + int(a.Size)
		if end > len(buf) {
			return nil, ErrTruncatedAttachment
		}
		result[i] = AttachmentData{Name: a.Name, Bytes: buf[offset:end]}
		offset = end
	}
	return result, nil
}

// Decode fully decodes a frame: meta, a JSON-unmarshaled payload of type T,
// and the ordered attachments.
func Decode[T any](buf []byte) (*MsgMeta, T, []AttachmentData, error) {
	var payload T
	meta, err := PeekMeta(buf)
	if err != nil {
		return nil, payload, nil, err
	}
	if err := DecodePayload(meta, buf, &payload); err != nil {
		return meta, payload, nil, err
	}
	atts, err := DecodeAttachments(meta, buf)
	if err != nil {
		return meta, payload, nil, err
	}
	return meta, payload, atts, nil
}

// DecodeRaw is Decode without a typed payload: it returns the meta, the raw
// payload bytes, and the ordered attachments.
func DecodeRaw(buf []byte) (*MsgMeta, []byte, []AttachmentData, error) {
	meta, err := PeekMeta(buf)
	if err != nil {
		return nil, nil, nil, err
	}
	payload, err := DecodePayloadRaw(meta, buf)
	if err != nil {
		return meta, nil, nil, err
	}
	atts, err := DecodeAttachments(meta, buf)
	if err != nil {
		return meta, payload, nil, err
	}
	return meta, payload, atts, nil
}
