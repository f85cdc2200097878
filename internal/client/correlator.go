// Package client implements the reader-loop/RPC-correlator side of a
// connection: demultiplexing inbound frames into events, RPC requests and
// correlated RPC responses, with a single actor goroutine owning the
// pending-request table.
package client

import (
	"context"

	"github.com/google/uuid"

	"github.com/streamhub/platform/pkg/envelope"
)

// Response pairs a decoded meta with the full frame bytes it came from, so
// a caller can still pull the payload or attachments out with the
// envelope decode helpers.
type Response struct {
	Meta  *envelope.MsgMeta
	Frame []byte
}

type correlatorMessage interface {
	isCorrelatorMessage()
}

type addRpcMsg struct {
	id    uuid.UUID
	reply chan Response
}

type removeRpcMsg struct {
	id uuid.UUID
}

type deliverMsg struct {
	id   uuid.UUID
	resp Response
}

type claimMsg struct {
	id    uuid.UUID
	reply chan claimResult
}

type claimResult struct {
	resp Response
	ok   bool
}

func (addRpcMsg) isCorrelatorMessage()    {}
func (removeRpcMsg) isCorrelatorMessage() {}
func (deliverMsg) isCorrelatorMessage()   {}
func (claimMsg) isCorrelatorMessage()     {}

// overflowRing is the bounded, id-indexed store an uncorrelated response
// is held in until a caller claims it or it ages out under FIFO eviction.
const overflowRing = 64

// Correlator is the actor-style pending-RPC table: a single goroutine
// owns the map, reached only through AddRpc/RemoveRpc/Deliver/ClaimOverflow,
// mirroring the reference client's AddRpc/RemoveRpc control messages.
type Correlator struct {
	control  chan correlatorMessage
	overflow chan Response
}

// NewCorrelator builds a Correlator. Call Run in its own goroutine before
// using AddRpc/RemoveRpc/Deliver.
func NewCorrelator() *Correlator {
	return &Correlator{
		control:  make(chan correlatorMessage, 256),
		overflow: make(chan Response, overflowRing),
	}
}

// Run owns the pending table until ctx is canceled.
func (c *Correlator) Run(ctx context.Context) {
	pending := make(map[uuid.UUID]chan Response)
	overflowBuf := make(map[uuid.UUID]Response)
	var overflowOrder []uuid.UUID

	evict := func(id uuid.UUID) {
		delete(overflowBuf, id)
		for i, o := range overflowOrder {
			if o == id {
				overflowOrder = append(overflowOrder[:i], overflowOrder[i+1:]...)
				break
			}
		}
	}

	stash := func(id uuid.UUID, resp Response) {
		if len(overflowOrder) >= overflowRing {
			oldest := overflowOrder[0]
			overflowOrder = overflowOrder[1:]
			delete(overflowBuf, oldest)
		}
		overflowBuf[id] = resp
		overflowOrder = append(overflowOrder, id)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.control:
			switch m := msg.(type) {
			case addRpcMsg:
				pending[m.id] = m.reply
			case removeRpcMsg:
				delete(pending, m.id)
			case deliverMsg:
				reply, ok := pending[m.id]
				if !ok {
					stash(m.id, m.resp)
					select {
					case c.overflow <- m.resp:
					default:
					}
					continue
				}
				delete(pending, m.id)
				select {
				case reply <- m.resp:
				default:
				}
			case claimMsg:
				resp, ok := overflowBuf[m.id]
				if ok {
					evict(m.id)
				}
				m.reply <- claimResult{resp: resp, ok: ok}
			}
		}
	}
}

// AddRpc registers interest in a correlation id and returns the channel
// its eventual response will be delivered on. The caller must eventually
// call RemoveRpc, typically deferred immediately after a timeout-bounded
// receive.
func (c *Correlator) AddRpc(id uuid.UUID) chan Response {
	reply := make(chan Response, 1)
	c.control <- addRpcMsg{id: id, reply: reply}
	return reply
}

// RemoveRpc withdraws interest in a correlation id, e.g. after a timeout.
func (c *Correlator) RemoveRpc(id uuid.UUID) {
	c.control <- removeRpcMsg{id: id}
}

// Deliver routes a decoded RpcResponse frame to its waiting caller. With
// no caller currently waiting on that correlation id, the response is
// stashed in the overflow ring (claimable by id through ClaimOverflow)
// and also pushed onto Overflow, so a response that arrives after its
// requester gave up or was never registered still lands somewhere
// observable instead of being silently dropped.
func (c *Correlator) Deliver(id uuid.UUID, resp Response) {
	c.control <- deliverMsg{id: id, resp: resp}
}

// Overflow yields RpcResponse frames that arrived with no matching
// pending request, in arrival order.
func (c *Correlator) Overflow() <-chan Response {
	return c.overflow
}

// ClaimOverflow looks an uncorrelated response up by its correlation id
// and removes it from the ring if present. A response is claimable until
// either a caller claims it or overflowRing more uncorrelated responses
// arrive and evict it.
func (c *Correlator) ClaimOverflow(id uuid.UUID) (Response, bool) {
	reply := make(chan claimResult, 1)
	c.control <- claimMsg{id: id, reply: reply}
	result := <-reply
	return result.resp, result.ok
}
