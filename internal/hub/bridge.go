package hub

import (
	"context"
	"math/rand"
	"sync"
	"time"

	ws "github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// Bridge is a single outbound Hub-role connection to an upstream hub. It
// is the supplemented half of App tunneling: the reference implementation
// has no reconnection policy at all, so a dropped upstream link is fatal
// to every App behind it. Bridge instead reconnects with backoff; per
// spec.md's bridge section, new sends block until a live upstream
// connection is reconnected rather than being dropped.
type Bridge struct {
	linkName string
	upstream string
	log      *logrus.Entry

	outbound  chan []byte
	done      chan struct{}
	closeDone sync.Once

	mu   sync.Mutex
	conn *ws.Conn
}

// NewBridge builds a Bridge. linkName is sent as the Hub handshake header
// so the upstream hub's address table can route back to this one.
func NewBridge(linkName, upstreamURL string, log *logrus.Logger) *Bridge {
	if log == nil {
		log = logrus.New()
	}
	return &Bridge{
		linkName: linkName,
		upstream: upstreamURL,
		log:      log.WithField("component", "bridge"),
		outbound: make(chan []byte),
		done:     make(chan struct{}),
	}
}

// Send hands a frame to the bridge for delivery upstream. It blocks until
// writeLoop is connected and able to accept the frame, or until the
// bridge is shut down — it never silently drops a frame on backpressure.
func (b *Bridge) Send(frame []byte) {
	select {
	case b.outbound <- frame:
	case <-b.done:
	}
}

// Run dials upstream and pumps queued frames until ctx is canceled,
// reconnecting with exponential backoff (capped, jittered) on any
// disconnect. On exit it closes the bridge's done channel, unblocking
// any Send call waiting on a connection that will never come back.
func (b *Bridge) Run(ctx context.Context) {
	defer b.closeDone.Do(func() { close(b.done) })

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := b.dial(ctx)
		if err != nil {
			b.log.WithError(err).WithField("backoff", backoff).Warn("bridge dial failed, retrying")
			if !sleepCtx(ctx, jitter(backoff)) {
				return
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}

		backoff = time.Second
		b.setConn(conn)
		b.writeLoop(ctx, conn)
		b.setConn(nil)
	}
}

func (b *Bridge) dial(ctx context.Context) (*ws.Conn, error) {
	header := make(map[string][]string)
	header["Hub"] = []string{b.linkName}
	conn, _, err := ws.Dial(ctx, b.upstream, &ws.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (b *Bridge) setConn(conn *ws.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conn = conn
}

func (b *Bridge) writeLoop(ctx context.Context, conn *ws.Conn) {
	defer conn.Close(ws.StatusNormalClosure, "")
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-b.outbound:
			if err := conn.Write(ctx, ws.MessageBinary, frame); err != nil {
				b.log.WithError(err).Debug("bridge write failed, reconnecting")
				return
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

func jitter(d time.Duration) time.Duration {
	return d/2 + time.Duration(rand.Int63n(int64(d)/2+1))
}
