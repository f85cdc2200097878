package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJitterStaysWithinBounds(t *testing.T) {
	d := 4 * time.Second
	for i := 0; i < 50; i++ {
		j := jitter(d)
		assert.GreaterOrEqual(t, j, d/2)
		assert.LessOrEqual(t, j, d)
	}
}

func TestNextBackoffDoublesAndCaps(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second, 30*time.Second))
	assert.Equal(t, 30*time.Second, nextBackoff(20*time.Second, 30*time.Second))
}

func TestBridgeSendBlocksUntilConsumed(t *testing.T) {
	b := NewBridge("edge-hub", "ws://upstream", nil)

	sent := make(chan struct{})
	go func() {
		b.Send([]byte("frame"))
		close(sent)
	}()

	select {
	case <-sent:
		t.Fatal("Send returned before any consumer read the frame")
	case <-time.After(50 * time.Millisecond):
	}

	<-b.outbound

	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("Send did not unblock once the frame was consumed")
	}
}

func TestBridgeSendUnblocksOnShutdown(t *testing.T) {
	b := NewBridge("edge-hub", "ws://upstream", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A canceled context makes Run exit immediately, closing done without
	// ever dialing out.
	go b.Run(ctx)

	done := make(chan struct{})
	go func() {
		b.Send([]byte("frame"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send did not unblock on bridge shutdown")
	}
}
