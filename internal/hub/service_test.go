package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhub/platform/pkg/envelope"
)

func buildComponentFrame(t *testing.T, destAddr string) []byte {
	t.Helper()
	route := envelope.Route{
		Source: envelope.NewComponent("app.widget", nil, nil),
		Spec:   envelope.SimpleRoute(),
		Points: []envelope.Participator{envelope.NewServiceParticipator(destAddr)},
	}
	frame, err := envelope.EncodeEvent("some.app", envelope.SimpleKey("ping"), []byte(`{}`), route, nil, nil)
	require.NoError(t, err)
	return frame
}

// TestRunClientsForwardsToKnownDestination covers the Service/Hub inbound
// rule: a frame whose route.points[0] matches a registered address is
// delivered to that connection's outbound queue.
func TestRunClientsForwardsToKnownDestination(t *testing.T) {
	h := New(Config{Host: "127.0.0.1", Port: 0}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.runClients(ctx)

	handle := newConnHandle("svc.worker", RoleService)
	h.control <- addClientMsg{addr: "svc.worker", handle: handle}

	frame := buildComponentFrame(t, "svc.worker")
	h.control <- sendMsgMsg{addr: "svc.worker", frame: frame}

	select {
	case got := <-handle.outbound:
		assert.Equal(t, frame, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for forwarded frame")
	}
}

// TestRunClientsDropsOnLookupMiss covers the silent-drop behavior when
// route.points[0] names no registered connection.
func TestRunClientsDropsOnLookupMiss(t *testing.T) {
	h := New(Config{Host: "127.0.0.1", Port: 0}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.runClients(ctx)

	frame := buildComponentFrame(t, "svc.nobody")
	h.control <- sendMsgMsg{addr: "svc.nobody", frame: frame}

	// No panic, no observable effect; give the goroutine a beat to process.
	time.Sleep(50 * time.Millisecond)
}

// TestRunClientsRemoveClientStopsForwarding ensures a removed address no
// longer resolves to a connection.
func TestRunClientsRemoveClientStopsForwarding(t *testing.T) {
	h := New(Config{Host: "127.0.0.1", Port: 0}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.runClients(ctx)

	handle := newConnHandle("svc.worker", RoleService)
	h.control <- addClientMsg{addr: "svc.worker", handle: handle}
	h.control <- removeClientMsg{addr: "svc.worker"}

	frame := buildComponentFrame(t, "svc.worker")
	h.control <- sendMsgMsg{addr: "svc.worker", frame: frame}

	select {
	case <-handle.outbound:
		t.Fatal("expected no frame to be delivered after removal")
	case <-time.After(100 * time.Millisecond):
	}
}

// TestRewriteForBridgePreservesPayloadBytes covers the App-tunnel rewrite:
// tx and the Component source's client_addr change, but payload bytes
// (and any trailing attachment bytes) survive unchanged.
func TestRewriteForBridgePreservesPayloadBytes(t *testing.T) {
	route := envelope.Route{
		Source: envelope.NewComponent("app.widget", nil, nil),
		Spec:   envelope.SimpleRoute(),
		Points: nil,
	}
	payload := []byte(`{"n":42}`)
	frame, err := envelope.EncodeEvent("origin-tx", envelope.SimpleKey("ping"), payload, route, nil, nil)
	require.NoError(t, err)

	meta, err := envelope.PeekMeta(frame)
	require.NoError(t, err)

	rewritten, err := rewriteForBridge(meta, frame, "conn-addr-123")
	require.NoError(t, err)

	gotMeta, err := envelope.PeekMeta(rewritten)
	require.NoError(t, err)
	assert.Equal(t, appHubTxName, gotMeta.Tx)
	require.NotNil(t, gotMeta.Route.Source.ClientAddr)
	assert.Equal(t, "conn-addr-123", *gotMeta.Route.Source.ClientAddr)

	gotPayload, err := envelope.DecodePayloadRaw(gotMeta, rewritten)
	require.NoError(t, err)
	assert.Equal(t, payload, gotPayload)
}

// TestRewriteForBridgeLeavesServiceSourceUntouched ensures the client_addr
// injection only applies to Component sources, per the App-tunnel rule.
func TestRewriteForBridgeLeavesServiceSourceUntouched(t *testing.T) {
	route := envelope.Route{
		Source: envelope.NewServiceParticipator("svc.worker"),
		Spec:   envelope.SimpleRoute(),
	}
	frame, err := envelope.EncodeEvent("origin-tx", envelope.SimpleKey("ping"), []byte(`{}`), route, nil, nil)
	require.NoError(t, err)

	meta, err := envelope.PeekMeta(frame)
	require.NoError(t, err)

	rewritten, err := rewriteForBridge(meta, frame, "conn-addr-123")
	require.NoError(t, err)

	gotMeta, err := envelope.PeekMeta(rewritten)
	require.NoError(t, err)
	assert.Equal(t, envelope.ParticipatorService, gotMeta.Route.Source.Kind)
	assert.Nil(t, gotMeta.Route.Source.ClientAddr)
}
