package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscribesInversionByAddrToByKey(t *testing.T) {
	byAddr := NewByAddr()
	byAddr.Subscribe(CategoryEvents, "addr1", SimpleKey("ping"))
	byAddr.Subscribe(CategoryEvents, "addr2", SimpleKey("ping"))
	byAddr.Subscribe(CategoryEvents, "addr1", SimpleKey("pong"))
	byAddr.Subscribe(CategoryRpcRequests, "addr3", NewKey("do", "svc", "dom"))

	byKey := byAddr.ToByKey()

	assert.ElementsMatch(t, []string{"addr1", "addr2"}, byKey.Events[SimpleKey("ping")])
	assert.ElementsMatch(t, []string{"addr1"}, byKey.Events[SimpleKey("pong")])
	assert.ElementsMatch(t, []string{"addr3"}, byKey.RpcRequests[NewKey("do", "svc", "dom")])

	roundTripped := byKey.ToByAddr()
	assert.Equal(t, byAddr.Events, roundTripped.Events)
	assert.Equal(t, byAddr.RpcRequests, roundTripped.RpcRequests)
	assert.Equal(t, byAddr.RpcResponses, roundTripped.RpcResponses)
}

func TestSubscribesInversionByKeyToByAddr(t *testing.T) {
	byKey := ByKey{
		Events: map[Key][]string{
			SimpleKey("ping"): {"a", "b"},
		},
		RpcRequests:  map[Key][]string{},
		RpcResponses: map[Key][]string{},
	}

	byAddr := byKey.ToByAddr()
	assert.Equal(t, map[Key]struct{}{SimpleKey("ping"): {}}, byAddr.Events["a"])
	assert.Equal(t, map[Key]struct{}{SimpleKey("ping"): {}}, byAddr.Events["b"])

	roundTripped := byAddr.ToByKey()
	assert.ElementsMatch(t, byKey.Events[SimpleKey("ping")], roundTripped.Events[SimpleKey("ping")])
}

func TestKeyEqualityUsesAllThreeFields(t *testing.T) {
	a := NewKey("do", "svc", "dom")
	b := NewKey("do", "svc", "dom")
	c := SimpleKey("do")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
