package envelope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticipatorJSONRoundTrip(t *testing.T) {
	appAddr := "app1"
	clientAddr := "U"
	comp := NewComponent("c1", &appAddr, &clientAddr)

	data, err := json.Marshal(comp)
	require.NoError(t, err)

	var decoded Participator
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, comp.Kind, decoded.Kind)
	assert.Equal(t, comp.Addr, decoded.Addr)
	require.NotNil(t, decoded.AppAddr)
	assert.Equal(t, appAddr, *decoded.AppAddr)
	require.NotNil(t, decoded.ClientAddr)
	assert.Equal(t, clientAddr, *decoded.ClientAddr)

	svc := NewServiceParticipator("s1")
	data, err = json.Marshal(svc)
	require.NoError(t, err)
	var decodedSvc Participator
	require.NoError(t, json.Unmarshal(data, &decodedSvc))
	assert.Equal(t, ParticipatorService, decodedSvc.Kind)
	assert.Equal(t, "s1", decodedSvc.Addr)
}

func TestRouteSpecJSONRoundTrip(t *testing.T) {
	simple := SimpleRoute()
	data, err := json.Marshal(simple)
	require.NoError(t, err)
	assert.Equal(t, `"Simple"`, string(data))

	var decodedSimple RouteSpec
	require.NoError(t, json.Unmarshal(data, &decodedSimple))
	assert.Equal(t, RouteSimple, decodedSimple.Kind)

	client := ClientRoute(NewServiceParticipator("s1"))
	data, err = json.Marshal(client)
	require.NoError(t, err)

	var decodedClient RouteSpec
	require.NoError(t, json.Unmarshal(data, &decodedClient))
	assert.Equal(t, RouteClient, decodedClient.Kind)
	assert.Equal(t, "s1", decodedClient.Client.Addr)
}

func TestMsgTypeJSONRoundTrip(t *testing.T) {
	for _, mt := range []MsgType{EventType(), RpcRequestType(), RpcResponseType(RpcOk), RpcResponseType(RpcErr)} {
		data, err := json.Marshal(mt)
		require.NoError(t, err)

		var decoded MsgType
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, mt, decoded)
	}
}

func TestCmpSpecDerivation(t *testing.T) {
	parent := CmpSpec{Addr: "root", Tx: ""}

	unrelated := parent.NewAddr("other")
	assert.Equal(t, "other", unrelated.Addr)
	assert.Equal(t, "root", unrelated.Tx)

	child := parent.AddToAddr("delta")
	assert.Equal(t, "root.delta", child.Addr)
	assert.Equal(t, "root", child.Tx)
}

func TestAddressParts(t *testing.T) {
	addr := Address("a.b.c")
	part, err := addr.Part(1)
	require.NoError(t, err)
	assert.Equal(t, "b", part)

	_, err = addr.Part(5)
	require.Error(t, err)

	before, err := addr.PartBeforeLast()
	require.NoError(t, err)
	assert.Equal(t, "b", before)
}
