package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionPartAndOutOfRange(t *testing.T) {
	meta := &MsgMeta{Key: Key{Action: "svc.sub.op"}}

	part, err := meta.ActionPart(1)
	require.NoError(t, err)
	assert.Equal(t, "sub", part)

	_, err = meta.ActionPart(5)
	require.Error(t, err)
	var rangeErr *IndexOutOfRangeError
	assert.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, 5, rangeErr.Index)
	assert.Equal(t, 3, rangeErr.Len)

	assert.True(t, meta.MatchActionPart(0, "svc"))
	assert.False(t, meta.MatchActionPart(0, "nope"))
}

func TestTxPart(t *testing.T) {
	meta := &MsgMeta{Tx: "hub.gateway.1"}

	part, err := meta.TxPart(2)
	require.NoError(t, err)
	assert.Equal(t, "1", part)
	assert.True(t, meta.MatchTxPart(2, "1"))
}

func TestSourceCmpPartBeforeLast(t *testing.T) {
	meta := &MsgMeta{Route: Route{Source: NewComponent("a.b.c", nil, nil)}}

	part, err := meta.SourceCmpPartBeforeLast()
	require.NoError(t, err)
	assert.Equal(t, "b", part)

	shallow := &MsgMeta{Route: Route{Source: NewComponent("a", nil, nil)}}
	_, err = shallow.SourceCmpPartBeforeLast()
	require.Error(t, err)
	var tooFew *TooFewPartsError
	assert.ErrorAs(t, err, &tooFew)
}

func TestSourceAndClientAddrExtraction(t *testing.T) {
	compMeta := &MsgMeta{Route: Route{Source: NewComponent("c1", nil, nil)}}
	addr, ok := compMeta.SourceCmpAddr()
	assert.True(t, ok)
	assert.Equal(t, "c1", addr)
	_, ok = compMeta.SourceSvcAddr()
	assert.False(t, ok)

	svcMeta := &MsgMeta{Route: Route{Source: NewServiceParticipator("s1")}}
	addr, ok = svcMeta.SourceSvcAddr()
	assert.True(t, ok)
	assert.Equal(t, "s1", addr)

	redirectMeta := &MsgMeta{Route: Route{Spec: ClientRoute(NewServiceParticipator("s2"))}}
	addr, ok = redirectMeta.ClientSvcAddr()
	assert.True(t, ok)
	assert.Equal(t, "s2", addr)
	_, ok = redirectMeta.ClientCmpAddr()
	assert.False(t, ok)
}

func TestContentLenAndAttachmentsLen(t *testing.T) {
	meta := &MsgMeta{
		PayloadSize: 10,
		Attachments: []Attachment{{Name: "a", Size: 3}, {Name: "b", Size: 5}},
	}
	assert.Equal(t, uint64(8), meta.AttachmentsLen())
	assert.Equal(t, uint64(18), meta.ContentLen())
	assert.Equal(t, []uint64{3, 5}, meta.AttachmentsSizes())
}
