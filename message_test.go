package spdnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Buffer_SetAndReset(t *testing.T) {
	b := NewBuffer([]byte("hello"))
	assert.Equal(t, 5, b.Len())
	assert.Equal(t, []byte("hello"), b.Bytes())

	b.Set([]byte("hi"))
	assert.Equal(t, []byte("hi"), b.Bytes())

	b.Set(nil)
	assert.Equal(t, 0, b.Len())
}

func Test_NewMessageData_NilPartsAreEmpty(t *testing.T) {
	msg := NewMessageData(nil, []byte("hdr"), nil)
	assert.Equal(t, 0, msg.Get(PartSockid).Len())
	assert.Equal(t, []byte("hdr"), msg.Get(PartHeader).Bytes())
	assert.Equal(t, 0, msg.Get(PartContent).Len())
}

func Test_Message_Close_IsIdempotent(t *testing.T) {
	msg := NewMessageData([]byte("id"), []byte("h"), []byte("c"))
	msg.setMeta(&Meta{TTL: 5})

	msg.Close()
	_, ok := msg.Meta()
	assert.False(t, ok)
	assert.Equal(t, 0, msg.Get(PartSockid).Len())

	msg.Close() // no panic, still empty
	assert.Equal(t, 0, msg.Get(PartHeader).Len())
}

func Test_Message_MoveFrom_TransfersWithoutCopy(t *testing.T) {
	src := NewMessageData([]byte("id"), []byte("h"), []byte("c"))
	src.setMeta(&Meta{TTL: 7})

	dst := NewMessage()
	dst.MoveFrom(src)

	assert.Equal(t, []byte("id"), dst.Get(PartSockid).Bytes())
	meta, ok := dst.Meta()
	require.True(t, ok)
	assert.Equal(t, byte(7), meta.TTL)

	assert.Equal(t, 0, src.Get(PartSockid).Len())
	_, ok = src.Meta()
	assert.False(t, ok)
}

func Test_Message_MoveFrom_PanicsIfDstHasMeta(t *testing.T) {
	dst := NewMessage()
	dst.setMeta(&Meta{})
	src := NewMessage()

	assert.Panics(t, func() { dst.MoveFrom(src) })
}

func Test_Message_Copy_IsIndependent(t *testing.T) {
	src := NewMessageData([]byte("id"), []byte("h"), []byte("c"))
	src.setMeta(&Meta{TTL: 3})

	dst := src.Copy()
	dst.Get(PartSockid).Set([]byte("changed"))

	assert.Equal(t, []byte("id"), src.Get(PartSockid).Bytes())
	assert.Equal(t, []byte("changed"), dst.Get(PartSockid).Bytes())

	meta, _ := dst.Meta()
	meta.TTL = 99
	srcMeta, _ := src.Meta()
	assert.Equal(t, byte(3), srcMeta.TTL)
}

func Test_Meta_NameString_TrimsAtFirstZero(t *testing.T) {
	var m Meta
	copy(m.Name[:], "router")
	assert.Equal(t, "router", m.NameString())
}

func Test_EncodeDecodeMeta_RoundTrip(t *testing.T) {
	m := &Meta{NodeType: KindRouter, TTL: 8}
	copy(m.Name[:], "svc")

	b := encodeMeta(m, MetaNameSize)
	got, err := decodeMeta(b, MetaNameSize)
	require.NoError(t, err)
	assert.Equal(t, m.NodeType, got.NodeType)
	assert.Equal(t, m.TTL, got.TTL)
	assert.Equal(t, "svc", got.NameString())
}

func Test_DecodeMeta_SizeMismatchIsFatal(t *testing.T) {
	_, err := decodeMeta([]byte{1, 2, 3}, MetaNameSize)
	assert.ErrorIs(t, err, ErrMetaSizeMismatch)
}
