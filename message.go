package spdnet

import "github.com/atsika/spdnet/transport"

// SocketKind re-exports transport.SocketKind so callers building a Message
// or Meta by hand don't need a second import.
type SocketKind = transport.SocketKind

// The SocketKind values a Meta.NodeType can carry; see transport.SocketKind.
const (
	KindNode   = transport.KindNode
	KindSub    = transport.KindSub
	KindPub    = transport.KindPub
	KindRouter = transport.KindRouter
	KindDealer = transport.KindDealer
)

// MetaNameSize is the fixed width of the name field carried in a Meta
// trailer.
const MetaNameSize = 32

// SockidSize is the maximum size, in bytes, of a sockid or node identity.
const SockidSize = 64

// Part names the addressable buffers of a Message.
type Part int

const (
	PartSockid Part = iota
	PartHeader
	PartContent
)

// Buffer is an independently-owned, resizable octet container. The zero
// value is an empty buffer.
type Buffer struct {
	b []byte
}

// NewBuffer wraps a copy of data in a Buffer. A nil or empty data is a
// valid, empty Buffer.
func NewBuffer(data []byte) Buffer {
	if len(data) == 0 {
		return Buffer{}
	}
	b := make([]byte, len(data))
	copy(b, data)
	return Buffer{b: b}
}

// Bytes returns the buffer's contents. The returned slice must not be
// retained past the buffer's lifetime without copying.
func (b *Buffer) Bytes() []byte { return b.b }

// Len returns the number of bytes held by the buffer.
func (b *Buffer) Len() int { return len(b.b) }

// Set replaces the buffer's contents with a copy of data.
func (b *Buffer) Set(data []byte) {
	if len(data) == 0 {
		b.b = nil
		return
	}
	b.b = append(b.b[:0], data...)
}

// reset empties the buffer without releasing its backing array, so a later
// Set can reuse the allocation.
func (b *Buffer) reset() { b.b = b.b[:0] }

// Meta is the fixed-size trailer attached to a Message by a successful
// receive, or synthesized by a send. It is never constructed by application
// code directly — meta is never forged by a caller.
type Meta struct {
	NodeType SocketKind
	TTL      byte
	Name     [MetaNameSize]byte
}

// NameString returns Name as a string, trimmed at the first zero byte.
func (m *Meta) NameString() string {
	for i, c := range m.Name {
		if c == 0 {
			return string(m.Name[:i])
		}
	}
	return string(m.Name[:])
}

// Message is the four-part unit of exchange: an addressing frame (Sockid),
// an opaque application header, an opaque application payload (Content),
// and a trailing Meta populated by receive or synthesized by send.
type Message struct {
	Sockid  Buffer
	Header  Buffer
	Content Buffer

	// envelope holds the extra leading frame a NODE- or ROUTER-kind node
	// reads ahead of Sockid (see recvmsg), kept as its own buffer rather
	// than overwriting Sockid with it.
	envelope Buffer

	meta *Meta
}

// NewMessage returns an empty message: three empty buffers, no meta.
func NewMessage() *Message {
	return &Message{}
}

// NewMessageData returns a message whose three main buffers are populated
// from the given sources. A nil source is treated as empty.
func NewMessageData(sockid, header, content []byte) *Message {
	return &Message{
		Sockid:  NewBuffer(sockid),
		Header:  NewBuffer(header),
		Content: NewBuffer(content),
	}
}

// Close releases the three buffers and the meta trailer, if present.
// Idempotent: Close on an already-closed message is a no-op, and after
// Close, Meta() reports absent.
func (m *Message) Close() {
	m.Sockid = Buffer{}
	m.Header = Buffer{}
	m.Content = Buffer{}
	m.envelope = Buffer{}
	m.meta = nil
}

// MoveFrom transfers all four parts from src into m without copying. src is
// left as three empty buffers with no meta. Panics if m already has a meta
// set.
func (m *Message) MoveFrom(src *Message) {
	if m.meta != nil {
		panic("spdnet: MoveFrom into a message that already has meta")
	}
	m.Sockid, src.Sockid = src.Sockid, Buffer{}
	m.Header, src.Header = src.Header, Buffer{}
	m.Content, src.Content = src.Content, Buffer{}
	m.envelope, src.envelope = src.envelope, Buffer{}
	m.meta, src.meta = src.meta, nil
}

// Copy returns a deep copy of m: every buffer, including meta, is
// duplicated rather than shared.
func (m *Message) Copy() *Message {
	dst := &Message{
		Sockid:   NewBuffer(m.Sockid.Bytes()),
		Header:   NewBuffer(m.Header.Bytes()),
		Content:  NewBuffer(m.Content.Bytes()),
		envelope: NewBuffer(m.envelope.Bytes()),
	}
	if m.meta != nil {
		meta := *m.meta
		dst.meta = &meta
	}
	return dst
}

// Get returns the named buffer, or nil for an unrecognized part.
func (m *Message) Get(part Part) *Buffer {
	switch part {
	case PartSockid:
		return &m.Sockid
	case PartHeader:
		return &m.Header
	case PartContent:
		return &m.Content
	default:
		return nil
	}
}

// Meta returns the message's meta trailer and whether it is present.
func (m *Message) Meta() (*Meta, bool) {
	return m.meta, m.meta != nil
}

// MetaName returns meta.Name as a string. The second return is false if
// meta is absent.
func (m *Message) MetaName() (string, bool) {
	if m.meta == nil {
		return "", false
	}
	return m.meta.NameString(), true
}

// Envelope returns the leading frame a NODE- or ROUTER-kind node read ahead
// of Sockid on the most recent receive. Empty for other kinds or before any
// receive.
func (m *Message) Envelope() *Buffer { return &m.envelope }

// setMeta replaces any existing meta with a fresh one. Used by recvmsg and
// by sendmsg's synthesized meta; not exported, since meta is never forged
// by application code.
func (m *Message) setMeta(meta *Meta) { m.meta = meta }
