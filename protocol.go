package spdnet

// Control message verbs. Byte sequences are fixed by the wire format and
// must remain stable.
const (
	VerbRegister   = "snd\x00rgstr"
	VerbUnregister = "snd\x00urgstr"
	VerbExpose     = "snd\x00expose"
	VerbAlive      = "snd\x00alive"
)

// plainControlMessage builds the shared shape of every control message:
// sockid empty, header the verb, content empty.
func plainControlMessage(verb string) *Message {
	return NewMessageData(nil, []byte(verb), nil)
}

// controlMessage builds the same shape, except that when the node has a
// completed secure session, content carries the node's identity sealed
// under that session — the header stays plaintext so a receiver can still
// dispatch on verb without unsealing anything first.
func (n *Node) controlMessage(verb string) (*Message, error) {
	if n.secure == nil {
		return NewMessageData(nil, []byte(verb), nil), nil
	}
	sealed, err := n.secure.seal(n.id)
	if err != nil {
		return nil, err
	}
	return NewMessageData(nil, []byte(verb), sealed), nil
}

// register sends REGISTER. Emitted once, by Connect, on a successful
// transport connect of a NODE-kind node.
func (n *Node) register() error {
	msg, err := n.controlMessage(VerbRegister)
	if err != nil {
		return err
	}
	defer msg.Close()
	if err := n.sendmsg(msg); err != nil {
		return err
	}
	n.ctx.metrics.IncrementRegister()
	return nil
}

// unregister sends UNREGISTER. Emitted once, by Disconnect, before tearing
// down the transport connection of a NODE-kind node.
func (n *Node) unregister() error {
	msg, err := n.controlMessage(VerbUnregister)
	if err != nil {
		return err
	}
	defer msg.Close()
	if err := n.sendmsg(msg); err != nil {
		return err
	}
	n.ctx.metrics.IncrementUnregister()
	return nil
}

// Expose advertises the node's identity. Calling it with an empty identity
// is a programmer error.
func (n *Node) Expose() error {
	if len(n.id) == 0 {
		return ErrBadState
	}
	msg := plainControlMessage(VerbExpose)
	defer msg.Close()
	if err := n.sendmsg(msg); err != nil {
		return err
	}
	n.ctx.metrics.IncrementExpose()
	return nil
}

// Alive sends ALIVE. Called by the pool's keepalive scan when a node's
// deadline is due; the deadline is re-armed only after a successful send
// (see rearmAlive).
func (n *Node) Alive() error {
	msg := plainControlMessage(VerbAlive)
	defer msg.Close()
	if err := n.sendmsg(msg); err != nil {
		return err
	}
	n.ctx.metrics.IncrementAlive()
	n.rearmAlive()
	return nil
}
