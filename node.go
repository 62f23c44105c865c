package spdnet

import (
	"container/list"
	"time"

	"github.com/atsika/spdnet/transport"
)

// AsyncCallback is invoked exactly once by a Node's recvmsg_async
// registration: with a populated msg and err == nil on a successful
// receive, or with msg == nil and err == ErrTimeout if the deadline passed
// first.
type AsyncCallback func(n *Node, msg *Message, arg any, err error)

// asyncRecv is a Node's single-shot recvmsg_async registration: at most one
// outstanding callback per node, cleared the moment it fires.
type asyncRecv struct {
	active   bool
	cb       AsyncCallback
	arg      any
	deadline time.Time // zero means "no deadline"
}

// ListLinks holds a Node's membership in the pool's five intrusive list
// roles: all-nodes, pollin-ready, pollout-ready, pollerr, recvmsg-timeout.
// The pool package manipulates these directly rather than through a second
// indirection layer; container/list.Element is the typed intrusive-list
// handle for each role.
type ListLinks struct {
	AllNodes     *list.Element
	PollIn       *list.Element
	PollOut      *list.Element
	PollErr      *list.Element
	RecvTimeouts *list.Element
}

// Node is a stateful endpoint combining one transport socket, an identity,
// bind/connect state, a keepalive timer, an optional asynchronous-receive
// registration, and a user-data slot.
type Node struct {
	ctx  *Context // non-owning, avoids a node↔context↔pool reference cycle
	kind SocketKind
	id   []byte
	sock transport.Socket

	isBind    bool
	bindAddr  string
	isConnect bool
	connectAddr string

	aliveInterval time.Duration
	aliveDeadline time.Time

	userData any

	// secure holds the completed Noise NN session used to seal REGISTER/
	// UNREGISTER content when Config.secureRegister is enabled; nil
	// otherwise (or on a responder node before AcceptSecureHandshake).
	secure *noiseHandshake

	// used is set by the pool when the node is pool-managed; it controls
	// whether Destroy recycles (Pool.Put) or frees outright.
	used bool

	recv asyncRecv

	links ListLinks
}

// NewNode returns a node of the requested kind: from the Context's pool if
// one is configured and has a recyclable node of this kind, otherwise a
// fresh allocation registered with the pool via Pool.Add. A Context with no
// pool configured always allocates fresh and leaves the node unpooled (used
// = false), so Destroy frees rather than recycles it.
func NewNode(ctx *Context, kind SocketKind) (*Node, error) {
	if ctx == nil {
		return nil, ErrBadOption
	}

	if ctx.pool != nil {
		if n := ctx.pool.Get(ctx, kind); n != nil {
			n.used = true
			return n, nil
		}
	}

	sock, err := transport.Open(ctx.cfg.scheme, kind)
	if err != nil {
		return nil, err
	}

	n := &Node{ctx: ctx, kind: kind, sock: sock}
	if ctx.pool != nil {
		n.used = true
		ctx.pool.Add(ctx, n)
	}
	return n, nil
}

// Destroy releases a node: if pool-managed, it is returned to the pool
// (which may reset or cache it); otherwise it is unbound if bound,
// disconnected if connected (which for a NODE-kind node also sends
// UNREGISTER), its socket is closed, and its async-receive registration is
// cleared.
func (n *Node) Destroy() error {
	if n.used && n.ctx.pool != nil {
		n.ctx.pool.Put(n.ctx, n)
		return nil
	}

	var firstErr error
	if n.isBind {
		if err := n.Unbind(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if n.isConnect {
		if err := n.Disconnect(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	n.recv = asyncRecv{}
	if err := n.sock.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Bind starts listening at addr. Calling Bind on an already-bound node is a
// programmer error.
func (n *Node) Bind(addr string) error {
	if n.isBind {
		return ErrBadState
	}
	if err := n.sock.Bind(addr); err != nil {
		return err
	}
	n.isBind = true
	n.bindAddr = addr
	return nil
}

// Unbind stops listening. Calling Unbind while not bound is a programmer
// error.
func (n *Node) Unbind() error {
	if !n.isBind {
		return ErrBadState
	}
	if err := n.sock.Unbind(n.bindAddr); err != nil {
		return err
	}
	n.isBind = false
	n.bindAddr = ""
	return nil
}

// Connect opens an outbound connection to addr. For a NODE-kind node, a
// successful transport connect is followed by REGISTER and by arming the
// keepalive deadline (if SetAlive has not already been called, the
// Context's default alive interval is used). If REGISTER fails, the
// transport connect is rolled back and the original error is returned —
// the connect path tears itself down on any post-connect setup failure
// rather than leaving a half-open node.
func (n *Node) Connect(addr string) error {
	if n.isConnect {
		return ErrBadState
	}
	if err := n.sock.Connect(addr); err != nil {
		return err
	}
	n.isConnect = true
	n.connectAddr = addr

	if n.kind == KindNode {
		if n.aliveInterval == 0 {
			n.aliveInterval = n.ctx.cfg.defaultAlive
			n.aliveDeadline = time.Now().Add(n.aliveInterval)
		}
		if n.ctx.cfg.secureRegister {
			if err := n.runSecureHandshake(); err != nil {
				_ = n.sock.Disconnect(addr)
				n.isConnect = false
				n.connectAddr = ""
				n.aliveInterval = 0
				n.aliveDeadline = time.Time{}
				return err
			}
		}
		if err := n.register(); err != nil {
			_ = n.sock.Disconnect(addr)
			n.isConnect = false
			n.connectAddr = ""
			n.aliveInterval = 0
			n.aliveDeadline = time.Time{}
			n.secure = nil
			return err
		}
	}
	return nil
}

// runSecureHandshake performs the initiator side of a Noise NN handshake
// over the node's socket, two frames exchanged before REGISTER, so the
// REGISTER/UNREGISTER content can be sealed under the resulting session.
// The peer must run the responder side — see AcceptSecureHandshake —
// before reading the node's REGISTER.
func (n *Node) runSecureHandshake() error {
	nh, err := newNoiseInitiator()
	if err != nil {
		return err
	}
	msg1, err := nh.writeMessage(nil)
	if err != nil {
		return err
	}
	if err := n.sock.SendFrame(msg1, false); err != nil {
		return err
	}
	resp, _, err := n.sock.RecvFrame()
	if err != nil {
		return err
	}
	if _, err := nh.readMessage(resp); err != nil {
		return err
	}
	n.secure = nh
	return nil
}

// AcceptSecureHandshake completes the responder side of a Noise NN
// handshake over this node's socket. A server using WithSecureRegister must
// call this once per newly accepted peer, before its first recvmsg, so the
// peer's subsequent REGISTER content can be unsealed with UnsealContent.
func (n *Node) AcceptSecureHandshake() error {
	msg1, _, err := n.sock.RecvFrame()
	if err != nil {
		return err
	}
	nh, err := newNoiseResponder()
	if err != nil {
		return err
	}
	if _, err := nh.readMessage(msg1); err != nil {
		return err
	}
	msg2, err := nh.writeMessage(nil)
	if err != nil {
		return err
	}
	if err := n.sock.SendFrame(msg2, false); err != nil {
		return err
	}
	n.secure = nh
	return nil
}

// UnsealContent decrypts a received message's content frame against this
// node's completed secure session. Returns ErrHandshakeIncomplete if no
// handshake has completed (AcceptSecureHandshake not called, or
// WithSecureRegister not enabled).
func (n *Node) UnsealContent(ciphertext []byte) ([]byte, error) {
	if n.secure == nil {
		return nil, ErrHandshakeIncomplete
	}
	return n.secure.unseal(ciphertext)
}

// Disconnect closes the outbound connection. For a NODE-kind node,
// UNREGISTER is sent first and the keepalive deadline is cleared; its
// result does not block the transport disconnect from proceeding —
// keepalive/registration failures don't invalidate the node.
func (n *Node) Disconnect() error {
	if !n.isConnect {
		return ErrBadState
	}
	if n.kind == KindNode {
		_ = n.unregister()
		n.aliveInterval = 0
		n.aliveDeadline = time.Time{}
		n.secure = nil
	}
	err := n.sock.Disconnect(n.connectAddr)
	n.isConnect = false
	n.connectAddr = ""
	return err
}

// GetID returns the node's identity.
func (n *Node) GetID() []byte { return n.id }

// SetID sets the node's identity, mirroring it into the transport's
// identity option. len(id) must be within [0, Context's configured sockid
// size]; a longer id is a programmer error reported as ErrBadOption.
func (n *Node) SetID(id []byte) error {
	if len(id) > n.ctx.cfg.sockidSize {
		return ErrBadOption
	}
	if err := n.sock.SetIdentity(id); err != nil {
		return err
	}
	if len(id) == 0 {
		n.id = nil
		return nil
	}
	n.id = append([]byte(nil), id...)
	return nil
}

// SetAlive sets the node's keepalive cadence, flooring it at the Context's
// configured MinAliveIntervalFloor and arming the next deadline at now +
// interval. Only valid on a NODE-kind node.
func (n *Node) SetAlive(interval time.Duration) error {
	if n.kind != KindNode {
		return ErrBadState
	}
	if interval < n.ctx.cfg.minAlive {
		interval = n.ctx.cfg.minAlive
	}
	n.aliveInterval = interval
	n.aliveDeadline = time.Now().Add(interval)
	return nil
}

// SetFilter sets a subscription prefix filter. Only valid on a SUB-kind
// node.
func (n *Node) SetFilter(prefix []byte) error {
	if n.kind != KindSub {
		return ErrBadState
	}
	return n.sock.SetSubscribe(prefix)
}

// GetUserData returns the caller-owned opaque value set by SetUserData.
func (n *Node) GetUserData() any { return n.userData }

// SetUserData stores a caller-owned opaque value on the node.
func (n *Node) SetUserData(v any) { n.userData = v }

// Kind returns the node's socket kind, assigned at creation and immutable.
func (n *Node) Kind() SocketKind { return n.kind }

// GetSocket returns the node's underlying transport socket.
func (n *Node) GetSocket() transport.Socket { return n.sock }

// Links returns the node's intrusive list-membership links, manipulated by
// the owning pool.
func (n *Node) Links() *ListLinks { return &n.links }

// AliveDeadline returns the next wall-clock time an ALIVE is due, and
// whether the node carries a keepalive at all (NODE-kind and connected).
func (n *Node) AliveDeadline() (time.Time, bool) {
	if n.kind != KindNode || !n.isConnect || n.aliveInterval == 0 {
		return time.Time{}, false
	}
	return n.aliveDeadline, true
}

// rearmAlive re-arms the keepalive deadline after a successful ALIVE send.
// Re-arming only on success, not before sending, means a failed Alive
// leaves the old deadline so the next pool scan retries promptly instead
// of going quiet for a full interval.
func (n *Node) rearmAlive() {
	n.aliveDeadline = time.Now().Add(n.aliveInterval)
}
