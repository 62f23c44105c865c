package spdnet

import "time"

// encodeMeta renders a Meta as its fixed wire layout: node_type (1 byte),
// ttl (1 byte), name (nameSize bytes, zero-padded).
func encodeMeta(m *Meta, nameSize int) []byte {
	b := make([]byte, 2+nameSize)
	b[0] = byte(m.NodeType)
	b[1] = m.TTL
	copy(b[2:], m.Name[:nameSize])
	return b
}

// decodeMeta parses a received meta frame. Its size must equal
// 2+nameSize exactly; any other size is fatal to the receive.
func decodeMeta(b []byte, nameSize int) (*Meta, error) {
	if len(b) != 2+nameSize {
		return nil, ErrMetaSizeMismatch
	}
	m := &Meta{NodeType: SocketKind(b[0]), TTL: b[1]}
	copy(m.Name[:], b[2:2+nameSize])
	return m, nil
}

// sendmsg frames msg onto the wire: optional leading type frame for a
// NODE-kind sender, then sockid, then empty-separator/header,
// empty-separator/content, empty-separator/meta — only the final (meta)
// frame without the "more" flag. A freshly constructed Meta is always
// sent, never msg's own meta (if any) — meta is never forged by the
// caller.
func (n *Node) sendmsg(msg *Message) error {
	if n.ctx.cfg.zmqBugWorkaround {
		// Workaround for a known transport bug; disabled by default.
		time.Sleep(10 * time.Millisecond)
	}

	if n.kind == KindNode {
		if err := n.sock.SendFrame([]byte{byte(n.kind)}, true); err != nil {
			return err
		}
	}
	if err := n.sock.SendFrame(msg.Sockid.Bytes(), true); err != nil {
		return err
	}
	if err := n.sock.SendFrame(nil, true); err != nil {
		return err
	}
	if err := n.sock.SendFrame(msg.Header.Bytes(), true); err != nil {
		return err
	}
	if err := n.sock.SendFrame(nil, true); err != nil {
		return err
	}
	if err := n.sock.SendFrame(msg.Content.Bytes(), true); err != nil {
		return err
	}
	if err := n.sock.SendFrame(nil, true); err != nil {
		return err
	}

	meta := &Meta{NodeType: n.kind, TTL: 10}
	metaBytes := encodeMeta(meta, n.ctx.cfg.metaNameSize)
	if err := n.sock.SendFrame(metaBytes, false); err != nil {
		return err
	}

	n.ctx.metrics.IncrementFramesSent()
	n.ctx.metrics.IncrementBytesSent(int64(msg.Sockid.Len() + msg.Header.Len() + msg.Content.Len() + len(metaBytes)))
	return nil
}

// recvFrameChecked reads one frame and, if it is not followed by more
// frames where more was required, drains the rest of the group and
// reports ErrFramingError — the shared shape of every intermediate read in
// recvmsg.
func (n *Node) recvFrameChecked() ([]byte, error) {
	b, more, err := n.sock.RecvFrame()
	if err != nil {
		return nil, err
	}
	if !more {
		_ = n.sock.Drain()
		n.ctx.metrics.IncrementFramingErrors()
		return nil, ErrFramingError
	}
	return b, nil
}

// recvmsg reads one frame group into msg. A NODE-kind node reads one extra
// leading frame first; that frame is kept as msg.Envelope() rather than
// overwritten by the sockid frame that follows it. A ROUTER-kind node
// reads that same extra frame for the opposite reason: it is the
// accept-many counterpart a NODE always registers against in this
// transport (KindNode itself never accepts more than one peer), so
// whatever a connecting NODE's sendmsg prepended lands here first.
// KindDealer is not a sender sendmsg ever prepends a type frame for, so a
// dealer-to-router exchange is not frame-compatible with this gate;
// NODE↔ROUTER is the only interop spdnet's registration protocol requires.
func (n *Node) recvmsg(msg *Message) error {
	if n.kind == KindNode || n.kind == KindRouter {
		env, err := n.recvFrameChecked()
		if err != nil {
			return err
		}
		msg.envelope = NewBuffer(env)
	}

	sockid, err := n.recvFrameChecked()
	if err != nil {
		return err
	}
	if _, err := n.recvFrameChecked(); err != nil { // empty separator
		return err
	}
	header, err := n.recvFrameChecked()
	if err != nil {
		return err
	}
	if _, err := n.recvFrameChecked(); err != nil { // empty separator
		return err
	}
	content, err := n.recvFrameChecked()
	if err != nil {
		return err
	}
	if _, err := n.recvFrameChecked(); err != nil { // empty separator
		return err
	}

	metaBytes, more, err := n.sock.RecvFrame()
	if err != nil {
		return err
	}
	if more {
		_ = n.sock.Drain()
		n.ctx.metrics.IncrementFramingErrors()
		return ErrFramingError
	}
	meta, err := decodeMeta(metaBytes, n.ctx.cfg.metaNameSize)
	if err != nil {
		n.ctx.metrics.IncrementFramingErrors()
		return err
	}

	msg.Sockid = NewBuffer(sockid)
	msg.Header = NewBuffer(header)
	msg.Content = NewBuffer(content)
	msg.setMeta(meta)

	n.ctx.metrics.IncrementFramesReceived()
	n.ctx.metrics.IncrementBytesReceived(int64(len(sockid) + len(header) + len(content) + len(metaBytes)))
	return nil
}

// recvmsgTimeout polls the socket for input with the given timeout; on
// zero readiness it returns ErrTimeout, otherwise it delegates to recvmsg.
func (n *Node) recvmsgTimeout(msg *Message, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = n.ctx.cfg.recvTimeout
	}
	ready, err := n.sock.PollIn(timeout)
	if err != nil {
		return err
	}
	if !ready {
		return ErrTimeout
	}
	return n.recvmsg(msg)
}

// Sendmsg sends msg as one frame group. Exported entry point into sendmsg
// for application code; register/unregister/Expose/Alive use the
// unexported form directly since they build their own control messages.
func (n *Node) Sendmsg(msg *Message) error { return n.sendmsg(msg) }

// Recvmsg blocks until one full frame group is available and reads it into
// msg. Use RecvmsgTimeout for a bounded wait, or RecvmsgAsync for a
// non-blocking, callback-driven receive.
func (n *Node) Recvmsg(msg *Message) error { return n.recvmsg(msg) }

// RecvmsgTimeout is the exported entry point into recvmsgTimeout: it waits
// up to timeout for a frame group, or the Context's configured
// DefaultRecvTimeout if timeout <= 0, returning ErrTimeout on expiry.
func (n *Node) RecvmsgTimeout(msg *Message, timeout time.Duration) error {
	return n.recvmsgTimeout(msg, timeout)
}

// RecvmsgAsync registers a single one-shot callback. timeout == 0 means no
// deadline (wait forever). The registration is serviced by the pool's
// worker scan loop via PollAsync, not by a goroutine of its own — the node
// itself stays single-threaded.
func (n *Node) RecvmsgAsync(cb AsyncCallback, arg any, timeout time.Duration) error {
	if cb == nil {
		return ErrBadOption
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	n.recv = asyncRecv{active: true, cb: cb, arg: arg, deadline: deadline}
	return nil
}

// PollAsync checks a node's outstanding recvmsg_async registration: if a
// complete message is already available it is received and the callback
// fired; if the deadline has passed first, the callback fires with a
// timeout indication. A no-op if no registration is active. Called by the
// pool's worker scan loop once per poll tick per node in its all-nodes
// list.
func (n *Node) PollAsync() {
	if !n.recv.active {
		return
	}
	if !n.recv.deadline.IsZero() && time.Now().After(n.recv.deadline) {
		cb, arg := n.recv.cb, n.recv.arg
		n.recv = asyncRecv{}
		cb(n, nil, arg, ErrTimeout)
		return
	}

	ready, err := n.sock.PollIn(0)
	if err != nil || !ready {
		return
	}

	msg := NewMessage()
	recvErr := n.recvmsg(msg)
	cb, arg := n.recv.cb, n.recv.arg
	n.recv = asyncRecv{}
	if recvErr != nil {
		cb(n, nil, arg, recvErr)
		return
	}
	cb(n, msg, arg, nil)
}
