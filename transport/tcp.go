package transport

import (
	"bufio"
	"bytes"
	"errors"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"
)

func init() {
	Register("tcp", tcpDriver{})
}

// tcpDriver builds tcpSocket instances: the default Socket implementation,
// framing spdnet messages over net.Conn/net.Listener using EncodeFrame/
// ReadFrame. Exercised by every lifecycle and round-trip test.
type tcpDriver struct{}

func (tcpDriver) NewSocket(kind SocketKind) (Socket, error) {
	return &tcpSocket{kind: kind}, nil
}

// ErrNotSubSocket is returned by SetSubscribe on a non-KindSub socket.
var ErrNotSubSocket = errors.New("transport: SetSubscribe on a non-sub socket")

// ErrNoPeer is returned by SendFrame/RecvFrame/Drain before a connection or
// accepted peer is available.
var ErrNoPeer = errors.New("transport: no connected peer")

// peerConn pairs a net.Conn with the bufio.Reader every read against it
// goes through, so PollIn can Peek without stealing bytes RecvFrame needs.
type peerConn struct {
	conn net.Conn
	r    *bufio.Reader
}

func newPeerConn(c net.Conn) *peerConn {
	return &peerConn{conn: c, r: bufio.NewReader(c)}
}

// tcpSocket implements Socket for KindNode/KindDealer (single outbound
// peer), KindRouter (accept-many, receiving one frame group at a time from
// one accepted peer), and KindPub/KindSub (fan-out to/filter from every
// connected peer).
type tcpSocket struct {
	kind SocketKind

	mu       sync.Mutex
	identity []byte
	subs     [][]byte

	ln   net.Listener
	peer *peerConn // KindNode/KindDealer outbound peer

	peersMu sync.Mutex
	peers   map[net.Conn]*peerConn // KindRouter/KindPub connected peers
	current *peerConn              // KindRouter/KindSub: peer of the in-flight (or last) receive
	inGroup bool                   // KindRouter/KindSub: current is mid-group
	subOpen bool                   // KindSub: current group already passed the filter
}

func parseAddr(addr string) (string, error) {
	if u, err := url.Parse(addr); err == nil && u.Host != "" {
		return u.Host, nil
	}
	return strings.TrimPrefix(addr, "tcp://"), nil
}

func (s *tcpSocket) Bind(addr string) error {
	host, err := parseAddr(addr)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", host)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	if s.kind == KindRouter || s.kind == KindPub {
		go s.acceptLoop(ln)
	}
	return nil
}

func (s *tcpSocket) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		s.peersMu.Lock()
		if s.peers == nil {
			s.peers = make(map[net.Conn]*peerConn)
		}
		s.peers[conn] = newPeerConn(conn)
		s.peersMu.Unlock()
	}
}

func (s *tcpSocket) Unbind(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	s.ln = nil
	return err
}

func (s *tcpSocket) Connect(addr string) error {
	host, err := parseAddr(addr)
	if err != nil {
		return err
	}
	conn, err := net.Dial("tcp", host)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.peer = newPeerConn(conn)
	s.mu.Unlock()
	return nil
}

func (s *tcpSocket) Disconnect(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peer == nil {
		return nil
	}
	err := s.peer.conn.Close()
	s.peer = nil
	return err
}

func (s *tcpSocket) SetIdentity(id []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = append([]byte(nil), id...)
	return nil
}

func (s *tcpSocket) SetSubscribe(prefix []byte) error {
	if s.kind != KindSub {
		return ErrNotSubSocket
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, append([]byte(nil), prefix...))
	return nil
}

func (s *tcpSocket) matchesFilter(topic []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) == 0 {
		return true
	}
	for _, p := range s.subs {
		if bytes.HasPrefix(topic, p) {
			return true
		}
	}
	return false
}

// SendFrame writes one frame on the node's outbound peer (KindNode/
// KindDealer), fans it out to every connected peer (KindPub), or answers
// the peer the in-flight group was read from (KindRouter).
func (s *tcpSocket) SendFrame(b []byte, more bool) error {
	switch s.kind {
	case KindPub:
		s.peersMu.Lock()
		defer s.peersMu.Unlock()
		for _, p := range s.peers {
			_ = EncodeFrame(p.conn, b, more)
		}
		return nil
	case KindRouter:
		s.peersMu.Lock()
		p := s.current
		s.peersMu.Unlock()
		if p == nil {
			return ErrNoPeer
		}
		return EncodeFrame(p.conn, b, more)
	default:
		s.mu.Lock()
		p := s.peer
		s.mu.Unlock()
		if p == nil {
			return ErrNoPeer
		}
		return EncodeFrame(p.conn, b, more)
	}
}

// RecvFrame reads one frame. KindRouter/KindSub pick (or keep) the peer the
// in-flight group is coming from so a paired SendFrame answers the same
// connection (ROUTER reply semantics).
func (s *tcpSocket) RecvFrame() ([]byte, bool, error) {
	switch s.kind {
	case KindRouter:
		p, err := s.currentPeer()
		if err != nil {
			return nil, false, err
		}
		payload, more, err := ReadFrame(p.r)
		if err == nil && !more {
			s.endGroup()
		}
		return payload, more, err
	case KindSub:
		p, err := s.currentPeer()
		if err != nil {
			return nil, false, err
		}
		for {
			payload, more, err := ReadFrame(p.r)
			if err != nil {
				return nil, false, err
			}
			// Filtering decides on a group's leading frame only: once a
			// group is accepted, every remaining frame of it is delivered
			// unconditionally; a rejected group is drained in full before
			// the next group's leading frame is considered.
			accept := s.subOpen || s.matchesFilter(payload)
			if !more {
				s.subOpen = false
				s.endGroup()
			} else {
				s.subOpen = accept
			}
			if accept {
				return payload, more, nil
			}
		}
	default:
		s.mu.Lock()
		p := s.peer
		s.mu.Unlock()
		if p == nil {
			return nil, false, ErrNoPeer
		}
		return ReadFrame(p.r)
	}
}

// currentPeer picks the next peer to receive from if no group is already in
// flight for this socket: an accepted peer, or else the socket's own
// outbound peer (a connecting KindSub).
func (s *tcpSocket) currentPeer() (*peerConn, error) {
	s.peersMu.Lock()
	defer s.peersMu.Unlock()
	if s.current != nil && s.inGroup {
		return s.current, nil
	}
	for _, p := range s.peers {
		s.current, s.inGroup = p, true
		return p, nil
	}
	s.mu.Lock()
	p := s.peer
	s.mu.Unlock()
	if p != nil {
		s.current, s.inGroup = p, true
		return p, nil
	}
	return nil, ErrNoPeer
}

// endGroup marks the in-flight group as fully consumed, so the next receive
// picks a peer afresh. current is kept as the peer a following SendFrame
// answers.
func (s *tcpSocket) endGroup() {
	s.peersMu.Lock()
	s.inGroup = false
	s.peersMu.Unlock()
}

// Drain discards the remainder of the frame group currently being received
// by reading and dropping frames until one arrives without the more flag,
// or until no further frame is waiting, so a group whose last frame was
// wrongly marked "more" does not swallow the group sent after it.
func (s *tcpSocket) Drain() error {
	defer s.endGroup()
	for {
		ready, err := s.PollIn(0)
		if err != nil || !ready {
			return err
		}
		_, more, err := s.RecvFrame()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// PollIn reports whether the socket's peer connection has data to read
// within timeout, via a non-consuming Peek on the buffered reader. A
// timeout <= 0 checks for data already received, giving the read a 1ms
// deadline (a deadline already in the past fails the read without looking
// at the connection).
func (s *tcpSocket) PollIn(timeout time.Duration) (bool, error) {
	var p *peerConn
	switch s.kind {
	case KindRouter, KindSub:
		var err error
		p, err = s.currentPeer()
		if err != nil {
			return false, nil
		}
	default:
		s.mu.Lock()
		p = s.peer
		s.mu.Unlock()
		if p == nil {
			return false, nil
		}
	}
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	if err := p.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return false, err
	}
	defer p.conn.SetReadDeadline(time.Time{})

	_, err := p.r.Peek(1)
	if err == nil {
		return true, nil
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return false, nil
	}
	return false, err
}

func (s *tcpSocket) Close() error {
	s.mu.Lock()
	ln, p := s.ln, s.peer
	s.ln, s.peer = nil, nil
	s.mu.Unlock()

	var err error
	if p != nil {
		err = p.conn.Close()
	}
	if ln != nil {
		if e := ln.Close(); e != nil && err == nil {
			err = e
		}
	}
	s.peersMu.Lock()
	for _, pc := range s.peers {
		_ = pc.conn.Close()
	}
	s.peers = nil
	s.current = nil
	s.peersMu.Unlock()
	return err
}
