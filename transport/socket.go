// Package transport provides the pluggable frame-oriented socket abstraction
// spdnet nodes send and receive through: a registry of named drivers, each
// opening a Socket that carries discrete frame groups instead of a
// continuous byte stream.
package transport

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// SocketKind enumerates the message patterns a Socket can implement,
// mirroring the subset of ZeroMQ/nanomsg socket types spdnet builds its
// node registration and keepalive protocol on top of.
type SocketKind int

const (
	// KindNode is the socket every spdnet node uses to register with and
	// speak to a hub router; it connects to a single peer.
	KindNode SocketKind = iota
	// KindSub subscribes to messages a KindPub socket publishes.
	KindSub
	// KindPub publishes messages to every subscribed KindSub socket.
	KindPub
	// KindRouter is the binding side many KindNode/KindDealer peers connect
	// to. The tcp driver receives one frame group at a time from one
	// accepted peer and sends to the peer of the last group received.
	KindRouter
	// KindDealer is a connecting socket kind. The drivers in this package
	// give it a single outbound peer; sends are not spread across peers.
	KindDealer
)

// String names a SocketKind, for logging.
func (k SocketKind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindSub:
		return "sub"
	case KindPub:
		return "pub"
	case KindRouter:
		return "router"
	case KindDealer:
		return "dealer"
	default:
		return "unknown"
	}
}

// Socket is the frame-level transport a Node drives. One frame group at a
// time travels through SendFrame/RecvFrame; the "more" argument/return is
// the transport's SNDMORE-equivalent boundary marker.
type Socket interface {
	// Bind starts listening/accepting at addr. addr is a short,
	// transport-dependent "scheme://host[:port]" string.
	Bind(addr string) error
	// Unbind stops listening at addr.
	Unbind(addr string) error
	// Connect opens an outbound connection to addr.
	Connect(addr string) error
	// Disconnect closes the outbound connection to addr.
	Disconnect(addr string) error
	// SetIdentity records a node's identity on the socket. The drivers in
	// this package only store it; it is not sent on the wire.
	SetIdentity(id []byte) error
	// SetSubscribe restricts a KindSub socket to topics with the given
	// prefix. Only valid on KindSub; any other kind returns an error.
	SetSubscribe(prefix []byte) error
	// SendFrame writes one frame; more indicates further frames belong to
	// the same group.
	SendFrame(b []byte, more bool) error
	// RecvFrame reads one frame. The tcp driver blocks until a frame
	// arrives from a peer; with no peer, and in the storage-backed drivers
	// when nothing is waiting, it returns an error wrapping ErrNoPeer.
	RecvFrame() (b []byte, more bool, err error)
	// Drain discards any remaining frames of the message currently being
	// received, used to recover from a partial/mismatched receive.
	Drain() error
	// PollIn reports whether a frame is available to read within timeout.
	PollIn(timeout time.Duration) (bool, error)
	// Close releases the socket's resources.
	Close() error
}

// Driver constructs Sockets of a given kind for one transport scheme (e.g.
// "tcp", "azblob", "azqueue", "aztable").
type Driver interface {
	NewSocket(kind SocketKind) (Socket, error)
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Driver)
)

// ErrUnknownScheme is returned by Open when no Driver is registered for the
// requested scheme.
var ErrUnknownScheme = errors.New("transport: unknown scheme")

// Register registers a Driver for the given scheme. Panics on a duplicate
// registration — a programming error, not a runtime condition.
func Register(scheme string, d Driver) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := registry[scheme]; dup {
		panic("transport: driver already registered for scheme " + scheme)
	}
	registry[scheme] = d
}

// Unregister removes a scheme's driver, mainly for tests.
func Unregister(scheme string) {
	mu.Lock()
	defer mu.Unlock()
	delete(registry, scheme)
}

// Schemes returns the registered scheme names, sorted.
func Schemes() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for s := range registry {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Open looks up the Driver registered for scheme and builds a Socket of the
// given kind.
func Open(scheme string, kind SocketKind) (Socket, error) {
	mu.RLock()
	d, ok := registry[scheme]
	mu.RUnlock()
	if !ok {
		return nil, ErrUnknownScheme
	}
	return d.NewSocket(kind)
}
