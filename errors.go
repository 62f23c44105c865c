package spdnet

import "errors"

// Library-specific error taxonomy. Operations that fail against a transport
// instead return the transport's own wrapped error rather than a second,
// parallel errno namespace.
var (
	// ErrBadOption is returned when a Node or Config operation is called
	// with an argument outside its documented domain (e.g. an identity
	// longer than SockidSize).
	ErrBadOption = errors.New("spdnet: invalid option")

	// ErrBadState is a programmer error: a lifecycle operation was called
	// from a state that forbids it (bind while bound, connect while
	// connected, set-filter on a non-SUB node, expose with no identity).
	ErrBadState = errors.New("spdnet: invalid node state for operation")

	// ErrFramingError is returned by recvmsg when the final frame of a
	// group was not marked as last.
	ErrFramingError = errors.New("spdnet: message framing error")

	// ErrMetaSizeMismatch is returned when a received meta frame's size
	// does not equal sizeof(Meta) exactly.
	ErrMetaSizeMismatch = errors.New("spdnet: meta size mismatch")

	// ErrTimeout is returned by recvmsg_timeout when no data arrives
	// within the given deadline, and is the indication passed to an
	// expired recvmsg_async callback.
	ErrTimeout = errors.New("spdnet: receive timeout")

	// ErrClosed names use of a destroyed Node or a closed Context. No
	// operation in this package returns it: Node and Context do not record
	// having been destroyed or closed.
	ErrClosed = errors.New("spdnet: use of closed node")
)

// Strerror renders err as a human-readable string: spdnet sentinels get
// their message from the set above (via err.Error(), since Go sentinels
// already carry a human-readable string); anything else — including a
// wrapped transport error — falls through to err.Error(), which already
// carries the underlying driver's message.
func Strerror(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
