// Package transport defines the minimal asynchronous byte-channel contract
// the RPC client rides on. It is deliberately opaque to framing, retry,
// authentication and discovery — those are left to whatever Transport
// implementation is plugged in (see the loopback pair for tests, and the
// libp2p stream and WebRTC data-channel implementations, all in this
// package).
package transport

import "context"

// Transport is an asynchronous, ordered, message-oriented byte channel.
// Send hands one complete framed message to the channel; ordering of sends
// is preserved. Recv awaits the next complete incoming message.
type Transport interface {
	Send(ctx context.Context, payload []byte) error
	// Recv returns the next message, or ErrClosed once the transport has
	// been closed.
	Recv(ctx context.Context) ([]byte, error)
	Close() error
}

// Error is the transport package's error taxonomy.
type Error struct {
	Op      string
	Message string
}

func (e *Error) Error() string { return "transport: " + e.Op + ": " + e.Message }

// ErrClosed is returned once the transport is closed, by a local Close or,
// where the implementation can observe it, by the remote end.
var ErrClosed = &Error{Op: "recv", Message: "closed"}

// IoError wraps an underlying I/O failure in the transport's own taxonomy,
// per the propagation policy of never swallowing another module's error
// but never leaking its concrete type either.
func IoError(op string, err error) error {
	return &Error{Op: op, Message: err.Error()}
}
