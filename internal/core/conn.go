package core

import "errors"

// Frame is a single encoded wire message.
type Frame []byte

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// SignalConn abstracts a live transport connection for the relay.
// Owned by the adapter; the adapter must Close() it. TrySend must never
// block: a full outbound buffer is reported as ErrBackpressure. A closed
// connection may stay resolvable until its teardown runs, so TrySend must
// stay safe after Close and report ErrClosed instead of panicking.
type SignalConn interface {
	TrySend(Frame) error
	Close()
}
