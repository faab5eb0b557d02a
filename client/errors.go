package client

import (
	"fmt"

	"isocore/frame"
)

// TransportErr wraps a failure surfaced by the underlying transport.
type TransportErr struct{ Err error }

func (e *TransportErr) Error() string { return fmt.Sprintf("client: transport: %v", e.Err) }
func (e *TransportErr) Unwrap() error { return e.Err }

// FrameErr wraps a failure decoding a Reply envelope off the wire.
type FrameErr struct{ Err error }

func (e *FrameErr) Error() string { return fmt.Sprintf("client: frame: %v", e.Err) }
func (e *FrameErr) Unwrap() error { return e.Err }

// Timeout is returned when a call's deadline elapses before a reply arrives.
type Timeout struct{ Seq uint64 }

func (e *Timeout) Error() string { return fmt.Sprintf("client: call seq=%d timed out", e.Seq) }

// Cancelled is returned when the caller's context is cancelled before a
// reply arrives.
type Cancelled struct{ Seq uint64 }

func (e *Cancelled) Error() string { return fmt.Sprintf("client: call seq=%d cancelled", e.Seq) }

// SeqMismatch is a defensive error: the pump should never deliver a reply
// whose seq disagrees with the pending slot it was matched to.
type SeqMismatch struct {
	Want, Got uint64
}

func (e *SeqMismatch) Error() string {
	return fmt.Sprintf("client: seq mismatch: want %d got %d", e.Want, e.Got)
}

// Remote wraps a Reply's Err outcome, translated into the caller's error
// domain.
type Remote struct{ Reason *frame.Failure }

func (e *Remote) Error() string { return fmt.Sprintf("client: remote: %v", e.Reason) }
func (e *Remote) Unwrap() error { return e.Reason }
