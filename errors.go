package whiskey

import (
	"fmt"

	"github.com/AesirMachina/whiskey/internal/framing"
)

// SessionError is a session-fatal error (spec.md §7): it carries the
// GOAWAY status sent (or the internal value 0xff when no GOAWAY was sent,
// as for transport errors) and the underlying cause, if any.
type SessionError struct {
	Status GoAwayStatus
	Cause  error
}

func (e *SessionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("spdy: session closed (%v): %v", e.Status, e.Cause)
	}
	return fmt.Sprintf("spdy: session closed (%v)", e.Status)
}

func (e *SessionError) Unwrap() error { return e.Cause }

// StreamError is a stream-local error (spec.md §7): the RST_STREAM status
// a stream was closed with.
type StreamError struct {
	Status RstStatus
	Reason string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("spdy: stream reset (%v): %s", e.Status, e.Reason)
}

// GoAwayStatus re-exports framing.GoAwayStatus so callers never need to
// import the internal framing package to inspect a SessionError.
type GoAwayStatus = framing.GoAwayStatus

// RstStatus re-exports framing.RstStatus so callers never need to import
// the internal framing package to inspect a StreamError.
type RstStatus = framing.RstStatus

const (
	GoAwayOK            = framing.GoAwayOK
	GoAwayProtocolError = framing.GoAwayProtocolError
	GoAwayInternalError = framing.GoAwayInternalError
)

const (
	RstProtocolError       = framing.RstProtocolError
	RstInvalidStream       = framing.RstInvalidStream
	RstRefusedStream       = framing.RstRefusedStream
	RstUnsupportedVersion  = framing.RstUnsupportedVersion
	RstCancel              = framing.RstCancel
	RstInternalError       = framing.RstInternalError
	RstFlowControlError    = framing.RstFlowControlError
	RstStreamInUse         = framing.RstStreamInUse
	RstStreamAlreadyClosed = framing.RstStreamAlreadyClosed
)
