package whiskey

import (
	istream "github.com/AesirMachina/whiskey/internal/stream"
)

// Stream is a handle to one bidirectional logical channel within a Session,
// returned by Queue for locally-initiated streams; server-pushed streams
// are not exposed through this type. It forwards to the internal
// stream.Stream type so callers outside this module never need to import an
// internal package to use it.
type Stream struct {
	s *istream.Stream
}

// ID returns the stream's SPDY stream id.
func (st *Stream) ID() uint32 { return st.s.ID() }

// IsLocal reports whether this stream was opened locally (true) or pushed
// by the peer (false).
func (st *Stream) IsLocal() bool { return st.s.IsLocal() }

// Priority returns the stream's 0-7 SPDY priority (0 highest).
func (st *Stream) Priority() uint8 { return st.s.Priority() }

// HasReceivedReply reports whether SYN_REPLY has arrived yet.
func (st *Stream) HasReceivedReply() bool { return st.s.HasReceivedReply() }

// Headers returns the channel that decoded (name, value) header pairs
// arrive on, in the order the peer sent them.
func (st *Stream) Headers() <-chan [2]string { return st.s.Headers() }

// Data returns the channel that body chunks arrive on.
func (st *Stream) Data() <-chan []byte { return st.s.Data() }

// Done is closed once the stream reaches its terminal state.
func (st *Stream) Done() <-chan struct{} { return st.s.Done() }

// Err returns the error the stream was closed with, once Done is closed.
// A nil error means the stream completed normally.
func (st *Stream) Err() error { return st.s.Err() }

// Write queues body bytes to be sent on this stream. It is safe to call
// from any goroutine; the Session drains the queue as flow control allows.
// For a locally-initiated stream this only has an effect before Queue's
// Request.Body has fully drained (see Request); after that the write side
// is already closed and further writes are silently dropped.
func (st *Stream) Write(b []byte) { st.s.QueueWrite(b) }
