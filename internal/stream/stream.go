// Package stream implements the per-stream state machine and the indexed
// table of active streams for a SPDY session. A Stream never references its
// owning session: all cross-references go through Table lookups driven by
// the session, which avoids the Session<->Stream cyclic reference the
// teacher's own stream manager has (it keeps a back-pointer from Stream to
// Manager) by keeping Stream a plain, session-agnostic value type.
package stream

import (
	"bytes"
	"fmt"
	"sync"
)

// Role distinguishes who opened a stream.
type Role int

const (
	// Local streams are opened by this side via Queue.
	Local Role = iota
	// Remote streams are pushed by the peer via SYN_STREAM.
	Remote
)

// State is the stream lifecycle state, SPDY/3.1 §2.2 / spec.md §3.
type State int

const (
	Idle State = iota
	Open
	HalfClosedLocal
	HalfClosedRemote
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Open:
		return "open"
	case HalfClosedLocal:
		return "half-closed-local"
	case HalfClosedRemote:
		return "half-closed-remote"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Error carries a stream-local RST_STREAM status, delivered to whatever
// operation is associated with the stream when it closes abnormally.
type Error struct {
	Status uint32
	Reason string
}

func (e *Error) Error() string { return fmt.Sprintf("stream: %s (status %d)", e.Reason, e.Status) }

// PendingWrite is one chunk of not-yet-sent body data queued by the local
// operation.
type PendingWrite struct {
	Data []byte
	Last bool
}

// Stream is a single bidirectional logical channel within a session. All
// exported methods lock their own state; callers never need an external
// mutex, but the session still only ever touches a given Stream from its
// own single dispatch goroutine (spec.md §5), so the locking here guards
// against the one cross-goroutine surface: an application goroutine queuing
// body bytes onto Pending while the session goroutine drains it.
type Stream struct {
	mu sync.Mutex

	id       uint32
	role     Role
	priority uint8
	assocID  uint32 // parent stream id, for pushed streams; 0 otherwise

	state State

	sendWindow    int64
	receiveWindow int64

	receivedReply bool
	headerBytes   int

	pending     bytes.Buffer
	writeClosed bool

	// closeErr is set once, the first time the stream is torn down; it
	// is delivered to whatever is waiting on Done.
	closeErr error
	done     chan struct{}

	// delivery channels toward the associated application operation.
	dataCh   chan []byte
	headerCh chan [2]string
}

// New creates a stream in the Idle state. It still needs Open to receive its
// windows and id assignment semantics (a locally queued stream is
// constructed before it has an id; see Open's id parameter).
func New(role Role, priority uint8, assocID uint32) *Stream {
	return &Stream{
		role:     role,
		priority: priority,
		assocID:  assocID,
		state:    Idle,
		done:     make(chan struct{}),
		dataCh:   make(chan []byte, 16),
		headerCh: make(chan [2]string, 64),
	}
}

// Open assigns the stream its id and flow-control windows and transitions
// Idle -> Open (or, for a unidirectional pushed stream, Idle ->
// HalfClosedLocal, since such a stream never sends data itself).
func (s *Stream) Open(id uint32, initialSendWindow, initialReceiveWindow uint32, unidirectional bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	s.sendWindow = int64(initialSendWindow)
	s.receiveWindow = int64(initialReceiveWindow)
	if unidirectional {
		s.state = HalfClosedLocal
	} else {
		s.state = Open
	}
}

// ID returns the stream's id. Zero until Open has been called.
func (s *Stream) ID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// IsLocal reports whether this stream was locally initiated.
func (s *Stream) IsLocal() bool { return s.role == Local }

// Priority returns the stream's 0-7 priority (0 highest).
func (s *Stream) Priority() uint8 { return s.priority }

// AssocID returns the parent stream id for a pushed stream, or 0.
func (s *Stream) AssocID() uint32 { return s.assocID }

// State returns the current lifecycle state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsHalfClosedRemote reports whether the peer has sent its last frame.
func (s *Stream) IsHalfClosedRemote() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == HalfClosedRemote || s.state == Closed
}

// IsHalfClosedLocal reports whether we have sent our last frame.
func (s *Stream) IsHalfClosedLocal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == HalfClosedLocal || s.state == Closed
}

// IsClosed reports whether the stream has reached the terminal state.
func (s *Stream) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Closed
}

// HasReceivedReply reports whether a SYN_REPLY has been delivered yet.
func (s *Stream) HasReceivedReply() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receivedReply
}

// OnReply marks the stream as having received its SYN_REPLY. It returns an
// error if a reply was already received (spec.md §4.E "duplicate reply").
func (s *Stream) OnReply() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receivedReply {
		return &Error{Status: uint32(8), Reason: "duplicate SYN_REPLY"}
	}
	s.receivedReply = true
	return nil
}

// OnHeader records one decoded (name, value) pair and enforces
// maxHeaderBytes; exceeding it is a per-stream error, not fatal to the
// session (the decompressor itself keeps running against the shared
// dictionary regardless, per spec.md §4.B).
func (s *Stream) OnHeader(name, value string, maxHeaderBytes int) error {
	s.mu.Lock()
	s.headerBytes += len(name) + len(value)
	tooLarge := maxHeaderBytes > 0 && s.headerBytes > maxHeaderBytes
	s.mu.Unlock()
	if tooLarge {
		return &Error{Status: uint32(1), Reason: "header block exceeds configured size limit"}
	}
	select {
	case s.headerCh <- [2]string{name, value}:
	default:
		// Slow consumer: drop rather than block the session's single
		// dispatch goroutine. The operation can detect this via a short
		// header count if it cares; spec.md does not mandate backpressure
		// here since header blocks are already size-bounded.
	}
	return nil
}

// Headers returns the channel applications read decoded header pairs from.
func (s *Stream) Headers() <-chan [2]string { return s.headerCh }

// OnData delivers a DATA payload to the associated operation.
func (s *Stream) OnData(payload []byte) {
	select {
	case s.dataCh <- payload:
	default:
	}
}

// Data returns the channel applications read body chunks from.
func (s *Stream) Data() <-chan []byte { return s.dataCh }

// SendWindow returns the current send-direction flow-control window.
func (s *Stream) SendWindow() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendWindow
}

// ReceiveWindow returns the current receive-direction flow-control window.
func (s *Stream) ReceiveWindow() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receiveWindow
}

// ReduceReceiveWindow deducts n bytes of newly arrived DATA from the
// receive window.
func (s *Stream) ReduceReceiveWindow(n int64) {
	s.mu.Lock()
	s.receiveWindow -= n
	s.mu.Unlock()
}

// IncreaseReceiveWindow restores delta bytes to the receive window, for
// example after emitting a stream WINDOW_UPDATE.
func (s *Stream) IncreaseReceiveWindow(delta int64) {
	s.mu.Lock()
	s.receiveWindow += delta
	s.mu.Unlock()
}

// IncreaseSendWindow applies a WINDOW_UPDATE delta (or a SETTINGS
// INITIAL_WINDOW_SIZE delta) to the send window. It returns false if the
// result would overflow the signed 32-bit range (spec.md §4.E "WINDOW_UPDATE
// overflow").
func (s *Stream) IncreaseSendWindow(delta int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.sendWindow + delta
	if next > (1<<31 - 1) {
		return false
	}
	s.sendWindow = next
	return true
}

// ConsumeSendWindow deducts n bytes after writing a DATA frame.
func (s *Stream) ConsumeSendWindow(n int64) {
	s.mu.Lock()
	s.sendWindow -= n
	s.mu.Unlock()
}

// QueueWrite appends application body bytes to the pending-send queue. Safe
// to call from any goroutine.
func (s *Stream) QueueWrite(b []byte) {
	s.mu.Lock()
	s.pending.Write(b)
	s.mu.Unlock()
}

// PendingLen returns how many bytes are queued to send.
func (s *Stream) PendingLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Len()
}

// TakePending removes and returns up to n queued bytes.
func (s *Stream) TakePending(n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > s.pending.Len() {
		n = s.pending.Len()
	}
	return append([]byte(nil), s.pending.Next(n)...)
}

// CloseWrite marks the local write direction as finished: once the pending
// queue drains, the final DATA frame carries FLAG_FIN. Idempotent.
func (s *Stream) CloseWrite() {
	s.mu.Lock()
	s.writeClosed = true
	s.mu.Unlock()
}

// WriteDone reports whether CloseWrite has been called.
func (s *Stream) WriteDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeClosed
}

// CloseRemotely marks the peer's direction as finished. Returns true if the
// stream is now fully closed.
func (s *Stream) CloseRemotely() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Open:
		s.state = HalfClosedRemote
	case HalfClosedLocal:
		s.state = Closed
	}
	return s.state == Closed
}

// CloseLocally marks our own direction as finished. Returns true if the
// stream is now fully closed.
func (s *Stream) CloseLocally() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Open:
		s.state = HalfClosedLocal
	case HalfClosedRemote:
		s.state = Closed
	}
	return s.state == Closed
}

// Close terminates the stream unconditionally (RST, session teardown, or
// normal completion) and notifies anyone waiting on Done. Safe to call more
// than once; only the first error sticks.
func (s *Stream) Close(err error) {
	s.mu.Lock()
	if s.state == Closed && s.closeErr != nil {
		s.mu.Unlock()
		return
	}
	s.state = Closed
	if s.closeErr == nil {
		s.closeErr = err
	}
	s.mu.Unlock()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// Done is closed once the stream has been torn down.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Err returns the error the stream was closed with, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeErr
}
