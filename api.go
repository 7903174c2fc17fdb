package whiskey

import (
	"time"

	"github.com/AesirMachina/whiskey/internal/settings"
)

// IsOpen reports whether the session has never sent or received GOAWAY and
// has not been torn down.
func (s *Session) IsOpen() bool {
	return !s.closed.Load() && !s.sentGoAway.Load() && !s.receivedGoAway.Load()
}

// IsConnected reports whether the underlying transport is still usable.
func (s *Session) IsConnected() bool {
	return !s.closed.Load() && s.transport.IsConnected()
}

// IsActive reports whether any complete SYN_REPLY has been received yet
// (spec.md §3 "active"), and the session hasn't since torn down.
func (s *Session) IsActive() bool {
	return s.active.Load()
}

// IsClosed reports whether the session has fully torn down.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// IsDraining reports whether either side has sent GOAWAY but streams are
// still being allowed to finish (spec.md §7 "Draining").
func (s *Session) IsDraining() bool {
	return (s.sentGoAway.Load() || s.receivedGoAway.Load()) && !s.closed.Load()
}

// IsDisconnected reports whether the session is closed and its transport is
// no longer connected.
func (s *Session) IsDisconnected() bool {
	return s.closed.Load() && !s.transport.IsConnected()
}

// WasActive reports whether the session ever received a complete reply,
// even if it has since closed. Useful for distinguishing "never got going"
// failures from an orderly teardown of a session that did real work.
func (s *Session) WasActive() bool {
	return s.everActive.Load()
}

// GetCapacity returns how many more locally-initiated streams can currently
// be opened before hitting the peer's advertised MAX_CONCURRENT_STREAMS.
func (s *Session) GetCapacity() int {
	remaining := int(s.remoteMaxConcurrent) - s.table.LocalSize()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Latency returns the round-trip time measured by the most recent reply to
// one of our PINGs, or 0 if no ping has completed yet.
func (s *Session) Latency() time.Duration {
	return s.latency
}

// Origin returns the (scheme, host, port) this session is connected to.
func (s *Session) Origin() (scheme, host string, port int) {
	return s.origin.Scheme, s.origin.Host, s.origin.Port
}

// AddCloseListener registers fn to be called, exactly once, when the
// session finishes closing. fn runs on its own goroutine, and the session's
// dispatch goroutine waits for every listener to return before it exits;
// fn must not block or call back into the Session synchronously. Safe to call
// from any goroutine, including after the session has already closed (fn
// then runs immediately on the caller's own goroutine, since there is no
// dispatch goroutine left to run it on).
func (s *Session) AddCloseListener(fn func(scheme, host string, port int, err error)) {
	l := closeListener(func(origin settings.Origin, err error) {
		fn(origin.Scheme, origin.Host, origin.Port, err)
	})
	select {
	case s.addListenerCh <- l:
	case <-s.done:
		l(s.origin, s.closeErr)
	}
}

// Close begins a graceful shutdown: it sends GOAWAY with status and returns
// once the teardown has been requested. Existing streams are reset; no new
// ones are accepted. Safe to call more than once or concurrently with other
// Session methods.
func (s *Session) Close(status GoAwayStatus) {
	select {
	case s.closeCh <- status:
	case <-s.done:
	}
}

// Done is closed once the session has fully torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the error the session closed with, if any. Only meaningful
// once Done is closed.
func (s *Session) Err() error { return s.closeErr }
