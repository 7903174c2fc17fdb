package whiskey

import (
	"github.com/AesirMachina/whiskey/internal/framing"
	istream "github.com/AesirMachina/whiskey/internal/stream"
)

// Queue opens a new locally-initiated stream for req and returns a handle to
// it. It may be called from any goroutine (spec.md §6 "Queue"); the actual
// SYN_STREAM emission happens on the session's dispatch goroutine. If the
// peer's advertised MAX_CONCURRENT_STREAMS is already reached, the request
// waits in a FIFO until a slot opens or the session closes.
func (s *Session) Queue(req *Request) (*Stream, error) {
	priority := req.Priority
	if priority > 7 {
		priority = 7
	}
	st := istream.New(istream.Local, priority, 0)
	op := &queuedOp{stream: st, req: req, errCh: make(chan error, 1)}

	select {
	case s.queueCh <- op:
	case <-s.done:
		return nil, s.closeErr
	}

	select {
	case err := <-op.errCh:
		if err != nil {
			return nil, err
		}
		return &Stream{s: st}, nil
	case <-s.done:
		return nil, s.closeErr
	}
}

// handleQueue runs on serve's goroutine.
func (s *Session) handleQueue(op *queuedOp) {
	if s.closed.Load() || s.receivedGoAway.Load() {
		op.errCh <- &SessionError{Status: noGoAway, Cause: errProtocol("session is closing, no new streams accepted")}
		return
	}
	if uint32(s.table.LocalSize()) >= s.remoteMaxConcurrent {
		s.pending = append(s.pending, op)
		return
	}
	s.openLocalStream(op)
}

// openLocalStream assigns the next local stream id, encodes and writes
// SYN_STREAM, and queues the body (if any) for the send loop.
func (s *Session) openLocalStream(op *queuedOp) {
	id := s.nextStreamID
	s.nextStreamID += 2

	op.stream.Open(id, s.initialSendWindow, s.initialReceiveWindow, false)
	s.table.Add(op.stream)

	headerBlock, err := s.headerEnc.Encode(op.req.Headers)
	if err != nil {
		op.errCh <- err
		s.table.Remove(op.stream)
		s.fatal(GoAwayInternalError, err)
		return
	}

	noBody := len(op.req.Body) == 0
	if err := s.writer.WriteSynStream(framing.StreamID(id), 0, op.stream.Priority(), noBody, false, headerBlock); err != nil {
		op.errCh <- err
		s.table.Remove(op.stream)
		s.transportFailed(err)
		return
	}

	if noBody {
		op.stream.CloseWrite()
		if op.stream.CloseLocally() {
			s.removeStream(op.stream)
		}
	} else {
		op.stream.QueueWrite(op.req.Body)
		op.stream.CloseWrite()
	}

	op.errCh <- nil
	s.flushSendable(op.stream)
}

// drainPending opens as many queued local streams as the peer's current
// MAX_CONCURRENT_STREAMS allows.
func (s *Session) drainPending() {
	for len(s.pending) > 0 && uint32(s.table.LocalSize()) < s.remoteMaxConcurrent {
		op := s.pending[0]
		s.pending = s.pending[1:]
		s.openLocalStream(op)
	}
}

// flushAll drains every stream with something left to send, used after a
// session-level WINDOW_UPDATE lifts a connection-wide stall.
func (s *Session) flushAll() {
	s.table.Each(func(st *istream.Stream) {
		if st.IsLocal() {
			s.flushSendable(st)
		}
	})
}

// flushSendable writes as many DATA frames as the session and stream
// windows, and the configured max frame size, currently allow.
func (s *Session) flushSendable(st *istream.Stream) {
	for {
		if s.sendWindow <= 0 {
			return
		}
		sw := st.SendWindow()
		if sw <= 0 {
			return
		}
		avail := st.PendingLen()
		if avail == 0 {
			if st.WriteDone() && !st.IsHalfClosedLocal() {
				if err := s.writer.WriteData(framing.StreamID(st.ID()), true, nil); err != nil {
					s.transportFailed(err)
					return
				}
				if st.CloseLocally() {
					s.removeStream(st)
				}
			}
			return
		}

		chunk := int(s.cfg.MaxFrameSize)
		if int64(chunk) > s.sendWindow {
			chunk = int(s.sendWindow)
		}
		if int64(chunk) > sw {
			chunk = int(sw)
		}
		if chunk > avail {
			chunk = avail
		}
		if chunk <= 0 {
			return
		}

		data := st.TakePending(chunk)
		last := st.WriteDone() && st.PendingLen() == 0
		if err := s.writer.WriteData(framing.StreamID(st.ID()), last, data); err != nil {
			s.transportFailed(err)
			return
		}
		st.ConsumeSendWindow(int64(len(data)))
		s.sendWindow -= int64(len(data))

		if last && st.CloseLocally() {
			s.removeStream(st)
			return
		}
	}
}
