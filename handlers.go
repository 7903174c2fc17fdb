package whiskey

import (
	"time"

	"github.com/AesirMachina/whiskey/internal/framing"
	"github.com/AesirMachina/whiskey/internal/headercodec"
	"github.com/AesirMachina/whiskey/internal/settings"
	istream "github.com/AesirMachina/whiskey/internal/stream"
)

// This file implements framing.Delegate on *Session: every method here runs
// inline on the session's single dispatch goroutine (serve, via
// Parser.Feed), per spec.md §4.E. None of them may block.

var _ framing.Delegate = (*Session)(nil)

const sessionWindowRestoreDivisor = 2

// Data implements framing.Delegate. spec.md §4.E mandates this exact check
// order, each failure terminating processing for the frame: session window
// overflow is session-fatal and must be checked before the stream is even
// looked up; an absent stream is then either PROTOCOL_ERROR or
// INVALID_STREAM depending on whether its id is one we already rejected.
func (s *Session) Data(id framing.StreamID, last bool, payload []byte) {
	n := int64(len(payload))
	if n > s.receiveWindow {
		s.fatal(GoAwayProtocolError, errProtocol("DATA exceeds session receive window"))
		return
	}

	st, ok := s.table.Get(uint32(id))
	if !ok {
		if uint32(id) < s.lastGoodRemoteID {
			s.writeRst(uint32(id), RstProtocolError)
		} else if !s.sentGoAway.Load() {
			s.writeRst(uint32(id), RstInvalidStream)
		}
		return
	}
	if st.IsHalfClosedRemote() {
		s.writeRst(uint32(id), RstStreamAlreadyClosed)
		return
	}
	if st.IsLocal() && !st.HasReceivedReply() {
		s.writeRst(uint32(id), RstProtocolError)
		return
	}
	if n > st.ReceiveWindow() {
		s.closeStream(st, &StreamError{Status: RstFlowControlError, Reason: "DATA exceeds stream receive window"})
		s.writeRst(uint32(id), RstFlowControlError)
		return
	}

	s.receiveWindow -= n
	s.maybeRestoreSessionWindow()

	st.ReduceReceiveWindow(n)
	s.maybeRestoreStreamWindow(st)

	st.OnData(payload)

	if last {
		s.finishRemote(st)
	}
}

// SynStream implements framing.Delegate: a peer-pushed stream.
func (s *Session) SynStream(id, assocID framing.StreamID, priority uint8, last, unidirectional bool, headerFragment []byte) {
	if uint32(id)%2 != 0 {
		s.fatal(GoAwayProtocolError, errProtocol("SYN_STREAM from peer with odd stream id"))
		return
	}
	if uint32(id) <= s.lastGoodRemoteID {
		s.fatal(GoAwayProtocolError, errProtocol("SYN_STREAM id not monotonically increasing"))
		return
	}
	if s.receivedGoAway.Load() || uint32(s.table.RemoteSize()) >= s.localMaxConcurrent {
		s.writeRst(uint32(id), RstRefusedStream)
		return
	}

	st := istream.New(istream.Remote, priority, uint32(assocID))
	st.Open(uint32(id), s.initialSendWindow, s.initialReceiveWindow, unidirectional)
	s.table.Add(st)
	s.lastGoodRemoteID = uint32(id)

	s.decodeHeadersInto(st, headerFragment)
	if last {
		s.finishRemote(st)
	}
}

// SynReply implements framing.Delegate.
func (s *Session) SynReply(id framing.StreamID, last bool, headerFragment []byte) {
	st, ok := s.table.Get(uint32(id))
	if !ok || !st.IsLocal() {
		s.writeRst(uint32(id), RstInvalidStream)
		return
	}
	if err := st.OnReply(); err != nil {
		s.closeStream(st, &StreamError{Status: RstStreamInUse, Reason: err.Error()})
		s.writeRst(uint32(id), RstStreamInUse)
		return
	}
	s.active.Store(true)
	s.everActive.Store(true)
	s.decodeHeadersInto(st, headerFragment)
	if last {
		s.finishRemote(st)
	}
}

// RstStream implements framing.Delegate.
func (s *Session) RstStream(id framing.StreamID, status framing.RstStatus) {
	st, ok := s.table.Get(uint32(id))
	if !ok {
		return
	}
	s.closeStream(st, &StreamError{Status: status, Reason: "reset by peer"})
}

// Settings implements framing.Delegate.
func (s *Session) Settings(clearPersisted bool, entries []framing.SettingEntry) {
	if clearPersisted {
		s.store.Clear(s.origin)
	}
	for _, e := range entries {
		if e.Persisted {
			s.fatal(GoAwayProtocolError, errProtocol("SETTINGS entry flagged persisted from server"))
			return
		}
		if e.PersistValue {
			s.store.Put(s.origin, uint32(e.ID), settings.Entry{Value: e.Value, Persisted: true})
		}
		switch e.ID {
		case framing.SettingInitialWindowSize:
			delta := int64(e.Value) - int64(s.initialSendWindow)
			s.initialSendWindow = e.Value
			s.table.Each(func(st *istream.Stream) {
				if st.IsLocal() {
					st.IncreaseSendWindow(delta)
				}
			})
		case framing.SettingMaxConcurrentStreams:
			s.remoteMaxConcurrent = e.Value
			s.drainPending()
		}
	}
}

// Ping implements framing.Delegate: even ids are peer-initiated and must be
// echoed back immediately; odd ids are replies to pings we sent.
func (s *Session) Ping(id uint32) {
	if id%2 == 0 {
		_ = s.writer.WritePing(id)
		return
	}
	sentAt, ok := s.sentPings[id]
	if !ok {
		return
	}
	delete(s.sentPings, id)
	s.latency = time.Now().Sub(sentAt)
}

// GoAway implements framing.Delegate.
func (s *Session) GoAway(lastGoodID framing.StreamID, status framing.GoAwayStatus) {
	s.receivedGoAway.Store(true)
	s.table.Each(func(st *istream.Stream) {
		if st.IsLocal() && st.ID() > uint32(lastGoodID) {
			s.closeStream(st, &SessionError{Status: status})
		}
	})
	s.maybeFinishDraining()
}

// Headers implements framing.Delegate: a HEADERS frame updates a stream
// already open via SYN_STREAM/SYN_REPLY with additional header pairs.
func (s *Session) Headers(id framing.StreamID, last bool, headerFragment []byte) {
	st, ok := s.table.Get(uint32(id))
	if !ok || st.IsHalfClosedRemote() {
		s.writeRst(uint32(id), RstInvalidStream)
		return
	}
	s.decodeHeadersInto(st, headerFragment)
	if last {
		s.finishRemote(st)
	}
}

// WindowUpdate implements framing.Delegate.
func (s *Session) WindowUpdate(id framing.StreamID, delta uint32) {
	if id == 0 {
		next := s.sendWindow + int64(delta)
		if next > (1<<31 - 1) {
			s.fatal(GoAwayProtocolError, errProtocol("session WINDOW_UPDATE overflow"))
			return
		}
		s.sendWindow = next
		s.flushAll()
		return
	}
	st, ok := s.table.Get(uint32(id))
	if !ok {
		return
	}
	if !st.IncreaseSendWindow(int64(delta)) {
		s.closeStream(st, &StreamError{Status: RstFlowControlError, Reason: "stream WINDOW_UPDATE overflow"})
		s.writeRst(uint32(id), RstFlowControlError)
		return
	}
	s.flushSendable(st)
}

// FrameSkipped implements framing.Delegate.
func (s *Session) FrameSkipped(id framing.StreamID, reason string) {
	s.log().Printf("spdy: skipped frame for stream %d: %s", id, reason)
}

func errProtocol(reason string) error { return &framing.Error{Reason: reason} }

func (s *Session) writeRst(id uint32, status RstStatus) {
	_ = s.writer.WriteRstStream(framing.StreamID(id), status)
}

// decodeHeadersInto resolves the target stream before decoding, per spec.md
// §9's note that the stream lookup has to happen ahead of the decode so a
// too-large or unknown-stream condition can still be reported without
// losing sync with the shared decompression dictionary. An oversized header
// block (headercodec.ErrHeaderTooLarge) only invalidates this one stream:
// the shared deflate window stays valid regardless, so it must not be
// treated as session-fatal.
func (s *Session) decodeHeadersInto(st *istream.Stream, fragment []byte) {
	err := s.headerDec.Decode(fragment, func(name, value string) {
		if herr := st.OnHeader(name, value, s.cfg.MaxHeaderBytes); herr != nil {
			s.closeStream(st, &StreamError{Status: RstInternalError, Reason: herr.Error()})
			s.writeRst(st.ID(), RstInternalError)
		}
	})
	if err == headercodec.ErrHeaderTooLarge {
		s.closeStream(st, &StreamError{Status: RstInternalError, Reason: err.Error()})
		s.writeRst(st.ID(), RstInternalError)
		return
	}
	if err != nil {
		s.fatal(GoAwayProtocolError, err)
	}
}

// finishRemote marks the peer's direction finished and removes the stream
// once fully closed.
func (s *Session) finishRemote(st *istream.Stream) {
	if st.CloseRemotely() {
		s.removeStream(st)
	}
}

// closeStream tears one stream down unconditionally and removes it from the
// table.
func (s *Session) closeStream(st *istream.Stream, err error) {
	st.Close(err)
	s.removeStream(st)
}

func (s *Session) removeStream(st *istream.Stream) {
	st.Close(nil)
	s.table.Remove(st)
	s.drainPending()
	s.maybeFinishDraining()
}

// maybeRestoreStreamWindow sends a stream WINDOW_UPDATE once the receive
// window has dropped to half its initial size (spec.md §4.D "restore
// threshold"), rather than crediting every single byte back immediately.
func (s *Session) maybeRestoreStreamWindow(st *istream.Stream) {
	threshold := int64(s.initialReceiveWindow) / sessionWindowRestoreDivisor
	if st.ReceiveWindow() > threshold {
		return
	}
	delta := int64(s.initialReceiveWindow) - st.ReceiveWindow()
	if delta <= 0 {
		return
	}
	st.IncreaseReceiveWindow(delta)
	_ = s.writer.WriteWindowUpdate(framing.StreamID(st.ID()), uint32(delta))
}

func (s *Session) maybeRestoreSessionWindow() {
	threshold := int64(s.cfg.SessionWindowSize) / sessionWindowRestoreDivisor
	if s.receiveWindow > threshold {
		return
	}
	delta := int64(s.cfg.SessionWindowSize) - s.receiveWindow
	if delta <= 0 {
		return
	}
	s.receiveWindow += delta
	_ = s.writer.WriteWindowUpdate(0, uint32(delta))
}

// maybeFinishDraining closes the session once the peer has sent GOAWAY and
// every stream has drained (spec.md §7 "Draining").
func (s *Session) maybeFinishDraining() {
	if s.receivedGoAway.Load() && s.table.Size() == 0 {
		s.doClose(noGoAway, nil)
	}
}
