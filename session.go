package whiskey

import (
	"errors"
	"io"
	"log"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AesirMachina/whiskey/internal/framing"
	"github.com/AesirMachina/whiskey/internal/headercodec"
	"github.com/AesirMachina/whiskey/internal/settings"
	istream "github.com/AesirMachina/whiskey/internal/stream"
	"github.com/AesirMachina/whiskey/internal/xport"
)

// noGoAway is a sentinel meaning "close without sending GOAWAY" (transport
// already failed, or we're responding to the peer's own GOAWAY/EOF),
// grounded on DanielMorsing-spdy/session.go's identical noGoAway sentinel.
const noGoAway GoAwayStatus = 0xff

type queuedOp struct {
	stream  *istream.Stream
	req     *Request
	errCh   chan error
}

type closeListener func(origin settings.Origin, err error)

// Session is a single client-side SPDY/3.1 connection, multiplexing many
// concurrent streams. It is single-threaded and cooperative (spec.md §5):
// all decode, state mutation, and outbound writes happen on the goroutine
// started by serve. See the package doc for the goroutine/channel layout.
type Session struct {
	origin    settings.Origin
	transport xport.Transport
	cfg       Config
	store     *settings.Store

	table     *istream.Table
	parser    *framing.Parser
	writer    *framing.Writer
	headerEnc *headercodec.Encoder
	headerDec *headercodec.Decoder

	nextStreamID     uint32
	nextPingID       uint32
	lastGoodRemoteID uint32

	sendWindow    int64
	receiveWindow int64

	initialSendWindow    uint32
	initialReceiveWindow uint32

	localMaxConcurrent  uint32
	remoteMaxConcurrent uint32

	sentPings map[uint32]time.Time
	latency   time.Duration

	// Grounded on the teacher's internal/transport.conn.sentGoAway atomic.Bool
	// (internal/transport/server.go): these flags are written only from
	// serve's goroutine but read from any goroutine via the public
	// predicates in api.go, so they're atomics rather than plain bools.
	receivedGoAway atomic.Bool
	sentGoAway     atomic.Bool
	active         atomic.Bool
	everActive     atomic.Bool
	closed         atomic.Bool

	pending []*queuedOp

	queueCh       chan *queuedOp
	inbound       chan []byte
	readErr       chan error
	closeCh       chan GoAwayStatus
	addListenerCh chan closeListener

	done           chan struct{}
	closeErr       error
	closeListeners []closeListener
}

// NewSession starts a SPDY session over an already-connected transport, per
// spec.md §4.E "Startup". store may be nil, in which case a fresh
// process-local store is created (most callers should share one Store
// across Sessions to the same origins via Client instead).
func NewSession(origin settings.Origin, t xport.Transport, cfg Config, store *settings.Store) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		store = settings.NewStore()
	}

	s := &Session{
		origin:               origin,
		transport:            t,
		cfg:                  cfg,
		store:                store,
		table:                istream.NewTable(),
		nextStreamID:         1,
		nextPingID:           1,
		initialSendWindow:    65535,
		initialReceiveWindow: cfg.InitialWindowSize,
		sendWindow:           65535,
		receiveWindow:        int64(cfg.SessionWindowSize),
		localMaxConcurrent:   cfg.MaxConcurrentStreams,
		remoteMaxConcurrent:  100,
		sentPings:            make(map[uint32]time.Time),
		queueCh:              make(chan *queuedOp),
		inbound:              make(chan []byte, 4),
		readErr:              make(chan error, 1),
		closeCh:              make(chan GoAwayStatus, 1),
		addListenerCh:        make(chan closeListener),
		done:                 make(chan struct{}),
	}
	s.headerEnc = headercodec.NewEncoder()
	s.headerDec = headercodec.NewDecoder(cfg.MaxHeaderBytes)
	s.writer = framing.NewWriter(t)
	s.parser = framing.NewParser(s)

	if err := s.sendStartupFrames(); err != nil {
		return nil, err
	}

	go s.readLoop()
	go s.serve()
	return s, nil
}

// sendStartupFrames emits the SETTINGS/PING/WINDOW_UPDATE burst spec.md
// §4.E "Startup" requires, in that order (a single transport's writes are
// serialized in program order, spec.md §5 "Ordering guarantees", so a
// simple sequential emit is sufficient — no errgroup fan-out is needed
// here; see notifyCloseListeners for where errgroup fan-out is used).
func (s *Session) sendStartupFrames() error {
	if err := s.writer.WriteSettings(false, []framing.SettingEntry{
		{ID: framing.SettingInitialWindowSize, Value: s.cfg.InitialWindowSize},
	}); err != nil {
		return err
	}
	if err := s.writer.WritePing(s.nextPingID); err != nil {
		return err
	}
	s.sentPings[s.nextPingID] = time.Now()
	s.nextPingID += 2

	delta := int64(s.cfg.SessionWindowSize) - 65535
	if delta != 0 {
		if delta < 0 {
			return errors.New("spdy: configured session window smaller than default not supported")
		}
		if err := s.writer.WriteWindowUpdate(0, uint32(delta)); err != nil {
			return err
		}
		s.receiveWindow = int64(s.cfg.SessionWindowSize)
	}
	return nil
}

// readLoop does nothing but block on transport reads and forward bytes (or
// the terminal error) to serve. It never touches Session state directly,
// per spec.md §5 "no internal point blocks on a lock" / single dispatch
// goroutine discipline. Grounded on DanielMorsing-spdy/session.go's
// readFrames, generalized from "read one parsed frame" to "read one chunk
// of bytes" since decoding itself must happen on serve's goroutine here.
func (s *Session) readLoop() {
	buf := make([]byte, s.cfg.InputBufferSize)
	for {
		if s.cfg.ReadTimeout != 0 {
			_ = s.transport.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		n, err := s.transport.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.inbound <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			select {
			case s.readErr <- err:
			case <-s.done:
			}
			return
		}
	}
}

// serve is the session's single dispatch goroutine: it feeds inbound bytes
// to the frame parser (whose callbacks run inline here), services queued
// outbound requests, and handles close requests. Grounded on
// DanielMorsing-spdy/session.go's serve/dispatch split.
func (s *Session) serve() {
	for {
		select {
		case chunk := <-s.inbound:
			if err := s.parser.Feed(chunk); err != nil {
				s.fatal(GoAwayProtocolError, err)
				return
			}
		case err := <-s.readErr:
			s.transportFailed(err)
			return
		case op := <-s.queueCh:
			s.handleQueue(op)
		case l := <-s.addListenerCh:
			s.closeListeners = append(s.closeListeners, l)
		case status := <-s.closeCh:
			s.doClose(status, nil)
			return
		}
		if s.closed.Load() {
			// A Delegate callback invoked from within parser.Feed (GOAWAY
			// drain completing, a fatal decode) may have closed the
			// session itself; don't loop back into a torn-down Session.
			return
		}
	}
}

func (s *Session) log() *log.Logger { return s.cfg.Logger }

// transportFailed handles a Read/Write error from the transport: session
// fatal without GOAWAY (spec.md §7 "Transport errors"), except a clean EOF
// or timeout-while-draining which closes without error.
func (s *Session) transportFailed(err error) {
	if errors.Is(err, io.EOF) {
		s.doClose(noGoAway, nil)
		return
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() && s.receivedGoAway.Load() {
		s.doClose(noGoAway, nil)
		return
	}
	s.doClose(noGoAway, err)
}

// fatal handles a session-fatal protocol violation: send GOAWAY, tear down,
// per spec.md §7 "Session-fatal".
func (s *Session) fatal(status GoAwayStatus, cause error) {
	s.doClose(status, cause)
}

// doClose is the single teardown path: it terminates every active stream,
// optionally sends GOAWAY, closes the transport, and notifies close
// listeners. Grounded on DanielMorsing-spdy/session.go's doclose.
func (s *Session) doClose(status GoAwayStatus, cause error) {
	if s.closed.Load() {
		return
	}
	s.closed.Store(true)
	s.active.Store(false)

	sessErr := error(nil)
	if status != noGoAway || cause != nil {
		sessErr = &SessionError{Status: status, Cause: cause}
	}

	s.table.Each(func(st *istream.Stream) {
		st.Close(sessErr)
	})

	if status != noGoAway {
		s.sentGoAway.Store(true)
		if s.cfg.WriteTimeout != 0 {
			_ = s.transport.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		} else {
			_ = s.transport.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
		}
		_ = s.writer.WriteGoAway(framing.StreamID(s.lastGoodRemoteID), status)
	}

	for _, op := range s.pending {
		if sessErr != nil {
			op.errCh <- sessErr
		} else {
			op.errCh <- io.ErrClosedPipe
		}
	}
	s.pending = nil

	s.closeErr = sessErr
	_ = s.transport.Close()
	close(s.done)
	s.notifyCloseListeners(sessErr)
}

// notifyCloseListeners runs every registered listener concurrently: they're
// independent callbacks with no ordering requirement between them, unlike
// the frame writes above which must stay in wire order on one connection.
// Grounded on errgroup's fan-out-then-wait idiom as used for independent
// per-item work in ozontech-framer and hashicorp-consul.
func (s *Session) notifyCloseListeners(sessErr error) {
	if len(s.closeListeners) == 0 {
		return
	}
	var g errgroup.Group
	for _, l := range s.closeListeners {
		l := l
		g.Go(func() error {
			l(s.origin, sessErr)
			return nil
		})
	}
	_ = g.Wait()
}
