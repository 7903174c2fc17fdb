package whiskey

import (
	"net"
	"testing"
	"time"

	"github.com/AesirMachina/whiskey/internal/framing"
	"github.com/AesirMachina/whiskey/internal/headercodec"
	"github.com/AesirMachina/whiskey/internal/settings"
	"github.com/AesirMachina/whiskey/internal/xport"
)

// fakePeer drives the other end of a net.Pipe as if it were the SPDY server,
// decoding frames with its own Parser/Delegate and encoding replies with its
// own stateful Encoder, mirroring how two independent z_streams (one per
// direction) cooperate over the fixed SPDY/3 dictionary.
type fakePeer struct {
	conn *framing.Writer
	enc  *headercodec.Encoder
	out  net.Conn

	synStreams chan framing.StreamID
	goAways    chan struct{}
}

func newFakePeer(conn net.Conn) *fakePeer {
	return &fakePeer{
		conn:       framing.NewWriter(conn),
		enc:        headercodec.NewEncoder(),
		out:        conn,
		synStreams: make(chan framing.StreamID, 8),
		goAways:    make(chan struct{}, 1),
	}
}

func (p *fakePeer) Data(id framing.StreamID, last bool, payload []byte)            {}
func (p *fakePeer) SynReply(id framing.StreamID, last bool, hdr []byte)            {}
func (p *fakePeer) RstStream(id framing.StreamID, status framing.RstStatus)        {}
func (p *fakePeer) Settings(clear bool, entries []framing.SettingEntry)            {}
func (p *fakePeer) Ping(id uint32)                                                 {}
func (p *fakePeer) Headers(id framing.StreamID, last bool, hdr []byte)             {}
func (p *fakePeer) WindowUpdate(id framing.StreamID, delta uint32)                 {}
func (p *fakePeer) FrameSkipped(id framing.StreamID, reason string)                {}
func (p *fakePeer) GoAway(lastGoodID framing.StreamID, status framing.GoAwayStatus) {}

func (p *fakePeer) SynStream(id, assocID framing.StreamID, priority uint8, last, uni bool, hdr []byte) {
	p.synStreams <- id
}

// run feeds bytes read from the pipe into a Parser until the pipe closes.
func (p *fakePeer) run(delegate framing.Delegate) {
	parser := framing.NewParser(delegate)
	buf := make([]byte, 4096)
	for {
		n, err := p.out.Read(buf)
		if n > 0 {
			_ = parser.Feed(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

func (p *fakePeer) replyOK(id framing.StreamID, last bool) {
	hdr, _ := p.enc.Encode([][2]string{{":status", "200"}, {":version", "HTTP/1.1"}})
	_ = p.conn.WriteSynReply(id, last, hdr)
}

func newTestSession(t *testing.T, clientConn net.Conn) *Session {
	t.Helper()
	origin := settings.Origin{Scheme: "http", Host: "test.invalid", Port: 80}
	cfg := DefaultConfig()
	sess, err := NewSession(origin, xport.NewConnTransport(clientConn), cfg, nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return sess
}

func TestQueueAndReplyRoundTrip(t *testing.T) {
	client, peerConn := net.Pipe()
	defer client.Close()
	defer peerConn.Close()

	peer := newFakePeer(peerConn)
	go peer.run(peer)

	sess := newTestSession(t, client)
	defer sess.Close(GoAwayOK)

	st, err := sess.Queue(&Request{Headers: [][2]string{{":method", "GET"}, {":path", "/"}}})
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}

	var synID framing.StreamID
	select {
	case synID = <-peer.synStreams:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SYN_STREAM")
	}
	peer.replyOK(synID, true)

	select {
	case h := <-st.Headers():
		if h[0] != ":status" || h[1] != "200" {
			t.Fatalf("unexpected header pair %v", h)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for headers")
	}

	select {
	case <-st.Done():
		if err := st.Err(); err != nil {
			t.Fatalf("stream closed with error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream to finish")
	}
}

func TestDuplicateSynReplyResetsStream(t *testing.T) {
	client, peerConn := net.Pipe()
	defer client.Close()
	defer peerConn.Close()

	peer := newFakePeer(peerConn)
	go peer.run(peer)

	sess := newTestSession(t, client)
	defer sess.Close(GoAwayOK)

	st, err := sess.Queue(&Request{Headers: [][2]string{{":method", "GET"}, {":path", "/"}}})
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}

	var synID framing.StreamID
	select {
	case synID = <-peer.synStreams:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SYN_STREAM")
	}

	peer.replyOK(synID, false) // no FIN, so the stream stays in the table
	peer.replyOK(synID, false) // duplicate: should reset the stream

	select {
	case <-st.Done():
		serr, ok := st.Err().(*StreamError)
		if !ok || serr.Status != RstStreamInUse {
			t.Fatalf("Err() = %v, want RstStreamInUse StreamError", st.Err())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for duplicate reply to reset stream")
	}
}

func TestGoAwayWithNoStreamsClosesSession(t *testing.T) {
	client, peerConn := net.Pipe()
	defer client.Close()
	defer peerConn.Close()

	peer := newFakePeer(peerConn)
	go peer.run(peer)

	sess := newTestSession(t, client)

	if err := peer.conn.WriteGoAway(0, GoAwayOK); err != nil {
		t.Fatalf("WriteGoAway: %v", err)
	}

	select {
	case <-sess.Done():
		if err := sess.Err(); err != nil {
			t.Fatalf("session closed with unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session to drain and close")
	}
	if !sess.IsClosed() {
		t.Fatal("IsClosed() = false after Done closed")
	}
}

func TestAddCloseListenerFiresOnClose(t *testing.T) {
	client, peerConn := net.Pipe()
	defer client.Close()
	defer peerConn.Close()

	peer := newFakePeer(peerConn)
	go peer.run(peer)

	sess := newTestSession(t, client)

	fired := make(chan error, 1)
	sess.AddCloseListener(func(scheme, host string, port int, err error) {
		fired <- err
	})

	sess.Close(GoAwayOK)

	select {
	case err := <-fired:
		if err == nil {
			t.Fatal("expected a SessionError from an explicit Close, got nil")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close listener")
	}
}
