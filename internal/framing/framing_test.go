package framing

import (
	"bytes"
	"testing"
)

type recordingDelegate struct {
	synStreams    []StreamID
	synReplies    []StreamID
	data          [][]byte
	dataLast      []bool
	rsts          []RstStatus
	settings      []SettingEntry
	pings         []uint32
	goAways       []GoAwayStatus
	windowUpdates map[StreamID]uint32
	skipped       []string
}

func newRecordingDelegate() *recordingDelegate {
	return &recordingDelegate{windowUpdates: make(map[StreamID]uint32)}
}

func (d *recordingDelegate) Data(id StreamID, last bool, payload []byte) {
	d.data = append(d.data, append([]byte(nil), payload...))
	d.dataLast = append(d.dataLast, last)
}
func (d *recordingDelegate) SynStream(id, assocID StreamID, priority uint8, last, uni bool, hdr []byte) {
	d.synStreams = append(d.synStreams, id)
}
func (d *recordingDelegate) SynReply(id StreamID, last bool, hdr []byte) {
	d.synReplies = append(d.synReplies, id)
}
func (d *recordingDelegate) RstStream(id StreamID, status RstStatus) {
	d.rsts = append(d.rsts, status)
}
func (d *recordingDelegate) Settings(clear bool, entries []SettingEntry) {
	d.settings = append(d.settings, entries...)
}
func (d *recordingDelegate) Ping(id uint32) { d.pings = append(d.pings, id) }
func (d *recordingDelegate) GoAway(lastGoodID StreamID, status GoAwayStatus) {
	d.goAways = append(d.goAways, status)
}
func (d *recordingDelegate) Headers(id StreamID, last bool, hdr []byte) {}
func (d *recordingDelegate) WindowUpdate(id StreamID, delta uint32) {
	d.windowUpdates[id] = delta
}
func (d *recordingDelegate) FrameSkipped(id StreamID, reason string) {
	d.skipped = append(d.skipped, reason)
}

func TestWriterParserRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	wr := NewWriter(&buf)

	if err := wr.WriteSynStream(1, 0, 3, false, false, []byte("hdrblock")); err != nil {
		t.Fatalf("WriteSynStream: %v", err)
	}
	if err := wr.WriteData(1, true, []byte("payload")); err != nil {
		t.Fatalf("WriteData: %v", err)
	}
	if err := wr.WriteRstStream(1, RstCancel); err != nil {
		t.Fatalf("WriteRstStream: %v", err)
	}
	if err := wr.WritePing(42); err != nil {
		t.Fatalf("WritePing: %v", err)
	}
	if err := wr.WriteGoAway(1, GoAwayOK); err != nil {
		t.Fatalf("WriteGoAway: %v", err)
	}
	if err := wr.WriteWindowUpdate(1, 100); err != nil {
		t.Fatalf("WriteWindowUpdate: %v", err)
	}

	d := newRecordingDelegate()
	p := NewParser(d)
	if err := p.Feed(buf.Bytes()); err != nil {
		t.Fatalf("Feed: %v", err)
	}

	if len(d.synStreams) != 1 || d.synStreams[0] != 1 {
		t.Fatalf("synStreams = %v", d.synStreams)
	}
	if len(d.data) != 1 || string(d.data[0]) != "payload" || !d.dataLast[0] {
		t.Fatalf("data = %v last=%v", d.data, d.dataLast)
	}
	if len(d.rsts) != 1 || d.rsts[0] != RstCancel {
		t.Fatalf("rsts = %v", d.rsts)
	}
	if len(d.pings) != 1 || d.pings[0] != 42 {
		t.Fatalf("pings = %v", d.pings)
	}
	if len(d.goAways) != 1 || d.goAways[0] != GoAwayOK {
		t.Fatalf("goAways = %v", d.goAways)
	}
	if d.windowUpdates[1] != 100 {
		t.Fatalf("windowUpdates = %v", d.windowUpdates)
	}
}

func TestFeedSplitAcrossCalls(t *testing.T) {
	var buf bytes.Buffer
	wr := NewWriter(&buf)
	if err := wr.WritePing(7); err != nil {
		t.Fatalf("WritePing: %v", err)
	}
	whole := buf.Bytes()

	d := newRecordingDelegate()
	p := NewParser(d)
	for i := 0; i < len(whole); i++ {
		if err := p.Feed(whole[i : i+1]); err != nil {
			t.Fatalf("Feed byte %d: %v", i, err)
		}
	}
	if len(d.pings) != 1 || d.pings[0] != 7 {
		t.Fatalf("pings = %v", d.pings)
	}
}

func TestUnsupportedVersionIsFatal(t *testing.T) {
	var hdr [8]byte
	hdr[0] = 0x80
	hdr[1] = 0x04 // version 4, unsupported
	hdr[3] = byte(TypePing)

	d := newRecordingDelegate()
	p := NewParser(d)
	if err := p.Feed(hdr[:]); err == nil {
		t.Fatal("expected fatal error for unsupported version")
	}
}

func TestUnknownControlTypeIsSkippedNotFatal(t *testing.T) {
	var buf bytes.Buffer
	var hdr [8]byte
	first := uint32(0x80000000) | uint32(Version)<<16 | 0xfff // bogus type
	hdr[0] = byte(first >> 24)
	hdr[1] = byte(first >> 16)
	hdr[2] = byte(first >> 8)
	hdr[3] = byte(first)
	buf.Write(hdr[:])

	d := newRecordingDelegate()
	p := NewParser(d)
	if err := p.Feed(buf.Bytes()); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(d.skipped) != 1 {
		t.Fatalf("skipped = %v", d.skipped)
	}
}

func TestSettingsFlagsRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	wr := NewWriter(&buf)
	entries := []SettingEntry{
		{ID: SettingInitialWindowSize, Value: 131072, PersistValue: true},
		{ID: SettingMaxConcurrentStreams, Value: 50, Persisted: true},
	}
	if err := wr.WriteSettings(true, entries); err != nil {
		t.Fatalf("WriteSettings: %v", err)
	}

	d := newRecordingDelegate()
	p := NewParser(d)
	if err := p.Feed(buf.Bytes()); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(d.settings) != 2 {
		t.Fatalf("settings = %v", d.settings)
	}
	if !d.settings[0].PersistValue || d.settings[0].Value != 131072 {
		t.Fatalf("entry 0 = %+v", d.settings[0])
	}
	if !d.settings[1].Persisted || d.settings[1].Value != 50 {
		t.Fatalf("entry 1 = %+v", d.settings[1])
	}
}
