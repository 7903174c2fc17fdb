package framing

import (
	"bytes"
	"encoding/binary"
)

// control-frame header: 2 bytes version (high bit set), 2 bytes type,
// 1 byte flags, 3 bytes length. data-frame header: 4 bytes stream id (high
// bit clear), 1 byte flags, 3 bytes length.
const frameHeaderLen = 8

type parserState int

const (
	stateHeader parserState = iota
	statePayload
)

// Parser is a pull decoder for a single direction of a SPDY/3.1 connection.
// Feed may be called repeatedly with arbitrary-sized chunks; complete frames
// are reported to the Delegate as soon as their payload is fully buffered.
type Parser struct {
	delegate Delegate

	buf   bytes.Buffer
	state parserState

	// decoded header of the frame currently being assembled
	isControl  bool
	ctype      ControlType
	flags      uint8
	length     uint32
	streamID   StreamID
}

// NewParser creates a Parser that reports decoded frames to delegate.
func NewParser(delegate Delegate) *Parser {
	return &Parser{delegate: delegate}
}

// Feed appends newly read bytes and decodes as many complete frames as are
// available. It returns a fatal *Error if the stream is malformed in a way
// that cannot be recovered from; the session must then tear down with
// PROTOCOL_ERROR. Recoverable problems are reported via Delegate.FrameSkipped
// and do not stop decoding.
func (p *Parser) Feed(b []byte) error {
	p.buf.Write(b)
	for {
		switch p.state {
		case stateHeader:
			if p.buf.Len() < frameHeaderLen {
				return nil
			}
			hdr := p.buf.Next(frameHeaderLen)
			if err := p.decodeHeader(hdr); err != nil {
				return err
			}
			p.state = statePayload
		case statePayload:
			if uint32(p.buf.Len()) < p.length {
				return nil
			}
			payload := make([]byte, p.length)
			copy(payload, p.buf.Next(int(p.length)))
			if err := p.dispatchPayload(payload); err != nil {
				return err
			}
			p.state = stateHeader
		}
	}
}

func (p *Parser) decodeHeader(hdr []byte) error {
	first := binary.BigEndian.Uint32(hdr[0:4])
	if first&0x80000000 != 0 {
		version := uint16((first >> 16) & 0x7fff)
		if version != Version {
			return fatalf("unsupported spdy version %d", version)
		}
		p.isControl = true
		p.ctype = ControlType(first & 0xffff)
	} else {
		p.isControl = false
		p.streamID = StreamID(first & 0x7fffffff)
	}
	flagsLen := binary.BigEndian.Uint32(hdr[4:8])
	p.flags = uint8(flagsLen >> 24)
	p.length = flagsLen & 0xffffff
	return nil
}

func (p *Parser) dispatchPayload(payload []byte) error {
	if !p.isControl {
		p.delegate.Data(p.streamID, p.flags&DataFlagFin != 0, payload)
		return nil
	}
	switch p.ctype {
	case TypeSynStream:
		return p.decodeSynStream(payload)
	case TypeSynReply:
		return p.decodeSynReply(payload)
	case TypeRstStream:
		return p.decodeRstStream(payload)
	case TypeSettings:
		return p.decodeSettings(payload)
	case TypePing:
		return p.decodePing(payload)
	case TypeGoAway:
		return p.decodeGoAway(payload)
	case TypeHeaders:
		return p.decodeHeaders(payload)
	case TypeWindowUpdate:
		return p.decodeWindowUpdate(payload)
	default:
		p.delegate.FrameSkipped(0, "unknown control frame type")
		return nil
	}
}

func (p *Parser) decodeSynStream(payload []byte) error {
	if len(payload) < 10 {
		return fatalf("SYN_STREAM frame too short")
	}
	id := StreamID(binary.BigEndian.Uint32(payload[0:4]) & 0x7fffffff)
	assoc := StreamID(binary.BigEndian.Uint32(payload[4:8]) & 0x7fffffff)
	priority := payload[8] >> 5
	last := p.flags&FlagFin != 0
	uni := p.flags&FlagUnidirectional != 0
	p.delegate.SynStream(id, assoc, priority, last, uni, payload[10:])
	return nil
}

func (p *Parser) decodeSynReply(payload []byte) error {
	if len(payload) < 4 {
		return fatalf("SYN_REPLY frame too short")
	}
	id := StreamID(binary.BigEndian.Uint32(payload[0:4]) & 0x7fffffff)
	p.delegate.SynReply(id, p.flags&FlagFin != 0, payload[4:])
	return nil
}

func (p *Parser) decodeRstStream(payload []byte) error {
	if len(payload) != 8 {
		return fatalf("RST_STREAM frame malformed")
	}
	id := StreamID(binary.BigEndian.Uint32(payload[0:4]) & 0x7fffffff)
	status := RstStatus(binary.BigEndian.Uint32(payload[4:8]))
	p.delegate.RstStream(id, status)
	return nil
}

func (p *Parser) decodeSettings(payload []byte) error {
	if len(payload) < 4 {
		return fatalf("SETTINGS frame too short")
	}
	numEntries := binary.BigEndian.Uint32(payload[0:4])
	clear := p.flags&FlagSettingsClearValues != 0
	entries := make([]SettingEntry, 0, numEntries)
	off := 4
	for i := uint32(0); i < numEntries; i++ {
		if off+8 > len(payload) {
			return fatalf("SETTINGS frame truncated")
		}
		idFlags := binary.BigEndian.Uint32(payload[off : off+4])
		value := binary.BigEndian.Uint32(payload[off+4 : off+8])
		off += 8
		flags := uint8(idFlags >> 24)
		id := SettingID(idFlags & 0xffffff)
		entries = append(entries, SettingEntry{
			ID:           id,
			Value:        value,
			PersistValue: flags&FlagSettingsPersist != 0,
			Persisted:    flags&FlagSettingsPersisted != 0,
		})
	}
	p.delegate.Settings(clear, entries)
	return nil
}

func (p *Parser) decodePing(payload []byte) error {
	if len(payload) != 4 {
		return fatalf("PING frame malformed")
	}
	p.delegate.Ping(binary.BigEndian.Uint32(payload))
	return nil
}

func (p *Parser) decodeGoAway(payload []byte) error {
	if len(payload) != 8 {
		return fatalf("GOAWAY frame malformed")
	}
	lastGood := StreamID(binary.BigEndian.Uint32(payload[0:4]) & 0x7fffffff)
	status := GoAwayStatus(binary.BigEndian.Uint32(payload[4:8]))
	p.delegate.GoAway(lastGood, status)
	return nil
}

func (p *Parser) decodeHeaders(payload []byte) error {
	if len(payload) < 4 {
		return fatalf("HEADERS frame too short")
	}
	id := StreamID(binary.BigEndian.Uint32(payload[0:4]) & 0x7fffffff)
	p.delegate.Headers(id, p.flags&FlagFin != 0, payload[4:])
	return nil
}

func (p *Parser) decodeWindowUpdate(payload []byte) error {
	if len(payload) != 8 {
		return fatalf("WINDOW_UPDATE frame malformed")
	}
	id := StreamID(binary.BigEndian.Uint32(payload[0:4]) & 0x7fffffff)
	delta := binary.BigEndian.Uint32(payload[4:8]) & 0x7fffffff
	p.delegate.WindowUpdate(id, delta)
	return nil
}
