// Package framing implements SPDY/3.1 control and data frame parsing and
// writing. It is a pull decoder: callers feed it whatever bytes the
// transport produced and it emits typed events to a Delegate as complete
// frames (or header fragments) become available.
package framing

import (
	"fmt"
)

// Version is the only SPDY version this codec understands.
const Version = 3

// StreamID identifies a stream within a session. Session-level frames use
// StreamID 0.
type StreamID uint32

// Frame and control-frame type codes, SPDY/3.1 §2.2.
type ControlType uint16

const (
	TypeSynStream    ControlType = 1
	TypeSynReply     ControlType = 2
	TypeRstStream    ControlType = 3
	TypeSettings     ControlType = 4
	TypePing         ControlType = 6
	TypeGoAway       ControlType = 7
	TypeHeaders      ControlType = 8
	TypeWindowUpdate ControlType = 9
)

// Data frame flags.
const (
	DataFlagFin = 0x01
)

// Control frame flags.
const (
	FlagFin                = 0x01
	FlagUnidirectional      = 0x02
	FlagSettingsClearValues = 0x01
	FlagSettingsPersist     = 0x01
	FlagSettingsPersisted   = 0x02
)

// MaxFrameLength is the largest 24-bit length field the wire format allows.
const MaxFrameLength = 0xffffff

// RstStatus is a stream-local RST_STREAM status code, SPDY/3.1 §2.4.2.
type RstStatus uint32

const (
	RstProtocolError      RstStatus = 1
	RstInvalidStream      RstStatus = 2
	RstRefusedStream      RstStatus = 3
	RstUnsupportedVersion RstStatus = 4
	RstCancel             RstStatus = 5
	RstInternalError      RstStatus = 6
	RstFlowControlError   RstStatus = 7
	RstStreamInUse        RstStatus = 8
	RstStreamAlreadyClosed RstStatus = 9
)

// GoAwayStatus is a session-level GOAWAY status code.
type GoAwayStatus uint32

const (
	GoAwayOK             GoAwayStatus = 0
	GoAwayProtocolError  GoAwayStatus = 1
	GoAwayInternalError  GoAwayStatus = 11
)

// SettingID identifies an entry in a SETTINGS frame.
type SettingID uint32

const (
	SettingUploadBandwidth        SettingID = 1
	SettingDownloadBandwidth      SettingID = 2
	SettingRoundTripTime          SettingID = 3
	SettingMaxConcurrentStreams   SettingID = 4
	SettingCurrentCwnd            SettingID = 5
	SettingDownloadRetransRate    SettingID = 6
	SettingInitialWindowSize      SettingID = 7
	SettingClientCertVectorSize   SettingID = 8
)

// Error is a fatal codec error: the session must tear down with
// PROTOCOL_ERROR.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return "framing: " + e.Reason }

func fatalf(format string, args ...any) error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

// Delegate receives decoded frame events. All methods are called on the
// goroutine that drives the decoder (Parser.Feed); implementations must not
// block.
type Delegate interface {
	Data(id StreamID, last bool, payload []byte)
	SynStream(id StreamID, assocID StreamID, priority uint8, last, unidirectional bool, headerFragment []byte)
	SynReply(id StreamID, last bool, headerFragment []byte)
	RstStream(id StreamID, status RstStatus)
	Settings(clearPersisted bool, entries []SettingEntry)
	Ping(id uint32)
	GoAway(lastGoodID StreamID, status GoAwayStatus)
	Headers(id StreamID, last bool, headerFragment []byte)
	WindowUpdate(id StreamID, delta uint32)

	// FrameSkipped reports a recoverable decode problem: an unknown control
	// frame type, or a frame the session chooses to RST rather than act on.
	// The session may respond or ignore it; the codec itself keeps running.
	FrameSkipped(id StreamID, reason string)
}

// SettingEntry is one id/value pair out of a SETTINGS frame.
type SettingEntry struct {
	ID           SettingID
	Value        uint32
	PersistValue bool
	Persisted    bool
}
