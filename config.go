package whiskey

import (
	"io"
	"log"
	"time"
)

// Config holds the tunables for a Session, in the style of the teacher's
// pkg/celeris.Config: a plain struct with a DefaultConfig constructor and a
// Validate/normalize method, instead of threading a dozen parameters through
// constructors individually.
type Config struct {
	// InitialWindowSize is the per-stream receive window this side
	// advertises to the peer (spec.md §3 "initial-receive-window").
	InitialWindowSize uint32

	// SessionWindowSize is the session-level receive window this side
	// advertises via the startup WINDOW_UPDATE (spec.md §4.E "Startup").
	SessionWindowSize uint32

	// MaxConcurrentStreams is the local max concurrent streams advertised
	// to the peer, governing accepted pushed streams (spec.md §3).
	MaxConcurrentStreams uint32

	// MaxFrameSize bounds a single outbound DATA frame's payload. The
	// decoder always accepts up to framing.MaxFrameLength regardless
	// (spec.md §6).
	MaxFrameSize uint32

	// MaxHeaderBytes bounds the accumulated size of one stream's header
	// block (spec.md §5 "header block accumulation is bounded").
	MaxHeaderBytes int

	// InputBufferSize is the size of the single per-session read buffer
	// (spec.md §4.E "Startup", §5 "Resource bounds").
	InputBufferSize int

	// ReadTimeout, when non-zero, is set as a deadline before every
	// transport read; a read that times out is treated as a transport
	// error. WriteTimeout bounds only the GOAWAY write made while closing
	// (100ms when zero); other writes have no deadline. IdleTimeout is not
	// used by Session.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Logger receives diagnostic output. Defaults to a silent logger.
	Logger *log.Logger
}

func newSilentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// DefaultConfig returns a Config with the values spec.md §3 calls out as
// protocol defaults (65,535-byte windows, 100 max concurrent streams) plus
// sensible operational defaults for everything else.
func DefaultConfig() Config {
	return Config{
		InitialWindowSize:    65535,
		SessionWindowSize:    65535,
		MaxConcurrentStreams: 100,
		MaxFrameSize:         16383,
		MaxHeaderBytes:       1 << 20,
		InputBufferSize:      64 << 10,
		ReadTimeout:          0,
		WriteTimeout:         0,
		IdleTimeout:          0,
		Logger:               newSilentLogger(),
	}
}

// Validate normalizes zero-valued fields to their defaults.
func (c *Config) Validate() error {
	d := DefaultConfig()
	if c.InitialWindowSize == 0 {
		c.InitialWindowSize = d.InitialWindowSize
	}
	if c.SessionWindowSize == 0 {
		c.SessionWindowSize = d.SessionWindowSize
	}
	if c.MaxConcurrentStreams == 0 {
		c.MaxConcurrentStreams = d.MaxConcurrentStreams
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = d.MaxFrameSize
	}
	if c.MaxHeaderBytes == 0 {
		c.MaxHeaderBytes = d.MaxHeaderBytes
	}
	if c.InputBufferSize == 0 {
		c.InputBufferSize = d.InputBufferSize
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	return nil
}
