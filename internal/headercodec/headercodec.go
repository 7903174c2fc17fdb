// Package headercodec implements SPDY/3's name-value header block
// compression: a per-direction streaming deflate codec seeded with a fixed
// shared dictionary (SPDY/3.1 §2.6.10). Unlike HTTP/2's HPACK, there is no
// indexing table — just a stateful deflate stream kept alive for the whole
// connection so each header block compresses against everything sent (or
// received) before it.
package headercodec

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// FatalError signals that the shared decompression state is unrecoverable
// (for example a corrupt deflate stream). The session that owns this
// decoder must tear down with PROTOCOL_ERROR: there is no way to resync a
// shared dictionary.
type FatalError struct{ Reason string }

func (e *FatalError) Error() string { return "headercodec: " + e.Reason }

// Encoder compresses SPDY name/value header blocks. It is not safe for
// concurrent use; the Session serializes all encodes on its single dispatch
// goroutine.
type Encoder struct {
	buf bytes.Buffer
	zw  *flate.Writer
}

var encBufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// NewEncoder creates an Encoder with fresh per-direction deflate state.
func NewEncoder() *Encoder {
	e := &Encoder{}
	zw, err := flate.NewWriterDict(&e.buf, flate.BestCompression, spdyDictionary)
	if err != nil {
		// Only returns an error for an out-of-range compression level; the
		// constant above is always valid.
		panic(err)
	}
	e.zw = zw
	return e
}

// Encode serializes and compresses a name/value block. The returned slice is
// only valid until the next Encode call.
func (e *Encoder) Encode(pairs [][2]string) ([]byte, error) {
	var raw bytes.Buffer
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(pairs)))
	raw.Write(countBuf[:])
	for _, p := range pairs {
		writeLenPrefixed(&raw, p[0])
		writeLenPrefixed(&raw, p[1])
	}

	e.buf.Reset()
	if _, err := e.zw.Write(raw.Bytes()); err != nil {
		return nil, err
	}
	if err := e.zw.Flush(); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

func writeLenPrefixed(buf *bytes.Buffer, s string) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
}

// Decoder decompresses SPDY name/value header blocks, reporting each pair to
// a per-call emit function as soon as it's decoded so the caller can enforce
// size limits without waiting for the whole block.
type Decoder struct {
	zr          io.ReadCloser
	pending     bytes.Buffer // decompressed bytes not yet parsed into pairs
	feedBuf     bytes.Buffer // compressed bytes fed in via a pipe-like reader
	history     []byte       // dictionary plus decompressed output: the inflate window
	maxBlockLen int
}

type feederReader struct {
	d *Decoder
}

func (f feederReader) Read(p []byte) (int, error) {
	if f.d.feedBuf.Len() == 0 {
		return 0, io.EOF
	}
	return f.d.feedBuf.Read(p)
}

// NewDecoder creates a Decoder with fresh per-direction inflate state.
// maxBlockLen bounds the decompressed size of a single name/value block (0
// means unbounded); exceeding it does not stop decompression (the shared
// window must stay in sync) but Decode reports ErrHeaderTooLarge.
func NewDecoder(maxBlockLen int) *Decoder {
	d := &Decoder{maxBlockLen: maxBlockLen}
	d.zr = flate.NewReaderDict(feederReader{d}, spdyDictionary)
	return d
}

// ErrHeaderTooLarge is returned by Decode when the decompressed bytes of a
// call exceed the configured maxBlockLen; none of that call's pairs are
// emitted. The shared deflate state remains valid; the caller should treat
// this as a per-stream error, not a fatal one.
var ErrHeaderTooLarge = fmt.Errorf("headercodec: header block exceeds configured limit")

// Decode decompresses compressed input and reports every complete (name,
// value) pair found so far to emit. Each call's input must end at a flush
// boundary, as every block from Encoder.Encode does; a compressed block cut
// off part-way through and finished in a later call is not resumed.
func (d *Decoder) Decode(compressed []byte, emit func(name, value string)) error {
	const window = 32 << 10 // deflate's maximum back-reference distance
	if d.history == nil {
		d.history = append([]byte(nil), spdyDictionary...)
	}
	d.feedBuf.Write(compressed)
	chunk := make([]byte, 4096)
	for {
		n, err := d.zr.Read(chunk)
		if n > 0 {
			d.pending.Write(chunk[:n])
			d.history = append(d.history, chunk[:n]...)
		}
		if err != nil {
			// flate.Reader has no explicit end-of-stream marker across a
			// Flush boundary: once the sync-flush block is fully consumed,
			// the next read attempt hits the underlying feederReader's EOF
			// and surfaces as io.EOF or io.ErrUnexpectedEOF. Both simply
			// mean "no more compressed bytes buffered yet" here, not stream
			// corruption. flate.Reader keeps that error for every later
			// Read, so the reader is reset with the last 32 KiB of output as
			// its dictionary, which is exactly the window it had.
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				if len(d.history) > window {
					d.history = append([]byte(nil), d.history[len(d.history)-window:]...)
				}
				if rerr := d.zr.(flate.Resetter).Reset(feederReader{d}, d.history); rerr != nil {
					return &FatalError{Reason: rerr.Error()}
				}
				break
			}
			return &FatalError{Reason: err.Error()}
		}
		if n == 0 {
			break
		}
	}
	return d.drainPairs(emit)
}

func (d *Decoder) drainPairs(emit func(name, value string)) error {
	var tooLarge bool
	for {
		if d.maxBlockLen > 0 && d.pending.Len() > d.maxBlockLen {
			tooLarge = true
		}
		b := d.pending.Bytes()
		if len(b) < 4 {
			break
		}
		count := binary.BigEndian.Uint32(b[0:4])
		off := 4
		pairs := make([][2]string, 0, count)
		ok := true
		for i := uint32(0); i < count; i++ {
			name, n1, fits := readLenPrefixed(b, off)
			if !fits {
				ok = false
				break
			}
			off = n1
			value, n2, fits := readLenPrefixed(b, off)
			if !fits {
				ok = false
				break
			}
			off = n2
			pairs = append(pairs, [2]string{name, value})
		}
		if !ok {
			break // wait for more data
		}
		d.pending.Next(off)
		if !tooLarge {
			for _, p := range pairs {
				emit(p[0], p[1])
			}
		}
	}
	if tooLarge {
		return ErrHeaderTooLarge
	}
	return nil
}

func readLenPrefixed(b []byte, off int) (string, int, bool) {
	if off+4 > len(b) {
		return "", off, false
	}
	l := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if off+l > len(b) {
		return "", off, false
	}
	return string(b[off : off+l]), off + l, true
}
