package whiskey

// Request is a locally-initiated operation: the headers and (optional,
// fully-buffered) body of one SPDY stream this side opens via Queue. The
// write side closes as soon as Body has been queued (immediately, if Body
// is empty, via the SYN_STREAM's own FIN flag); Stream.Write can still
// append bytes that race with that drain, but there is no way to keep the
// write side open past it, so Request is meant for complete, known-size
// bodies rather than ones produced incrementally.
type Request struct {
	// Headers are sent as the SYN_STREAM's compressed name/value block.
	// Pseudo-headers such as ":method", ":path", ":version", ":scheme",
	// and ":host" are the caller's responsibility to include, exactly as
	// the wire protocol (and the predecessor http.Header-based spdy
	// package) requires.
	Headers [][2]string

	// Body, if non-empty, is queued for sending immediately after
	// SYN_STREAM.
	Body []byte

	// Priority is the stream's 0-7 SPDY priority (0 highest). Values
	// outside that range are clamped.
	Priority uint8
}
