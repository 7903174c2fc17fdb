// Package whiskey implements a client-side SPDY/3.1 session multiplexer: it
// encodes and decodes SPDY frames, demultiplexes a single transport
// connection into many concurrent request/response streams, and enforces
// the protocol's dual-level (session and per-stream) flow control,
// concurrency limits, and graceful shutdown semantics.
//
// Scope. This package is deliberately narrow: the byte-level transport
// (TCP/TLS), header-block compression, and the request/response object
// model are all modeled as small interfaces or external collaborators
// (internal/xport, internal/headercodec, the Request/Stream types here)
// rather than owned end to end. It targets SPDY/3.1 only; server-role
// behavior is out of scope beyond accepting server-pushed streams.
//
// # Internals
//
// A Session is single-threaded and cooperative: one goroutine (serve) owns
// all frame decode, state mutation, and outbound writes. A second goroutine
// (readLoop) does nothing but block on the transport's Read and forward
// whatever bytes arrive to serve over a channel — it never touches session
// state directly. This mirrors the two-goroutine split in the predecessor
// spdy package this one is modeled on:
//
//   - readLoop: blocks on transport reads, forwards raw bytes (or a
//     terminal error) to serve. Exits when the transport closes.
//   - serve: the dispatch loop. Feeds incoming bytes to the frame parser
//     (whose callbacks run inline, on this same goroutine, directly
//     mutating Session/Stream/Table state with no locking needed),
//     services queued outbound requests, and handles the close signal.
//
// Interfaces:
//
//   - closeCh: Close sends a status on this channel to request the session
//     shut down. Read errors arrive on readErr instead, and protocol errors
//     are handled inline by serve.
//   - queueCh: Queue posts each *Request here, together with its new
//     stream; serve assigns it a stream id once capacity allows.
//   - done: closed once serve has torn everything down; close listeners
//     are notified right after.
package whiskey
