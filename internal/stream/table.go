package stream

import "sort"

// Table is an indexed collection of active streams, keyed by id, with
// separate counts of locally- and remotely-initiated streams. A stream
// belongs in the table iff it is neither Closed nor RST (spec.md §3
// invariant); the session is responsible for calling Remove once a stream
// reaches that state.
//
// Grounded on the teacher's stream.Manager map-plus-counters shape, but
// without the Manager<->Stream back-pointer (see package doc) and with
// plain map iteration sorted by id instead of a priority dependency tree,
// since spec.md §4.D asks for stream-id order (fair WINDOW_UPDATE
// distribution), not HTTP/2-style priority order.
type Table struct {
	streams map[uint32]*Stream
	local   int
	remote  int
}

// NewTable creates an empty stream table.
func NewTable() *Table {
	return &Table{streams: make(map[uint32]*Stream)}
}

// Get returns the stream for id, if present.
func (t *Table) Get(id uint32) (*Stream, bool) {
	s, ok := t.streams[id]
	return s, ok
}

// Add inserts a stream, keyed by its current id (Open must have been called
// first) and updates the local/remote counters.
func (t *Table) Add(s *Stream) {
	t.streams[s.ID()] = s
	if s.IsLocal() {
		t.local++
	} else {
		t.remote++
	}
}

// Remove deletes a stream from the table, if present, and updates counters.
func (t *Table) Remove(s *Stream) {
	id := s.ID()
	if _, ok := t.streams[id]; !ok {
		return
	}
	delete(t.streams, id)
	if s.IsLocal() {
		t.local--
	} else {
		t.remote--
	}
}

// LocalSize returns the number of locally-initiated streams in the table.
func (t *Table) LocalSize() int { return t.local }

// RemoteSize returns the number of remotely-initiated streams in the table.
func (t *Table) RemoteSize() int { return t.remote }

// Size returns the total number of streams in the table.
func (t *Table) Size() int { return len(t.streams) }

// Each calls fn for every stream in ascending stream-id order. fn may
// safely cause the stream to be Remove'd from the table mid-iteration:
// Each snapshots the id list up front.
func (t *Table) Each(fn func(*Stream)) {
	ids := make([]uint32, 0, len(t.streams))
	for id := range t.streams {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if s, ok := t.streams[id]; ok {
			fn(s)
		}
	}
}
