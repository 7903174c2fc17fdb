package stream

import "testing"

func TestOpenUnidirectionalStartsHalfClosedLocal(t *testing.T) {
	s := New(Remote, 0, 0)
	s.Open(2, 65535, 65535, true)
	if s.State() != HalfClosedLocal {
		t.Fatalf("state = %v, want HalfClosedLocal", s.State())
	}
}

func TestFullCloseSequence(t *testing.T) {
	s := New(Local, 0, 0)
	s.Open(1, 65535, 65535, false)
	if s.State() != Open {
		t.Fatalf("state = %v, want Open", s.State())
	}
	if s.CloseLocally() {
		t.Fatal("CloseLocally reported fully closed too early")
	}
	if s.State() != HalfClosedLocal {
		t.Fatalf("state = %v, want HalfClosedLocal", s.State())
	}
	if !s.CloseRemotely() {
		t.Fatal("CloseRemotely should report fully closed")
	}
	if s.State() != Closed {
		t.Fatalf("state = %v, want Closed", s.State())
	}
}

func TestDuplicateReplyErrors(t *testing.T) {
	s := New(Local, 0, 0)
	if err := s.OnReply(); err != nil {
		t.Fatalf("first OnReply: %v", err)
	}
	if err := s.OnReply(); err == nil {
		t.Fatal("expected error on duplicate OnReply")
	}
}

func TestSendWindowOverflowRejected(t *testing.T) {
	s := New(Local, 0, 0)
	s.Open(1, 1<<30, 65535, false)
	if s.IncreaseSendWindow(1 << 30) {
		t.Fatal("expected overflow to be rejected")
	}
	if s.SendWindow() != 1<<30 {
		t.Fatalf("SendWindow changed after rejected overflow: %d", s.SendWindow())
	}
}

func TestHeaderSizeLimitEnforced(t *testing.T) {
	s := New(Local, 0, 0)
	if err := s.OnHeader("name", "0123456789", 5); err == nil {
		t.Fatal("expected header size limit error")
	}
}

func TestPendingWriteDrain(t *testing.T) {
	s := New(Local, 0, 0)
	s.QueueWrite([]byte("hello world"))
	if s.PendingLen() != 11 {
		t.Fatalf("PendingLen = %d, want 11", s.PendingLen())
	}
	chunk := s.TakePending(5)
	if string(chunk) != "hello" {
		t.Fatalf("chunk = %q", chunk)
	}
	if s.PendingLen() != 6 {
		t.Fatalf("PendingLen after take = %d, want 6", s.PendingLen())
	}
}

func TestCloseWriteIdempotent(t *testing.T) {
	s := New(Local, 0, 0)
	if s.WriteDone() {
		t.Fatal("WriteDone true before CloseWrite")
	}
	s.CloseWrite()
	s.CloseWrite()
	if !s.WriteDone() {
		t.Fatal("WriteDone false after CloseWrite")
	}
}

func TestTableEachOrderedAndRemoveSafe(t *testing.T) {
	tbl := NewTable()
	for _, id := range []uint32{5, 1, 3} {
		s := New(Local, 0, 0)
		s.Open(id, 65535, 65535, false)
		tbl.Add(s)
	}
	if tbl.LocalSize() != 3 {
		t.Fatalf("LocalSize = %d, want 3", tbl.LocalSize())
	}

	var seen []uint32
	tbl.Each(func(s *Stream) {
		seen = append(seen, s.ID())
		if s.ID() == 3 {
			tbl.Remove(s)
		}
	})
	if len(seen) != 3 || seen[0] != 1 || seen[1] != 3 || seen[2] != 5 {
		t.Fatalf("seen = %v, want ascending [1 3 5]", seen)
	}
	if tbl.LocalSize() != 2 {
		t.Fatalf("LocalSize after remove = %d, want 2", tbl.LocalSize())
	}
}
