package headercodec

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc := NewEncoder()
	dec := NewDecoder(0)

	pairs := [][2]string{
		{":method", "GET"},
		{":path", "/"},
		{":version", "HTTP/1.1"},
		{":host", "example.com"},
		{":scheme", "https"},
	}

	compressed, err := enc.Encode(pairs)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var got [][2]string
	err = dec.Decode(compressed, func(name, value string) {
		got = append(got, [2]string{name, value})
	})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != len(pairs) {
		t.Fatalf("got %d pairs, want %d: %v", len(got), len(pairs), got)
	}
	for i, p := range pairs {
		if got[i] != p {
			t.Fatalf("pair %d = %v, want %v", i, got[i], p)
		}
	}
}

func TestEncodeDecodeStatefulAcrossBlocks(t *testing.T) {
	enc := NewEncoder()
	dec := NewDecoder(0)

	first := [][2]string{{":method", "GET"}, {":path", "/a"}}
	second := [][2]string{{":method", "GET"}, {":path", "/b"}}

	c1, err := enc.Encode(first)
	if err != nil {
		t.Fatalf("Encode first: %v", err)
	}
	var got1 [][2]string
	if err := dec.Decode(c1, func(n, v string) { got1 = append(got1, [2]string{n, v}) }); err != nil {
		t.Fatalf("Decode first: %v", err)
	}
	if len(got1) != 2 {
		t.Fatalf("got1 = %v", got1)
	}

	c2, err := enc.Encode(second)
	if err != nil {
		t.Fatalf("Encode second: %v", err)
	}
	var got2 [][2]string
	if err := dec.Decode(c2, func(n, v string) { got2 = append(got2, [2]string{n, v}) }); err != nil {
		t.Fatalf("Decode second: %v", err)
	}
	if len(got2) != 2 || got2[1][1] != "/b" {
		t.Fatalf("got2 = %v", got2)
	}
}

func TestDecodeHeaderTooLarge(t *testing.T) {
	enc := NewEncoder()
	dec := NewDecoder(8) // tiny limit

	pairs := [][2]string{{":path", "/a/much/longer/path/than/the/limit/allows"}}
	compressed, err := enc.Encode(pairs)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	err = dec.Decode(compressed, func(n, v string) {})
	if err != ErrHeaderTooLarge {
		t.Fatalf("Decode err = %v, want ErrHeaderTooLarge", err)
	}
}
