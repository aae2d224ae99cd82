package apng

import "testing"

func TestFramePayloadsEager(t *testing.T) {
	f := &Frame{eager: [][]byte{[]byte("a"), []byte("b")}}
	payloads, err := f.Payloads(nil)
	if err != nil {
		t.Fatalf("Payloads: %v", err)
	}
	if len(payloads) != 2 || string(payloads[0]) != "a" || string(payloads[1]) != "b" {
		t.Fatalf("Payloads = %v, want [a b]", payloads)
	}
}

func TestFramePayloadsLazy(t *testing.T) {
	r := NewMemoryReader([]byte("hello world"))
	f := &Frame{refs: []ChunkRef{
		{Offset: 0, Length: 5},
		{Offset: 6, Length: 5},
	}}
	payloads, err := f.Payloads(r)
	if err != nil {
		t.Fatalf("Payloads: %v", err)
	}
	if string(payloads[0]) != "hello" || string(payloads[1]) != "world" {
		t.Fatalf("Payloads = %q %q, want hello world", payloads[0], payloads[1])
	}
}
