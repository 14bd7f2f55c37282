package storage

import (
	"testing"
)

func TestPageLayoutConstants(t *testing.T) {
	if FirstPagePayload != 459 {
		t.Errorf("FirstPagePayload = %d, want 459", FirstPagePayload)
	}
	if OverflowPagePayload != 511 {
		t.Errorf("OverflowPagePayload = %d, want 511", OverflowPagePayload)
	}
	if HeaderEnd-HeaderStart != 48 {
		t.Errorf("header length = %d, want 48", HeaderEnd-HeaderStart)
	}
}

func TestPageFieldAccessors(t *testing.T) {
	var p Page
	p.SetMarker(MarkerStart)
	p.SetChecksum(0xDEADBEEF)
	p.SetTerm(7)
	p.SetIndex(42)
	p.SetClientID(99)
	p.SetCommandLen(1000)

	if p.Marker() != MarkerStart {
		t.Errorf("Marker = %d, want %d", p.Marker(), MarkerStart)
	}
	if p.Checksum() != 0xDEADBEEF {
		t.Errorf("Checksum = %#x, want 0xDEADBEEF", p.Checksum())
	}
	if p.Term() != 7 {
		t.Errorf("Term = %d, want 7", p.Term())
	}
	if p.Index() != 42 {
		t.Errorf("Index = %d, want 42", p.Index())
	}
	if p.ClientID() != 99 {
		t.Errorf("ClientID = %d, want 99", p.ClientID())
	}
	if p.CommandLen() != 1000 {
		t.Errorf("CommandLen = %d, want 1000", p.CommandLen())
	}

	// Fields land at their documented byte offsets.
	if p[5] != 7 || p[13] != 42 || p[37] != 99 {
		t.Errorf("fields not at expected offsets: term=%d index=%d client=%d", p[5], p[13], p[37])
	}
	for i := 21; i < 37; i++ {
		if p[i] != 0 {
			t.Fatalf("reserved byte %d = %d, want 0", i, p[i])
		}
	}
}

func TestPagePayload(t *testing.T) {
	var p Page
	p.SetMarker(MarkerStart)
	if got := len(p.Payload()); got != FirstPagePayload {
		t.Errorf("start page payload = %d bytes, want %d", got, FirstPagePayload)
	}

	p.SetMarker(MarkerOverflow)
	if got := len(p.Payload()); got != OverflowPagePayload {
		t.Errorf("overflow page payload = %d bytes, want %d", got, OverflowPagePayload)
	}
}

func TestPageIsZeroAndReset(t *testing.T) {
	var p Page
	if !p.IsZero() {
		t.Error("new page should be zero")
	}
	p.SetIndex(1)
	if p.IsZero() {
		t.Error("page with index should not be zero")
	}
	p.Reset()
	if !p.IsZero() {
		t.Error("reset page should be zero")
	}
}

func TestPagesFor(t *testing.T) {
	tests := []struct {
		n    uint64
		want int
	}{
		{0, 1},
		{1, 1},
		{459, 1},
		{460, 2},
		{459 + 511, 2},
		{459 + 512, 3},
		{1000, 3},
		{459 + 511*4, 5},
	}

	for _, tt := range tests {
		if got := PagesFor(tt.n); got != tt.want {
			t.Errorf("PagesFor(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestPageOffset(t *testing.T) {
	if PageOffset(0) != 0 || PageOffset(3) != 1536 {
		t.Errorf("PageOffset mismatch: %d %d", PageOffset(0), PageOffset(3))
	}
}
