package ring

import "testing"

func TestBodyPoolGetPutReusesBuffers(t *testing.T) {
	p := NewBodyPool(2)
	if p.Available() != 2 {
		t.Fatalf("Available() = %d, want 2", p.Available())
	}

	b1 := p.Get()
	if p.Available() != 1 {
		t.Fatalf("Available() after one Get = %d, want 1", p.Available())
	}
	if cap(b1) < BufferSize {
		t.Fatalf("cap(b1) = %d, want >= %d", cap(b1), BufferSize)
	}

	p.Put(b1)
	if p.Available() != 2 {
		t.Fatalf("Available() after Put = %d, want 2", p.Available())
	}
}

func TestBodyPoolFallsBackWhenExhausted(t *testing.T) {
	p := NewBodyPool(1)
	b1 := p.Get()
	b2 := p.Get() // freelist is empty now, should still get a usable buffer
	if cap(b2) < BufferSize {
		t.Fatalf("fallback buffer cap = %d, want >= %d", cap(b2), BufferSize)
	}
	_ = b1
}

func TestBodyPoolPutIgnoresUndersizedBuffer(t *testing.T) {
	p := NewBodyPool(1)
	p.Get() // drain the one buffer
	p.Put(make([]byte, 0, 4))
	if p.Available() != 0 {
		t.Fatalf("Available() = %d, want 0 (undersized buffer should be dropped)", p.Available())
	}
}

func TestBodyPoolPutDropsWhenFreelistFull(t *testing.T) {
	p := NewBodyPool(1)
	extra := make([]byte, 0, BufferSize)
	p.Put(extra) // freelist already has its one buffer; this should not block
	if p.Available() != 1 {
		t.Fatalf("Available() = %d, want 1", p.Available())
	}
}
