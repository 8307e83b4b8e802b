package ring

// BufferSize is the capacity of each pooled body buffer — large enough
// for the reassembled SysEx payloads the reassembler produces
// (internal/protocol pre-allocates its in-flight reassembly buffers at
// the same size).
const BufferSize = 16 * 1024

// BodyPool is a fixed-size freelist of byte buffers used to carry SysEx
// message bodies through the ring without allocating on the RT path.
// The producer borrows a buffer with Get, fills it, and pushes a
// MidiMessage referencing it; the consumer returns it with Put once the
// message has been fully handled (broadcast or dropped).
//
// A Get call that finds the freelist empty falls back to allocating —
// this only happens if every pooled buffer is concurrently in flight,
// which bounds allocation to pathological backlogs rather than the
// steady-state hot path.
type BodyPool struct {
	free chan []byte
}

// NewBodyPool returns a BodyPool with n buffers of size bytes each
// pre-allocated.
func NewBodyPool(n int) *BodyPool {
	p := &BodyPool{free: make(chan []byte, n)}
	for i := 0; i < n; i++ {
		p.free <- make([]byte, 0, BufferSize)
	}
	return p
}

// Get returns a zero-length buffer with at least BufferSize capacity,
// taken from the freelist when one is available.
func (p *BodyPool) Get() []byte {
	select {
	case b := <-p.free:
		return b[:0]
	default:
		return make([]byte, 0, BufferSize)
	}
}

// Put returns b to the freelist. If the freelist is already full (b was
// an overflow allocation, or more buffers were returned than were ever
// taken), b is simply dropped for the GC to reclaim.
func (p *BodyPool) Put(b []byte) {
	if cap(b) < BufferSize {
		return
	}
	select {
	case p.free <- b[:0]:
	default:
	}
}

// Available returns the number of buffers currently sitting in the
// freelist, mainly for tests and diagnostics.
func (p *BodyPool) Available() int {
	return len(p.free)
}
