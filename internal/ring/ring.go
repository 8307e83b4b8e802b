// Package ring implements the lock-free single-producer/single-consumer
// MIDI message queue between the OS ingress reader and the host
// broadcaster (§4.5).
package ring

import (
	"errors"
	"sync/atomic"

	"github.com/midinet-audio/midinet/internal/protocol"
)

// DefaultCapacity is the ring's default slot count — must stay a power
// of two so the index mask works.
const DefaultCapacity = 1024

// ErrFull is returned by Push when the ring has no free slot. The caller
// is expected to bump an overflow counter and move on; Push never
// blocks.
var ErrFull = errors.New("ring: full")

// ErrEmpty is returned by Pop when there is nothing to read.
var ErrEmpty = errors.New("ring: empty")

// Ring is a power-of-two-capacity SPSC queue of protocol.MidiMessage.
// Exactly one goroutine may call Push; exactly one (possibly different)
// goroutine may call Pop. The write index is only ever written by the
// producer and only ever read by the consumer (and vice versa for the
// read index), so Push/Pop never allocate and never block.
type Ring struct {
	buf  []protocol.MidiMessage
	mask uint64

	writeIdx atomic.Uint64
	readIdx  atomic.Uint64
	overflow atomic.Uint64
}

// New returns a Ring with room for capacity messages. capacity is rounded
// up to the next power of two if it isn't one already; zero selects
// DefaultCapacity.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	capacity = nextPowerOfTwo(capacity)
	return &Ring{
		buf:  make([]protocol.MidiMessage, capacity),
		mask: uint64(capacity - 1),
	}
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Push enqueues msg. It is the producer's exclusive entry point: only one
// goroutine may ever call Push concurrently with the Pop side.
//
// The write index is published with a release store (Go's atomic package
// already guarantees at least that ordering) so a consumer that observes
// the new index also observes the slot contents written just before it.
func (r *Ring) Push(msg protocol.MidiMessage) error {
	w := r.writeIdx.Load()
	rd := r.readIdx.Load()
	if w-rd >= uint64(len(r.buf)) {
		r.overflow.Add(1)
		return ErrFull
	}
	r.buf[w&r.mask] = msg
	r.writeIdx.Store(w + 1)
	return nil
}

// Pop dequeues the oldest message. It is the consumer's exclusive entry
// point.
//
// The write index is read with an acquire load, pairing with Push's
// release store, so the slot contents Push wrote are visible here.
func (r *Ring) Pop() (protocol.MidiMessage, error) {
	rd := r.readIdx.Load()
	w := r.writeIdx.Load()
	if rd == w {
		return protocol.MidiMessage{}, ErrEmpty
	}
	msg := r.buf[rd&r.mask]
	r.readIdx.Store(rd + 1)
	return msg, nil
}

// Len returns the number of messages currently queued. It is a snapshot
// — safe to call from either side, but may be stale by the time it
// returns.
func (r *Ring) Len() int {
	return int(r.writeIdx.Load() - r.readIdx.Load())
}

// Cap returns the ring's fixed capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// OverflowCount returns the number of Push calls that found the ring
// full.
func (r *Ring) OverflowCount() uint64 {
	return r.overflow.Load()
}
