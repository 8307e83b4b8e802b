package pipeline

import "sync/atomic"

// Publisher is the read-copy-update point for hot pipeline reload: the
// caller builds a new Pipeline off the real-time path and calls Publish;
// the real-time reader calls Load once per message (or per batch) and
// sees either the old or the new pipeline in its entirety, never a
// partial mix. Generation increments on every publish so observers can
// detect a change without comparing pointers.
type Publisher struct {
	current    atomic.Pointer[Pipeline]
	generation atomic.Uint64
}

// NewPublisher returns a Publisher seeded with initial (nil is treated as
// an empty pipeline by Pipeline.Apply).
func NewPublisher(initial *Pipeline) *Publisher {
	p := &Publisher{}
	p.current.Store(initial)
	return p
}

// Load returns the currently published pipeline. Safe to call from the
// real-time reader with no locking and no allocation.
func (p *Publisher) Load() *Pipeline {
	return p.current.Load()
}

// Publish atomically swaps in next and returns the new generation
// number.
func (p *Publisher) Publish(next *Pipeline) uint64 {
	p.current.Store(next)
	return p.generation.Add(1)
}

// Generation returns the number of successful Publish calls so far.
func (p *Publisher) Generation() uint64 {
	return p.generation.Load()
}
