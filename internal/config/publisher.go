package config

import "sync/atomic"

// Publisher is the read-copy-update point for hot-reloading a Config's
// sub-trees (the failover policy, the pipeline stage list) without
// stopping the host or client process. It mirrors internal/pipeline's
// Publisher shape exactly: the real-time/control-path readers call Load
// with no locking, and whatever triggers a reload (a file watcher, a
// REST call — both external to this package per §1) builds a new Config
// value off to the side and calls Publish.
type Publisher struct {
	current    atomic.Pointer[Config]
	generation atomic.Uint64
}

// NewPublisher returns a Publisher seeded with initial.
func NewPublisher(initial Config) *Publisher {
	p := &Publisher{}
	p.current.Store(&initial)
	return p
}

// Load returns the currently published Config.
func (p *Publisher) Load() Config {
	return *p.current.Load()
}

// Publish atomically swaps in next, validating it first so a bad reload
// never takes effect, and returns the new generation number.
func (p *Publisher) Publish(next Config) (uint64, error) {
	if err := validate(next); err != nil {
		return p.generation.Load(), err
	}
	p.current.Store(&next)
	return p.generation.Add(1), nil
}

// Generation returns the number of successful Publish calls so far.
func (p *Publisher) Generation() uint64 {
	return p.generation.Load()
}
