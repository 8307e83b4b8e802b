// Package pipeline implements the host's configurable ingress transform
// chain: an ordered list of stages applied to every MidiMessage before it
// reaches the state journal and ring buffer, hot-reloadable via a
// read-copy-update publisher (§4.4).
package pipeline

import "github.com/midinet-audio/midinet/internal/protocol"

// Stage transforms or drops a message. Implementations must not allocate
// — Apply runs on the real-time ingress path once per message.
type Stage interface {
	Apply(msg protocol.MidiMessage) (protocol.MidiMessage, bool)
}

// Pipeline is an immutable ordered list of stages. Build a new Pipeline
// rather than mutating one in place; hot reload replaces the whole value
// via Publisher.
type Pipeline struct {
	Stages []Stage
}

// New returns a Pipeline running stages in the given order.
func New(stages ...Stage) *Pipeline {
	return &Pipeline{Stages: stages}
}

// Apply runs msg through every stage in order, short-circuiting as soon
// as a stage drops it. It performs no allocation of its own; whether the
// overall call allocates depends only on whether any Stage does.
func (p *Pipeline) Apply(msg protocol.MidiMessage) (protocol.MidiMessage, bool) {
	if p == nil {
		return msg, true
	}
	for _, s := range p.Stages {
		var keep bool
		msg, keep = s.Apply(msg)
		if !keep {
			return msg, false
		}
	}
	return msg, true
}
