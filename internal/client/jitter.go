package client

import (
	"sort"
	"sync"
	"time"

	"github.com/midinet-audio/midinet/internal/protocol"
)

// jitterEntry is one buffered message awaiting in-order release.
type jitterEntry struct {
	seq     uint32
	arrival time.Time
	msg     protocol.MidiMessage
}

// JitterBuffer reorders messages by packet seq within a fixed depth
// before releasing them, per §4.9. Depth 0 (the wired default) releases
// every message immediately — the buffer becomes a pass-through.
type JitterBuffer struct {
	depth time.Duration

	mu           sync.Mutex
	pending      []jitterEntry
	lastReleased uint32
	haveReleased bool
}

// NewJitterBuffer returns a JitterBuffer with the given depth.
func NewJitterBuffer(depth time.Duration) *JitterBuffer {
	return &JitterBuffer{depth: depth}
}

// Add enqueues msg under seq, observed at arrival.
func (j *JitterBuffer) Add(seq uint32, msg protocol.MidiMessage, arrival time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pending = append(j.pending, jitterEntry{seq: seq, arrival: arrival, msg: msg})
}

// Release returns every message whose hold time has elapsed, in seq
// order, dropping any whose seq was already released (a duplicate that
// arrived late on the other stream).
func (j *JitterBuffer) Release(now time.Time) []protocol.MidiMessage {
	j.mu.Lock()
	defer j.mu.Unlock()

	var ready []jitterEntry
	var remaining []jitterEntry
	for _, e := range j.pending {
		if now.Sub(e.arrival) >= j.depth {
			ready = append(ready, e)
		} else {
			remaining = append(remaining, e)
		}
	}
	j.pending = remaining

	sort.Slice(ready, func(i, k int) bool { return ready[i].seq < ready[k].seq })

	out := make([]protocol.MidiMessage, 0, len(ready))
	for _, e := range ready {
		if j.haveReleased && e.seq <= j.lastReleased {
			continue
		}
		out = append(out, e.msg)
		j.lastReleased = e.seq
		j.haveReleased = true
	}
	return out
}

// Pending returns the number of messages currently held.
func (j *JitterBuffer) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}
