package host

import (
	"time"

	"github.com/midinet-audio/midinet/internal/protocol"
)

// DefaultBatchWindow is the max time a message waits in a batch before
// being flushed, per §4.7.
const DefaultBatchWindow = 500 * time.Microsecond

// Batcher accumulates MidiMessages into MTU-bounded batches. It holds no
// network state — it exists so the flush policy (window timeout, MTU
// overflow, immediate-flush message kinds) can be exercised without a
// socket.
type Batcher struct {
	maxWindow time.Duration

	pending     []protocol.MidiMessage
	bodyLen     int
	windowStart time.Time
	haveWindow  bool
}

// NewBatcher returns a Batcher with an empty pending set. maxWindow <= 0
// selects DefaultBatchWindow.
func NewBatcher(maxWindow time.Duration) *Batcher {
	if maxWindow <= 0 {
		maxWindow = DefaultBatchWindow
	}
	return &Batcher{maxWindow: maxWindow}
}

// immediateFlush reports whether m forces a flush the moment it's added,
// rather than waiting for the batch window — real-time-sensitive message kinds.
func immediateFlush(m protocol.MidiMessage) bool {
	switch m.Kind {
	case protocol.Clock, protocol.NoteOff:
		return true
	case protocol.ControlChange:
		// CC 120-127 are channel-mode messages (All Sound Off, Reset All
		// Controllers, All Notes Off, ...) — treated the same as NoteOff.
		return len(m.Bytes) >= 1 && m.Bytes[0] >= 120 && m.Bytes[0] <= 127
	default:
		return false
	}
}

// midiDataFixedLen is the MidiDataPacket body's fixed prefix (streamID,
// seq, hostID, epoch, flags, msgCount) that precedes the messages.
const midiDataFixedLen = 1 + 4 + 2 + 4 + 2 + 2

// Offer tries to add msg to the current batch. If msg would push the
// encoded frame past the wire MTU, Offer instead returns the batch
// accumulated so far (without msg) so the caller can flush it, then call
// Offer(msg) again — a single message is always small enough to start a
// fresh batch on its own.
func (b *Batcher) Offer(msg protocol.MidiMessage, now time.Time) (overflowed []protocol.MidiMessage, added bool) {
	if len(b.pending) > 0 && !protocol.FitsInPacket(midiDataFixedLen+b.bodyLen, msg) {
		return b.Drain(), false
	}
	if len(b.pending) == 0 {
		b.windowStart = now
		b.haveWindow = true
	}
	b.pending = append(b.pending, msg)
	b.bodyLen += protocol.EncodedMessageLen(msg)
	return nil, true
}

// ShouldFlushNow reports whether the last-added message (or the batch
// window) demands an immediate flush, independent of Tick.
func (b *Batcher) ShouldFlushNow() bool {
	if len(b.pending) == 0 {
		return false
	}
	return immediateFlush(b.pending[len(b.pending)-1])
}

// Tick reports whether the batch window has elapsed and a flush is due
// even though nothing new triggered one.
func (b *Batcher) Tick(now time.Time) bool {
	if !b.haveWindow {
		return false
	}
	return now.Sub(b.windowStart) >= b.maxWindow
}

// Drain returns the pending batch and resets the accumulator.
func (b *Batcher) Drain() []protocol.MidiMessage {
	if len(b.pending) == 0 {
		return nil
	}
	out := b.pending
	b.pending = nil
	b.bodyLen = 0
	b.haveWindow = false
	return out
}

// Empty reports whether the batcher has nothing pending.
func (b *Batcher) Empty() bool {
	return len(b.pending) == 0
}
