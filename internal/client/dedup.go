package client

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/midinet-audio/midinet/internal/protocol"
)

// DefaultDedupWindow is the 50ms window from §4.9 "Duplicate suppression
// across streams".
const DefaultDedupWindow = 50 * time.Millisecond

// DupFilter deduplicates messages arriving on both streams during the
// brief overlap after a switch, keyed by a content hash of
// (timestamp_ns, msg_bytes) rather than either stream's independent
// sequence number.
type DupFilter struct {
	window time.Duration

	mu   sync.Mutex
	seen map[uint64]time.Time
}

// NewDupFilter returns a DupFilter with window <= 0 selecting
// DefaultDedupWindow.
func NewDupFilter(window time.Duration) *DupFilter {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &DupFilter{window: window, seen: make(map[uint64]time.Time)}
}

func contentHash(timestampNS int64, m protocol.MidiMessage) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(timestampNS >> (8 * i))
	}
	h.Write(buf[:])
	h.Write([]byte{byte(m.Channel), byte(m.Kind)})
	h.Write(m.Bytes)
	return h.Sum64()
}

// Seen reports whether an identical (timestamp, message) pair was
// already observed within the window. A new pair is recorded and expired
// entries are then swept so the map never grows unbounded; a duplicate is
// not re-recorded, so the window runs from the first sighting.
func (d *DupFilter) Seen(now time.Time, timestampNS int64, m protocol.MidiMessage) bool {
	key := contentHash(timestampNS, m)

	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.seen[key]; ok && now.Sub(t) <= d.window {
		return true
	}
	d.seen[key] = now

	for k, t := range d.seen {
		if now.Sub(t) > d.window {
			delete(d.seen, k)
		}
	}
	return false
}
