// Package journal implements the bounded state journal the host
// broadcaster uses to reconcile a client after a stream switch: a ring of
// reduced events plus a periodic compact snapshot (§4.3).
package journal

import (
	"sync"

	"github.com/midinet-audio/midinet/internal/midistate"
	"github.com/midinet-audio/midinet/internal/protocol"
)

// DefaultMaxEntries is JOURNAL_MAX, §3's bound on reduced journal size.
const DefaultMaxEntries = 4096

// Entry is one reduced journal record: a message plus the (epoch, seq) it
// was recorded under.
type Entry struct {
	Epoch uint32
	Seq   uint32
	Msg   protocol.MidiMessage
}

// Snapshot is a point-in-time copy of a port's channel state, tagged with
// the epoch/seq it was taken at.
type Snapshot struct {
	Epoch uint32
	Seq   uint32
	State midistate.PortState
}

type dedupKey struct {
	channel uint8
	cc      uint8
}

// Journal is a bounded, reduced event log plus the most recent snapshot.
// It is not safe to share across goroutines without the lock it already
// takes internally — callers get the single-writer guarantee from the
// broadcaster task owning it (§5 "Shared resources").
type Journal struct {
	mu sync.Mutex

	epoch      uint32
	seq        uint32
	maxEntries int

	entries []Entry
	dedup   map[dedupKey]int // index into entries, valid only since lastSnapshot

	lastSnapshot Snapshot
}

// New returns an empty Journal bounded to maxEntries (0 selects
// DefaultMaxEntries), stamped with the given starting epoch.
func New(epoch uint32, maxEntries int) *Journal {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Journal{
		epoch:      epoch,
		maxEntries: maxEntries,
		entries:    make([]Entry, 0, maxEntries),
		dedup:      make(map[dedupKey]int),
	}
}

// Record appends a reduced entry for msg. A later CC on the same
// (channel, cc) within the current frame (since the last snapshot)
// replaces the prior pending entry for that key in place, rather than
// growing the log; every other message kind always appends. Seq is
// assigned and returned.
//
// If appending would exceed the journal's capacity, the caller's next
// packet is promoted to a snapshot instead (§7 "Journal overflow ->
// promote next packet to snapshot") — Record reports this via the second
// return value so the broadcaster can react.
func (j *Journal) Record(msg protocol.MidiMessage) (seq uint32, overflowed bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	seq = j.seq
	entry := Entry{Epoch: j.epoch, Seq: seq, Msg: msg}

	if msg.Kind == protocol.ControlChange && len(msg.Bytes) >= 1 {
		key := dedupKey{channel: msg.Channel, cc: msg.Bytes[0]}
		if idx, ok := j.dedup[key]; ok {
			j.entries[idx] = entry
			return seq, false
		}
		if len(j.entries) >= j.maxEntries {
			return seq, true
		}
		j.dedup[key] = len(j.entries)
		j.entries = append(j.entries, entry)
		return seq, false
	}

	if len(j.entries) >= j.maxEntries {
		return seq, true
	}
	j.entries = append(j.entries, entry)
	return seq, false
}

// Snapshot serializes state into the journal's current snapshot, clearing
// accumulated entries and the dedup index (snapshot boundaries are never
// crossed by a Record reduction). Subsequent Records are reduced against
// this new boundary.
func (j *Journal) Snapshot(state midistate.PortState) Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshotLocked(state)
}

func (j *Journal) snapshotLocked(state midistate.PortState) Snapshot {
	snap := Snapshot{Epoch: j.epoch, Seq: j.seq, State: state}
	j.lastSnapshot = snap
	j.entries = j.entries[:0]
	j.dedup = make(map[dedupKey]int)
	return snap
}

// PromoteToSnapshot is the overflow policy: it takes a fresh snapshot from
// state and is called by the broadcaster when Record reports overflowed.
func (j *Journal) PromoteToSnapshot(state midistate.PortState) Snapshot {
	return j.Snapshot(state)
}

// Bump increments the epoch (host restart) and clears all journal state,
// since sequence numbers reset and old entries are no longer
// reconcilable against the new epoch.
func (j *Journal) Bump(newEpoch uint32, state midistate.PortState) Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.epoch = newEpoch
	j.seq = 0
	return j.snapshotLocked(state)
}

// ReplaySince returns the minimum reconciliation payload for a receiver
// whose last-acknowledged (epoch, seq) is known: either a full snapshot
// (when the epoch differs, or the requested seq predates what the
// journal can reconstruct incrementally), or the ordered set of entries
// recorded after seq within the current epoch. The call is a pure read —
// invoking it twice with the same arguments returns equal results.
func (j *Journal) ReplaySince(epoch, seq uint32) (snapshot *Snapshot, events []Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if epoch != j.epoch || seq < j.lastSnapshot.Seq {
		snap := j.lastSnapshot
		return &snap, nil
	}

	out := make([]Entry, 0, len(j.entries))
	for _, e := range j.entries {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return nil, out
}

// Epoch returns the journal's current epoch.
func (j *Journal) Epoch() uint32 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.epoch
}

// Len returns the number of entries currently held since the last
// snapshot.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}
