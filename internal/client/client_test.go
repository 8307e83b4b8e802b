package client

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/midinet-audio/midinet/internal/protocol"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func noteOn(ch uint8) protocol.MidiMessage {
	return protocol.MidiMessage{Channel: ch, Kind: protocol.NoteOn, Bytes: []byte{60, 100}}
}

// fakeDevice records what reconcile/forward send it, for asserting
// reconciliation's replay sequence without a real virtual port.
type fakeDevice struct {
	written  []protocol.MidiMessage
	anoCount int
}

func (d *fakeDevice) Write(msg protocol.MidiMessage) error {
	d.written = append(d.written, msg)
	return nil
}

func (d *fakeDevice) AllNotesOff() error {
	d.anoCount++
	return nil
}

func TestMonitorStaysHealthyWhileActiveStreamArrivesOnTime(t *testing.T) {
	m := NewMonitor(3, 3, 2*time.Second, testLogger())
	now := time.Unix(0, 0)
	m.RecordHeartbeat(streamPrimary, now)

	if got := m.Evaluate(now.Add(time.Millisecond)); got != StateHealthy {
		t.Fatalf("state = %v, want healthy", got)
	}
	if m.Active() != streamPrimary {
		t.Fatalf("active = %d, want primary", m.Active())
	}
}

func TestMonitorSwitchesWhenActiveStreamMissesThreshold(t *testing.T) {
	m := NewMonitor(3, 3, 2*time.Second, testLogger())
	now := time.Unix(0, 0)
	m.RecordHeartbeat(streamPrimary, now)
	m.RecordHeartbeat(streamStandby, now)

	var switchedTo = -1
	m.SetSwitchCallback(func(newActive int) { switchedTo = newActive })

	// Active stream goes dark past MISS_THRESHOLD*INTERVAL_MS (9ms); standby
	// stays within its own window.
	later := now.Add(20 * time.Millisecond)
	m.RecordHeartbeat(streamStandby, later)

	got := m.Evaluate(later)
	if got != StateSwitching {
		t.Fatalf("state = %v, want switching", got)
	}
	if m.Active() != streamStandby {
		t.Fatalf("active = %d, want standby", m.Active())
	}
	if switchedTo != streamStandby {
		t.Fatalf("callback invoked with %d, want standby", switchedTo)
	}
}

func TestMonitorLockoutBlocksImmediateSecondSwitch(t *testing.T) {
	m := NewMonitor(3, 3, 2*time.Second, testLogger())
	now := time.Unix(0, 0)
	m.RecordHeartbeat(streamPrimary, now)
	m.RecordHeartbeat(streamStandby, now)

	t1 := now.Add(20 * time.Millisecond)
	m.RecordHeartbeat(streamStandby, t1)
	if got := m.Evaluate(t1); got != StateSwitching {
		t.Fatalf("first switch: state = %v, want switching", got)
	}
	if m.Active() != streamStandby {
		t.Fatalf("active = %d, want standby", m.Active())
	}

	// Standby (now active) goes dark while primary recovers; a second
	// switch is otherwise eligible but must be blocked by the lockout.
	t2 := t1.Add(15 * time.Millisecond)
	m.RecordHeartbeat(streamPrimary, t2)
	m.Evaluate(t2)
	if m.Active() != streamStandby {
		t.Fatalf("active = %d, want standby (still locked out)", m.Active())
	}
}

func TestMonitorReportsDegradedWhenBothStreamsDark(t *testing.T) {
	m := NewMonitor(3, 3, 2*time.Second, testLogger())
	now := time.Unix(0, 0)
	m.RecordHeartbeat(streamPrimary, now)
	m.RecordHeartbeat(streamStandby, now)

	later := now.Add(time.Second)
	if got := m.Evaluate(later); got != StateDegraded {
		t.Fatalf("state = %v, want degraded", got)
	}
}

func TestMonitorAckSequenceTransitionsSwitchingToHealthy(t *testing.T) {
	m := NewMonitor(3, 3, 2*time.Second, testLogger())
	now := time.Unix(0, 0)
	m.RecordHeartbeat(streamPrimary, now)
	m.RecordHeartbeat(streamStandby, now)

	later := now.Add(20 * time.Millisecond)
	m.RecordHeartbeat(streamStandby, later)
	if got := m.Evaluate(later); got != StateSwitching {
		t.Fatalf("state = %v, want switching", got)
	}

	m.AckANOEmitted()
	if got := m.State(); got != StateReconciling {
		t.Fatalf("state after AckANOEmitted = %v, want reconciling", got)
	}

	m.AckReplayDrained()
	if got := m.State(); got != StateHealthy {
		t.Fatalf("state after AckReplayDrained = %v, want healthy", got)
	}
}

func TestDupFilterSuppressesWithinWindow(t *testing.T) {
	d := NewDupFilter(50 * time.Millisecond)
	now := time.Unix(0, 0)
	msg := noteOn(1)

	if d.Seen(now, 1000, msg) {
		t.Fatal("first observation should not be a duplicate")
	}
	if !d.Seen(now.Add(10*time.Millisecond), 1000, msg) {
		t.Fatal("second observation within window should be a duplicate")
	}
}

func TestDupFilterAllowsAfterWindowExpires(t *testing.T) {
	d := NewDupFilter(50 * time.Millisecond)
	now := time.Unix(0, 0)
	msg := noteOn(1)

	d.Seen(now, 1000, msg)
	if d.Seen(now.Add(100*time.Millisecond), 1000, msg) {
		t.Fatal("observation after window expiry should not be treated as a duplicate")
	}
}

func TestDupFilterDistinguishesDifferentMessages(t *testing.T) {
	d := NewDupFilter(50 * time.Millisecond)
	now := time.Unix(0, 0)

	d.Seen(now, 1000, noteOn(1))
	if d.Seen(now, 1000, noteOn(2)) {
		t.Fatal("messages on different channels should not be treated as duplicates")
	}
}

func TestJitterBufferZeroDepthReleasesImmediately(t *testing.T) {
	j := NewJitterBuffer(0)
	now := time.Unix(0, 0)
	j.Add(1, noteOn(1), now)

	out := j.Release(now)
	if len(out) != 1 {
		t.Fatalf("released %d messages, want 1", len(out))
	}
}

func TestJitterBufferReleasesInSeqOrder(t *testing.T) {
	j := NewJitterBuffer(10 * time.Millisecond)
	now := time.Unix(0, 0)
	j.Add(3, noteOn(3), now)
	j.Add(1, noteOn(1), now)
	j.Add(2, noteOn(2), now)

	out := j.Release(now.Add(20 * time.Millisecond))
	if len(out) != 3 {
		t.Fatalf("released %d messages, want 3", len(out))
	}
	if out[0].Channel != 1 || out[1].Channel != 2 || out[2].Channel != 3 {
		t.Fatalf("released out of order: %+v", out)
	}
}

func TestJitterBufferSuppressesLateDuplicateSeq(t *testing.T) {
	j := NewJitterBuffer(10 * time.Millisecond)
	now := time.Unix(0, 0)
	j.Add(1, noteOn(1), now)
	j.Add(2, noteOn(2), now)

	first := j.Release(now.Add(20 * time.Millisecond))
	if len(first) != 2 {
		t.Fatalf("released %d messages, want 2", len(first))
	}

	// A late duplicate of seq 1 arrives on the other stream after the
	// switch; it must not be released a second time.
	j.Add(1, noteOn(1), now.Add(25*time.Millisecond))
	second := j.Release(now.Add(40 * time.Millisecond))
	if len(second) != 0 {
		t.Fatalf("released %d messages, want 0 (late duplicate)", len(second))
	}
}

func TestJitterBufferHoldsUntilDepthElapses(t *testing.T) {
	j := NewJitterBuffer(10 * time.Millisecond)
	now := time.Unix(0, 0)
	j.Add(1, noteOn(1), now)

	if out := j.Release(now.Add(2 * time.Millisecond)); len(out) != 0 {
		t.Fatalf("released %d messages before depth elapsed, want 0", len(out))
	}
	if j.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", j.Pending())
	}
	if out := j.Release(now.Add(11 * time.Millisecond)); len(out) != 1 {
		t.Fatalf("released %d messages after depth elapsed, want 1", len(out))
	}
}

// TestFailoverMidSequenceScenario exercises the literal "failover during
// an active note sequence" scenario: the client is receiving from
// primary, primary goes dark, the client switches to standby, and the
// combination of dedup + jitter buffering yields exactly the expected
// note events with no duplicates and no drops.
func TestFailoverMidSequenceScenario(t *testing.T) {
	fake := &fakeDevice{}
	m := NewMonitor(3, 3, 2*time.Second, testLogger())
	r := &Receiver{
		log:     testLogger(),
		monitor: m,
		dedup:   NewDupFilter(50 * time.Millisecond),
		jitter:  NewJitterBuffer(0),
		device:  fake,
	}

	base := time.Unix(0, 0)
	m.RecordHeartbeat(streamPrimary, base)
	m.RecordHeartbeat(streamStandby, base)

	// Primary delivers one message before going dark; standby then
	// delivers seq 2 and 3, which primary never carried, simulating the
	// handoff boundary. Every accepted message is forwarded, which also
	// keeps r.state's held-note tracking current.
	ingest := func(stream int, seq uint32, m2 protocol.MidiMessage, ts int64, now time.Time) {
		if stream != m.Active() {
			return
		}
		if r.dedup.Seen(now, ts, m2) {
			return
		}
		r.jitter.Add(seq, m2, now)
	}

	t0 := base.Add(1 * time.Millisecond)
	ingest(streamPrimary, 1, noteOn(1), 1000, t0)
	for _, msg := range r.jitter.Release(t0) {
		r.forward(msg)
	}
	if len(fake.written) != 1 {
		t.Fatalf("written %d messages before switch, want 1", len(fake.written))
	}

	// Primary goes dark; standby keeps heartbeating, forcing a switch.
	tSwitch := base.Add(20 * time.Millisecond)
	m.RecordHeartbeat(streamStandby, tSwitch)
	if got := m.Evaluate(tSwitch); got != StateSwitching {
		t.Fatalf("state = %v, want switching", got)
	}

	// §8 scenario 2: the virtual device must see All Notes Off, then
	// reconciliation rehydrating the note that was still held (note 60 on
	// channel 1), before anything from the newly-active stream resumes.
	r.reconcile()
	if fake.anoCount != 1 {
		t.Fatalf("AllNotesOff called %d times, want 1", fake.anoCount)
	}
	if m.State() != StateHealthy {
		t.Fatalf("state after reconcile = %v, want healthy", m.State())
	}
	if len(fake.written) != 2 {
		t.Fatalf("written %d messages after reconcile, want 2 (original + rehydrated)", len(fake.written))
	}
	rehydrated := fake.written[1]
	if rehydrated.Kind != protocol.NoteOn || rehydrated.Channel != 1 || rehydrated.Bytes[0] != 60 {
		t.Fatalf("rehydrated message = %+v, want NoteOn channel 1 note 60", rehydrated)
	}

	// Standby delivers seq 2 and 3 with timestamps primary never sent, so
	// neither hashes like an earlier message (same timestamp+bytes) and
	// the dedup filter lets both through.
	t1 := tSwitch.Add(1 * time.Millisecond)
	ingest(streamStandby, 2, noteOn(2), 2000, t1)
	ingest(streamStandby, 3, noteOn(3), 3000, t1)

	out := r.jitter.Release(t1)
	if len(out) != 2 {
		t.Fatalf("released %d messages, want 2", len(out))
	}
	for _, msg := range out {
		r.forward(msg)
	}
	if len(fake.written) != 4 {
		t.Fatalf("written %d messages total, want 4 (1 before switch, 1 rehydrated, 2 after)", len(fake.written))
	}
}

// TestLoopbackSuppressionScenario exercises the literal "same message
// arrives on both streams" scenario: a duplicate with an identical
// timestamp and payload, observed on the stream that is not currently
// active, must not reach the jitter buffer.
func TestLoopbackSuppressionScenario(t *testing.T) {
	m := NewMonitor(3, 3, 2*time.Second, testLogger())
	d := NewDupFilter(50 * time.Millisecond)
	j := NewJitterBuffer(0)

	now := time.Unix(0, 0)
	m.RecordHeartbeat(streamPrimary, now)

	msg := noteOn(5)
	if active := m.Active(); active == streamPrimary {
		if !d.Seen(now, 9000, msg) {
			j.Add(1, msg, now)
		}
	}
	// The sibling host rebroadcasts the exact same event on the standby
	// group a moment later; the active stream is still primary so it's
	// filtered at the stream-selection stage before dedup even runs.
	if active := m.Active(); active == streamStandby {
		t.Fatal("active stream should still be primary")
	}

	out := j.Release(now)
	if len(out) != 1 {
		t.Fatalf("released %d messages, want 1", len(out))
	}

	// Now simulate primary itself re-sending the same (timestamp, bytes)
	// pair, which dedup must catch directly.
	if !d.Seen(now.Add(time.Millisecond), 9000, msg) {
		t.Fatal("identical (timestamp, message) pair should be suppressed as a duplicate")
	}
}
