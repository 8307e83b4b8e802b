// Package client implements the client receiver and failover monitor
// (§4.9): dual-stream subscription, active-stream selection, a jitter
// buffer, cross-stream duplicate suppression, and the reconciliation
// sequence that follows a stream switch.
package client

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the per-virtual-device failover state machine from §4.12's
// "State machines" section.
type State int

const (
	StateHealthy State = iota
	StateSwitching
	StateReconciling
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateSwitching:
		return "switching"
	case StateReconciling:
		return "reconciling"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// DefaultMissThreshold is MISS_THRESHOLD from §4.9.
const DefaultMissThreshold = 3

// DefaultSwitchLockout is SWITCH_LOCKOUT_MS's default.
const DefaultSwitchLockout = 2 * time.Second

// DefaultDegradedAfter is how long both streams must stay dark before the
// monitor reports Degraded (§4.12 "any state -> Degraded if both streams
// dark > 50ms").
const DefaultDegradedAfter = 50 * time.Millisecond

const (
	streamPrimary = 0
	streamStandby = 1
)

// Monitor tracks heartbeat receipt on both streams and decides which one
// is active, per the selection function in §4.9. It holds no socket —
// the receiver feeds it heartbeat arrivals and reads back its decisions.
type Monitor struct {
	log *zap.Logger

	missThreshold int
	intervalMS    int
	lockout       time.Duration
	degradedAfter time.Duration

	mu           sync.Mutex
	active       int
	state        State
	lastHB       [2]time.Time
	haveHB       [2]bool
	lastSwitch   time.Time
	haveSwitched bool

	onSwitch func(newActive int)
}

// NewMonitor returns a Monitor. intervalMS is the heartbeat cadence
// (HEARTBEAT_INTERVAL_MS); missThreshold <= 0 selects DefaultMissThreshold,
// lockout <= 0 selects DefaultSwitchLockout.
func NewMonitor(intervalMS, missThreshold int, lockout time.Duration, log *zap.Logger) *Monitor {
	if missThreshold <= 0 {
		missThreshold = DefaultMissThreshold
	}
	if lockout <= 0 {
		lockout = DefaultSwitchLockout
	}
	return &Monitor{
		log:           log.Named("failover"),
		missThreshold: missThreshold,
		intervalMS:    intervalMS,
		lockout:       lockout,
		degradedAfter: DefaultDegradedAfter,
		active:        streamPrimary,
		state:         StateHealthy,
	}
}

// SetSwitchCallback registers fn, called (outside the lock) whenever
// Evaluate decides to switch the active stream.
func (m *Monitor) SetSwitchCallback(fn func(newActive int)) {
	m.mu.Lock()
	m.onSwitch = fn
	m.mu.Unlock()
}

// RecordHeartbeat marks stream (0=primary, 1=standby) as having just
// produced a heartbeat.
func (m *Monitor) RecordHeartbeat(stream int, now time.Time) {
	m.mu.Lock()
	m.lastHB[stream] = now
	m.haveHB[stream] = true
	m.mu.Unlock()
}

func (m *Monitor) withinWindow(stream int, now time.Time) bool {
	if !m.haveHB[stream] {
		return false
	}
	window := time.Duration(m.missThreshold*m.intervalMS) * time.Millisecond
	return now.Sub(m.lastHB[stream]) <= window
}

// Evaluate runs the selection function in §4.9, to be called on every
// received heartbeat and on a periodic tick. It returns the resulting
// state.
func (m *Monitor) Evaluate(now time.Time) State {
	m.mu.Lock()

	activeOK := m.withinWindow(m.active, now)
	otherOK := m.withinWindow(1-m.active, now)

	if activeOK {
		if m.state != StateSwitching && m.state != StateReconciling {
			m.state = StateHealthy
		}
		result := m.state
		m.mu.Unlock()
		return result
	}

	if otherOK && m.canSwitch(now) {
		newActive := 1 - m.active
		m.active = newActive
		m.lastSwitch = now
		m.haveSwitched = true
		m.state = StateSwitching
		cb := m.onSwitch
		m.mu.Unlock()

		m.log.Warn("active stream missed, switching", zap.Int("new_active", newActive))
		if cb != nil {
			cb(newActive)
		}
		return StateSwitching
	}

	// Neither stream within window, or locked out of switching: degraded
	// once both have been dark past degradedAfter.
	dark := func(s int) bool {
		return !m.haveHB[s] || now.Sub(m.lastHB[s]) > m.degradedAfter
	}
	if !activeOK && !otherOK && dark(m.active) && dark(1-m.active) {
		m.state = StateDegraded
		result := m.state
		m.mu.Unlock()
		return result
	}

	result := m.state
	m.mu.Unlock()
	return result
}

func (m *Monitor) canSwitch(now time.Time) bool {
	if !m.haveSwitched {
		return true
	}
	return now.Sub(m.lastSwitch) >= m.lockout
}

// AckANOEmitted transitions Switching -> Reconciling once the receiver
// has emitted All Notes Off on every channel (§4.9 step 2).
func (m *Monitor) AckANOEmitted() {
	m.mu.Lock()
	if m.state == StateSwitching {
		m.state = StateReconciling
	}
	m.mu.Unlock()
}

// AckReplayDrained transitions Reconciling -> Healthy(active=new) once
// reconciliation has finished (§4.9 step 3-4). No snapshot crosses the
// wire: Receiver.reconcile calls this right after it has replayed its own
// locally tracked channel state into the device, before any message from
// the new stream is forwarded.
func (m *Monitor) AckReplayDrained() {
	m.mu.Lock()
	if m.state == StateReconciling {
		m.state = StateHealthy
	}
	m.mu.Unlock()
}

// Active returns the currently selected stream (0 or 1).
func (m *Monitor) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// State returns the current failover state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
