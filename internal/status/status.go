// Package status assembles the read-only snapshot and exposes the command
// set §6.3 names as "exposed to external collaborators": a status
// snapshot, a handful of commands, and (via internal/events) an event
// stream. This package builds the Go-native surface only; an external
// REST/CLI/tray layer is expected to wrap it, per SPEC_FULL.md's note that
// we do not build that wrapper ourselves.
package status

import (
	"sync"
	"time"
)

// HealthColor is the user-visible, traffic-light health summary from §7:
// green both streams live, amber one stream dark or loss above threshold,
// red both dark.
type HealthColor int

const (
	Green HealthColor = iota
	Amber
	Red
)

func (h HealthColor) String() string {
	switch h {
	case Green:
		return "green"
	case Amber:
		return "amber"
	case Red:
		return "red"
	default:
		return "unknown"
	}
}

// LossWarnThreshold is the packet-loss percentage above which a live
// stream still degrades the health color to amber, per §7.
const LossWarnThreshold = 0.1

// StreamStats is the rx rate and loss percentage for one of the two
// multicast streams.
type StreamStats struct {
	Live          bool    `json:"live"`
	RxRate        float64 `json:"rx_rate"`
	LossPercent   float64 `json:"loss_percent"`
}

// Snapshot is §6.3's read-only status shape.
type Snapshot struct {
	ActiveHost     int         `json:"active_host"`
	StandbyHealthy bool        `json:"standby_healthy"`
	SwitchCount    uint64      `json:"switch_count"`
	LastSwitchAt   time.Time   `json:"last_switch_at"`
	Streams        [2]StreamStats `json:"streams"`
	FocusHolder    uint64      `json:"focus_holder"`
	FocusHeld      bool        `json:"focus_held"`
	HealthScore    float64     `json:"health_score"`
	Health         HealthColor `json:"health"`
}

// HealthOf derives the traffic-light color from the two streams' live/loss
// state, per §7's stated rule. health_score (§9's open question: an
// opaque scalar fed by observability, weighting left undefined in the
// source) is accepted as already-computed rather than derived here.
func HealthOf(streams [2]StreamStats) HealthColor {
	liveCount := 0
	worstLoss := 0.0
	for _, s := range streams {
		if s.Live {
			liveCount++
			if s.LossPercent > worstLoss {
				worstLoss = s.LossPercent
			}
		}
	}
	switch {
	case liveCount == 0:
		return Red
	case liveCount < len(streams):
		return Amber
	case worstLoss > LossWarnThreshold:
		return Amber
	default:
		return Green
	}
}

// FocusSource is satisfied by *internal/focus.Controller.
type FocusSource interface {
	Holder() (clientID uint64, ok bool)
}

// Collector accumulates the pieces of a Snapshot as they're reported by
// the components that know them (redundancy/client switch callbacks, the
// receiver's per-stream rx/duplicate counters, the focus controller's
// holder) and assembles them into a Snapshot on demand, generalized from
// one flat status map into a typed, multi-source Snapshot since no single
// component here owns every field §6.3 needs.
type Collector struct {
	mu sync.Mutex

	activeHost     int
	standbyHealthy bool
	switchCount    uint64
	lastSwitchAt   time.Time
	streams        [2]streamCounters
	healthScore    float64

	focus FocusSource
}

type streamCounters struct {
	live        bool
	rxCount     uint64
	dupCount    uint64
	windowStart time.Time
}

// NewCollector returns an empty Collector. Attach a focus source with
// SetFocusSource once the host-side focus.Controller exists.
func NewCollector() *Collector {
	now := time.Now()
	c := &Collector{}
	c.streams[0].windowStart = now
	c.streams[1].windowStart = now
	return c
}

// SetFocusSource attaches the focus controller whose Holder() feeds
// FocusHolder/FocusHeld.
func (c *Collector) SetFocusSource(f FocusSource) {
	c.mu.Lock()
	c.focus = f
	c.mu.Unlock()
}

// ObserveSwitch records a switch to newActive. It has the callback shape
// of internal/client.Monitor.SetSwitchCallback; the callback of
// internal/redundancy.Controller.SetSwitchCallback also receives a
// reason, which ObserveSwitch takes no parameter for.
func (c *Collector) ObserveSwitch(newActive int) {
	c.mu.Lock()
	c.activeHost = newActive
	c.switchCount++
	c.lastSwitchAt = time.Now()
	c.mu.Unlock()
}

// SetStandbyHealthy records whether the non-active device/stream is
// currently usable.
func (c *Collector) SetStandbyHealthy(healthy bool) {
	c.mu.Lock()
	c.standbyHealthy = healthy
	c.mu.Unlock()
}

// SetHealthScore records the opaque, observability-computed health score
// (§9: weighting across rx rate/loss/CPU/temp is left to observability,
// not this package).
func (c *Collector) SetHealthScore(score float64) {
	c.mu.Lock()
	c.healthScore = score
	c.mu.Unlock()
}

// RecordRx implements internal/client.StatsSink: one accepted message on
// stream idx.
func (c *Collector) RecordRx(stream int) {
	c.mu.Lock()
	c.streams[stream].live = true
	c.streams[stream].rxCount++
	c.mu.Unlock()
}

// RecordDuplicate implements internal/client.StatsSink: one
// cross-stream duplicate suppressed on stream idx. A suppressed duplicate
// still proves the stream is alive.
func (c *Collector) RecordDuplicate(stream int) {
	c.mu.Lock()
	c.streams[stream].live = true
	c.streams[stream].dupCount++
	c.mu.Unlock()
}

// MarkStreamDark records that stream idx has gone dark (socket error or
// heartbeat-miss driven), used by Snapshot's health computation.
func (c *Collector) MarkStreamDark(stream int) {
	c.mu.Lock()
	c.streams[stream].live = false
	c.mu.Unlock()
}

// resetWindow returns and clears the rx/duplicate counts accumulated
// since the last call, along with the elapsed window — the basis for a
// rate-per-second figure. Must be called with c.mu held.
//
// lossPercent here is the cross-stream duplicate-suppression rate, not a
// sequence-gap-derived loss figure — this wire format's dedup window
// catches a stream repeating what the other already delivered, not a gap
// in a single stream's own sequence. Treated as the best available proxy
// until a per-stream sequence-gap counter exists.
func (c *Collector) resetWindow(idx int, now time.Time) (rxRate, lossPercent float64) {
	s := &c.streams[idx]
	elapsed := now.Sub(s.windowStart).Seconds()
	total := s.rxCount + s.dupCount
	if elapsed > 0 {
		rxRate = float64(s.rxCount) / elapsed
	}
	if total > 0 {
		lossPercent = float64(s.dupCount) / float64(total) * 100
	}
	s.rxCount, s.dupCount = 0, 0
	s.windowStart = now
	return rxRate, lossPercent
}

// Snapshot assembles the current Snapshot, rolling over each stream's
// rx/loss counters to a fresh measurement window.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var streams [2]StreamStats
	for i := range streams {
		rxRate, lossPercent := c.resetWindow(i, now)
		streams[i] = StreamStats{Live: c.streams[i].live, RxRate: rxRate, LossPercent: lossPercent}
	}

	snap := Snapshot{
		ActiveHost:     c.activeHost,
		StandbyHealthy: c.standbyHealthy,
		SwitchCount:    c.switchCount,
		LastSwitchAt:   c.lastSwitchAt,
		Streams:        streams,
		HealthScore:    c.healthScore,
	}
	snap.Health = HealthOf(streams)

	if c.focus != nil {
		holder, ok := c.focus.Holder()
		snap.FocusHolder = holder
		snap.FocusHeld = ok
	}
	return snap
}
