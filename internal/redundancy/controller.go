// Package redundancy implements the input-redundancy controller (§4.8):
// it tracks the health of the two source MIDI devices a host bridges and
// decides, by a fixed priority order, when to switch which one feeds the
// broadcaster.
package redundancy

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/midinet-audio/midinet/internal/config"
)

// DeviceHealth mirrors a source device's connection state as reported by
// the platform MIDI driver.
type DeviceHealth int

const (
	HealthUnknown DeviceHealth = iota
	HealthActive
	HealthReconnecting
	HealthError
	HealthDisconnected
)

func (h DeviceHealth) String() string {
	switch h {
	case HealthActive:
		return "active"
	case HealthReconnecting:
		return "reconnecting"
	case HealthError:
		return "error"
	case HealthDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// SwitchReason records why a switch happened, per the priority order in
// §4.8.
type SwitchReason int

const (
	ReasonManual SwitchReason = iota
	ReasonActiveError
	ReasonActiveDisconnected
	ReasonActivityTimeout
)

func (r SwitchReason) String() string {
	switch r {
	case ReasonManual:
		return "manual"
	case ReasonActiveError:
		return "active_error"
	case ReasonActiveDisconnected:
		return "active_disconnected"
	case ReasonActivityTimeout:
		return "activity_timeout"
	default:
		return "unknown"
	}
}

const (
	deviceActive = 0
	deviceBackup = 1
)

// DefaultActivityTimeout is ACTIVITY_TIMEOUT_MS's default from §4.8.
const DefaultActivityTimeout = 30 * time.Second

// Controller tracks the active/backup device pair and arbitrates
// switches. It is safe for concurrent use: ReportHealth/ReportActivity
// are called from the device-driver goroutines, Tick/TriggerManual from
// the host's cooperative task loop.
type Controller struct {
	log *zap.Logger

	mu sync.Mutex

	autoSwitchEnabled bool
	lockout           time.Duration
	activityTimeout   time.Duration

	active       int
	health       [2]DeviceHealth
	lastActivity [2]time.Time
	lastSwitch   time.Time
	haveSwitched bool

	onSwitch func(newActive int, reason SwitchReason)
}

// New returns a Controller configured from cfg. activityTimeout <= 0
// selects DefaultActivityTimeout.
func New(cfg config.FailoverConfig, activityTimeout time.Duration, log *zap.Logger) *Controller {
	if activityTimeout <= 0 {
		activityTimeout = DefaultActivityTimeout
	}
	now := time.Now()
	return &Controller{
		log:               log.Named("redundancy"),
		autoSwitchEnabled: cfg.AutoEnabled,
		lockout:           time.Duration(cfg.LockoutSeconds) * time.Second,
		activityTimeout:   activityTimeout,
		active:            deviceActive,
		lastActivity:      [2]time.Time{now, now},
	}
}

// SetSwitchCallback registers fn to be called (outside the controller's
// own lock) whenever a switch is performed.
func (c *Controller) SetSwitchCallback(fn func(newActive int, reason SwitchReason)) {
	c.mu.Lock()
	c.onSwitch = fn
	c.mu.Unlock()
}

// SetAutoFailover toggles whether Tick's activity-timeout criterion
// (switch priority 3, §4.8) is allowed to fire. Manual and
// active-device-error switches always stay enabled regardless — this
// only gates the lowest-priority automatic trigger, matching §6.3's
// set_auto_failover(bool) command.
func (c *Controller) SetAutoFailover(enabled bool) {
	c.mu.Lock()
	c.autoSwitchEnabled = enabled
	c.mu.Unlock()
}

// Active returns the currently active device index (0 or 1).
func (c *Controller) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// ReportHealth records a health transition for device idx (0=active-slot
// device, 1=backup-slot device — these are device *roles*, not which one
// is currently live). An active-device Error or Disconnect is priority 2
// in §4.8's switch order: it's applied immediately if the other device is
// healthy, bypassing the lockout-respecting auto path but still honoring
// lockout itself.
func (c *Controller) ReportHealth(idx int, h DeviceHealth) {
	c.mu.Lock()
	c.health[idx] = h
	active := c.active
	other := 1 - active
	shouldSwitch := idx == active && (h == HealthError || h == HealthDisconnected) && c.health[other] == HealthActive
	reason := ReasonActiveError
	if h == HealthDisconnected {
		reason = ReasonActiveDisconnected
	}
	c.mu.Unlock()

	if shouldSwitch {
		c.trySwitch(reason)
	}
}

// ReportActivity records that device idx produced MIDI data just now,
// resetting its activity-timeout clock.
func (c *Controller) ReportActivity(idx int) {
	c.mu.Lock()
	c.lastActivity[idx] = time.Now()
	c.mu.Unlock()
}

// Tick evaluates the lowest-priority switch criterion — auto-switch on
// activity timeout — and should be called periodically (e.g. every
// activityTimeout/2) by the host's task loop.
func (c *Controller) Tick(now time.Time) {
	c.mu.Lock()
	active := c.active
	other := 1 - active
	timedOut := now.Sub(c.lastActivity[active]) >= c.activityTimeout
	eligible := c.autoSwitchEnabled && timedOut && c.health[other] == HealthActive
	c.mu.Unlock()

	if eligible {
		c.trySwitch(ReasonActivityTimeout)
	}
}

// TriggerManual performs an operator/API/MIDI/OSC-requested switch. It is
// the highest-priority trigger in §4.8 but still respects the lockout —
// a burst of manual triggers can't oscillate the input any faster than
// an automatic one.
func (c *Controller) TriggerManual() bool {
	return c.trySwitch(ReasonManual)
}

func (c *Controller) trySwitch(reason SwitchReason) bool {
	c.mu.Lock()
	if c.haveSwitched && time.Since(c.lastSwitch) < c.lockout {
		c.mu.Unlock()
		return false
	}
	newActive := 1 - c.active
	c.active = newActive
	c.lastSwitch = time.Now()
	c.haveSwitched = true
	cb := c.onSwitch
	c.mu.Unlock()

	c.log.Info("input switch",
		zap.Int("new_active", newActive),
		zap.String("reason", reason.String()),
	)
	if cb != nil {
		cb(newActive, reason)
	}
	return true
}

// Health returns the last-reported health of device idx.
func (c *Controller) Health(idx int) DeviceHealth {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.health[idx]
}
