package status

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/midinet-audio/midinet/internal/events"
	"github.com/midinet-audio/midinet/internal/pipeline"
)

// SwitchTrigger is satisfied by *internal/redundancy.Controller.
type SwitchTrigger interface {
	TriggerManual() bool
}

// AutoSwitchSetting is satisfied by *internal/redundancy.Controller's
// runtime auto-failover toggle.
type AutoSwitchSetting interface {
	SetAutoFailover(enabled bool)
}

// DesignatedPrimarySetter is satisfied by whatever tracks which host is
// configured as primary (a config-reload hook, not runtime state — per
// §4.12, designated_primary is configuration, not state).
type DesignatedPrimarySetter interface {
	SetDesignatedPrimary(hostID uint16) error
}

// Commands wires §6.3's six exported commands to the concrete
// controllers composition (cmd/midinetd) constructs. Every field is
// optional; a nil dependency makes its command return an error instead
// of panicking, so a client-side process (which has no redundancy
// controller) can still expose the commands that make sense for it.
type Commands struct {
	log *zap.Logger

	redundancy SwitchTrigger
	autoSwitch AutoSwitchSetting
	focus      *focusCommands
	primary    DesignatedPrimarySetter
	pipelines  *pipeline.Publisher
	bus        *events.Bus
}

type focusCommands struct {
	claim   func(clientID uint64) bool
	release func(clientID uint64)
}

// NewCommands returns an empty Commands; use the With* setters to attach
// the controllers this process actually owns.
func NewCommands(log *zap.Logger) *Commands {
	return &Commands{log: log.Named("commands")}
}

func (c *Commands) WithRedundancy(t SwitchTrigger, a AutoSwitchSetting) *Commands {
	c.redundancy = t
	c.autoSwitch = a
	return c
}

func (c *Commands) WithFocus(claim func(clientID uint64) bool, release func(clientID uint64)) *Commands {
	c.focus = &focusCommands{claim: claim, release: release}
	return c
}

func (c *Commands) WithDesignatedPrimary(d DesignatedPrimarySetter) *Commands {
	c.primary = d
	return c
}

func (c *Commands) WithPipeline(p *pipeline.Publisher) *Commands {
	c.pipelines = p
	return c
}

func (c *Commands) WithEventBus(b *events.Bus) *Commands {
	c.bus = b
	return c
}

// TriggerFailover performs an immediate manual switch, subject to the
// redundancy controller's own lockout.
func (c *Commands) TriggerFailover() error {
	if c.redundancy == nil {
		return fmt.Errorf("status: no redundancy controller attached to this process")
	}
	switched := c.redundancy.TriggerManual()
	c.log.Info("trigger_failover command", zap.Bool("switched", switched))
	if c.bus != nil && switched {
		c.bus.Publish(events.KindFailover, events.Failover{Reason: "manual_command"})
	}
	if !switched {
		return fmt.Errorf("status: failover trigger denied (lockout in effect)")
	}
	return nil
}

// SetAutoFailover toggles automatic activity-timeout-driven switching.
func (c *Commands) SetAutoFailover(enabled bool) error {
	if c.autoSwitch == nil {
		return fmt.Errorf("status: no auto-failover setting attached to this process")
	}
	c.autoSwitch.SetAutoFailover(enabled)
	c.log.Info("set_auto_failover command", zap.Bool("enabled", enabled))
	return nil
}

// ClaimFocus requests the focus lease for clientID.
func (c *Commands) ClaimFocus(clientID uint64) error {
	if c.focus == nil {
		return fmt.Errorf("status: no focus controller attached to this process")
	}
	granted := c.focus.claim(clientID)
	c.log.Info("claim_focus command", zap.Uint64("client_id", clientID), zap.Bool("granted", granted))
	if c.bus != nil {
		kind := events.KindFocusDenied
		if granted {
			kind = events.KindFocusGranted
		}
		c.bus.Publish(kind, events.Focus{ClientID: clientID})
	}
	if !granted {
		return fmt.Errorf("status: focus claim denied for client %d", clientID)
	}
	return nil
}

// ReleaseFocus relinquishes clientID's focus lease, if held.
func (c *Commands) ReleaseFocus(clientID uint64) error {
	if c.focus == nil {
		return fmt.Errorf("status: no focus controller attached to this process")
	}
	c.focus.release(clientID)
	c.log.Info("release_focus command", zap.Uint64("client_id", clientID))
	if c.bus != nil {
		c.bus.Publish(events.KindFocusReleased, events.Focus{ClientID: clientID})
	}
	return nil
}

// SetDesignatedPrimary updates which host ID is configured as primary.
// Per §4.12, this is a configuration change, not runtime state — it
// takes effect on next restart/reload, not mid-session.
func (c *Commands) SetDesignatedPrimary(hostID uint16) error {
	if c.primary == nil {
		return fmt.Errorf("status: no designated-primary setter attached to this process")
	}
	if err := c.primary.SetDesignatedPrimary(hostID); err != nil {
		return fmt.Errorf("status: set designated primary: %w", err)
	}
	c.log.Info("set_designated_primary command", zap.Uint16("host_id", hostID))
	return nil
}

// ReloadPipeline hot-swaps the transform pipeline. p is built by the
// caller (typically from parsed config.StageConfig entries) using
// internal/pipeline's stage constructors — this command is just the
// publish half of the read-copy-update §4.4/§9 describes.
func (c *Commands) ReloadPipeline(p *pipeline.Pipeline) (uint64, error) {
	if c.pipelines == nil {
		return 0, fmt.Errorf("status: no pipeline publisher attached to this process")
	}
	gen := c.pipelines.Publish(p)
	c.log.Info("reload_pipeline command", zap.Uint64("generation", gen))
	return gen, nil
}
