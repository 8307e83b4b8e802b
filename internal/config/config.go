// Package config defines the typed schema MIDInet's host and client
// processes are configured with. Loading a file from disk and deciding
// when to push a hot-reload (file watching, an admin REST call) is the
// job of an external collaborator; this package only supplies the schema,
// sane defaults, TOML parsing, and validation.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level configuration, mirroring spec §6.2 field-for-field.
type Config struct {
	Host      HostConfig      `toml:"host"      json:"host"`
	Network   NetworkConfig   `toml:"network"   json:"network"`
	Heartbeat HeartbeatConfig `toml:"heartbeat" json:"heartbeat"`
	MIDI      MIDIConfig      `toml:"midi"      json:"midi"`
	Failover  FailoverConfig  `toml:"failover"  json:"failover"`
	Focus     FocusConfig     `toml:"focus"     json:"focus"`
	Pipeline  PipelineConfig  `toml:"pipeline"  json:"pipeline"`
}

type HostConfig struct {
	ID   uint16 `toml:"id"   json:"id"`
	Name string `toml:"name" json:"name"`
	// Role is "primary" or "standby". A host always broadcasts on its
	// assigned group; role does not change at runtime, only the group
	// the peer is expected on.
	Role string `toml:"role" json:"role"`
}

type NetworkConfig struct {
	MulticastGroup string `toml:"multicast_group" json:"multicast_group"`
	DataPort       int    `toml:"data_port"       json:"data_port"`
	HeartbeatPort  int    `toml:"heartbeat_port"  json:"heartbeat_port"`
	ControlGroup   string `toml:"control_group"   json:"control_group"`
	ControlPort    int    `toml:"control_port"    json:"control_port"`
	IdentityPort   int    `toml:"identity_port"   json:"identity_port"`
	FocusPort      int    `toml:"focus_port"      json:"focus_port"`
	// PeerMulticastGroup is the sibling host's group, joined read-only to
	// observe its heartbeats for standby_healthy. Defaults to the other
	// address in the 239.69.83.{1,2} pair when left empty.
	PeerMulticastGroup string `toml:"peer_multicast_group" json:"peer_multicast_group"`
	Interface      string `toml:"interface"       json:"interface"`
}

type HeartbeatConfig struct {
	IntervalMS    int `toml:"interval_ms"    json:"interval_ms"`
	MissThreshold int `toml:"miss_threshold" json:"miss_threshold"`
}

// MIDIConfig.Device is "auto" | "auto:<name>" | an explicit OS device id.
// BackupDevice follows the same format; left empty, the host runs with a
// single physical input and internal/redundancy's Controller is never
// engaged (§4.8 describes a dual-device setup as the configuration this
// enables, not a mandatory one).
type MIDIConfig struct {
	Device       string `toml:"device"        json:"device"`
	BackupDevice string `toml:"backup_device" json:"backup_device"`
}

type FailoverConfig struct {
	AutoEnabled      bool                   `toml:"auto_enabled"       json:"auto_enabled"`
	SwitchBackPolicy string                 `toml:"switch_back_policy" json:"switch_back_policy"` // manual | auto
	LockoutSeconds   int                    `toml:"lockout_seconds"    json:"lockout_seconds"`
	ConfirmationMode string                 `toml:"confirmation_mode"  json:"confirmation_mode"` // immediate | confirm
	Triggers         FailoverTriggersConfig `toml:"triggers"           json:"triggers"`
}

type FailoverTriggersConfig struct {
	MIDI MIDITriggerConfig `toml:"midi" json:"midi"`
	OSC  OSCTriggerConfig  `toml:"osc"  json:"osc"`
}

type MIDITriggerConfig struct {
	Enabled           bool `toml:"enabled"            json:"enabled"`
	Channel           int  `toml:"channel"            json:"channel"`
	Note              int  `toml:"note"               json:"note"`
	VelocityThreshold int  `toml:"velocity_threshold" json:"velocity_threshold"`
	GuardNote         int  `toml:"guard_note"         json:"guard_note"`
}

type OSCTriggerConfig struct {
	Enabled        bool     `toml:"enabled"         json:"enabled"`
	ListenPort     int      `toml:"listen_port"     json:"listen_port"`
	Address        string   `toml:"address"         json:"address"`
	AllowedSources []string `toml:"allowed_sources" json:"allowed_sources"`
}

type FocusConfig struct {
	AutoClaim bool `toml:"auto_claim" json:"auto_claim"`
	LeaseMS   int  `toml:"lease_ms"   json:"lease_ms"`
}

type PipelineConfig struct {
	Stages []StageConfig `toml:"stages" json:"stages"`
}

// StageConfig is a loosely-typed pipeline stage descriptor; internal/pipeline
// parses Params according to Kind.
type StageConfig struct {
	Kind   string         `toml:"kind"   json:"kind"`
	Params map[string]any `toml:"params" json:"params"`
}

// Default returns a Config populated with the documented default values.
func Default() Config {
	return Config{
		Host: HostConfig{
			ID:   1,
			Name: "midinet-host",
			Role: "primary",
		},
		Network: NetworkConfig{
			MulticastGroup:     "239.69.83.1",
			DataPort:           5004,
			HeartbeatPort:      5005,
			ControlGroup:       "239.69.83.100",
			ControlPort:        5006,
			IdentityPort:       5006,
			FocusPort:          5007,
			PeerMulticastGroup: "",
			Interface:          "",
		},
		Heartbeat: HeartbeatConfig{
			IntervalMS:    3,
			MissThreshold: 3,
		},
		MIDI: MIDIConfig{
			Device: "auto",
		},
		Failover: FailoverConfig{
			AutoEnabled:      true,
			SwitchBackPolicy: "manual",
			LockoutSeconds:   5,
			ConfirmationMode: "immediate",
			Triggers: FailoverTriggersConfig{
				MIDI: MIDITriggerConfig{
					Enabled:           false,
					Channel:           16,
					Note:              0,
					VelocityThreshold: 100,
					GuardNote:         1,
				},
				OSC: OSCTriggerConfig{
					Enabled:    false,
					ListenPort: 8000,
					Address:    "/midinet/failover/switch",
				},
			},
		},
		Focus: FocusConfig{
			AutoClaim: false,
			LeaseMS:   10000,
		},
	}
}

// Load reads the TOML file at path, layers it on the defaults, and validates
// the result.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	switch cfg.Host.Role {
	case "primary", "standby":
	default:
		return fmt.Errorf("host.role must be primary|standby, got %q", cfg.Host.Role)
	}
	if cfg.Network.MulticastGroup == "" {
		return errors.New("network.multicast_group must not be empty")
	}
	if cfg.Network.DataPort <= 0 || cfg.Network.DataPort > 65535 {
		return fmt.Errorf("network.data_port out of range: %d", cfg.Network.DataPort)
	}
	if cfg.Heartbeat.IntervalMS < 1 || cfg.Heartbeat.IntervalMS > 20 {
		return fmt.Errorf("heartbeat.interval_ms must be 1..20, got %d", cfg.Heartbeat.IntervalMS)
	}
	if cfg.Heartbeat.MissThreshold < 1 {
		return errors.New("heartbeat.miss_threshold must be >= 1")
	}
	if cfg.Failover.LockoutSeconds < 0 {
		return errors.New("failover.lockout_seconds must be >= 0")
	}
	switch cfg.Failover.SwitchBackPolicy {
	case "manual", "auto":
	default:
		return fmt.Errorf("failover.switch_back_policy must be manual|auto, got %q", cfg.Failover.SwitchBackPolicy)
	}
	switch cfg.Failover.ConfirmationMode {
	case "immediate", "confirm":
	default:
		return fmt.Errorf("failover.confirmation_mode must be immediate|confirm, got %q", cfg.Failover.ConfirmationMode)
	}
	if cfg.Focus.LeaseMS <= 0 {
		return errors.New("focus.lease_ms must be > 0")
	}
	return nil
}

// PeerGroup returns the multicast group the sibling host broadcasts on.
// When PeerMulticastGroup is left unset it's derived from the convention
// that a host pair occupies adjacent addresses (239.69.83.1 <-> .2).
func (n NetworkConfig) PeerGroup() string {
	if n.PeerMulticastGroup != "" {
		return n.PeerMulticastGroup
	}
	ip := net.ParseIP(n.MulticastGroup)
	if ip == nil || ip.To4() == nil {
		return n.MulticastGroup
	}
	v4 := ip.To4()
	last := v4[3]
	switch last {
	case 1:
		v4[3] = 2
	case 2:
		v4[3] = 1
	default:
		return n.MulticastGroup
	}
	return v4.String()
}
