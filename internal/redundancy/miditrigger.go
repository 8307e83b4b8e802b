package redundancy

import (
	"sync"

	"github.com/midinet-audio/midinet/internal/config"
	"github.com/midinet-audio/midinet/internal/protocol"
)

// MIDITrigger watches the incoming MIDI stream for the manual-failover
// note gesture: the configured trigger note, struck at or above
// VelocityThreshold, while the guard note is held down. A trigger
// arriving without the guard held is ignored outright — it never reaches
// the Controller (§4.8).
type MIDITrigger struct {
	cfg        config.MIDITriggerConfig
	controller *Controller

	mu        sync.Mutex
	guardHeld bool
}

// NewMIDITrigger wires cfg's note gesture to controller.TriggerManual.
func NewMIDITrigger(cfg config.MIDITriggerConfig, controller *Controller) *MIDITrigger {
	return &MIDITrigger{cfg: cfg, controller: controller}
}

// HandleMessage inspects msg for the guard and trigger notes. It's safe
// to call on every message the controller's channel observes.
func (t *MIDITrigger) HandleMessage(msg protocol.MidiMessage) bool {
	if !t.cfg.Enabled {
		return false
	}
	if int(msg.Channel) != t.cfg.Channel {
		return false
	}
	if len(msg.Bytes) < 2 {
		return false
	}
	note := int(msg.Bytes[0])
	velocity := int(msg.Bytes[1])

	if note == t.cfg.GuardNote {
		held := msg.Kind == protocol.NoteOn && velocity > 0
		t.mu.Lock()
		t.guardHeld = held
		t.mu.Unlock()
		return false
	}

	if msg.Kind != protocol.NoteOn || note != t.cfg.Note || velocity < t.cfg.VelocityThreshold {
		return false
	}

	t.mu.Lock()
	guarded := t.guardHeld
	t.mu.Unlock()
	if !guarded {
		return false
	}

	return t.controller.TriggerManual()
}
