package redundancy

import (
	"testing"

	"github.com/midinet-audio/midinet/internal/config"
	"github.com/midinet-audio/midinet/internal/protocol"
)

func newTestTrigger() (*MIDITrigger, *Controller) {
	c := newTestController(false, 0)
	cfg := config.MIDITriggerConfig{
		Enabled:           true,
		Channel:           16,
		Note:              0,
		VelocityThreshold: 100,
		GuardNote:         1,
	}
	return NewMIDITrigger(cfg, c), c
}

func noteMsg(channel uint8, note, velocity uint8) protocol.MidiMessage {
	return protocol.MidiMessage{Channel: channel, Kind: protocol.NoteOn, Bytes: []byte{note, velocity}}
}

func TestTriggerIgnoredWithoutGuardHeld(t *testing.T) {
	trig, c := newTestTrigger()
	trig.HandleMessage(noteMsg(16, 0, 127))
	if c.Active() != 0 {
		t.Fatal("trigger without guard should be ignored")
	}
}

func TestTriggerFiresWithGuardHeld(t *testing.T) {
	trig, c := newTestTrigger()
	trig.HandleMessage(noteMsg(16, 1, 100)) // guard note on
	if !trig.HandleMessage(noteMsg(16, 0, 127)) {
		t.Fatal("expected trigger to fire with guard held")
	}
	if c.Active() != 1 {
		t.Fatalf("Active() = %d, want 1", c.Active())
	}
}

func TestTriggerReleasedAfterGuardNoteOff(t *testing.T) {
	trig, c := newTestTrigger()
	trig.HandleMessage(noteMsg(16, 1, 100))
	trig.HandleMessage(noteMsg(16, 1, 0)) // NoteOn vel=0 == NoteOff convention
	if trig.HandleMessage(noteMsg(16, 0, 127)) {
		t.Fatal("expected trigger to be ignored once guard is released")
	}
	if c.Active() != 0 {
		t.Fatalf("Active() = %d, want 0", c.Active())
	}
}

func TestTriggerIgnoredBelowVelocityThreshold(t *testing.T) {
	trig, c := newTestTrigger()
	trig.HandleMessage(noteMsg(16, 1, 100))
	trig.HandleMessage(noteMsg(16, 0, 50))
	if c.Active() != 0 {
		t.Fatal("trigger below velocity threshold should be ignored")
	}
}

func TestTriggerIgnoredOnWrongChannel(t *testing.T) {
	trig, c := newTestTrigger()
	trig.HandleMessage(noteMsg(1, 1, 100))
	trig.HandleMessage(noteMsg(1, 0, 127))
	if c.Active() != 0 {
		t.Fatal("trigger on a non-configured channel should be ignored")
	}
}

func TestTriggerDisabledConfigNeverFires(t *testing.T) {
	c := newTestController(false, 0)
	cfg := config.MIDITriggerConfig{Enabled: false, Channel: 16, Note: 0, VelocityThreshold: 100, GuardNote: 1}
	trig := NewMIDITrigger(cfg, c)
	trig.HandleMessage(noteMsg(16, 1, 100))
	trig.HandleMessage(noteMsg(16, 0, 127))
	if c.Active() != 0 {
		t.Fatal("disabled trigger config should never fire")
	}
}
