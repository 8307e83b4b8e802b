package devicenull

import (
	"testing"

	"github.com/midinet-audio/midinet/internal/device"
	"github.com/midinet-audio/midinet/internal/protocol"
)

func TestWriteRecordsMessages(t *testing.T) {
	h, err := New(device.Identity{Name: "Test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d := h.(*Device)

	msg := protocol.MidiMessage{Channel: 1, Kind: protocol.NoteOn, Bytes: []byte{60, 100}}
	if err := d.Write(msg); err != nil {
		t.Fatalf("Write: %v", err)
	}

	written := d.Written()
	if len(written) != 1 || written[0].Channel != 1 {
		t.Fatalf("Written() = %+v, want one NoteOn", written)
	}
}

func TestAllNotesOffWritesSixteenChannelModeMessages(t *testing.T) {
	h, _ := New(device.Identity{Name: "Test"})
	d := h.(*Device)

	if err := d.AllNotesOff(); err != nil {
		t.Fatalf("AllNotesOff: %v", err)
	}
	written := d.Written()
	if len(written) != 16 {
		t.Fatalf("wrote %d messages, want 16", len(written))
	}
	for i, msg := range written {
		if msg.Kind != protocol.ControlChange || msg.Bytes[0] != 123 {
			t.Fatalf("message %d = %+v, want CC 123", i, msg)
		}
		if msg.Channel != uint8(i+1) {
			t.Fatalf("message %d channel = %d, want %d", i, msg.Channel, i+1)
		}
	}
}

func TestReadReturnsInjectedFeedbackInOrder(t *testing.T) {
	h, _ := New(device.Identity{Name: "Test"})
	d := h.(*Device)

	if _, ok, _ := d.Read(); ok {
		t.Fatal("expected no feedback before injection")
	}

	first := protocol.MidiMessage{Channel: 1, Kind: protocol.ControlChange, Bytes: []byte{7, 64}}
	second := protocol.MidiMessage{Channel: 2, Kind: protocol.NoteOn, Bytes: []byte{60, 100}}
	d.InjectFeedback(first)
	d.InjectFeedback(second)

	got, ok, err := d.Read()
	if err != nil || !ok || got.Channel != 1 {
		t.Fatalf("first Read = %+v, %v, %v", got, ok, err)
	}
	got, ok, err = d.Read()
	if err != nil || !ok || got.Channel != 2 {
		t.Fatalf("second Read = %+v, %v, %v", got, ok, err)
	}
	if _, ok, _ := d.Read(); ok {
		t.Fatal("expected feedback queue to be drained")
	}
}

func TestCloseMarksDeviceClosed(t *testing.T) {
	h, _ := New(device.Identity{Name: "Test"})
	d := h.(*Device)

	if d.Closed() {
		t.Fatal("expected device to start open")
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !d.Closed() {
		t.Fatal("expected device to be closed")
	}
}

func TestNameReturnsIdentityName(t *testing.T) {
	h, _ := New(device.Identity{Name: "Launchkey Mini MK3"})
	if h.Name() != "Launchkey Mini MK3" {
		t.Fatalf("Name() = %q", h.Name())
	}
}
