//go:build linux

// Package devicealsa is the AlsaSequencer variant from §4.10. It opens a
// virtual ALSA sequencer port pair through gitlab.com/gomidi/midi/v2's
// rtmidi driver (the same dependency internal/physicalmidi uses for real
// hardware I/O, per §6.2) rather than binding libasound directly — RtMidi
// already wraps the ALSA sequencer's virtual-port creation, matching what
// the original Rust implementation's alsa::seq crate did by hand.
package devicealsa

import (
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/midinet-audio/midinet/internal/device"
	"github.com/midinet-audio/midinet/internal/protocol"
)

func init() {
	device.Register("linux", New)
}

// Device owns a virtual ALSA sequencer output port (apps read the
// forwarded stream) and a virtual input port (apps write feedback).
type Device struct {
	drv  *rtmididrv.Driver
	out  drivers.Out
	in   drivers.In
	stop func()
	name string

	mu       sync.Mutex
	feedback []protocol.MidiMessage
}

// New opens the rtmidi driver and a virtual port pair named after the
// physical controller, mirroring internal/physicalmidi's driver setup
// (chase3718-lou-guitar's MIDIWatcher) but creating virtual rather than
// enumerating real ports.
func New(identity device.Identity) (device.Handle, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("devicealsa: open rtmidi driver: %w", err)
	}

	out, err := drv.OpenVirtualOut(identity.Name)
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("devicealsa: create virtual output port %q: %w", identity.Name, err)
	}

	in, err := drv.OpenVirtualIn(identity.Name)
	if err != nil {
		out.Close()
		drv.Close()
		return nil, fmt.Errorf("devicealsa: create virtual input port %q: %w", identity.Name, err)
	}

	d := &Device{drv: drv, out: out, in: in, name: identity.Name}

	stop, err := midi.ListenTo(in, d.handleFeedback, midi.HandleError(func(error) {}))
	if err != nil {
		in.Close()
		out.Close()
		drv.Close()
		return nil, fmt.Errorf("devicealsa: listen on feedback port: %w", err)
	}
	d.stop = stop

	return d, nil
}

func (d *Device) handleFeedback(msg midi.Message, _ int32) {
	raw := msg.Bytes()
	if len(raw) < 2 {
		return
	}
	status := raw[0]
	out := protocol.MidiMessage{Channel: (status & 0x0F) + 1, Bytes: append([]byte(nil), raw[1:]...)}
	switch status & 0xF0 {
	case 0x90:
		out.Kind = protocol.NoteOn
	case 0x80:
		out.Kind = protocol.NoteOff
	case 0xB0:
		out.Kind = protocol.ControlChange
	default:
		return
	}

	d.mu.Lock()
	d.feedback = append(d.feedback, out)
	d.mu.Unlock()
}

func (d *Device) Write(msg protocol.MidiMessage) error {
	ch := (msg.Channel - 1) & 0x0F
	var status byte
	switch msg.Kind {
	case protocol.NoteOn:
		status = 0x90 | ch
	case protocol.NoteOff:
		status = 0x80 | ch
	case protocol.ControlChange:
		status = 0xB0 | ch
	case protocol.ProgramChange:
		status = 0xC0 | ch
	case protocol.PitchBend:
		status = 0xE0 | ch
	case protocol.ChannelPressure:
		status = 0xD0 | ch
	case protocol.PolyPressure:
		status = 0xA0 | ch
	default:
		return fmt.Errorf("devicealsa: unsupported message kind %v", msg.Kind)
	}
	return d.out.Send(append([]byte{status}, msg.Bytes...))
}

func (d *Device) Read() (protocol.MidiMessage, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.feedback) == 0 {
		return protocol.MidiMessage{}, false, nil
	}
	msg := d.feedback[0]
	d.feedback = d.feedback[1:]
	return msg, true, nil
}

func (d *Device) AllNotesOff() error {
	for ch := uint8(1); ch <= 16; ch++ {
		if err := d.Write(protocol.MidiMessage{Channel: ch, Kind: protocol.ControlChange, Bytes: []byte{123, 0}}); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) Close() error {
	if d.stop != nil {
		d.stop()
	}
	d.in.Close()
	d.out.Close()
	d.drv.Close()
	return nil
}

func (d *Device) Name() string { return d.name }
