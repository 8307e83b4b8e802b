//go:build darwin

// Package devicedarwin is the CoreMidi virtual-device variant from §4.10:
// a virtual source (apps read the forwarded stream from here) paired with
// a virtual destination (apps write focus feedback here), both named and
// cloned from the physical controller's identity.
package devicedarwin

import (
	"fmt"
	"sync"

	"github.com/youpy/go-coremidi"

	"github.com/midinet-audio/midinet/internal/device"
	"github.com/midinet-audio/midinet/internal/protocol"
)

func init() {
	device.Register("darwin", New)
}

// Device owns one CoreMIDI client with a virtual source/destination pair
// cloned from the physical controller's identity.
type Device struct {
	client      coremidi.Client
	source      coremidi.VirtualSource
	destination coremidi.VirtualDestination

	mu       sync.Mutex
	feedback []protocol.MidiMessage
	name     string
}

// New creates the CoreMIDI client and virtual ports. Matches
// internal/midi/mididarwin/client_darwin.go's coremidi.NewClient usage,
// generalized from capturing a physical source to publishing a virtual
// one.
func New(identity device.Identity) (device.Handle, error) {
	client, err := coremidi.NewClient(identity.Name)
	if err != nil {
		return nil, fmt.Errorf("devicedarwin: create client %q: %w", identity.Name, err)
	}

	d := &Device{client: client, name: identity.Name}

	source, err := coremidi.NewVirtualSource(client, identity.Name)
	if err != nil {
		return nil, fmt.Errorf("devicedarwin: create virtual source: %w", err)
	}
	d.source = source

	destination, err := coremidi.NewVirtualDestination(client, identity.Name, d.handleFeedback)
	if err != nil {
		return nil, fmt.Errorf("devicedarwin: create virtual destination: %w", err)
	}
	d.destination = destination

	return d, nil
}

func (d *Device) handleFeedback(packet coremidi.Packet) {
	if len(packet.Data) < 2 {
		return
	}
	status := packet.Data[0]
	msg := protocol.MidiMessage{
		Channel: (status & 0x0F) + 1,
		Bytes:   append([]byte(nil), packet.Data[1:]...),
	}
	switch status & 0xF0 {
	case 0x90:
		msg.Kind = protocol.NoteOn
	case 0x80:
		msg.Kind = protocol.NoteOff
	case 0xB0:
		msg.Kind = protocol.ControlChange
	default:
		return
	}

	d.mu.Lock()
	d.feedback = append(d.feedback, msg)
	d.mu.Unlock()
}

func (d *Device) Write(msg protocol.MidiMessage) error {
	data := append([]byte{statusByte(msg)}, msg.Bytes...)
	return d.source.Send(data)
}

func statusByte(msg protocol.MidiMessage) byte {
	ch := (msg.Channel - 1) & 0x0F
	switch msg.Kind {
	case protocol.NoteOn:
		return 0x90 | ch
	case protocol.NoteOff:
		return 0x80 | ch
	case protocol.ControlChange:
		return 0xB0 | ch
	case protocol.ProgramChange:
		return 0xC0 | ch
	case protocol.PitchBend:
		return 0xE0 | ch
	case protocol.ChannelPressure:
		return 0xD0 | ch
	case protocol.PolyPressure:
		return 0xA0 | ch
	default:
		return 0xF0
	}
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
	if err := d.destination.Dispose(); err != nil {
		return fmt.Errorf("devicedarwin: dispose destination: %w", err)
	}
	if err := d.source.Dispose(); err != nil {
		return fmt.Errorf("devicedarwin: dispose source: %w", err)
	}
	return d.client.Dispose()
}

func (d *Device) Name() string { return d.name }
