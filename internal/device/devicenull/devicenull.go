// Package devicenull is the Null virtual-device variant from §4.10: it
// keeps every write in memory instead of delivering it anywhere, and Read
// returns only feedback queued with InjectFeedback. Used in tests and,
// when blank-imported, as the variant device.New falls back to on an
// operating system with no native variant registered.
package devicenull

import (
	"sync"

	"github.com/midinet-audio/midinet/internal/device"
	"github.com/midinet-audio/midinet/internal/protocol"
)

func init() {
	device.Register("null", New)
}

// Device is a Handle that records every write for test inspection instead
// of delivering it anywhere, and lets a test inject feedback messages for
// the Read path.
type Device struct {
	identity device.Identity

	mu       sync.Mutex
	written  []protocol.MidiMessage
	feedback []protocol.MidiMessage
	closed   bool
}

// New constructs a Null device. It never fails.
func New(identity device.Identity) (device.Handle, error) {
	return &Device{identity: identity}, nil
}

func (d *Device) Write(msg protocol.MidiMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.written = append(d.written, msg)
	return nil
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
		d.Write(protocol.MidiMessage{Channel: ch, Kind: protocol.ControlChange, Bytes: []byte{123, 0}})
	}
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *Device) Name() string { return d.identity.Name }

// Written returns every message observed by Write, for test assertions.
func (d *Device) Written() []protocol.MidiMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]protocol.MidiMessage, len(d.written))
	copy(out, d.written)
	return out
}

// InjectFeedback queues msg to be returned by the next Read call, simulating
// a downstream application sending focus feedback into the virtual device.
func (d *Device) InjectFeedback(msg protocol.MidiMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.feedback = append(d.feedback, msg)
}

// Closed reports whether Close has been called, for test assertions.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
