//go:build windows

// Package devicewindows is the TeVirtualMidi variant from §4.10, loading
// Tobias Erichsen's teVirtualMIDI driver DLL the same way
// internal/midi/midiwindows loads winmm.dll: windows.NewLazySystemDLL plus
// NewProc for each entry point, called through syscall.Call.
package devicewindows

import (
	"fmt"
	"sync"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/midinet-audio/midinet/internal/device"
	"github.com/midinet-audio/midinet/internal/protocol"
)

func init() {
	device.Register("windows", New)
}

const (
	teVmFlagsParseRx    = 1
	teVmFlagsInstantiateRxOnly = 2
)

var (
	teVirtualMIDI           = windows.NewLazySystemDLL("teVirtualMIDI64.dll")
	procCreatePortEx2       = teVirtualMIDI.NewProc("virtualMIDICreatePortEx2")
	procClosePort           = teVirtualMIDI.NewProc("virtualMIDIClosePort")
	procSendData            = teVirtualMIDI.NewProc("virtualMIDISendData")
	procGetData             = teVirtualMIDI.NewProc("virtualMIDIGetData")
)

// Device owns one teVirtualMIDI port handle cloned from the physical
// controller's identity.
type Device struct {
	name   string
	handle uintptr
	mu     sync.Mutex
}

// New calls virtualMIDICreatePortEx2 with the controller's name, mirroring
// midiwindows.NewMIDIClient's winmm.dll lazy-load-and-NewProc shape but
// targeting teVirtualMIDI64.dll instead.
func New(identity device.Identity) (device.Handle, error) {
	namePtr, err := utf16PtrFromString(identity.Name)
	if err != nil {
		return nil, fmt.Errorf("devicewindows: encode port name: %w", err)
	}

	r1, _, callErr := procCreatePortEx2.Call(
		uintptr(unsafe.Pointer(namePtr)),
		0, // callback: none, polled via Read instead
		0, // callback instance data
		0, // max sysex length, 0 = default
		uintptr(teVmFlagsParseRx),
	)
	if r1 == 0 {
		return nil, fmt.Errorf("devicewindows: virtualMIDICreatePortEx2 %q: %v", identity.Name, callErr)
	}

	return &Device{name: identity.Name, handle: r1}, nil
}

func utf16PtrFromString(s string) (*uint16, error) {
	encoded := utf16.Encode([]rune(s))
	encoded = append(encoded, 0)
	return &encoded[0], nil
}

func (d *Device) Write(msg protocol.MidiMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	status := statusByte(msg)
	data := append([]byte{status}, msg.Bytes...)

	r1, _, callErr := procSendData.Call(
		d.handle,
		uintptr(unsafe.Pointer(&data[0])),
		uintptr(len(data)),
	)
	if r1 == 0 {
		return fmt.Errorf("devicewindows: virtualMIDISendData: %v", callErr)
	}
	return nil
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

// Read polls virtualMIDIGetData for feedback written by a downstream
// application into this port. teVirtualMIDI has no non-blocking "peek", so
// a zero-length probe call establishes how much is pending before the
// real read.
func (d *Device) Read() (protocol.MidiMessage, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var length uint32
	r1, _, _ := procGetData.Call(d.handle, 0, uintptr(unsafe.Pointer(&length)))
	if r1 == 0 || length < 2 {
		return protocol.MidiMessage{}, false, nil
	}

	buf := make([]byte, length)
	r2, _, callErr := procGetData.Call(d.handle, uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&length)))
	if r2 == 0 {
		return protocol.MidiMessage{}, false, fmt.Errorf("devicewindows: virtualMIDIGetData: %v", callErr)
	}

	status := buf[0]
	msg := protocol.MidiMessage{Channel: (status & 0x0F) + 1, Bytes: buf[1:]}
	switch status & 0xF0 {
	case 0x90:
		msg.Kind = protocol.NoteOn
	case 0x80:
		msg.Kind = protocol.NoteOff
	case 0xB0:
		msg.Kind = protocol.ControlChange
	default:
		return protocol.MidiMessage{}, false, nil
	}
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
	d.mu.Lock()
	defer d.mu.Unlock()
	procClosePort.Call(d.handle)
	return nil
}

func (d *Device) Name() string { return d.name }
