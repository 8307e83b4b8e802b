// Package device materializes a platform-native virtual MIDI port whose
// identity clones the physical controller a host is bridging (§4.10).
// cmd/midinet-client creates its Handle once the host's identity beacon
// has arrived and keeps it across focus/failover until shutdown; a later
// change of the host's identity does not recreate it.
package device

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/midinet-audio/midinet/internal/protocol"
)

// ErrUnsupportedOS is returned when no variant is registered for the
// running operating system and no "null" fallback variant is registered.
var ErrUnsupportedOS = errors.New("device: unsupported operating system")

// Identity is the subset of protocol.IdentityPacket a virtual device needs
// to clone, truncated to whatever limits the platform API imposes.
type Identity struct {
	Name         string
	Manufacturer string
	Model        string
	UniqueID     uint32
}

// FromPacket builds an Identity from a wire IdentityPacket.
func FromPacket(p protocol.IdentityPacket) Identity {
	return Identity{
		Name:         p.DeviceName,
		Manufacturer: p.DeviceManufacturer,
		Model:        p.DeviceModel,
		UniqueID:     p.UniqueID,
	}
}

// Handle is the polymorphic virtual-device capability from §4.10:
// open(identity) is the constructor below, Write/Read/Close are the
// handle's lifecycle.
type Handle interface {
	// Write sends a MIDI message out through the virtual device, to be
	// seen by downstream applications as if it came from the physical
	// controller.
	Write(msg protocol.MidiMessage) error

	// Read returns the next feedback message written into the virtual
	// device by a downstream application (focus path), or ok=false if
	// none is pending. Never blocks.
	Read() (msg protocol.MidiMessage, ok bool, err error)

	// AllNotesOff sends an All Notes Off channel-mode message (CC 123) on
	// each of channels 1-16, used on reconciliation and shutdown.
	AllNotesOff() error

	// Close tears down the virtual device.
	Close() error

	// Name reports the device name as created (after platform truncation).
	Name() string
}

// Constructor builds a Handle for a specific platform variant.
type Constructor func(identity Identity) (Handle, error)

// variants is populated by each platform subpackage's init(), database/sql
// driver-style, so internal/device never imports devicedarwin/devicewindows/
// devicealsa/devicenull directly and there's no import cycle back from
// those subpackages (which do import internal/device for Identity/Handle).
// Callers blank-import whichever variant packages they want available —
// see cmd/midinetd and cmd/midinet-client.
var variants = map[string]Constructor{}

// Register adds a constructor under a runtime.GOOS value. Called from a
// variant subpackage's init().
func Register(goos string, ctor Constructor) {
	variants[goos] = ctor
}

// New opens the variant matching runtime.GOOS.
func New(identity Identity) (Handle, error) {
	return newFor(runtime.GOOS, identity)
}

func newFor(goos string, identity Identity) (Handle, error) {
	ctor, ok := variants[goos]
	if !ok {
		ctor, ok = variants["null"]
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s (no variant registered; blank-import internal/device/devicenull as a fallback)", ErrUnsupportedOS, goos)
	}
	return ctor(identity)
}
