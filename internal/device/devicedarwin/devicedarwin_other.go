//go:build !darwin

package devicedarwin

import (
	"fmt"

	"github.com/midinet-audio/midinet/internal/device"
)

func init() {
	device.Register("darwin", New)
}

// New on non-Darwin platforms always fails; it exists only so that
// blank-importing this package is safe on every OS, matching
// internal/midi/mididarwin/client_dummy.go's fallback shape.
func New(identity device.Identity) (device.Handle, error) {
	return nil, fmt.Errorf("devicedarwin: CoreMIDI is only available on darwin")
}
