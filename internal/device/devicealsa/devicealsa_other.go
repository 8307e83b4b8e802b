//go:build !linux

package devicealsa

import (
	"fmt"

	"github.com/midinet-audio/midinet/internal/device"
)

func init() {
	device.Register("linux", New)
}

// New on non-Linux platforms always fails; exists so this package is safe
// to blank-import on every OS.
func New(identity device.Identity) (device.Handle, error) {
	return nil, fmt.Errorf("devicealsa: ALSA sequencer is only available on linux")
}
