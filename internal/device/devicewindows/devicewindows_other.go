//go:build !windows

package devicewindows

import (
	"fmt"

	"github.com/midinet-audio/midinet/internal/device"
)

func init() {
	device.Register("windows", New)
}

// New on non-Windows platforms always fails; exists so this package is
// safe to blank-import on every OS.
func New(identity device.Identity) (device.Handle, error) {
	return nil, fmt.Errorf("devicewindows: teVirtualMIDI is only available on windows")
}
