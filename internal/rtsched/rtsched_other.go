//go:build !linux

package rtsched

import (
	"fmt"
	"runtime"
)

func pinOSThread() {
	runtime.LockOSThread()
}

// setRealtimePriority is a no-op on platforms without a SCHED_FIFO
// equivalent wired up here: macOS time-constraint QoS needs a Mach
// thread_policy_set call that isn't reachable without cgo, which this
// module doesn't carry (§9's "replacing source-language patterns" notes
// this as an accepted platform gap, not a missing feature).
func setRealtimePriority(prio Priority) error {
	return fmt.Errorf("rtsched: no real-time scheduling class available on %s", runtime.GOOS)
}
