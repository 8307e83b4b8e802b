//go:build linux

package rtsched

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

func pinOSThread() {
	runtime.LockOSThread()
}

// setRealtimePriority asks the kernel for SCHED_FIFO at prio via
// sched_setscheduler(2) on the calling thread (tid 0 means "current
// thread" in the syscall's convention).
func setRealtimePriority(prio Priority) error {
	param := unix.SchedParam{Priority: int32(prio)}
	if err := unix.SchedSetscheduler(0, unix.SCHED_FIFO, &param); err != nil {
		return fmt.Errorf("sched_setscheduler(SCHED_FIFO, %d): %w", prio, err)
	}
	return nil
}
