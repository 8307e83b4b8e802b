// Package rtsched applies the best-effort real-time scheduling hints §5
// calls for on the MIDI ingress and virtual-device I/O threads: pin the
// calling goroutine to its OS thread, then ask the platform scheduler for
// a real-time priority class. Every platform's attempt is best-effort —
// failure to raise priority (no CAP_SYS_NICE, no RT group on this
// machine, macOS requiring entitlements this module doesn't carry) is
// logged and otherwise ignored; the caller keeps running at normal
// priority rather than failing.
package rtsched

import (
	"go.uber.org/zap"
)

// Priority is a 1-99 SCHED_FIFO priority value on platforms that support
// it (Linux). Ignored elsewhere.
type Priority int

// DefaultPriority is FIFO/80 from §5's scheduling model.
const DefaultPriority Priority = 80

// Pin locks the calling goroutine to its current OS thread for the
// remainder of its lifetime (the caller should never call
// runtime.UnlockOSThread on a pinned real-time I/O goroutine — it's meant
// to stay pinned until the goroutine exits, matching the tickLoop
// pin-for-the-whole-loop pattern this is grounded on) and attempts to
// raise that thread to a real-time priority class at prio. Call once, at
// the very top of the real-time thread's entry function, before doing
// any blocking I/O.
func Pin(prio Priority, log *zap.Logger) {
	pinOSThread()
	if err := setRealtimePriority(prio); err != nil {
		log.Warn("failed to raise thread to real-time priority; continuing at normal priority", zap.Error(err))
	}
}
