package host

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/midinet-audio/midinet/internal/protocol"
	"github.com/midinet-audio/midinet/internal/redundancy"
)

// pollTimeout bounds how long RedundantSource.Read waits on the currently
// active source before re-checking whether the controller switched —
// the glue that makes a redundancy.Controller switch actually change
// which device feeds the ingress reader.
const pollTimeout = 5 * time.Millisecond

// HealthSource is a MessageSource that can also report whether its
// underlying device is currently connected, so RedundantSource can feed
// internal/redundancy's health model. internal/physicalmidi.Watcher
// satisfies this directly.
type HealthSource interface {
	MessageSource
	Connected() (name string, ok bool)
}

// RedundantSource is the §4.8 glue: it owns the active-slot and
// backup-slot physical sources and a redundancy.Controller, and presents
// a single MessageSource to IngressReader that always reads from
// whichever slot the controller currently says is active.
type RedundantSource struct {
	log        *zap.Logger
	sources    [2]HealthSource
	controller *redundancy.Controller
}

// NewRedundantSource wires active/backup sources to controller, which
// must already be configured with the matching config.FailoverConfig.
func NewRedundantSource(active, backup HealthSource, controller *redundancy.Controller, log *zap.Logger) *RedundantSource {
	return &RedundantSource{
		log:        log.Named("redundantsource"),
		sources:    [2]HealthSource{active, backup},
		controller: controller,
	}
}

// Read blocks until a message is available from the currently active
// source, re-polling the controller's active index at pollTimeout
// intervals so a switch takes effect without waiting on a source that
// may never produce another message.
func (s *RedundantSource) Read(ctx context.Context) (protocol.MidiMessage, error) {
	for {
		if err := ctx.Err(); err != nil {
			return protocol.MidiMessage{}, err
		}
		idx := s.controller.Active()
		readCtx, cancel := context.WithTimeout(ctx, pollTimeout)
		msg, err := s.sources[idx].Read(readCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return protocol.MidiMessage{}, ctx.Err()
			}
			continue
		}
		s.controller.ReportActivity(idx)
		return msg, nil
	}
}

// PollHealth reports each source's current Connected() state into the
// controller. Call it periodically (see Run) — the driver-level
// connect/disconnect callbacks in internal/physicalmidi run on their own
// goroutine and don't push health transitions directly into the
// controller, so polling is the simplest correct glue.
func (s *RedundantSource) PollHealth() {
	for idx, src := range s.sources {
		health := redundancy.HealthDisconnected
		if _, ok := src.Connected(); ok {
			health = redundancy.HealthActive
		}
		s.controller.ReportHealth(idx, health)
	}
}

// Run polls health and ticks the controller's activity-timeout check
// every interval, until ctx is cancelled.
func (s *RedundantSource) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PollHealth()
			s.controller.Tick(time.Now())
		}
	}
}
