package loadgen

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/midinet-audio/midinet/internal/host"
	"github.com/midinet-audio/midinet/internal/pipeline"
	"github.com/midinet-audio/midinet/internal/ring"
)

// Harness drives a host.MessageSource through the production
// IngressReader — the real pipeline-apply-then-ring-push path — and
// measures what comes out the other side, without any network socket or
// second host involved. It replaces the standalone load-test binary's
// "pipeline benchmark" and "soak test" modes with an in-process
// equivalent that exercises the actual ring.Ring and pipeline.Pipeline
// types rather than a re-implementation of their logic.
type Harness struct {
	log    *zap.Logger
	ring   *ring.Ring
	reader *host.IngressReader
}

// NewHarness wires source through pub into a fresh ring of the given
// capacity (DefaultCapacity if zero).
func NewHarness(source host.MessageSource, pub *pipeline.Publisher, ringCapacity int, log *zap.Logger) *Harness {
	r := ring.New(ringCapacity)
	return &Harness{
		log:    log,
		ring:   r,
		reader: host.NewIngressReader(source, pub, r, log),
	}
}

// Ring exposes the underlying ring so a caller can Drain it concurrently
// with Run.
func (h *Harness) Ring() *ring.Ring { return h.ring }

// Run starts the ingress reader and blocks until ctx is cancelled; an
// exhausted PatternSequencer or a failing source does not end it.
func (h *Harness) Run(ctx context.Context) error {
	return h.reader.Run(ctx)
}

// RunSoak drives a RateGenerator for duration, periodically draining the
// ring so it never overflows under sustained load, and returns the
// aggregate throughput and latency picture — the soak test's pass/fail
// inputs (§5's ingress path is never meant to stall on a slow consumer;
// this harness plays the consumer role a real broadcaster would).
func RunSoak(ctx context.Context, ratePerSec uint64, duration time.Duration, log *zap.Logger) (ThroughputReport, LatencyReport) {
	gen := NewRateGenerator(ratePerSec)
	pub := pipeline.NewPublisher(pipeline.New())
	h := NewHarness(gen, pub, ring.DefaultCapacity, log)

	runCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = h.Run(runCtx)
		close(done)
	}()

	var latencies LatencySamples
	var received uint64
	drainTicker := time.NewTicker(5 * time.Millisecond)
	defer drainTicker.Stop()

	start := time.Now()
loop:
	for {
		select {
		case <-done:
			break loop
		case <-drainTicker.C:
			res := Drain(h.Ring(), time.Now())
			received += res.Drained
			latencies.us = append(latencies.us, res.Latencies.us...)
		}
	}
	// Final drain for anything left once the reader stopped.
	res := Drain(h.Ring(), time.Now())
	received += res.Drained
	latencies.us = append(latencies.us, res.Latencies.us...)

	report := ThroughputReport{
		Sent:     uint64(gen.seq),
		Received: received,
		Overflow: h.Ring().OverflowCount(),
		Elapsed:  time.Since(start),
	}
	return report, latencies.Report()
}
