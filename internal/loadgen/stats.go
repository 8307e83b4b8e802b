package loadgen

import (
	"sort"
	"time"

	"github.com/midinet-audio/midinet/internal/protocol"
	"github.com/midinet-audio/midinet/internal/ring"
)

// LatencySamples accumulates end-to-end latencies (ingest timestamp to
// drain time) and reduces them to the percentiles the original load-test
// suite reported: min/mean/max plus p50/p95/p99/p99.9 and average
// inter-sample jitter.
type LatencySamples struct {
	us []float64
}

// Add records one latency sample in microseconds.
func (s *LatencySamples) Add(us float64) {
	s.us = append(s.us, us)
}

// Len returns the number of samples collected so far.
func (s *LatencySamples) Len() int { return len(s.us) }

// LatencyReport is the reduced form of a LatencySamples set.
type LatencyReport struct {
	Samples     int
	MinUS       float64
	MeanUS      float64
	MaxUS       float64
	P50US       float64
	P95US       float64
	P99US       float64
	P999US      float64
	JitterAvgUS float64
}

// Report sorts and reduces the collected samples. Calling it does not
// reset the underlying samples.
func (s *LatencySamples) Report() LatencyReport {
	if len(s.us) == 0 {
		return LatencyReport{}
	}
	sorted := append([]float64(nil), s.us...)
	sort.Float64s(sorted)
	n := len(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	var jitterSum float64
	for i := 1; i < n; i++ {
		d := sorted[i] - sorted[i-1]
		if d < 0 {
			d = -d
		}
		jitterSum += d
	}
	jitter := 0.0
	if n > 1 {
		jitter = jitterSum / float64(n-1)
	}

	return LatencyReport{
		Samples:     n,
		MinUS:       sorted[0],
		MeanUS:      sum / float64(n),
		MaxUS:       sorted[n-1],
		P50US:       sorted[n*50/100],
		P95US:       sorted[n*95/100],
		P99US:       sorted[n*99/100],
		P999US:      sorted[int(float64(n)*0.999)],
		JitterAvgUS: jitter,
	}
}

// DrainResult summarizes one Drain pass over a ring.Ring: how many
// messages were popped and the latency from each message's ingest
// timestamp to the moment it was popped.
type DrainResult struct {
	Latencies LatencySamples
	Drained   uint64
}

// Drain pops every message currently queued in r, recording its
// age as a latency sample, until the ring reports empty. It never
// blocks — callers wanting a sustained drain should call it on a
// ticker or in a loop alongside their own rate control.
func Drain(r *ring.Ring, now time.Time) DrainResult {
	var out DrainResult
	for {
		msg, err := r.Pop()
		if err != nil {
			return out
		}
		out.Drained++
		out.Latencies.Add(latencyUS(msg, now))
	}
}

func latencyUS(msg protocol.MidiMessage, now time.Time) float64 {
	sentNS := int64(msg.TimestampNS)
	ageNS := now.UnixNano() - sentNS
	if ageNS < 0 {
		ageNS = 0
	}
	return float64(ageNS) / 1000.0
}

// ThroughputReport is the soak/throughput test's summary: how many
// messages were offered to the ring versus how many were actually
// accepted, over the wall-clock duration the caller measured.
type ThroughputReport struct {
	Sent     uint64
	Received uint64
	Overflow uint64
	Elapsed  time.Duration
}

// LossPercent returns the share of Sent messages never Received, as a
// percentage in [0, 100].
func (t ThroughputReport) LossPercent() float64 {
	if t.Sent == 0 || t.Sent <= t.Received {
		return 0
	}
	return float64(t.Sent-t.Received) / float64(t.Sent) * 100.0
}

// RatePerSecond returns Sent divided by Elapsed, or zero if Elapsed is
// non-positive.
func (t ThroughputReport) RatePerSecond() float64 {
	secs := t.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(t.Sent) / secs
}
