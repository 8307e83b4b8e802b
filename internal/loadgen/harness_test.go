package loadgen

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/midinet-audio/midinet/internal/pipeline"
)

func TestHarnessDrivesBurstPatternThroughRing(t *testing.T) {
	seq := NewPatternSequencer(BurstPattern{Count: 50, BaseKey: 36, Spread: 48})
	pub := pipeline.NewPublisher(pipeline.New())
	h := NewHarness(seq, pub, 0, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	deadline := time.After(time.Second)
	for {
		if h.Ring().Len() >= 50 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("ring only received %d/50 messages before deadline", h.Ring().Len())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done

	result := Drain(h.Ring(), time.Now())
	if result.Drained < 50 {
		t.Fatalf("Drain collected %d messages, want at least 50", result.Drained)
	}
	if result.Latencies.Len() != int(result.Drained) {
		t.Fatalf("Latencies.Len() = %d, want %d", result.Latencies.Len(), result.Drained)
	}
}

func TestRunSoakReportsThroughputAndLatency(t *testing.T) {
	tp, lat := RunSoak(context.Background(), 2000, 50*time.Millisecond, zap.NewNop())
	if tp.Sent == 0 {
		t.Fatal("expected RunSoak to send at least one message")
	}
	if tp.Received == 0 {
		t.Fatal("expected RunSoak to receive at least one message")
	}
	if lat.Samples == 0 {
		t.Fatal("expected at least one latency sample")
	}
}
