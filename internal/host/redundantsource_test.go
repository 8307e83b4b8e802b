package host

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/midinet-audio/midinet/internal/config"
	"github.com/midinet-audio/midinet/internal/protocol"
	"github.com/midinet-audio/midinet/internal/redundancy"
)

type fakeHealthSource struct {
	name      string
	connected bool
	messages  chan protocol.MidiMessage
}

func newFakeHealthSource(name string) *fakeHealthSource {
	return &fakeHealthSource{name: name, connected: true, messages: make(chan protocol.MidiMessage, 4)}
}

func (f *fakeHealthSource) Read(ctx context.Context) (protocol.MidiMessage, error) {
	select {
	case msg := <-f.messages:
		return msg, nil
	case <-ctx.Done():
		return protocol.MidiMessage{}, ctx.Err()
	}
}

func (f *fakeHealthSource) Connected() (string, bool) {
	return f.name, f.connected
}

func newTestController(t *testing.T) *redundancy.Controller {
	t.Helper()
	cfg := config.FailoverConfig{AutoEnabled: true, LockoutSeconds: 0}
	return redundancy.New(cfg, time.Hour, zap.NewNop())
}

func TestRedundantSourceReadsFromActiveSlot(t *testing.T) {
	active := newFakeHealthSource("active")
	backup := newFakeHealthSource("backup")
	ctrl := newTestController(t)
	rs := NewRedundantSource(active, backup, ctrl, zap.NewNop())

	active.messages <- protocol.MidiMessage{Channel: 1, Kind: protocol.NoteOn}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := rs.Read(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Kind != protocol.NoteOn {
		t.Fatalf("got %+v, want a NoteOn read from the active slot", msg)
	}
}

func TestRedundantSourceFollowsControllerSwitch(t *testing.T) {
	active := newFakeHealthSource("active")
	backup := newFakeHealthSource("backup")
	ctrl := newTestController(t)
	rs := NewRedundantSource(active, backup, ctrl, zap.NewNop())

	ctrl.TriggerManual() // now backup (index 1) is active
	backup.messages <- protocol.MidiMessage{Channel: 2, Kind: protocol.ControlChange}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := rs.Read(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Channel != 2 {
		t.Fatalf("got %+v, want the message queued on the now-active backup slot", msg)
	}
}

func TestRedundantSourceReadReturnsContextError(t *testing.T) {
	active := newFakeHealthSource("active")
	backup := newFakeHealthSource("backup")
	ctrl := newTestController(t)
	rs := NewRedundantSource(active, backup, ctrl, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := rs.Read(ctx); err == nil {
		t.Fatal("expected an error from a cancelled context")
	}
}

func TestPollHealthReportsDisconnectedSource(t *testing.T) {
	active := newFakeHealthSource("active")
	backup := newFakeHealthSource("backup")
	backup.connected = false
	ctrl := newTestController(t)
	rs := NewRedundantSource(active, backup, ctrl, zap.NewNop())

	rs.PollHealth()
	if got := ctrl.Health(0); got != redundancy.HealthActive {
		t.Fatalf("active slot health = %v, want Active", got)
	}
	if got := ctrl.Health(1); got != redundancy.HealthDisconnected {
		t.Fatalf("backup slot health = %v, want Disconnected", got)
	}
}
