package host

import (
	"sync"
	"testing"
	"time"

	"github.com/midinet-audio/midinet/internal/config"
	"github.com/midinet-audio/midinet/internal/protocol"
)

type captureWriter struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *captureWriter) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, append([]byte(nil), b...))
	return len(b), nil
}

func (c *captureWriter) Close() error { return nil }

func (c *captureWriter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *captureWriter) last() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[len(c.frames)-1]
}

func newTestBroadcaster() (*Broadcaster, *captureWriter, *captureWriter, *captureWriter) {
	data := &captureWriter{}
	hb := &captureWriter{}
	identity := &captureWriter{}
	cfg := config.Default()
	b := newForTest(cfg, 1, data, hb, identity)
	return b, data, hb, identity
}

func TestFlushSendsOneEncodedPacketPerBatch(t *testing.T) {
	b, data, _, _ := newTestBroadcaster()
	msgs := []protocol.MidiMessage{
		{Channel: 1, Kind: protocol.NoteOn, Bytes: []byte{60, 100}},
	}
	b.flush(msgs)
	if data.count() != 1 {
		t.Fatalf("got %d frames sent, want 1", data.count())
	}
	frame, err := protocol.Decode(data.last())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	pkt, err := protocol.DecodeMidiData(frame.Body)
	if err != nil {
		t.Fatalf("decode midi data: %v", err)
	}
	if len(pkt.Messages) != 1 || pkt.Messages[0].Channel != 1 {
		t.Fatalf("got %+v", pkt)
	}
}

func TestFlushEmptyBatchIsNoop(t *testing.T) {
	b, data, _, _ := newTestBroadcaster()
	b.flush(nil)
	if data.count() != 0 {
		t.Fatalf("expected no frames sent for an empty batch, got %d", data.count())
	}
}

func TestPumpAppliesPipelineStateAndBatchesForImmediateFlush(t *testing.T) {
	b, data, _, _ := newTestBroadcaster()
	noteOff := protocol.MidiMessage{Channel: 1, Kind: protocol.NoteOff, Bytes: []byte{60, 0}}
	if err := b.ring.Push(noteOff); err != nil {
		t.Fatalf("push: %v", err)
	}
	b.pump(time.Unix(0, 0))
	if data.count() != 1 {
		t.Fatalf("expected NoteOff to trigger an immediate flush, got %d frames", data.count())
	}
}

func TestPumpFlushesOnWindowTimeoutEvenWithoutTrigger(t *testing.T) {
	b, data, _, _ := newTestBroadcaster()
	cc := protocol.MidiMessage{Channel: 1, Kind: protocol.ControlChange, Bytes: []byte{7, 100}}
	if err := b.ring.Push(cc); err != nil {
		t.Fatalf("push: %v", err)
	}
	now := time.Unix(0, 0)
	b.pump(now)
	if data.count() != 0 {
		t.Fatalf("ordinary CC should not flush immediately, got %d frames", data.count())
	}
	b.pump(now.Add(DefaultBatchWindow + time.Microsecond))
	if data.count() != 1 {
		t.Fatalf("expected window-timeout flush, got %d frames", data.count())
	}
}

func TestSendHeartbeatIncludesInputActiveAndEpoch(t *testing.T) {
	b, _, hb, _ := newTestBroadcaster()
	b.SetInputActive(1)
	b.BumpEpoch(7)
	b.sendHeartbeat(false)
	if hb.count() != 1 {
		t.Fatalf("got %d heartbeats, want 1", hb.count())
	}
	frame, err := protocol.Decode(hb.last())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	pkt, err := protocol.DecodeHeartbeat(frame.Body)
	if err != nil {
		t.Fatalf("decode heartbeat: %v", err)
	}
	if pkt.InputActive != 1 {
		t.Fatalf("InputActive = %d, want 1", pkt.InputActive)
	}
	if pkt.Epoch != 7 {
		t.Fatalf("Epoch = %d, want 7", pkt.Epoch)
	}
}

func TestSendHeartbeatSetsTerminatingFlagOnShutdown(t *testing.T) {
	b, _, hb, _ := newTestBroadcaster()
	b.sendHeartbeat(true)
	frame, err := protocol.Decode(hb.last())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frame.Flags&protocol.FlagTerminating == 0 {
		t.Fatal("expected terminating flag set")
	}
}

func TestStandbyHealthyFalseUntilPeerObserved(t *testing.T) {
	b, _, _, _ := newTestBroadcaster()
	if b.standbyHealthy() {
		t.Fatal("expected standbyHealthy false before any peer heartbeat observed")
	}
	b.lastPeerHeartbeat.Store(time.Now().UnixNano())
	if !b.standbyHealthy() {
		t.Fatal("expected standbyHealthy true right after observing a peer heartbeat")
	}
}

func TestSetIdentityRepublishesOnSend(t *testing.T) {
	b, _, _, identity := newTestBroadcaster()
	b.SetIdentity(protocol.IdentityPacket{HostID: 3, DeviceName: "Prophet-6"})
	b.sendIdentity()
	if identity.count() != 1 {
		t.Fatalf("got %d identity frames, want 1", identity.count())
	}
	frame, err := protocol.Decode(identity.last())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	pkt, err := protocol.DecodeIdentity(frame.Body)
	if err != nil {
		t.Fatalf("decode identity: %v", err)
	}
	if pkt.DeviceName != "Prophet-6" {
		t.Fatalf("DeviceName = %q, want Prophet-6", pkt.DeviceName)
	}
}

func TestSendIdentityBeforeSetIdentityIsNoop(t *testing.T) {
	b, _, _, identity := newTestBroadcaster()
	b.sendIdentity()
	if identity.count() != 0 {
		t.Fatalf("expected no identity frames before SetIdentity, got %d", identity.count())
	}
}

func TestStreamIDMatchesConfiguredRole(t *testing.T) {
	cfg := config.Default()
	cfg.Host.Role = "standby"
	b := newForTest(cfg, 1, &captureWriter{}, &captureWriter{}, &captureWriter{})
	if b.streamID != 1 {
		t.Fatalf("streamID = %d, want 1 for standby role", b.streamID)
	}
}
