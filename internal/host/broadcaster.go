// Package host implements the MIDInet host broadcaster (§4.7): it drains
// the SPSC ring fed by the ingress reader, packs messages into
// MTU-bounded MidiDataPackets, emits heartbeats carrying peer-health and
// active-input state, and re-announces the bridged device's identity.
package host

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/midinet-audio/midinet/internal/config"
	"github.com/midinet-audio/midinet/internal/journal"
	"github.com/midinet-audio/midinet/internal/midistate"
	"github.com/midinet-audio/midinet/internal/protocol"
	"github.com/midinet-audio/midinet/internal/ring"
)

// IdentityRepublishInterval is how often the identity beacon re-announces
// even without a new client joining (§4.7, §6.1).
const IdentityRepublishInterval = 5 * time.Second

// frameWriter is the sending half of a UDP socket — the subset of
// *net.UDPConn the broadcaster needs. Narrowing to an interface lets
// tests exercise the batching/flush/heartbeat logic with a fake instead
// of a real multicast socket.
type frameWriter interface {
	Write(b []byte) (int, error)
	Close() error
}

// Broadcaster owns the host's outbound sockets and the single-writer
// ChannelState/Journal pair (§5 "Shared resources"). Every method that
// touches journal or state is only ever called from the goroutine running
// runData — there is no lock because there is only one writer.
type Broadcaster struct {
	log *zap.Logger
	cfg config.Config

	streamID uint8
	epoch    atomic.Uint32

	ring    *ring.Ring
	journal *journal.Journal
	state   midistate.PortState

	batcher *Batcher

	dataConn     frameWriter
	hbSendConn   frameWriter
	hbRecvConn   *net.UDPConn
	identityConn frameWriter

	seqData atomic.Uint32
	seqHB   atomic.Uint32

	lastPeerHeartbeat atomic.Int64 // UnixNano; zero means never observed
	inputActive       atomic.Uint32

	identity     atomic.Pointer[protocol.IdentityPacket]
	identityKick chan struct{}
}

// New opens every socket the broadcaster needs and returns a Broadcaster
// ready for Run. epoch should be bumped by the caller across process
// restarts (§4.7 rule 5).
func New(cfg config.Config, epoch uint32, log *zap.Logger) (*Broadcaster, error) {
	log = log.Named("host")

	dataConn, err := openSender(cfg.Network.MulticastGroup, cfg.Network.DataPort, cfg.Network.Interface)
	if err != nil {
		return nil, err
	}
	hbSendConn, err := openSender(cfg.Network.MulticastGroup, cfg.Network.HeartbeatPort, cfg.Network.Interface)
	if err != nil {
		dataConn.Close()
		return nil, err
	}
	hbRecvConn, err := openListener(cfg.Network.PeerGroup(), cfg.Network.HeartbeatPort, cfg.Network.Interface)
	if err != nil {
		dataConn.Close()
		hbSendConn.Close()
		return nil, err
	}
	identityConn, err := openSender(cfg.Network.ControlGroup, cfg.Network.IdentityPort, cfg.Network.Interface)
	if err != nil {
		dataConn.Close()
		hbSendConn.Close()
		hbRecvConn.Close()
		return nil, err
	}

	streamID := uint8(0)
	if cfg.Host.Role == "standby" {
		streamID = 1
	}

	b := &Broadcaster{
		log:          log,
		cfg:          cfg,
		streamID:     streamID,
		ring:         ring.New(ring.DefaultCapacity),
		journal:      journal.New(epoch, journal.DefaultMaxEntries),
		state:        midistate.NewPortState(),
		batcher:      NewBatcher(DefaultBatchWindow),
		dataConn:     dataConn,
		hbSendConn:   hbSendConn,
		hbRecvConn:   hbRecvConn,
		identityConn: identityConn,
		identityKick: make(chan struct{}, 1),
	}
	b.epoch.Store(epoch)
	return b, nil
}

// newForTest builds a Broadcaster around fake writers, skipping socket
// setup entirely.
func newForTest(cfg config.Config, epoch uint32, data, hb, identity frameWriter) *Broadcaster {
	b := &Broadcaster{
		log:          zap.NewNop(),
		cfg:          cfg,
		ring:         ring.New(ring.DefaultCapacity),
		journal:      journal.New(epoch, journal.DefaultMaxEntries),
		state:        midistate.NewPortState(),
		batcher:      NewBatcher(DefaultBatchWindow),
		dataConn:     data,
		hbSendConn:   hb,
		identityConn: identity,
		identityKick: make(chan struct{}, 1),
	}
	if cfg.Host.Role == "standby" {
		b.streamID = 1
	}
	b.epoch.Store(epoch)
	return b
}

// Ring exposes the SPSC ring the ingress reader pushes into.
func (b *Broadcaster) Ring() *ring.Ring { return b.ring }

// Journal exposes the state journal for a reconciliation-serving
// component (e.g. an admin bridge) that needs read access via ReplaySince.
func (b *Broadcaster) Journal() *journal.Journal { return b.journal }

// SetInputActive records which redundant input is currently live, carried
// on the next heartbeat's InputActive field.
func (b *Broadcaster) SetInputActive(idx uint8) {
	b.inputActive.Store(uint32(idx))
}

// SetIdentity updates the identity beacon's payload and republishes it
// immediately, per "once on each newly observed client" (the client-join
// signal itself is owned by whatever component tracks client liveness;
// this is the mechanical republish trigger it calls).
func (b *Broadcaster) SetIdentity(p protocol.IdentityPacket) {
	b.identity.Store(&p)
	b.kickIdentity()
}

func (b *Broadcaster) kickIdentity() {
	select {
	case b.identityKick <- struct{}{}:
	default:
	}
}

// BumpEpoch restarts the stream numbering and forces a fresh journal
// snapshot, per §4.7 rule 5 ("on restart, bump epoch").
func (b *Broadcaster) BumpEpoch(newEpoch uint32) {
	b.epoch.Store(newEpoch)
	b.journal.Bump(newEpoch, b.state)
}

// Run starts every broadcaster subsystem and blocks on the data-plane
// loop until ctx is cancelled. Heartbeat send/receive and the identity
// beacon run as separate goroutines, matching the cooperative task-pool
// model in §5 (only the ingress reader and virtual-device I/O get a
// dedicated real-time thread; everything here may suspend on timers or
// socket reads).
func (b *Broadcaster) Run(ctx context.Context) error {
	go b.runPeerHeartbeatListener(ctx)
	go b.runHeartbeat(ctx)
	go b.runIdentity(ctx)
	return b.runData(ctx)
}

// Close releases every socket. Run's goroutines exit on ctx cancellation;
// Close should be called after ctx is done and Run has returned.
func (b *Broadcaster) Close() error {
	b.dataConn.Close()
	b.hbSendConn.Close()
	b.hbRecvConn.Close()
	b.identityConn.Close()
	return nil
}

func (b *Broadcaster) runData(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Microsecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.drainAndFlush()
			return ctx.Err()
		case <-ticker.C:
			b.pump(time.Now())
		}
	}
}

// pump drains every message currently queued, then flushes the batch if
// a flush condition (immediate-flush kind or window timeout) applies.
func (b *Broadcaster) pump(now time.Time) {
	for {
		msg, err := b.ring.Pop()
		if err != nil {
			break
		}
		b.state = midistate.Apply(b.state, msg)
		seq, overflowed := b.journal.Record(msg)
		_ = seq
		if overflowed {
			b.journal.PromoteToSnapshot(b.state)
		}

		if overflow, added := b.batcher.Offer(msg, now); !added {
			b.flush(overflow)
			b.batcher.Offer(msg, now)
		}
		if b.batcher.ShouldFlushNow() {
			b.flush(b.batcher.Drain())
		}
	}
	if b.batcher.Tick(now) {
		b.flush(b.batcher.Drain())
	}
}

func (b *Broadcaster) drainAndFlush() {
	b.pump(time.Now())
	if !b.batcher.Empty() {
		b.flush(b.batcher.Drain())
	}
}

func (b *Broadcaster) flush(msgs []protocol.MidiMessage) {
	if len(msgs) == 0 {
		return
	}
	seq := b.seqData.Add(1)
	packet := protocol.MidiDataPacket{
		StreamID: b.streamID,
		Seq:      seq,
		HostID:   b.cfg.Host.ID,
		Epoch:    b.epoch.Load(),
		Messages: msgs,
	}
	frame, err := protocol.EncodeMidiData(packet, 0)
	if err != nil {
		b.log.Warn("failed to encode midi data batch", zap.Error(err), zap.Int("messages", len(msgs)))
		return
	}
	if _, err := b.dataConn.Write(frame); err != nil {
		b.log.Warn("failed to send midi data", zap.Error(err))
	}
}

func (b *Broadcaster) runHeartbeat(ctx context.Context) {
	interval := time.Duration(b.cfg.Heartbeat.IntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 3 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.sendHeartbeat(true)
			return
		case <-ticker.C:
			b.sendHeartbeat(false)
		}
	}
}

func (b *Broadcaster) sendHeartbeat(terminating bool) {
	seq := b.seqHB.Add(1)
	hb := protocol.HeartbeatPacket{
		StreamID:       b.streamID,
		HostID:         b.cfg.Host.ID,
		Epoch:          b.epoch.Load(),
		Seq:            seq,
		TxTimeNS:       uint64(time.Now().UnixNano()),
		StandbyHealthy: b.standbyHealthy(),
		InputActive:    uint8(b.inputActive.Load()),
		HealthScore:    100,
	}
	var flags protocol.Flags
	if terminating {
		flags = protocol.FlagTerminating
	}
	frame, err := protocol.EncodeHeartbeat(hb, flags)
	if err != nil {
		b.log.Warn("failed to encode heartbeat", zap.Error(err))
		return
	}
	if _, err := b.hbSendConn.Write(frame); err != nil {
		b.log.Warn("failed to send heartbeat", zap.Error(err))
	}
}

// standbyHealthy reports whether this host has recently observed its
// sibling's heartbeat. Timeout scales with the configured miss threshold,
// the same tolerance the client applies when deciding to fail over.
func (b *Broadcaster) standbyHealthy() bool {
	last := b.lastPeerHeartbeat.Load()
	if last == 0 {
		return false
	}
	interval := time.Duration(b.cfg.Heartbeat.IntervalMS) * time.Millisecond
	timeout := interval * time.Duration(b.cfg.Heartbeat.MissThreshold)
	return time.Since(time.Unix(0, last)) < timeout
}

func (b *Broadcaster) runPeerHeartbeatListener(ctx context.Context) {
	buf := make([]byte, protocol.MTULimit)
	for {
		if ctx.Err() != nil {
			return
		}
		b.hbRecvConn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, _, err := b.hbRecvConn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		frame, err := protocol.Decode(buf[:n])
		if err != nil || frame.Kind != protocol.KindHeartbeat {
			continue
		}
		if _, err := protocol.DecodeHeartbeat(frame.Body); err != nil {
			continue
		}
		b.lastPeerHeartbeat.Store(time.Now().UnixNano())
	}
}

func (b *Broadcaster) runIdentity(ctx context.Context) {
	ticker := time.NewTicker(IdentityRepublishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.sendIdentity()
		case <-b.identityKick:
			b.sendIdentity()
		}
	}
}

func (b *Broadcaster) sendIdentity() {
	p := b.identity.Load()
	if p == nil {
		return
	}
	frame, err := protocol.EncodeIdentity(*p, 0)
	if err != nil {
		b.log.Warn("failed to encode identity", zap.Error(err))
		return
	}
	if _, err := b.identityConn.Write(frame); err != nil {
		b.log.Warn("failed to send identity", zap.Error(err))
	}
}
