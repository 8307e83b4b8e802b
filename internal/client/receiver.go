package client

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/midinet-audio/midinet/internal/config"
	"github.com/midinet-audio/midinet/internal/midistate"
	"github.com/midinet-audio/midinet/internal/protocol"
	"github.com/midinet-audio/midinet/internal/rtsched"
)

// VirtualDevice is the subset of internal/device's capability a receiver
// needs: writing forwarded MIDI out and emitting All Notes Off on every
// channel during reconciliation.
type VirtualDevice interface {
	Write(protocol.MidiMessage) error
	AllNotesOff() error
}

// StatsSink receives the fire-and-forget per-stream counters §6.2 calls
// for: one RecordRx per accepted message, one RecordDuplicate per
// cross-stream duplicate suppressed by DupFilter. Nil-safe — a Receiver
// with no sink attached just skips the calls.
type StatsSink interface {
	RecordRx(stream int)
	RecordDuplicate(stream int)
}

// stream is one multicast subscription (primary or standby).
type stream struct {
	idx  int
	conn *net.UDPConn
}

// Receiver subscribes to both multicast groups in parallel, tracks
// per-stream heartbeats via Monitor, deduplicates across streams, orders
// through a JitterBuffer, and forwards the result to a VirtualDevice.
type Receiver struct {
	log *zap.Logger
	cfg config.Config

	monitor *Monitor
	dedup   *DupFilter
	jitter  *JitterBuffer
	device  VirtualDevice
	state   midistate.PortState

	streams [2]*stream
	hbConns [2]*net.UDPConn

	lastDegradedANO time.Time
	stats           StatsSink
}

// SetStatsSink attaches the fire-and-forget metrics counters StatsSink
// exposes. Optional — composition code (cmd/midinet-client) wires this to
// whatever observability backend is configured.
func (r *Receiver) SetStatsSink(sink StatsSink) {
	r.stats = sink
}

// NewReceiver opens listeners on both the configured multicast group and
// its derived peer group.
func NewReceiver(cfg config.Config, device VirtualDevice, log *zap.Logger) (*Receiver, error) {
	log = log.Named("client")

	jitterDepth := time.Duration(0)
	primaryConn, err := openListener(cfg.Network.MulticastGroup, cfg.Network.DataPort, cfg.Network.Interface)
	if err != nil {
		return nil, err
	}
	standbyConn, err := openListener(cfg.Network.PeerGroup(), cfg.Network.DataPort, cfg.Network.Interface)
	if err != nil {
		primaryConn.Close()
		return nil, err
	}
	hbPrimary, err := openListener(cfg.Network.MulticastGroup, cfg.Network.HeartbeatPort, cfg.Network.Interface)
	if err != nil {
		primaryConn.Close()
		standbyConn.Close()
		return nil, err
	}
	hbStandby, err := openListener(cfg.Network.PeerGroup(), cfg.Network.HeartbeatPort, cfg.Network.Interface)
	if err != nil {
		primaryConn.Close()
		standbyConn.Close()
		hbPrimary.Close()
		return nil, err
	}

	r := &Receiver{
		log:     log,
		cfg:     cfg,
		monitor: NewMonitor(cfg.Heartbeat.IntervalMS, cfg.Heartbeat.MissThreshold, DefaultSwitchLockout, log),
		dedup:   NewDupFilter(DefaultDedupWindow),
		jitter:  NewJitterBuffer(jitterDepth),
		device:  device,
		streams: [2]*stream{
			{idx: streamPrimary, conn: primaryConn},
			{idx: streamStandby, conn: standbyConn},
		},
	}
	r.hbConns = [2]*net.UDPConn{hbPrimary, hbStandby}

	r.monitor.SetSwitchCallback(r.handleSwitch)
	return r, nil
}

// Run starts the data, heartbeat, and periodic-evaluation loops and
// blocks until ctx is cancelled.
func (r *Receiver) Run(ctx context.Context) error {
	for _, s := range r.streams {
		go r.runDataLoop(ctx, s)
	}
	for i, conn := range r.hbConns {
		go r.runHeartbeatLoop(ctx, i, conn)
	}
	return r.runEvaluateLoop(ctx)
}

func (r *Receiver) Close() error {
	for _, s := range r.streams {
		s.conn.Close()
	}
	for _, c := range r.hbConns {
		c.Close()
	}
	return nil
}

func (r *Receiver) runEvaluateLoop(ctx context.Context) error {
	rtsched.Pin(rtsched.DefaultPriority, r.log)
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			state := r.monitor.Evaluate(time.Now())
			if state == StateSwitching {
				r.reconcile()
			}
			if state == StateDegraded {
				r.emitDegradedANO()
			}
			r.releaseJitterBuffer()
		}
	}
}

// reconcile runs the switch-triggered sequence from §4.9 steps 1-4: the
// switch itself already happened inside Monitor.Evaluate (step 1); here
// we emit All Notes Off (step 2), then replay the locally-tracked channel
// state back into the device (steps 3-4) before resuming forwarding of
// whatever the now-active stream delivers next.
func (r *Receiver) reconcile() {
	if err := r.device.AllNotesOff(); err != nil {
		r.log.Warn("failed to emit all notes off during reconciliation", zap.Error(err))
	}
	r.monitor.AckANOEmitted()
	r.rehydrate()
	r.monitor.AckReplayDrained()
}

// rehydrate replays held notes and the controller/program/pitch-bend
// values that shape them back into the device once All Notes Off has
// cleared it. There is no wire-format snapshot packet to replay from the
// host (see internal/journal's grounding notes), so this reconstructs it
// from r.state, which forward tracks from every message this receiver
// has itself already forwarded — the same fields internal/journal's RLE
// snapshot covers (NoteVelocities/CCValues/Program/ChannelPressure/
// PitchBend), for the same reason: these are what drive audible state
// across a failover boundary.
func (r *Receiver) rehydrate() {
	for i, c := range r.state.Channels {
		channel := uint8(i + 1)

		for cc, value := range c.CCValues {
			if value == 0 || cc >= midistate.CCAllSoundOff {
				// 120-127 are one-shot channel-mode commands, not
				// persistent state — replaying one would immediately
				// undo the rest of this replay.
				continue
			}
			r.forward(ccMessage(channel, uint8(cc), value))
		}
		if c.Program != 0 {
			r.forward(programMessage(channel, c.Program))
		}
		if c.PitchBend != 0 {
			r.forward(pitchBendMessage(channel, c.PitchBend))
		}
		if c.ChannelPressure != 0 {
			r.forward(channelPressureMessage(channel, c.ChannelPressure))
		}
		for note, velocity := range c.NoteVelocities {
			if velocity == 0 {
				continue
			}
			r.forward(noteOnMessage(channel, uint8(note), velocity))
		}
	}
}

func noteOnMessage(channel, note, velocity uint8) protocol.MidiMessage {
	return protocol.MidiMessage{Channel: channel, Kind: protocol.NoteOn, Bytes: []byte{note, velocity}}
}

func ccMessage(channel, cc, value uint8) protocol.MidiMessage {
	return protocol.MidiMessage{Channel: channel, Kind: protocol.ControlChange, Bytes: []byte{cc, value}}
}

func programMessage(channel, program uint8) protocol.MidiMessage {
	return protocol.MidiMessage{Channel: channel, Kind: protocol.ProgramChange, Bytes: []byte{program}}
}

func channelPressureMessage(channel, value uint8) protocol.MidiMessage {
	return protocol.MidiMessage{Channel: channel, Kind: protocol.ChannelPressure, Bytes: []byte{value}}
}

// pitchBendMessage inverts midistate's decodePitchBend: reassemble the
// signed -8192..8191 value into the wire's [lsb, msb] 7-bit pair.
func pitchBendMessage(channel uint8, bend int16) protocol.MidiMessage {
	raw := uint16(int32(bend) + 8192)
	return protocol.MidiMessage{
		Channel: channel,
		Kind:    protocol.PitchBend,
		Bytes:   []byte{uint8(raw & 0x7F), uint8((raw >> 7) & 0x7F)},
	}
}

func (r *Receiver) handleSwitch(newActive int) {
	r.log.Info("active stream switched", zap.Int("new_active", newActive))
}

func (r *Receiver) emitDegradedANO() {
	now := time.Now()
	if now.Sub(r.lastDegradedANO) < 2*time.Second {
		return
	}
	r.lastDegradedANO = now
	if err := r.device.AllNotesOff(); err != nil {
		r.log.Warn("failed to emit degraded-state all notes off", zap.Error(err))
	}
}

func (r *Receiver) releaseJitterBuffer() {
	for _, msg := range r.jitter.Release(time.Now()) {
		r.forward(msg)
	}
}

func (r *Receiver) forward(msg protocol.MidiMessage) {
	r.state = midistate.Apply(r.state, msg)
	if err := r.device.Write(msg); err != nil {
		r.log.Warn("failed to forward message to virtual device", zap.Error(err))
	}
}

func (r *Receiver) runDataLoop(ctx context.Context, s *stream) {
	buf := make([]byte, protocol.MTULimit)
	for {
		if ctx.Err() != nil {
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		frame, err := protocol.Decode(buf[:n])
		if err != nil || frame.Kind != protocol.KindMidiData {
			continue
		}
		pkt, err := protocol.DecodeMidiData(frame.Body)
		if err != nil {
			continue
		}
		if s.idx != r.monitor.Active() {
			continue
		}
		now := time.Now()
		for _, m := range pkt.Messages {
			if r.dedup.Seen(now, int64(m.TimestampNS), m) {
				if r.stats != nil {
					r.stats.RecordDuplicate(s.idx)
				}
				continue
			}
			if r.stats != nil {
				r.stats.RecordRx(s.idx)
			}
			r.jitter.Add(pkt.Seq, m, now)
		}
	}
}

func (r *Receiver) runHeartbeatLoop(ctx context.Context, idx int, conn *net.UDPConn) {
	buf := make([]byte, protocol.MTULimit)
	for {
		if ctx.Err() != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, _, err := conn.ReadFromUDP(buf)
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
		r.monitor.RecordHeartbeat(idx, time.Now())
	}
}
