package focus

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/midinet-audio/midinet/internal/config"
	"github.com/midinet-audio/midinet/internal/protocol"
)

// PhysicalOutput is the subset of internal/physicalmidi's capability the
// focus listener needs: relaying the accepted feedback holder's MIDI to
// the physical device output.
type PhysicalOutput interface {
	Write(msg protocol.MidiMessage) error
}

// FeedbackTimeout is how long a holder may go without sending feedback
// before its lease is reclaimed.
const FeedbackTimeout = 10 * time.Second

// Listener owns the control-group socket pair: one joined for receiving
// Claim/Release/Heartbeat/feedback-tagged traffic, one for sending
// Grant/Deny acks back on the same group. Mirrors
// _examples/original_source/crates/midi-host/src/feedback.rs's recv/send
// socket split.
type Listener struct {
	log        *zap.Logger
	controller *Controller
	output     PhysicalOutput

	recvConn *net.UDPConn
	sendConn *net.UDPConn
	dest     *net.UDPAddr
}

// NewListener opens the control-group sockets and binds a Controller to
// arbitrate claims observed on them.
func NewListener(cfg config.Config, controller *Controller, output PhysicalOutput, log *zap.Logger) (*Listener, error) {
	log = log.Named("focus")

	group := net.ParseIP(cfg.Network.ControlGroup)
	if group == nil {
		return nil, fmt.Errorf("focus: invalid control group %q", cfg.Network.ControlGroup)
	}

	var ifi *net.Interface
	if cfg.Network.Interface != "" {
		var err error
		ifi, err = net.InterfaceByName(cfg.Network.Interface)
		if err != nil {
			return nil, fmt.Errorf("focus: resolve interface %q: %w", cfg.Network.Interface, err)
		}
	}

	recvConn, err := net.ListenMulticastUDP("udp4", ifi, &net.UDPAddr{IP: group, Port: cfg.Network.FocusPort})
	if err != nil {
		return nil, fmt.Errorf("focus: join control group: %w", err)
	}

	sendConn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		recvConn.Close()
		return nil, fmt.Errorf("focus: open send socket: %w", err)
	}

	return &Listener{
		log:        log,
		controller: controller,
		output:     output,
		recvConn:   recvConn,
		sendConn:   sendConn,
		dest:       &net.UDPAddr{IP: group, Port: cfg.Network.FocusPort},
	}, nil
}

func (l *Listener) Close() error {
	l.recvConn.Close()
	l.sendConn.Close()
	return nil
}

// Run reads focus and feedback frames until ctx is cancelled, and sweeps
// the current holder for staleness once a second.
func (l *Listener) Run(ctx context.Context) error {
	go l.runStaleSweep(ctx)

	buf := make([]byte, protocol.MTULimit)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.recvConn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, _, err := l.recvConn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		frame, err := protocol.Decode(buf[:n])
		if err != nil {
			continue
		}
		switch frame.Kind {
		case protocol.KindFocus:
			l.handleFocus(frame.Body)
		case protocol.KindMidiData:
			l.handleFeedback(frame.Body)
		}
	}
}

func (l *Listener) handleFocus(body []byte) {
	pkt, err := protocol.DecodeFocus(body)
	if err != nil {
		return
	}
	now := time.Now()

	switch pkt.Op {
	case protocol.FocusClaim:
		decision := l.controller.Claim(pkt.ClientID, now, false)
		l.ack(pkt.ClientID, decision)
	case protocol.FocusRelease:
		l.controller.Release(pkt.ClientID, false)
	case protocol.FocusHeartbeat:
		l.controller.Renew(pkt.ClientID, now)
	}
}

func (l *Listener) ack(clientID uint64, decision Decision) {
	op := protocol.FocusDeny
	if decision == Granted {
		op = protocol.FocusGrant
	}
	frame, err := protocol.EncodeFocus(protocol.FocusPacket{Op: op, ClientID: clientID}, 0)
	if err != nil {
		l.log.Warn("failed to encode focus ack", zap.Error(err))
		return
	}
	if _, err := l.sendConn.WriteToUDP(frame, l.dest); err != nil {
		l.log.Warn("failed to send focus ack", zap.Error(err))
	}
}

// handleFeedback forwards feedback MIDI to the physical device only if it
// came from the current focus holder — the single-writer enforcement
// §4.11 requires. Since MidiDataPacket doesn't itself carry a client ID,
// the sender puts its client ID in the packet's HostID field, as
// internal/client's FocusClient does (clients don't broadcast data frames otherwise; only the focus holder
// does, on the control group).
func (l *Listener) handleFeedback(body []byte) {
	pkt, err := protocol.DecodeMidiData(body)
	if err != nil {
		return
	}
	clientID := uint64(pkt.HostID)
	if !l.controller.AcceptsFeedbackFrom(clientID) {
		return
	}
	l.controller.ObserveFeedback(clientID, time.Now())
	for _, msg := range pkt.Messages {
		if err := l.output.Write(msg); err != nil {
			l.log.Warn("failed to write feedback to physical device", zap.Error(err))
		}
	}
}

func (l *Listener) runStaleSweep(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.controller.ReleaseIfStale(time.Now(), FeedbackTimeout)
		}
	}
}
