package client

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/midinet-audio/midinet/internal/config"
	"github.com/midinet-audio/midinet/internal/protocol"
)

// FeedbackSource is the subset of internal/device's Handle a FocusClient
// needs: draining whatever a downstream application wrote into the
// virtual device's input side, to relay back to the host as focus
// feedback (§4.11).
type FeedbackSource interface {
	Read() (msg protocol.MidiMessage, ok bool, err error)
}

// FocusRenewInterval is how often a holder renews its lease, per §4.11's
// "renewed every 2.5s by the holder on the control group".
const FocusRenewInterval = 2500 * time.Millisecond

// feedbackPollInterval is how often FocusClient drains the virtual
// device's feedback side while it holds focus.
const feedbackPollInterval = 2 * time.Millisecond

// FocusClient is the client-side half of §4.11: it claims and renews the
// feedback lease on the control group and, once granted, relays whatever
// the virtual device's input side produces back to the host tagged with
// this client's ID, so the host's focus.Listener can enforce the
// single-writer property.
type FocusClient struct {
	log      *zap.Logger
	clientID uint64

	conn *net.UDPConn
	dest *net.UDPAddr

	source FeedbackSource
}

// NewFocusClient opens a send socket toward the control group's focus
// port. clientID identifies this client in FocusPacket/MidiDataPacket
// exchanges; since MidiDataPacket tags the sender with a uint16 HostID,
// callers should keep clientID within that range (cmd/midinet-client
// derives it from config.HostConfig.ID).
func NewFocusClient(cfg config.Config, clientID uint64, source FeedbackSource, log *zap.Logger) (*FocusClient, error) {
	log = log.Named("client.focus")

	group := net.ParseIP(cfg.Network.ControlGroup)
	if group == nil {
		return nil, fmt.Errorf("client: invalid control group %q", cfg.Network.ControlGroup)
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, fmt.Errorf("client: open focus send socket: %w", err)
	}

	return &FocusClient{
		log:      log,
		clientID: clientID,
		conn:     conn,
		dest:     &net.UDPAddr{IP: group, Port: cfg.Network.FocusPort},
		source:   source,
	}, nil
}

func (f *FocusClient) Close() error {
	return f.conn.Close()
}

func (f *FocusClient) send(p protocol.FocusPacket) {
	p.ClientID = f.clientID
	frame, err := protocol.EncodeFocus(p, 0)
	if err != nil {
		f.log.Warn("failed to encode focus packet", zap.Error(err))
		return
	}
	if _, err := f.conn.WriteToUDP(frame, f.dest); err != nil {
		f.log.Warn("failed to send focus packet", zap.Error(err))
	}
}

// Claim requests the feedback lease. The claim carries no preempt flag
// and the host evaluates it without preemption, so it is denied while
// another client holds an unexpired lease.
func (f *FocusClient) Claim() {
	f.send(protocol.FocusPacket{Op: protocol.FocusClaim})
	f.log.Info("focus claim sent", zap.Uint64("client_id", f.clientID))
}

// Release relinquishes the lease if held.
func (f *FocusClient) Release() {
	f.send(protocol.FocusPacket{Op: protocol.FocusRelease})
	f.log.Info("focus release sent", zap.Uint64("client_id", f.clientID))
}

// Run renews the lease every FocusRenewInterval and relays feedback MIDI
// from source every feedbackPollInterval, until ctx is cancelled. It does
// not gate on whether the claim was actually granted — the host's
// focus.Listener silently discards feedback from a client it hasn't
// granted, so relaying unconditionally costs nothing but a dropped frame
// while Denied.
func (f *FocusClient) Run(ctx context.Context) error {
	renew := time.NewTicker(FocusRenewInterval)
	defer renew.Stop()
	poll := time.NewTicker(feedbackPollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			f.Release()
			return ctx.Err()
		case <-renew.C:
			f.send(protocol.FocusPacket{Op: protocol.FocusHeartbeat})
		case <-poll.C:
			f.relayFeedback()
		}
	}
}

func (f *FocusClient) relayFeedback() {
	var msgs []protocol.MidiMessage
	for {
		msg, ok, err := f.source.Read()
		if err != nil {
			f.log.Warn("feedback read failed", zap.Error(err))
			return
		}
		if !ok {
			break
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return
	}
	pkt := protocol.MidiDataPacket{HostID: uint16(f.clientID), Messages: msgs}
	frame, err := protocol.EncodeMidiData(pkt, 0)
	if err != nil {
		f.log.Warn("failed to encode feedback batch", zap.Error(err))
		return
	}
	if _, err := f.conn.WriteToUDP(frame, f.dest); err != nil {
		f.log.Warn("failed to send feedback batch", zap.Error(err))
	}
}
