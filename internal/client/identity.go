package client

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/midinet-audio/midinet/internal/config"
	"github.com/midinet-audio/midinet/internal/protocol"
)

// AwaitIdentity blocks until an IdentityPacket arrives on the control
// group's identity port (§4.7's periodic identity beacon, §4.10's "a
// virtual device is created on first heartbeat from any healthy host")
// or ctx is done. Composition code (cmd/midinet-client) calls this once
// at startup to learn what device.Identity to materialize before any
// MIDI data can be usefully forwarded.
func AwaitIdentity(ctx context.Context, cfg config.Config, log *zap.Logger) (protocol.IdentityPacket, error) {
	log = log.Named("client")

	conn, err := openListener(cfg.Network.ControlGroup, cfg.Network.IdentityPort, cfg.Network.Interface)
	if err != nil {
		return protocol.IdentityPacket{}, err
	}
	defer conn.Close()

	buf := make([]byte, protocol.MTULimit)
	for {
		if ctx.Err() != nil {
			return protocol.IdentityPacket{}, ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		frame, err := protocol.Decode(buf[:n])
		if err != nil || frame.Kind != protocol.KindIdentity {
			continue
		}
		pkt, err := protocol.DecodeIdentity(frame.Body)
		if err != nil {
			log.Warn("malformed identity packet", zap.Error(err))
			continue
		}
		return pkt, nil
	}
}
