package protocol

import "encoding/binary"

// HeartbeatPacket is emitted periodically (default every 3ms, configurable
// 1-20ms) on each stream to carry liveness and health information for
// failover decisions (§4.7, §4.9).
type HeartbeatPacket struct {
	StreamID       uint8
	HostID         uint16
	Epoch          uint32
	Seq            uint32
	TxTimeNS       uint64
	StandbyHealthy bool
	InputActive    uint8
	HealthScore    uint8
}

const heartbeatBodyLen = 1 + 2 + 4 + 4 + 8 + 1 + 1 + 1

// EncodeHeartbeat serializes h and wraps it via Encode.
func EncodeHeartbeat(h HeartbeatPacket, frameFlags Flags) ([]byte, error) {
	body := make([]byte, heartbeatBodyLen)
	body[0] = h.StreamID
	binary.BigEndian.PutUint16(body[1:3], h.HostID)
	binary.BigEndian.PutUint32(body[3:7], h.Epoch)
	binary.BigEndian.PutUint32(body[7:11], h.Seq)
	binary.BigEndian.PutUint64(body[11:19], h.TxTimeNS)
	if h.StandbyHealthy {
		body[19] = 1
	}
	body[20] = h.InputActive
	body[21] = h.HealthScore
	return Encode(KindHeartbeat, frameFlags, body)
}

// DecodeHeartbeat parses a HeartbeatPacket body.
func DecodeHeartbeat(body []byte) (HeartbeatPacket, error) {
	if len(body) != heartbeatBodyLen {
		return HeartbeatPacket{}, parseErr(ErrLengthMismatch, "heartbeat body must be %d bytes, got %d", heartbeatBodyLen, len(body))
	}
	return HeartbeatPacket{
		StreamID:       body[0],
		HostID:         binary.BigEndian.Uint16(body[1:3]),
		Epoch:          binary.BigEndian.Uint32(body[3:7]),
		Seq:            binary.BigEndian.Uint32(body[7:11]),
		TxTimeNS:       binary.BigEndian.Uint64(body[11:19]),
		StandbyHealthy: body[19] != 0,
		InputActive:    body[20],
		HealthScore:    body[21],
	}, nil
}
