package protocol

import "encoding/binary"

// MidiDataFlag bits live in MidiDataPacket.Flags, distinct from the frame-level Flags.
type MidiDataFlag uint16

const (
	// MidiDataFlagClock marks a batch that carries at least one Clock message,
	// used by senders deciding whether to flush immediately (§4.7).
	MidiDataFlagClock MidiDataFlag = 1 << 0
)

// MidiDataPacket is a batch of one or more MidiMessages plus stream
// bookkeeping for failover and dedup.
type MidiDataPacket struct {
	StreamID uint8 // 0 primary, 1 standby
	Seq      uint32
	HostID   uint16
	Epoch    uint32
	Flags    MidiDataFlag
	Messages []MidiMessage
}

// EncodeMidiData serializes p's body (without the shared frame header) and
// wraps it via Encode. Layout: streamID(1) seq(4) hostID(2) epoch(4)
// flags(2) msgCount(2) messages...
func EncodeMidiData(p MidiDataPacket, frameFlags Flags) ([]byte, error) {
	body := make([]byte, 0, 15+len(p.Messages)*16)
	body = append(body, p.StreamID)
	var buf4 [4]byte
	binary.BigEndian.PutUint32(buf4[:], p.Seq)
	body = append(body, buf4[:]...)
	var buf2 [2]byte
	binary.BigEndian.PutUint16(buf2[:], p.HostID)
	body = append(body, buf2[:]...)
	binary.BigEndian.PutUint32(buf4[:], p.Epoch)
	body = append(body, buf4[:]...)
	binary.BigEndian.PutUint16(buf2[:], uint16(p.Flags))
	body = append(body, buf2[:]...)
	binary.BigEndian.PutUint16(buf2[:], uint16(len(p.Messages)))
	body = append(body, buf2[:]...)
	for _, m := range p.Messages {
		body = EncodeMessage(body, m)
	}
	return Encode(KindMidiData, frameFlags, body)
}

// DecodeMidiData parses a MidiDataPacket body (Frame.Body, already
// header/CRC-validated by Decode).
func DecodeMidiData(body []byte) (MidiDataPacket, error) {
	const fixedLen = 1 + 4 + 2 + 4 + 2 + 2
	if len(body) < fixedLen {
		return MidiDataPacket{}, parseErr(ErrTruncatedBody, "midi data header needs %d bytes, have %d", fixedLen, len(body))
	}
	p := MidiDataPacket{
		StreamID: body[0],
		Seq:      binary.BigEndian.Uint32(body[1:5]),
		HostID:   binary.BigEndian.Uint16(body[5:7]),
		Epoch:    binary.BigEndian.Uint32(body[7:11]),
		Flags:    MidiDataFlag(binary.BigEndian.Uint16(body[11:13])),
	}
	count := int(binary.BigEndian.Uint16(body[13:15]))
	rest := body[15:]
	p.Messages = make([]MidiMessage, 0, count)
	for i := 0; i < count; i++ {
		m, next, err := DecodeMessage(rest)
		if err != nil {
			return MidiDataPacket{}, err
		}
		p.Messages = append(p.Messages, m)
		rest = next
	}
	return p, nil
}

// FitsInPacket reports whether appending m to a packet body already
// bodyLen bytes long (fixed fields included) would keep the encoded frame
// within MTULimit. Used by the batching window in internal/host.
func FitsInPacket(bodyLen int, m MidiMessage) bool {
	return HeaderLen+bodyLen+EncodedMessageLen(m)+TrailerLen <= MTULimit
}
