package protocol

import "encoding/binary"

// MessageKind identifies the MIDI event a MidiMessage carries, after
// channel normalization at ingress. SysExFragment is a wire-only kind: it
// never appears in a fully reassembled message handed to midistate.
type MessageKind uint8

const (
	NoteOn MessageKind = iota + 1
	NoteOff
	ControlChange
	ProgramChange
	PitchBend
	ChannelPressure
	PolyPressure
	SysEx
	SysExFragment
	Clock
)

// MidiMessage is the canonical, channel-normalized form of one MIDI event.
// Channel is 1..16. Bytes holds up to 3 inline bytes for channel-voice
// messages, or an arbitrary-length SysEx payload (or fragment body, for
// Kind == SysExFragment — see sysex.go for that inner layout).
type MidiMessage struct {
	Channel   uint8
	Kind      MessageKind
	Bytes     []byte
	TimestampNS uint64
}

// EncodeMessage appends the wire form of m to dst and returns the result.
// Layout: channel(1) kind(1) timestampNS(8) bytesLen(2) bytes.
func EncodeMessage(dst []byte, m MidiMessage) []byte {
	dst = append(dst, m.Channel, uint8(m.Kind))
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], m.TimestampNS)
	dst = append(dst, tsBuf[:]...)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(m.Bytes)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, m.Bytes...)
	return dst
}

// DecodeMessage reads one MidiMessage from the front of data and returns
// it along with the remaining bytes.
func DecodeMessage(data []byte) (MidiMessage, []byte, error) {
	const fixedLen = 1 + 1 + 8 + 2
	if len(data) < fixedLen {
		return MidiMessage{}, nil, parseErr(ErrTruncatedBody, "message header needs %d bytes, have %d", fixedLen, len(data))
	}
	channel := data[0]
	kind := MessageKind(data[1])
	ts := binary.BigEndian.Uint64(data[2:10])
	bytesLen := int(binary.BigEndian.Uint16(data[10:12]))
	rest := data[12:]
	if len(rest) < bytesLen {
		return MidiMessage{}, nil, parseErr(ErrTruncatedBody, "message body needs %d bytes, have %d", bytesLen, len(rest))
	}
	body := make([]byte, bytesLen)
	copy(body, rest[:bytesLen])
	m := MidiMessage{Channel: channel, Kind: kind, Bytes: body, TimestampNS: ts}
	return m, rest[bytesLen:], nil
}

// EncodedMessageLen returns the wire size of m without allocating.
func EncodedMessageLen(m MidiMessage) int {
	return 1 + 1 + 8 + 2 + len(m.Bytes)
}
