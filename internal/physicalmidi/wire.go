package physicalmidi

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/midinet-audio/midinet/internal/protocol"
)

// fromMIDI converts a decoded gitlab.com/gomidi/midi/v2 message into this
// module's wire-level MidiMessage, matching the status-byte families
// internal/device's variant packages encode on the way back out.
// SysEx and clock are intentionally not forwarded from physical hardware
// ingress — SysEx reassembly is a receiver-side wire concern (§4.1) and
// clock is not part of this spec's channel-state model (§4.2).
func fromMIDI(msg midi.Message) (protocol.MidiMessage, bool) {
	var ch, key, vel, cc, val, prog, pressure uint8
	var rel int16
	var abs uint16

	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return protocol.MidiMessage{Channel: ch + 1, Kind: protocol.NoteOn, Bytes: []byte{key, vel}}, true
	case msg.GetNoteEnd(&ch, &key):
		return protocol.MidiMessage{Channel: ch + 1, Kind: protocol.NoteOff, Bytes: []byte{key, 0}}, true
	case msg.GetControlChange(&ch, &cc, &val):
		return protocol.MidiMessage{Channel: ch + 1, Kind: protocol.ControlChange, Bytes: []byte{cc, val}}, true
	case msg.GetProgramChange(&ch, &prog):
		return protocol.MidiMessage{Channel: ch + 1, Kind: protocol.ProgramChange, Bytes: []byte{prog}}, true
	case msg.GetPitchBend(&ch, &rel, &abs):
		lsb := uint8(abs & 0x7F)
		msb := uint8((abs >> 7) & 0x7F)
		return protocol.MidiMessage{Channel: ch + 1, Kind: protocol.PitchBend, Bytes: []byte{lsb, msb}}, true
	case msg.GetAfterTouch(&ch, &pressure):
		return protocol.MidiMessage{Channel: ch + 1, Kind: protocol.ChannelPressure, Bytes: []byte{pressure}}, true
	case msg.GetPolyAfterTouch(&ch, &key, &pressure):
		return protocol.MidiMessage{Channel: ch + 1, Kind: protocol.PolyPressure, Bytes: []byte{key, pressure}}, true
	default:
		return protocol.MidiMessage{}, false
	}
}

// toWireBytes re-encodes a MidiMessage as raw MIDI status+data bytes for
// transmission out a physical port, mirroring the statusByte mapping each
// internal/device variant implements independently for its own output
// path.
func toWireBytes(m protocol.MidiMessage) []byte {
	channel := m.Channel - 1
	var status byte
	switch m.Kind {
	case protocol.NoteOn:
		status = 0x90 | (channel & 0x0F)
	case protocol.NoteOff:
		status = 0x80 | (channel & 0x0F)
	case protocol.ControlChange:
		status = 0xB0 | (channel & 0x0F)
	case protocol.ProgramChange:
		status = 0xC0 | (channel & 0x0F)
	case protocol.ChannelPressure:
		status = 0xD0 | (channel & 0x0F)
	case protocol.PitchBend:
		status = 0xE0 | (channel & 0x0F)
	case protocol.PolyPressure:
		status = 0xA0 | (channel & 0x0F)
	default:
		status = 0x90 | (channel & 0x0F)
	}
	return append([]byte{status}, m.Bytes...)
}
