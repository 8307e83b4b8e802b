// Package midistate holds the authoritative per-channel MIDI state model:
// note velocities, controller values, program, pitch bend, channel
// pressure, RPN/NRPN parameter tracking, and pedal-hold semantics. Apply
// is a pure function so replay and reconciliation are deterministic
// regardless of timing (§4.2).
package midistate

import "github.com/midinet-audio/midinet/internal/protocol"

// Channel-mode controller numbers (CC 120-127).
const (
	CCAllSoundOff        = 120
	CCResetAllControllers = 121
	CCLocalControl        = 122
	CCAllNotesOff         = 123
	CCOmniOff             = 124
	CCOmniOn              = 125
	CCMonoOn              = 126
	CCPolyOn              = 127
)

// Damper pedal and RPN/NRPN selection/data-entry controller numbers.
const (
	CCDamperPedal   = 64
	CCNRPNLSB       = 98
	CCNRPNMSB       = 99
	CCRPNLSB        = 100
	CCRPNMSB        = 101
	CCDataEntryMSB  = 6
	CCDataEntryLSB  = 38
	CCDataIncrement = 96
	CCDataDecrement = 97
)

// paramTarget records which parameter family (RPN or NRPN) the most
// recent CC 98/99/100/101 pair selected; data-entry CCs apply to whichever
// was selected last.
type paramTarget uint8

const (
	targetNone paramTarget = iota
	targetRPN
	targetNRPN
)

// ParamState tracks one RPN or NRPN parameter's selector and accumulated
// value.
type ParamState struct {
	ParamMSB     uint8
	ParamLSB     uint8
	ValueMSB     uint8
	ValueLSB     uint8
	HasParam     bool
}

// ChannelState is the authoritative state of one MIDI channel.
type ChannelState struct {
	NoteVelocities  [128]uint8
	CCValues        [128]uint8
	PolyPressure    [128]uint8
	Program         uint8
	PitchBend       int16
	ChannelPressure uint8
	RPN             ParamState
	NRPN            ParamState
	PedalHeld       bool

	heldForRelease [128]bool
	activeTarget   paramTarget
}

// PortState is one ChannelState per logical MIDI port's 16 channels.
type PortState struct {
	Channels [16]ChannelState
}

// NewPortState returns a PortState with all 16 channels at power-on
// defaults.
func NewPortState() PortState {
	return PortState{}
}

// Apply is the pure state-transition function: given a state and an
// incoming message, it returns the new state. Callers pass PortState by
// value and take the returned value, keeping the function free of hidden
// mutation so replay is deterministic.
func Apply(s PortState, m protocol.MidiMessage) PortState {
	if m.Channel < 1 || m.Channel > 16 {
		return s
	}
	idx := m.Channel - 1
	s.Channels[idx] = applyChannel(s.Channels[idx], m)
	return s
}

func applyChannel(c ChannelState, m protocol.MidiMessage) ChannelState {
	switch m.Kind {
	case protocol.NoteOn:
		note, velocity := byte0(m), byte1(m)
		if velocity == 0 {
			return noteOff(c, note)
		}
		c.NoteVelocities[note] = velocity
		c.heldForRelease[note] = false
		return c

	case protocol.NoteOff:
		note := byte0(m)
		return noteOff(c, note)

	case protocol.ControlChange:
		cc, value := byte0(m), byte1(m)
		return applyCC(c, cc, value)

	case protocol.ProgramChange:
		c.Program = byte0(m)
		return c

	case protocol.PitchBend:
		c.PitchBend = decodePitchBend(m)
		return c

	case protocol.ChannelPressure:
		c.ChannelPressure = byte0(m)
		return c

	case protocol.PolyPressure:
		note, value := byte0(m), byte1(m)
		c.PolyPressure[note] = value
		return c

	default:
		// SysEx, Clock, and any forward-compatible kind carry no
		// per-channel state of their own.
		return c
	}
}

func noteOff(c ChannelState, note uint8) ChannelState {
	if c.PedalHeld {
		c.heldForRelease[note] = true
		return c
	}
	c.NoteVelocities[note] = 0
	return c
}

func applyCC(c ChannelState, cc, value uint8) ChannelState {
	c.CCValues[cc] = value

	switch cc {
	case CCDamperPedal:
		wasHeld := c.PedalHeld
		c.PedalHeld = value >= 64
		if wasHeld && !c.PedalHeld {
			releaseHeld(&c)
		}
		return c

	case CCAllSoundOff:
		c.NoteVelocities = [128]uint8{}
		c.heldForRelease = [128]bool{}
		c.PedalHeld = false
		return c

	case CCAllNotesOff:
		return allNotesOff(c)

	case CCResetAllControllers:
		c.CCValues = [128]uint8{}
		c.PitchBend = 0
		c.ChannelPressure = 0
		c.RPN = ParamState{}
		c.NRPN = ParamState{}
		c.activeTarget = targetNone
		return c

	case CCRPNMSB:
		c.RPN.ParamMSB = value
		c.RPN.HasParam = true
		c.activeTarget = targetRPN
		return c
	case CCRPNLSB:
		c.RPN.ParamLSB = value
		c.RPN.HasParam = true
		c.activeTarget = targetRPN
		return c
	case CCNRPNMSB:
		c.NRPN.ParamMSB = value
		c.NRPN.HasParam = true
		c.activeTarget = targetNRPN
		return c
	case CCNRPNLSB:
		c.NRPN.ParamLSB = value
		c.NRPN.HasParam = true
		c.activeTarget = targetNRPN
		return c

	case CCDataEntryMSB:
		applyDataEntry(&c, func(p *ParamState) { p.ValueMSB = value })
		return c
	case CCDataEntryLSB:
		applyDataEntry(&c, func(p *ParamState) { p.ValueLSB = value })
		return c
	case CCDataIncrement:
		applyDataEntry(&c, func(p *ParamState) {
			if p.ValueLSB < 0x7F {
				p.ValueLSB++
			}
		})
		return c
	case CCDataDecrement:
		applyDataEntry(&c, func(p *ParamState) {
			if p.ValueLSB > 0 {
				p.ValueLSB--
			}
		})
		return c

	default:
		return c
	}
}

func applyDataEntry(c *ChannelState, mutate func(*ParamState)) {
	switch c.activeTarget {
	case targetRPN:
		mutate(&c.RPN)
	case targetNRPN:
		mutate(&c.NRPN)
	}
}

// allNotesOff zeroes the channel's note velocities, except notes held by
// a depressed damper pedal, which transition to pending-release instead
// (§4.2: "pedal-held notes are NOT released").
func allNotesOff(c ChannelState) ChannelState {
	if !c.PedalHeld {
		c.NoteVelocities = [128]uint8{}
		return c
	}
	for n := range c.NoteVelocities {
		if c.NoteVelocities[n] > 0 {
			c.heldForRelease[n] = true
		}
	}
	return c
}

// releaseHeld zeroes every note flagged pending-release, called when the
// damper pedal transitions from held to released.
func releaseHeld(c *ChannelState) {
	for n := range c.heldForRelease {
		if c.heldForRelease[n] {
			c.NoteVelocities[n] = 0
			c.heldForRelease[n] = false
		}
	}
}

func byte0(m protocol.MidiMessage) uint8 {
	if len(m.Bytes) < 1 {
		return 0
	}
	return m.Bytes[0]
}

func byte1(m protocol.MidiMessage) uint8 {
	if len(m.Bytes) < 2 {
		return 0
	}
	return m.Bytes[1]
}

// decodePitchBend reconstructs the signed -8192..8191 range from the wire
// bytes [lsb, msb], each a 7-bit value, per the standard 14-bit MIDI
// pitch-bend encoding.
func decodePitchBend(m protocol.MidiMessage) int16 {
	lsb, msb := byte0(m), byte1(m)
	raw := (uint16(msb) << 7) | uint16(lsb)
	return int16(raw) - 8192
}
