package pipeline

import "github.com/midinet-audio/midinet/internal/protocol"

// ChannelFilter keeps only messages whose channel bit is set in Mask
// (bit 0 = channel 1 .. bit 15 = channel 16).
type ChannelFilter struct {
	Mask uint16
}

func (f ChannelFilter) Apply(msg protocol.MidiMessage) (protocol.MidiMessage, bool) {
	if msg.Channel < 1 || msg.Channel > 16 {
		return msg, true
	}
	bit := uint16(1) << (msg.Channel - 1)
	return msg, f.Mask&bit != 0
}

// ChannelRemap maps an incoming channel (1..16, index 0 unused) to a new
// output channel. A zero entry leaves the channel unchanged.
type ChannelRemap struct {
	Map [17]uint8
}

func (r ChannelRemap) Apply(msg protocol.MidiMessage) (protocol.MidiMessage, bool) {
	if msg.Channel >= 1 && msg.Channel <= 16 {
		if to := r.Map[msg.Channel]; to != 0 {
			msg.Channel = to
		}
	}
	return msg, true
}

// CcRemapRule rewrites one controller number to another, optionally
// scoped to a single source channel (0 means any channel).
type CcRemapRule struct {
	SrcCC      uint8
	DstCC      uint8
	SrcChannel uint8
}

// CcRemap rewrites CC numbers per Rules. Rules are checked in order; the
// first match wins. Non-CC messages pass through untouched.
type CcRemap struct {
	Rules []CcRemapRule
}

func (r CcRemap) Apply(msg protocol.MidiMessage) (protocol.MidiMessage, bool) {
	if msg.Kind != protocol.ControlChange || len(msg.Bytes) < 1 {
		return msg, true
	}
	cc := msg.Bytes[0]
	for _, rule := range r.Rules {
		if rule.SrcCC != cc {
			continue
		}
		if rule.SrcChannel != 0 && rule.SrcChannel != msg.Channel {
			continue
		}
		msg.Bytes[0] = rule.DstCC
		return msg, true
	}
	return msg, true
}

// VelocityCurveKind selects how VelocityCurve reshapes NoteOn velocities.
type VelocityCurveKind uint8

const (
	VelocityLinear VelocityCurveKind = iota
	VelocitySoft
	VelocityHard
	VelocityFixed
	VelocityCustom
)

// VelocityCurve reshapes NoteOn velocity. Soft/Hard apply a fixed
// quadratic-style curve computed once (see velocityCurveTables), Fixed
// clamps every velocity to FixedValue, Custom indexes a caller-supplied
// 128-entry lookup table.
type VelocityCurve struct {
	Kind       VelocityCurveKind
	FixedValue uint8
	LUT        [128]uint8
}

func (v VelocityCurve) Apply(msg protocol.MidiMessage) (protocol.MidiMessage, bool) {
	if msg.Kind != protocol.NoteOn || len(msg.Bytes) < 2 || msg.Bytes[1] == 0 {
		return msg, true
	}
	in := msg.Bytes[1]
	switch v.Kind {
	case VelocityLinear:
		// identity
	case VelocitySoft:
		msg.Bytes[1] = softCurve[in]
	case VelocityHard:
		msg.Bytes[1] = hardCurve[in]
	case VelocityFixed:
		msg.Bytes[1] = v.FixedValue
	case VelocityCustom:
		msg.Bytes[1] = v.LUT[in]
	}
	return msg, true
}

// softCurve and hardCurve are precomputed at init so Apply never does
// floating point work on the hot path.
var softCurve, hardCurve [128]uint8

func init() {
	for i := 0; i < 128; i++ {
		x := float64(i) / 127.0
		soft := x * x
		hard := 1 - (1-x)*(1-x)
		softCurve[i] = uint8(soft * 127.0)
		hardCurve[i] = uint8(hard * 127.0)
	}
}

// NoteRangeAction selects what happens to a note outside [Low, High].
type NoteRangeAction uint8

const (
	NoteRangeDrop NoteRangeAction = iota
	NoteRangeClip
	NoteRangeTranspose
)

// NoteRange filters or reshapes NoteOn/NoteOff/PolyPressure messages by
// note number.
type NoteRange struct {
	Low, High uint8
	Action    NoteRangeAction
	Transpose int8
}

func (r NoteRange) Apply(msg protocol.MidiMessage) (protocol.MidiMessage, bool) {
	switch msg.Kind {
	case protocol.NoteOn, protocol.NoteOff, protocol.PolyPressure:
	default:
		return msg, true
	}
	if len(msg.Bytes) < 1 {
		return msg, true
	}
	note := msg.Bytes[0]
	if note >= r.Low && note <= r.High {
		return msg, true
	}
	switch r.Action {
	case NoteRangeDrop:
		return msg, false
	case NoteRangeClip:
		if note < r.Low {
			msg.Bytes[0] = r.Low
		} else {
			msg.Bytes[0] = r.High
		}
		return msg, true
	case NoteRangeTranspose:
		shifted := int(note) + int(r.Transpose)
		if shifted < 0 || shifted > 127 {
			return msg, false
		}
		msg.Bytes[0] = uint8(shifted)
		return msg, true
	default:
		return msg, true
	}
}
