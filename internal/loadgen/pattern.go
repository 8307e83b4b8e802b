// Package loadgen synthesizes realistic MIDI traffic for exercising the
// ring buffer, pipeline, and journal under sustained load, without a real
// device or a second host attached. It replaces the standalone load-test
// binary's hand-built traffic patterns (16th-note drum rolls, chord
// stabs, CC fader sweeps, machine-gun bursts) with an in-process
// host.MessageSource a test or a bench command can drive through the
// exact production ingress path.
package loadgen

import (
	"time"

	"github.com/midinet-audio/midinet/internal/protocol"
)

// Pattern produces a bounded sequence of MidiMessages plus the spacing to
// leave between them. Grounded on the drum/chord/sweep/burst scenarios:
// each pattern owns its own note choices and inter-message delay so a
// PatternSequencer can chain several without caring about their internals.
type Pattern interface {
	// Next returns the message at position i (0-based) within the
	// pattern, the delay to wait before sending it, and whether i was
	// in range at all.
	Next(i int) (msg protocol.MidiMessage, delay time.Duration, ok bool)
	// Len reports how many messages the pattern emits in total.
	Len() int
}

func stamp(m protocol.MidiMessage, now time.Time) protocol.MidiMessage {
	m.TimestampNS = uint64(now.UnixNano())
	return m
}

// DrumPattern is a 16th-note kick/hihat/snare/hihat loop at the given
// tempo, channel 10 (index 9), varying velocity the way a real drum
// machine's humanization would.
type DrumPattern struct {
	Steps int
	BPM   float64
}

func (d DrumPattern) Len() int { return d.Steps }

func (d DrumPattern) Next(i int) (protocol.MidiMessage, time.Duration, bool) {
	if i < 0 || i >= d.Steps {
		return protocol.MidiMessage{}, 0, false
	}
	notes := [4]uint8{36, 42, 38, 42} // kick, hihat, snare, hihat
	note := notes[i%4]
	velocity := byte(100 + (i % 28))
	msg := protocol.MidiMessage{
		Channel: 10,
		Kind:    protocol.NoteOn,
		Bytes:   []byte{note, velocity},
	}
	stepsPerSec := d.BPM / 60.0 * 4.0 // 16th notes
	interval := time.Duration(float64(time.Second) / stepsPerSec)
	return msg, interval, true
}

// ChordStabPattern sends a spread voicing on, holds it, then sends the
// matching note-offs — repeated stabCount times.
type ChordStabPattern struct {
	Chord     []uint8
	StabCount int
	HoldFor   time.Duration
	RestFor   time.Duration
}

func (c ChordStabPattern) Len() int { return c.StabCount * len(c.Chord) * 2 }

func (c ChordStabPattern) Next(i int) (protocol.MidiMessage, time.Duration, bool) {
	total := c.Len()
	if i < 0 || i >= total {
		return protocol.MidiMessage{}, 0, false
	}
	perStab := len(c.Chord) * 2
	within := i % perStab
	noteOff := within >= len(c.Chord)
	note := c.Chord[within%len(c.Chord)]

	if noteOff {
		msg := protocol.MidiMessage{Channel: 1, Kind: protocol.NoteOff, Bytes: []byte{note, 0}}
		var delay time.Duration
		if within == len(c.Chord) {
			delay = c.HoldFor
		}
		if within == perStab-1 {
			delay += c.RestFor
		}
		return msg, delay, true
	}
	msg := protocol.MidiMessage{Channel: 1, Kind: protocol.NoteOn, Bytes: []byte{note, 110}}
	return msg, 0, true
}

// CCSweepPattern ramps a single controller smoothly from 0 to 127 over
// roughly Duration.
type CCSweepPattern struct {
	Controller uint8
	Duration   time.Duration
}

func (s CCSweepPattern) Len() int { return 128 }

func (s CCSweepPattern) Next(i int) (protocol.MidiMessage, time.Duration, bool) {
	if i < 0 || i >= 128 {
		return protocol.MidiMessage{}, 0, false
	}
	msg := protocol.MidiMessage{
		Channel: 1,
		Kind:    protocol.ControlChange,
		Bytes:   []byte{s.Controller, byte(i)},
	}
	return msg, s.Duration / 127, true
}

// BurstPattern fires Count note-ons back to back with no inter-message
// delay, the worst case for ring/pipeline throughput.
type BurstPattern struct {
	Count   int
	BaseKey uint8
	Spread  uint8
}

func (b BurstPattern) Len() int { return b.Count }

func (b BurstPattern) Next(i int) (protocol.MidiMessage, time.Duration, bool) {
	if i < 0 || i >= b.Count {
		return protocol.MidiMessage{}, 0, false
	}
	spread := b.Spread
	if spread == 0 {
		spread = 1
	}
	note := b.BaseKey + uint8(i)%spread
	msg := protocol.MidiMessage{Channel: 1, Kind: protocol.NoteOn, Bytes: []byte{note, 127}}
	return msg, 0, true
}
