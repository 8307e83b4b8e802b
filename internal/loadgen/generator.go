package loadgen

import (
	"context"
	"time"

	"github.com/midinet-audio/midinet/internal/protocol"
)

// RateGenerator is a host.MessageSource that emits a repeating cycle of
// MidiMessages at a fixed target rate — the soak/throughput traffic
// shape: note-on, note-off, two CCs, pitch bend, program change, cycling
// forever until ctx is cancelled.
type RateGenerator struct {
	interval time.Duration
	seq      uint16
	sleep    func(context.Context, time.Duration) error
}

// NewRateGenerator returns a generator aiming for ratePerSec messages per
// second. A rate of zero sends as fast as possible (the throughput test's
// "saturate the link" mode).
func NewRateGenerator(ratePerSec uint64) *RateGenerator {
	g := &RateGenerator{sleep: sleepOrDone}
	if ratePerSec > 0 {
		g.interval = time.Second / time.Duration(ratePerSec)
	}
	return g
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (g *RateGenerator) cycle(seq uint16) protocol.MidiMessage {
	switch seq % 6 {
	case 0:
		return protocol.MidiMessage{Channel: 1, Kind: protocol.NoteOn, Bytes: []byte{60 + byte(seq%48), 100}}
	case 1:
		return protocol.MidiMessage{Channel: 1, Kind: protocol.NoteOff, Bytes: []byte{60 + byte(seq%48), 0}}
	case 2:
		return protocol.MidiMessage{Channel: 1, Kind: protocol.ControlChange, Bytes: []byte{1, byte(seq % 128)}}
	case 3:
		return protocol.MidiMessage{Channel: 1, Kind: protocol.ControlChange, Bytes: []byte{7, byte(seq % 128)}}
	case 4:
		return protocol.MidiMessage{Channel: 1, Kind: protocol.PitchBend, Bytes: []byte{0, byte(seq % 128)}}
	default:
		return protocol.MidiMessage{Channel: 1, Kind: protocol.ProgramChange, Bytes: []byte{byte(seq % 128)}}
	}
}

// Read implements internal/host.MessageSource: it blocks until the next
// send slot (or ctx is cancelled) and returns the next message in the
// cycle, stamped with the current time.
func (g *RateGenerator) Read(ctx context.Context) (protocol.MidiMessage, error) {
	if err := ctx.Err(); err != nil {
		return protocol.MidiMessage{}, err
	}
	if g.interval > 0 {
		if err := g.sleep(ctx, g.interval); err != nil {
			return protocol.MidiMessage{}, err
		}
	}
	msg := stamp(g.cycle(g.seq), time.Now())
	g.seq++
	return msg, nil
}

// PatternSequencer is a host.MessageSource that plays a fixed ordered
// list of Patterns once each, in sequence, then returns io.EOF-shaped
// context cancellation forever — the burst test's drum/chord/sweep/burst
// scenario chain.
type PatternSequencer struct {
	patterns []Pattern
	pi, mi   int
	sleep    func(context.Context, time.Duration) error
}

// NewPatternSequencer plays each pattern's messages in order.
func NewPatternSequencer(patterns ...Pattern) *PatternSequencer {
	return &PatternSequencer{patterns: patterns, sleep: sleepOrDone}
}

// Done reports whether every pattern has been fully played.
func (s *PatternSequencer) Done() bool {
	return s.pi >= len(s.patterns)
}

func (s *PatternSequencer) Read(ctx context.Context) (protocol.MidiMessage, error) {
	for {
		if s.Done() {
			<-ctx.Done()
			return protocol.MidiMessage{}, ctx.Err()
		}
		p := s.patterns[s.pi]
		msg, delay, ok := p.Next(s.mi)
		if !ok {
			s.pi++
			s.mi = 0
			continue
		}
		s.mi++
		if s.mi >= p.Len() {
			s.pi++
			s.mi = 0
		}
		if delay > 0 {
			if err := s.sleep(ctx, delay); err != nil {
				return protocol.MidiMessage{}, err
			}
		}
		return stamp(msg, time.Now()), nil
	}
}
