package journal

import (
	"encoding/binary"
)

// run is one run-length-encoded span: value repeated count times.
type run struct {
	Value uint8
	Count uint8
}

// rleEncode compacts a 128-entry byte array into runs. Count is capped at
// 255 (a uint8), so a span longer than that splits into consecutive runs.
func rleEncode(arr [128]uint8) []run {
	runs := make([]run, 0, 8)
	i := 0
	for i < len(arr) {
		v := arr[i]
		j := i + 1
		for j < len(arr) && arr[j] == v && j-i < 255 {
			j++
		}
		runs = append(runs, run{Value: v, Count: uint8(j - i)})
		i = j
	}
	return runs
}

func rleDecode(runs []run) [128]uint8 {
	var out [128]uint8
	i := 0
	for _, r := range runs {
		for c := 0; c < int(r.Count) && i < len(out); c++ {
			out[i] = r.Value
			i++
		}
	}
	return out
}

// EncodeSnapshot serializes snap into the compact run-length-encoded form
// named by §4.3's snapshot() operation: epoch(4) seq(4) then, per channel,
// RLE runs of NoteVelocities followed by RLE runs of CCValues, each run
// list prefixed with a uint16 run count, then Program(1),
// ChannelPressure(1), PitchBend(2) and PedalHeld(1).
func EncodeSnapshot(snap Snapshot) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint32(out[0:4], snap.Epoch)
	binary.BigEndian.PutUint32(out[4:8], snap.Seq)

	for _, ch := range snap.State.Channels {
		out = appendRuns(out, rleEncode(ch.NoteVelocities))
		out = appendRuns(out, rleEncode(ch.CCValues))
		out = append(out, ch.Program, ch.ChannelPressure)
		var buf2 [2]byte
		binary.BigEndian.PutUint16(buf2[:], uint16(ch.PitchBend))
		out = append(out, buf2[:]...)
		pedal := uint8(0)
		if ch.PedalHeld {
			pedal = 1
		}
		out = append(out, pedal)
	}
	return out
}

func appendRuns(dst []byte, runs []run) []byte {
	var count [2]byte
	binary.BigEndian.PutUint16(count[:], uint16(len(runs)))
	dst = append(dst, count[:]...)
	for _, r := range runs {
		dst = append(dst, r.Value, r.Count)
	}
	return dst
}

func readRuns(data []byte) ([]run, []byte, error) {
	if len(data) < 2 {
		return nil, nil, errTruncatedSnapshot
	}
	n := int(binary.BigEndian.Uint16(data[0:2]))
	data = data[2:]
	if len(data) < n*2 {
		return nil, nil, errTruncatedSnapshot
	}
	runs := make([]run, n)
	for i := 0; i < n; i++ {
		runs[i] = run{Value: data[i*2], Count: data[i*2+1]}
	}
	return runs, data[n*2:], nil
}

var errTruncatedSnapshot = snapshotDecodeError{"truncated snapshot"}

type snapshotDecodeError struct{ msg string }

func (e snapshotDecodeError) Error() string { return "journal: " + e.msg }

// DecodeSnapshot parses the form produced by EncodeSnapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	if len(data) < 8 {
		return Snapshot{}, errTruncatedSnapshot
	}
	snap := Snapshot{
		Epoch: binary.BigEndian.Uint32(data[0:4]),
		Seq:   binary.BigEndian.Uint32(data[4:8]),
	}
	rest := data[8:]

	for ch := 0; ch < 16; ch++ {
		noteRuns, next, err := readRuns(rest)
		if err != nil {
			return Snapshot{}, err
		}
		rest = next
		ccRuns, next, err := readRuns(rest)
		if err != nil {
			return Snapshot{}, err
		}
		rest = next

		if len(rest) < 5 {
			return Snapshot{}, errTruncatedSnapshot
		}
		program := rest[0]
		pressure := rest[1]
		pitchBend := int16(binary.BigEndian.Uint16(rest[2:4]))
		pedal := rest[4]
		rest = rest[5:]

		snap.State.Channels[ch].NoteVelocities = rleDecode(noteRuns)
		snap.State.Channels[ch].CCValues = rleDecode(ccRuns)
		snap.State.Channels[ch].Program = program
		snap.State.Channels[ch].ChannelPressure = pressure
		snap.State.Channels[ch].PitchBend = pitchBend
		snap.State.Channels[ch].PedalHeld = pedal != 0
	}

	return snap, nil
}
