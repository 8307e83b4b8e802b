package journal

import (
	"testing"

	"github.com/midinet-audio/midinet/internal/midistate"
	"github.com/midinet-audio/midinet/internal/protocol"
)

func TestRLERoundTrip(t *testing.T) {
	var arr [128]uint8
	for i := 0; i < 40; i++ {
		arr[i] = 5
	}
	for i := 40; i < 128; i++ {
		arr[i] = 0
	}
	runs := rleEncode(arr)
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs for a two-value array, got %d", len(runs))
	}
	got := rleDecode(runs)
	if got != arr {
		t.Fatalf("round trip mismatch")
	}
}

func TestRLEFullUniformArrayIsOneRun(t *testing.T) {
	var arr [128]uint8 // all zero: a single run of 128 fits under the 255 cap
	runs := rleEncode(arr)
	if len(runs) != 1 || runs[0].Count != 128 {
		t.Fatalf("runs = %+v, want a single run of 128", runs)
	}
}

func TestEncodeDecodeSnapshotRoundTrip(t *testing.T) {
	state := midistate.NewPortState()
	state = midistate.Apply(state, protocol.MidiMessage{
		Channel: 1, Kind: protocol.NoteOn, Bytes: []byte{60, 100},
	})
	state = midistate.Apply(state, protocol.MidiMessage{
		Channel: 2, Kind: protocol.ControlChange, Bytes: []byte{7, 90},
	})
	snap := Snapshot{Epoch: 3, Seq: 77, State: state}

	encoded := EncodeSnapshot(snap)
	decoded, err := DecodeSnapshot(encoded)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if decoded.Epoch != snap.Epoch || decoded.Seq != snap.Seq {
		t.Fatalf("got epoch/seq %d/%d, want %d/%d", decoded.Epoch, decoded.Seq, snap.Epoch, snap.Seq)
	}
	if decoded.State != snap.State {
		t.Fatalf("state mismatch after round trip")
	}
}

func TestDecodeSnapshotTruncated(t *testing.T) {
	_, err := DecodeSnapshot([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected a truncation error")
	}
}
