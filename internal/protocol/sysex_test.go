package protocol

import (
	"bytes"
	"testing"
)

func TestSplitSysExSingleFragmentFitsExactly(t *testing.T) {
	maxChunk := 200
	payload := bytes.Repeat([]byte{0x41}, maxChunk-sysexFragHeaderLen)
	frags := SplitSysEx(1, 1, 0, payload, maxChunk)
	if len(frags) != 1 {
		t.Fatalf("expected 1 fragment when payload exactly fits, got %d", len(frags))
	}
	if frags[0].Bytes[6] != 1 {
		t.Fatalf("final flag not set on the only fragment")
	}
}

func TestSplitSysExOneByteOverSplitsInTwo(t *testing.T) {
	maxChunk := 200
	payload := bytes.Repeat([]byte{0x41}, maxChunk-sysexFragHeaderLen+1)
	frags := SplitSysEx(1, 1, 0, payload, maxChunk)
	if len(frags) != 2 {
		t.Fatalf("expected 2 fragments when payload is one byte over, got %d", len(frags))
	}
}

func TestReassemblerRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0x7E, 0x01}, 2000) // 4000 bytes, several fragments
	frags := SplitSysEx(5, 2, 999, payload, 256)
	if len(frags) < 2 {
		t.Fatalf("expected multiple fragments for a 4000 byte payload, got %d", len(frags))
	}

	r := NewReassembler()
	var result MidiMessage
	var done bool
	for i, f := range frags {
		var err error
		result, done, err = r.Feed(f)
		if err != nil {
			t.Fatalf("Feed fragment %d: %v", i, err)
		}
		if i < len(frags)-1 && done {
			t.Fatalf("reassembly completed early at fragment %d", i)
		}
	}
	if !done {
		t.Fatal("expected reassembly to complete after the final fragment")
	}
	if result.Kind != SysEx {
		t.Errorf("kind = %v, want SysEx", result.Kind)
	}
	if result.Channel != 2 {
		t.Errorf("channel = %d, want 2", result.Channel)
	}
	if !bytes.Equal(result.Bytes, payload) {
		t.Errorf("reassembled payload mismatch: got %d bytes, want %d", len(result.Bytes), len(payload))
	}
}

func TestReassemblerEvictsOldestOnOverflow(t *testing.T) {
	r := NewReassembler()

	// Start maxFragsPerStream+1 distinct streams, each with only a first
	// fragment (never completed), to force eviction of the oldest.
	for id := 0; id < maxFragsPerStream+1; id++ {
		frags := SplitSysEx(uint16(id), 1, 0, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, 10)
		if len(frags) < 2 {
			t.Fatalf("stream %d: expected multiple fragments to keep it incomplete", id)
		}
		if _, done, err := r.Feed(frags[0]); err != nil || done {
			t.Fatalf("stream %d: unexpected completion or error: done=%v err=%v", id, done, err)
		}
	}

	if len(r.streams) != maxFragsPerStream {
		t.Fatalf("tracked stream count = %d, want %d", len(r.streams), maxFragsPerStream)
	}
	if r.find(0) != nil {
		t.Error("expected stream 0 (oldest) to have been evicted")
	}
	if r.find(maxFragsPerStream) == nil {
		t.Error("expected the newest stream to still be tracked")
	}
}

func TestReassemblerRejectsNonFragmentKind(t *testing.T) {
	r := NewReassembler()
	_, _, err := r.Feed(MidiMessage{Kind: NoteOn, Bytes: []byte{1, 2}})
	if err == nil {
		t.Fatal("expected an error feeding a non-fragment message")
	}
}
