package protocol

import (
	"bytes"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	cases := []MidiMessage{
		{Channel: 1, Kind: NoteOn, Bytes: []byte{60, 100}, TimestampNS: 123456789},
		{Channel: 16, Kind: ControlChange, Bytes: []byte{7, 64}, TimestampNS: 0},
		{Channel: 3, Kind: SysEx, Bytes: bytes.Repeat([]byte{0x7E}, 500), TimestampNS: 42},
		{Channel: 1, Kind: Clock, Bytes: nil, TimestampNS: 1},
	}
	for _, m := range cases {
		var dst []byte
		encoded := EncodeMessage(dst, m)
		if len(encoded) != EncodedMessageLen(m) {
			t.Errorf("EncodedMessageLen = %d, actual encoded len = %d", EncodedMessageLen(m), len(encoded))
		}
		got, rest, err := DecodeMessage(encoded)
		if err != nil {
			t.Fatalf("DecodeMessage: %v", err)
		}
		if len(rest) != 0 {
			t.Errorf("expected no remaining bytes, got %d", len(rest))
		}
		if got.Channel != m.Channel || got.Kind != m.Kind || got.TimestampNS != m.TimestampNS {
			t.Errorf("got %+v, want %+v", got, m)
		}
		if !bytes.Equal(got.Bytes, m.Bytes) {
			t.Errorf("bytes = %v, want %v", got.Bytes, m.Bytes)
		}
	}
}

func TestDecodeMessageLeavesRemainder(t *testing.T) {
	var buf []byte
	buf = EncodeMessage(buf, MidiMessage{Channel: 1, Kind: NoteOn, Bytes: []byte{1, 2}})
	buf = EncodeMessage(buf, MidiMessage{Channel: 2, Kind: NoteOff, Bytes: []byte{3, 4}})

	first, rest, err := DecodeMessage(buf)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if first.Channel != 1 {
		t.Fatalf("first.Channel = %d, want 1", first.Channel)
	}
	second, rest, err := DecodeMessage(rest)
	if err != nil {
		t.Fatalf("DecodeMessage second: %v", err)
	}
	if second.Channel != 2 {
		t.Fatalf("second.Channel = %d, want 2", second.Channel)
	}
	if len(rest) != 0 {
		t.Fatalf("expected no remaining bytes, got %d", len(rest))
	}
}

func TestDecodeMessageTruncated(t *testing.T) {
	var buf []byte
	buf = EncodeMessage(buf, MidiMessage{Channel: 1, Kind: NoteOn, Bytes: []byte{1, 2, 3}})
	_, _, err := DecodeMessage(buf[:len(buf)-1])
	if err == nil {
		t.Fatal("expected truncation error")
	}
}
