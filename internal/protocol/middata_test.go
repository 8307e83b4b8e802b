package protocol

import "testing"

func TestMidiDataRoundTrip(t *testing.T) {
	p := MidiDataPacket{
		StreamID: 0,
		Seq:      42,
		HostID:   7,
		Epoch:    3,
		Flags:    MidiDataFlagClock,
		Messages: []MidiMessage{
			{Channel: 1, Kind: NoteOn, Bytes: []byte{60, 100}, TimestampNS: 10},
			{Channel: 1, Kind: NoteOff, Bytes: []byte{60, 0}, TimestampNS: 20},
		},
	}
	encoded, err := EncodeMidiData(p, 0)
	if err != nil {
		t.Fatalf("EncodeMidiData: %v", err)
	}
	frame, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if frame.Kind != KindMidiData {
		t.Fatalf("kind = %v, want KindMidiData", frame.Kind)
	}
	got, err := DecodeMidiData(frame.Body)
	if err != nil {
		t.Fatalf("DecodeMidiData: %v", err)
	}
	if got.StreamID != p.StreamID || got.Seq != p.Seq || got.HostID != p.HostID || got.Epoch != p.Epoch || got.Flags != p.Flags {
		t.Fatalf("got %+v, want %+v", got, p)
	}
	if len(got.Messages) != len(p.Messages) {
		t.Fatalf("message count = %d, want %d", len(got.Messages), len(p.Messages))
	}
	for i := range p.Messages {
		if got.Messages[i].Channel != p.Messages[i].Channel || got.Messages[i].Kind != p.Messages[i].Kind {
			t.Errorf("message %d = %+v, want %+v", i, got.Messages[i], p.Messages[i])
		}
	}
}

func TestMidiDataEmptyMessages(t *testing.T) {
	p := MidiDataPacket{StreamID: 1, Seq: 1, HostID: 1, Epoch: 1}
	encoded, err := EncodeMidiData(p, 0)
	if err != nil {
		t.Fatalf("EncodeMidiData: %v", err)
	}
	frame, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, err := DecodeMidiData(frame.Body)
	if err != nil {
		t.Fatalf("DecodeMidiData: %v", err)
	}
	if len(got.Messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(got.Messages))
	}
}

func TestFitsInPacketBoundary(t *testing.T) {
	m := MidiMessage{Channel: 1, Kind: NoteOn, Bytes: []byte{60, 100}}
	msgLen := EncodedMessageLen(m)

	// bodyLen chosen so the frame lands exactly at MTULimit after adding m.
	bodyLen := MaxBodyLen - msgLen
	if !FitsInPacket(bodyLen, m) {
		t.Errorf("expected message to fit exactly at the MTU boundary")
	}
	if FitsInPacket(bodyLen+1, m) {
		t.Errorf("expected message to overflow the MTU boundary by one byte")
	}
}
