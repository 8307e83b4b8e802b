package physicalmidi

import (
	"testing"

	"gitlab.com/gomidi/midi/v2/drivers"
)

// fakeIn is a minimal drivers.In standing in for a real port in pick()
// tests, which only need String().
type fakeIn struct {
	drivers.In
	name string
}

func (f fakeIn) String() string { return f.name }

func ins(names ...string) []drivers.In {
	out := make([]drivers.In, len(names))
	for i, n := range names {
		out[i] = fakeIn{name: n}
	}
	return out
}

func TestPickAutoSelectsFirstAvailable(t *testing.T) {
	name, ok := pick("auto", ins("Launchkey Mini MK3", "Midi Through"))
	if !ok || name != "Launchkey Mini MK3" {
		t.Fatalf("pick = %q, %v, want first input", name, ok)
	}
}

func TestPickAutoWithNoInputsFails(t *testing.T) {
	if _, ok := pick("auto", nil); ok {
		t.Fatal("expected pick to fail with no available inputs")
	}
}

func TestPickAutoPrefixMatchesCaseInsensitiveSubstring(t *testing.T) {
	name, ok := pick("auto:launchkey", ins("Midi Through", "Launchkey Mini MK3"))
	if !ok || name != "Launchkey Mini MK3" {
		t.Fatalf("pick = %q, %v, want substring match", name, ok)
	}
}

func TestPickAutoPrefixWithNoMatchFails(t *testing.T) {
	if _, ok := pick("auto:nonexistent", ins("Midi Through")); ok {
		t.Fatal("expected pick to fail when no input matches the substring")
	}
}

func TestPickExactNameMatch(t *testing.T) {
	name, ok := pick("USB MIDI Device", ins("Midi Through", "USB MIDI Device"))
	if !ok || name != "USB MIDI Device" {
		t.Fatalf("pick = %q, %v, want exact match", name, ok)
	}
}

func TestPickExactNameNoMatchFails(t *testing.T) {
	if _, ok := pick("USB MIDI Device", ins("Midi Through")); ok {
		t.Fatal("expected pick to fail when the exact name isn't present")
	}
}
