package device

import (
	"testing"

	"github.com/midinet-audio/midinet/internal/protocol"
)

func TestRegisterAndNewDispatchesByGOOS(t *testing.T) {
	const fakeGOOS = "test-os"
	called := false
	Register(fakeGOOS, func(identity Identity) (Handle, error) {
		called = true
		return nil, nil
	})

	ctor, ok := variants[fakeGOOS]
	if !ok {
		t.Fatal("expected constructor to be registered")
	}
	if _, err := ctor(Identity{Name: "Test Controller"}); err != nil {
		t.Fatalf("constructor returned error: %v", err)
	}
	if !called {
		t.Fatal("expected constructor to be invoked")
	}
}

func TestNewForUnregisteredPlatformReturnsUnsupportedOS(t *testing.T) {
	_, err := newFor("definitely-not-a-real-os", Identity{Name: "x"})
	if err == nil {
		t.Fatal("expected an error for an unregistered platform")
	}
}

func TestFromPacketClonesIdentityFields(t *testing.T) {
	pkt := protocol.IdentityPacket{
		DeviceName:         "Launchkey Mini MK3",
		DeviceManufacturer: "Novation",
		DeviceModel:        "Launchkey Mini MK3",
		UniqueID:           42,
	}
	id := FromPacket(pkt)
	if id.Name != "Launchkey Mini MK3" {
		t.Fatalf("Name = %q", id.Name)
	}
	if id.Manufacturer != "Novation" {
		t.Fatalf("Manufacturer = %q", id.Manufacturer)
	}
	if id.UniqueID != 42 {
		t.Fatalf("UniqueID = %d", id.UniqueID)
	}
}
