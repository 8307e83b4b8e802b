package discovery

import "testing"

func TestTXTRoundTrip(t *testing.T) {
	rec := Record{
		HostID:         7,
		Role:           "Primary",
		MulticastGroup: "239.69.83.1",
		DataPort:       5004,
		HeartbeatPort:  5005,
		Epoch:          3,
		DeviceName:     "Prophet-6",
	}
	got := parseRecord(rec.txtFields())
	if got != rec {
		t.Fatalf("got %+v, want %+v", got, rec)
	}
}

func TestParseRecordIgnoresUnknownFields(t *testing.T) {
	fields := []string{"host_id=1", "unexpected=value", "role=Standby"}
	rec := parseRecord(fields)
	if rec.HostID != 1 || rec.Role != "Standby" {
		t.Fatalf("got %+v", rec)
	}
}

func TestParseRecordToleratesMalformedNumericField(t *testing.T) {
	fields := []string{"host_id=not-a-number", "role=Primary"}
	rec := parseRecord(fields)
	if rec.HostID != 0 {
		t.Fatalf("HostID = %d, want 0 (left at zero value)", rec.HostID)
	}
	if rec.Role != "Primary" {
		t.Fatalf("Role = %q, want Primary", rec.Role)
	}
}

func TestParseRecordSkipsFieldWithoutEquals(t *testing.T) {
	fields := []string{"garbage", "role=Primary"}
	rec := parseRecord(fields)
	if rec.Role != "Primary" {
		t.Fatalf("Role = %q, want Primary", rec.Role)
	}
}

func TestInstanceNameIsUniquePerHost(t *testing.T) {
	if instanceName(1) == instanceName(2) {
		t.Fatal("expected distinct instance names for distinct host IDs")
	}
}
