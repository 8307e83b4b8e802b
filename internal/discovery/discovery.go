// Package discovery advertises and browses the MIDInet mDNS service
// (§4.6). Discovery is advisory only — a client never treats it as a
// liveness signal on its own; heartbeat presence on the data-plane
// sockets is the authoritative test for whether a host is alive.
package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// ServiceName is the DNS-SD service type MIDInet advertises.
const ServiceName = "_midinet._udp"

// Domain is the mDNS domain MIDInet operates in.
const Domain = "local"

// Record is the set of TXT fields carried on the advertised service,
// per §4.6.
type Record struct {
	HostID         uint16
	Role           string
	MulticastGroup string
	DataPort       int
	HeartbeatPort  int
	Epoch          uint32
	DeviceName     string
}

// txtFields renders r into the flat key=value strings mdns.NewMDNSService
// expects for a TXT record.
func (r Record) txtFields() []string {
	return []string{
		"host_id=" + strconv.FormatUint(uint64(r.HostID), 10),
		"role=" + r.Role,
		"multicast_group=" + r.MulticastGroup,
		"data_port=" + strconv.Itoa(r.DataPort),
		"hb_port=" + strconv.Itoa(r.HeartbeatPort),
		"epoch=" + strconv.FormatUint(uint64(r.Epoch), 10),
		"device_name=" + r.DeviceName,
	}
}

// parseRecord reconstructs a Record from the TXT strings of a received
// service entry. Fields it can't parse are left at their zero value
// rather than failing the whole entry — a malformed or partial TXT
// record shouldn't take down the browser.
func parseRecord(fields []string) Record {
	var r Record
	for _, f := range fields {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		switch key {
		case "host_id":
			if v, err := strconv.ParseUint(value, 10, 16); err == nil {
				r.HostID = uint16(v)
			}
		case "role":
			r.Role = value
		case "multicast_group":
			r.MulticastGroup = value
		case "data_port":
			if v, err := strconv.Atoi(value); err == nil {
				r.DataPort = v
			}
		case "hb_port":
			if v, err := strconv.Atoi(value); err == nil {
				r.HeartbeatPort = v
			}
		case "epoch":
			if v, err := strconv.ParseUint(value, 10, 32); err == nil {
				r.Epoch = uint32(v)
			}
		case "device_name":
			r.DeviceName = value
		}
	}
	return r
}

func instanceName(hostID uint16) string {
	return fmt.Sprintf("midinet-host-%d", hostID)
}
