package discovery

import (
	"fmt"
	"sync"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

// Advertiser publishes a Record over mDNS. mdns.Server's TXT payload is
// fixed at construction, so updating the record (a role or epoch change
// on failover) means tearing down and republishing rather than mutating
// in place — that happens infrequently enough to not matter.
type Advertiser struct {
	log *zap.Logger

	mu     sync.Mutex
	server *mdns.Server
	record Record
}

// NewAdvertiser publishes rec immediately and returns the running
// Advertiser.
func NewAdvertiser(rec Record, log *zap.Logger) (*Advertiser, error) {
	a := &Advertiser{log: log.Named("discovery")}
	if err := a.Republish(rec); err != nil {
		return nil, err
	}
	return a, nil
}

// Republish tears down any currently running service and advertises rec
// in its place. NewAdvertiser calls it once; nothing else in this module
// calls it.
func (a *Advertiser) Republish(rec Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		if err := a.server.Shutdown(); err != nil {
			a.log.Warn("mdns shutdown before republish failed", zap.Error(err))
		}
		a.server = nil
	}

	svc, err := mdns.NewMDNSService(
		instanceName(rec.HostID),
		ServiceName,
		Domain+".",
		"",
		rec.DataPort,
		nil,
		rec.txtFields(),
	)
	if err != nil {
		return fmt.Errorf("discovery: build mdns service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: svc})
	if err != nil {
		return fmt.Errorf("discovery: start mdns server: %w", err)
	}

	a.server = server
	a.record = rec
	a.log.Info("advertising mdns record",
		zap.Uint16("host_id", rec.HostID),
		zap.String("role", rec.Role),
		zap.Uint32("epoch", rec.Epoch),
	)
	return nil
}

// Close shuts down the mDNS responder.
func (a *Advertiser) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return nil
	}
	err := a.server.Shutdown()
	a.server = nil
	return err
}

// Current returns the record currently being advertised.
func (a *Advertiser) Current() Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.record
}
