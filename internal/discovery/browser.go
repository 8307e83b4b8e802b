package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

// BrowseInterval is how often the client re-queries for the service,
// coalescing whatever entries arrive into its per-host view.
const BrowseInterval = 5 * time.Second

// QueryTimeout bounds how long a single browse round waits for
// responses before the next round starts.
const QueryTimeout = 2 * time.Second

// Browser continuously browses for MIDInet hosts and coalesces updates
// per host_id. It never itself judges liveness — callers cross-reference
// Hosts() against actual heartbeat receipt.
type Browser struct {
	log *zap.Logger

	mu    sync.Mutex
	hosts map[uint16]Record
}

// NewBrowser returns an idle Browser; call Run to start browsing.
func NewBrowser(log *zap.Logger) *Browser {
	return &Browser{
		log:   log.Named("discovery"),
		hosts: make(map[uint16]Record),
	}
}

// Run browses every BrowseInterval until ctx is canceled.
func (b *Browser) Run(ctx context.Context) error {
	ticker := time.NewTicker(BrowseInterval)
	defer ticker.Stop()

	b.browseOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.browseOnce(ctx)
		}
	}
}

func (b *Browser) browseOnce(ctx context.Context) {
	entries := make(chan *mdns.ServiceEntry, 32)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for e := range entries {
			b.observe(e)
		}
	}()

	params := &mdns.QueryParam{
		Service: ServiceName,
		Domain:  Domain,
		Timeout: QueryTimeout,
		Entries: entries,
	}
	if err := mdns.Query(params); err != nil {
		b.log.Warn("mdns query failed", zap.Error(err))
	}
	close(entries)
	<-done
}

func (b *Browser) observe(e *mdns.ServiceEntry) {
	rec := parseRecord(e.InfoFields)
	if rec.HostID == 0 && rec.DeviceName == "" {
		return
	}
	b.mu.Lock()
	b.hosts[rec.HostID] = rec
	b.mu.Unlock()
}

// Hosts returns a snapshot of every host currently known, keyed by
// host_id.
func (b *Browser) Hosts() map[uint16]Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[uint16]Record, len(b.hosts))
	for k, v := range b.hosts {
		out[k] = v
	}
	return out
}
