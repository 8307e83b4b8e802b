// Midinetd is the MIDInet host daemon (§4.1): it bridges a physical MIDI
// device (and, if configured, a backup one) onto the redundant dual-host
// multicast transport, arbitrates feedback focus among clients, and
// exposes the command/status surface of §6.3 as plain Go values for an
// external REST/CLI/tray layer to wrap.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/midinet-audio/midinet/internal/config"
	"github.com/midinet-audio/midinet/internal/discovery"
	"github.com/midinet-audio/midinet/internal/events"
	"github.com/midinet-audio/midinet/internal/focus"
	"github.com/midinet-audio/midinet/internal/host"
	"github.com/midinet-audio/midinet/internal/oscfailover"
	"github.com/midinet-audio/midinet/internal/physicalmidi"
	"github.com/midinet-audio/midinet/internal/pipeline"
	"github.com/midinet-audio/midinet/internal/protocol"
	"github.com/midinet-audio/midinet/internal/redundancy"
	"github.com/midinet-audio/midinet/internal/status"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "/etc/midinet/host.toml", "path to config TOML")
		debug      = pflag.Bool("debug", false, "use a development logger instead of production")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "midinetd: config load failed: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "midinetd: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("midinetd exited", zap.Error(err))
	}

	// Let the final log lines reach their sink before the process exits.
	time.Sleep(50 * time.Millisecond)
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// run wires the host together. Shutdown aggregates every component's
// Close error via multierr, in reverse open order, rather than dropping
// all but the last one on the floor.
func run(ctx context.Context, cfg config.Config, log *zap.Logger) (err error) {
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	primary, err := physicalmidi.New(cfg.MIDI.Device, log)
	if err != nil {
		return fmt.Errorf("open primary midi device: %w", err)
	}
	closers = append(closers, primary.Close)

	epoch := uint32(time.Now().Unix())
	broadcaster, err := host.New(cfg, epoch, log)
	if err != nil {
		return fmt.Errorf("open broadcaster: %w", err)
	}
	closers = append(closers, broadcaster.Close)

	pub := pipeline.NewPublisher(pipeline.New())

	var redundancyCtl *redundancy.Controller
	var source host.MessageSource = primary
	var backup *physicalmidi.Watcher
	var redundantSource *host.RedundantSource

	if cfg.MIDI.BackupDevice != "" {
		backup, err = physicalmidi.New(cfg.MIDI.BackupDevice, log)
		if err != nil {
			return fmt.Errorf("open backup midi device: %w", err)
		}
		closers = append(closers, backup.Close)

		redundancyCtl = redundancy.New(cfg.Failover, 0, log)
		redundancyCtl.SetSwitchCallback(func(newActive int, reason redundancy.SwitchReason) {
			broadcaster.SetInputActive(uint8(newActive))
			log.Info("active input switched", zap.Int("new_active", newActive), zap.String("reason", reason.String()))
		})
		redundantSource = host.NewRedundantSource(primary, backup, redundancyCtl, log)
		source = redundantSource
	}

	trigger := redundancy.NewMIDITrigger(cfg.Failover.Triggers.MIDI, redundancyCtl)
	if redundancyCtl != nil {
		source = &triggerTap{source: source, trigger: trigger}
	}

	reader := host.NewIngressReader(source, pub, broadcaster.Ring(), log)

	focusCtl := focus.New(cfg.Focus, log)
	focusListener, err := focus.NewListener(cfg, focusCtl, primary, log)
	if err != nil {
		return fmt.Errorf("open focus listener: %w", err)
	}
	closers = append(closers, focusListener.Close)

	advertiser, err := discovery.NewAdvertiser(discoveryRecord(cfg, epoch), log)
	if err != nil {
		return fmt.Errorf("start mdns advertiser: %w", err)
	}
	closers = append(closers, advertiser.Close)

	var oscListener *oscfailover.Listener
	if cfg.Failover.Triggers.OSC.Enabled && redundancyCtl != nil {
		lockout := time.Duration(cfg.Failover.LockoutSeconds) * time.Second
		oscListener, err = oscfailover.NewListener(cfg.Failover.Triggers.OSC, lockout, redundancyCtl, log)
		if err != nil {
			return fmt.Errorf("open osc failover listener: %w", err)
		}
		closers = append(closers, oscListener.Close)
	}

	bus := events.NewBus()
	collector := status.NewCollector()
	collector.SetFocusSource(focusCtl)

	commands := status.NewCommands(log)
	if redundancyCtl != nil {
		commands.WithRedundancy(redundancyCtl, redundancyCtl)
	}
	commands.
		WithFocus(
			func(clientID uint64) bool { return focusCtl.Claim(clientID, time.Now(), true) == focus.Granted },
			func(clientID uint64) { focusCtl.Release(clientID, true) },
		).
		WithPipeline(pub).
		WithEventBus(bus)
	// commands and collector are this process's §6.3 surface: an external
	// REST/CLI/tray layer wraps them. Neither is called from within
	// midinetd itself.

	errc := make(chan error, 8)
	go func() {
		for err := range errc {
			if err != nil && ctx.Err() == nil {
				log.Warn("component exited", zap.Error(err))
			}
		}
	}()
	go func() { errc <- reader.Run(ctx) }()
	go func() { errc <- broadcaster.Run(ctx) }()
	go func() { errc <- focusListener.Run(ctx) }()
	go runDeviceRescan(ctx, primary, backup)
	go bus.Run(ctx)
	if redundantSource != nil {
		go redundantSource.Run(ctx, redundancy.DefaultActivityTimeout/4)
	}
	if oscListener != nil {
		go func() { errc <- oscListener.Run(ctx) }()
	}

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

// triggerTap observes every message read from source for the manual
// failover note gesture (§4.8) before handing it on unchanged — the
// gesture must see raw input, upstream of whatever pipeline transforms
// are currently published.
type triggerTap struct {
	source  host.MessageSource
	trigger *redundancy.MIDITrigger
}

func (t *triggerTap) Read(ctx context.Context) (protocol.MidiMessage, error) {
	msg, err := t.source.Read(ctx)
	if err != nil {
		return msg, err
	}
	t.trigger.HandleMessage(msg)
	return msg, nil
}

func runDeviceRescan(ctx context.Context, primary, backup *physicalmidi.Watcher) {
	ticker := time.NewTicker(physicalmidi.RescanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			primary.Tick()
			if backup != nil {
				backup.Tick()
			}
		}
	}
}

func discoveryRecord(cfg config.Config, epoch uint32) discovery.Record {
	return discovery.Record{
		HostID:         cfg.Host.ID,
		Role:           cfg.Host.Role,
		MulticastGroup: cfg.Network.MulticastGroup,
		DataPort:       cfg.Network.DataPort,
		HeartbeatPort:  cfg.Network.HeartbeatPort,
		Epoch:          epoch,
		DeviceName:     cfg.Host.Name,
	}
}
