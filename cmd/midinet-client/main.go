// Midinet-client is the MIDInet client daemon (§4.9/§4.10): it discovers
// a host's bridged device identity, materializes a platform-native
// virtual MIDI port cloning it, and subscribes to both multicast streams
// to keep that port fed with deduplicated, jitter-ordered MIDI — failing
// over between streams transparently to whatever local application has
// the virtual port open.
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

	"github.com/midinet-audio/midinet/internal/client"
	"github.com/midinet-audio/midinet/internal/config"
	"github.com/midinet-audio/midinet/internal/device"

	_ "github.com/midinet-audio/midinet/internal/device/devicealsa"
	_ "github.com/midinet-audio/midinet/internal/device/devicedarwin"
	_ "github.com/midinet-audio/midinet/internal/device/devicenull"
	_ "github.com/midinet-audio/midinet/internal/device/devicewindows"
	"github.com/midinet-audio/midinet/internal/status"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "/etc/midinet/client.toml", "path to config TOML")
		debug      = pflag.Bool("debug", false, "use a development logger instead of production")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "midinet-client: config load failed: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "midinet-client: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("midinet-client exited", zap.Error(err))
	}

	time.Sleep(50 * time.Millisecond)
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// run wires the client together. Shutdown aggregates every component's
// Close error via multierr, in reverse open order, instead of dropping
// all but the last one on the floor.
func run(ctx context.Context, cfg config.Config, log *zap.Logger) (err error) {
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	log.Info("waiting for host identity beacon")
	identityPkt, err := client.AwaitIdentity(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("await identity: %w", err)
	}

	handle, err := device.New(device.FromPacket(identityPkt))
	if err != nil {
		return fmt.Errorf("create virtual device: %w", err)
	}
	closers = append(closers, handle.Close)
	log.Info("virtual device created", zap.String("name", handle.Name()))

	collector := status.NewCollector()

	receiver, err := client.NewReceiver(cfg, handle, log)
	if err != nil {
		return fmt.Errorf("open receiver: %w", err)
	}
	closers = append(closers, receiver.Close)
	receiver.SetStatsSink(collector)

	clientID := uint64(cfg.Host.ID)
	focusClient, err := client.NewFocusClient(cfg, clientID, handle, log)
	if err != nil {
		return fmt.Errorf("open focus client: %w", err)
	}
	closers = append(closers, focusClient.Close)
	if cfg.Focus.AutoClaim {
		focusClient.Claim()
	}

	errc := make(chan error, 4)
	go func() {
		for err := range errc {
			if err != nil && ctx.Err() == nil {
				log.Warn("component exited", zap.Error(err))
			}
		}
	}()
	go func() { errc <- receiver.Run(ctx) }()
	go func() { errc <- focusClient.Run(ctx) }()

	<-ctx.Done()
	log.Info("shutting down")
	if err := handle.AllNotesOff(); err != nil {
		log.Warn("all notes off on shutdown failed", zap.Error(err))
	}
	return nil
}
