// Package oscfailover implements §4.12: a UDP listener that accepts an OSC
// message on a configured address pattern from an allow-listed source and
// triggers the same manual-failover path the admin API and MIDI gesture use.
package oscfailover

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"go.uber.org/zap"

	"github.com/midinet-audio/midinet/internal/config"
)

// Trigger is the subset of internal/redundancy.Controller this package
// depends on.
type Trigger interface {
	TriggerManual() bool
}

// Listener reads OSC packets off a UDP socket and fires Trigger.TriggerManual
// when an allow-listed source sends the configured address pattern, subject
// to the controller's own lockout (TriggerManual already rate-limits; this
// package additionally enforces the CIDR allow-list OSC requires).
//
// go-osc's Server.ListenAndServe owns its own socket and never exposes the
// sender's address to the Dispatcher, which makes the CIDR allow-list it
// needs impossible to enforce through the stock server loop. Instead this
// listener owns the socket directly (the same net.ListenUDP pattern used
// throughout this module) and calls osc.ParsePacket to decode each frame,
// which still exercises the library for what it's good at — OSC framing —
// without losing the sender's address.
type Listener struct {
	log     *zap.Logger
	cfg     config.OSCTriggerConfig
	trigger Trigger

	conn    *net.UDPConn
	allowed []*net.IPNet

	lockout time.Duration
	last    time.Time
}

// NewListener binds the configured listen port. lockout is the minimum
// interval between accepted triggers (config.FailoverConfig.LockoutSeconds).
func NewListener(cfg config.OSCTriggerConfig, lockout time.Duration, trigger Trigger, log *zap.Logger) (*Listener, error) {
	log = log.Named("oscfailover")

	var allowed []*net.IPNet
	for _, cidr := range cfg.AllowedSources {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("oscfailover: invalid allowed_sources entry %q: %w", cidr, err)
		}
		allowed = append(allowed, ipnet)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: cfg.ListenPort})
	if err != nil {
		return nil, fmt.Errorf("oscfailover: listen on port %d: %w", cfg.ListenPort, err)
	}

	return &Listener{
		log:     log,
		cfg:     cfg,
		trigger: trigger,
		conn:    conn,
		allowed: allowed,
		lockout: lockout,
	}, nil
}

func (l *Listener) Close() error {
	return l.conn.Close()
}

// Run reads OSC packets until ctx is cancelled. Disabled triggers (per
// config) still bind the socket but never fire.
func (l *Listener) Run(ctx context.Context) error {
	buf := make([]byte, 1500)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		l.handle(buf[:n], addr, time.Now())
	}
}

func (l *Listener) handle(data []byte, from *net.UDPAddr, now time.Time) {
	if !l.cfg.Enabled {
		return
	}
	if !l.sourceAllowed(from.IP) {
		l.log.Warn("rejected osc trigger from disallowed source", zap.Stringer("addr", from))
		return
	}

	packet, err := osc.ParsePacket(string(data))
	if err != nil {
		return
	}
	msg, ok := packet.(*osc.Message)
	if !ok {
		return
	}
	if msg.Address != l.cfg.Address {
		return
	}

	if now.Sub(l.last) < l.lockout {
		l.log.Debug("osc trigger ignored (lockout)", zap.Stringer("addr", from))
		return
	}

	if l.trigger.TriggerManual() {
		l.last = now
		l.log.Info("osc failover trigger accepted", zap.Stringer("addr", from), zap.String("address", msg.Address))
	}
}

func (l *Listener) sourceAllowed(ip net.IP) bool {
	if len(l.allowed) == 0 {
		return true
	}
	for _, ipnet := range l.allowed {
		if ipnet.Contains(ip) {
			return true
		}
	}
	return false
}
