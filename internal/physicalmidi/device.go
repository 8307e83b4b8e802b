// Package physicalmidi is the real hardware MIDI I/O capability §6.2
// names: list(), open(id), read(), write(msg), close(), with hot-plug
// detection so a host keeps running across a controller being unplugged
// and replugged.
package physicalmidi

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"go.uber.org/zap"

	"github.com/midinet-audio/midinet/internal/protocol"
)

// RescanInterval is how often Watcher re-lists available ports looking
// for the configured device to appear (or disappear).
const RescanInterval = 1 * time.Second

// ErrNotConnected is returned by Read/Write when no device is currently
// open.
var ErrNotConnected = fmt.Errorf("physicalmidi: no device connected")

// Watcher maintains a connection to one input (and, if available, the
// matching output for focus feedback) selected by name or substring
// match, reconnecting automatically across hot-unplug/replug: the same
// listInputs/pickPreferred/Tick-driven rescan shape, generalized from a
// fixed preferred-pattern list to a single configured device selector
// ("auto" | "auto:<substr>" | exact id, per internal/config.MIDIConfig.Device)
// and extended with output-port selection for the focus feedback path
// (§4.11).
type Watcher struct {
	log      *zap.Logger
	selector string

	mu           sync.Mutex
	drv          *rtmididrv.Driver
	in           drivers.In
	out          drivers.Out
	stopListen   func()
	connected    bool
	selectedName string
	lastRescan   time.Time

	incoming chan protocol.MidiMessage
}

// New opens the rtmidi driver and returns a Watcher selecting ports by
// selector ("auto" matches the first available input; "auto:<substr>"
// matches case-insensitively; anything else is matched as an exact port
// name).
func New(selector string, log *zap.Logger) (*Watcher, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("physicalmidi: open rtmidi driver: %w", err)
	}
	return &Watcher{
		log:      log.Named("physicalmidi"),
		selector: selector,
		drv:      drv,
		incoming: make(chan protocol.MidiMessage, 256),
	}, nil
}

// Close disconnects the active device and shuts down the driver.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.disconnect()
	return w.drv.Close()
}

// Tick scans for the configured device once per RescanInterval, call
// from a periodic goroutine (the host's cooperative task pool, §5 — this
// is not the real-time read path, which is Read's channel receive).
func (w *Watcher) Tick() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	if !w.lastRescan.IsZero() && now.Sub(w.lastRescan) < RescanInterval {
		return
	}
	w.lastRescan = now

	ins, err := w.drv.Ins()
	if err != nil {
		w.log.Warn("list midi inputs failed", zap.Error(err))
		return
	}

	if w.connected {
		for _, in := range ins {
			if in.String() == w.selectedName {
				return
			}
		}
		w.log.Warn("midi device disappeared", zap.String("device", w.selectedName))
		w.disconnect()
		w.lastRescan = time.Time{}
		return
	}

	name, ok := pick(w.selector, ins)
	if !ok {
		return
	}
	if err := w.connect(name); err != nil {
		w.log.Warn("midi device connect failed", zap.String("device", name), zap.Error(err))
	}
}

func pick(selector string, ins []drivers.In) (string, bool) {
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	switch {
	case selector == "auto":
		if len(names) > 0 {
			return names[0], true
		}
	case strings.HasPrefix(selector, "auto:"):
		want := strings.ToLower(strings.TrimPrefix(selector, "auto:"))
		for _, n := range names {
			if strings.Contains(strings.ToLower(n), want) {
				return n, true
			}
		}
	default:
		for _, n := range names {
			if n == selector {
				return n, true
			}
		}
	}
	return "", false
}

func (w *Watcher) connect(name string) error {
	ins, err := w.drv.Ins()
	if err != nil {
		return err
	}
	var in drivers.In
	for _, candidate := range ins {
		if candidate.String() == name {
			in = candidate
			break
		}
	}
	if in == nil {
		return fmt.Errorf("input %q not found", name)
	}
	if err := in.Open(); err != nil {
		return fmt.Errorf("open input %q: %w", name, err)
	}

	stop, err := midi.ListenTo(in, w.handleMessage, midi.HandleError(func(listenErr error) {
		w.log.Warn("midi listener error", zap.String("device", name), zap.Error(listenErr))
		go func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if w.connected && w.selectedName == name {
				w.disconnect()
				w.lastRescan = time.Time{}
			}
		}()
	}))
	if err != nil {
		_ = in.Close()
		return fmt.Errorf("listen on %q: %w", name, err)
	}

	w.in = in
	w.stopListen = stop
	w.connected = true
	w.selectedName = name

	if out, ok := w.matchingOutput(name); ok {
		if err := out.Open(); err == nil {
			w.out = out
		}
	}

	w.log.Info("midi device connected", zap.String("device", name))
	return nil
}

// matchingOutput looks for an output port with the same name as the
// connected input — the common case for a USB controller exposing a
// single bidirectional port pair, used for focus feedback (§4.11).
func (w *Watcher) matchingOutput(name string) (drivers.Out, bool) {
	outs, err := w.drv.Outs()
	if err != nil {
		return nil, false
	}
	for _, out := range outs {
		if out.String() == name {
			return out, true
		}
	}
	return nil, false
}

func (w *Watcher) disconnect() {
	if w.stopListen != nil {
		w.stopListen()
		w.stopListen = nil
	}
	if w.in != nil {
		_ = w.in.Close()
		w.in = nil
	}
	if w.out != nil {
		_ = w.out.Close()
		w.out = nil
	}
	w.connected = false
	w.selectedName = ""
}

func (w *Watcher) handleMessage(msg midi.Message, _ int32) {
	out, ok := fromMIDI(msg)
	if !ok {
		return
	}
	out.TimestampNS = uint64(time.Now().UnixNano())
	select {
	case w.incoming <- out:
	default:
		w.log.Warn("physicalmidi ingress buffer full, dropping message")
	}
}

// Read implements internal/host.MessageSource: it blocks until a message
// has been decoded from the connected device or ctx is cancelled.
func (w *Watcher) Read(ctx context.Context) (protocol.MidiMessage, error) {
	select {
	case msg := <-w.incoming:
		return msg, nil
	case <-ctx.Done():
		return protocol.MidiMessage{}, ctx.Err()
	}
}

// Write implements internal/focus.PhysicalOutput: it sends msg out the
// matching output port, if one was found at connect time.
func (w *Watcher) Write(msg protocol.MidiMessage) error {
	w.mu.Lock()
	out := w.out
	w.mu.Unlock()
	if out == nil {
		return ErrNotConnected
	}
	return out.Send(toWireBytes(msg))
}

// Connected reports whether an input device is currently open.
func (w *Watcher) Connected() (name string, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectedName, w.connected
}
