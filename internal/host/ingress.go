package host

import (
	"context"

	"go.uber.org/zap"

	"github.com/midinet-audio/midinet/internal/pipeline"
	"github.com/midinet-audio/midinet/internal/protocol"
	"github.com/midinet-audio/midinet/internal/ring"
	"github.com/midinet-audio/midinet/internal/rtsched"
)

// MessageSource is anything the ingress reader can pull raw MIDI events
// from — the physical device driver, the redundancy-controller's active
// input, or a test double. Read blocks until a message is available or
// ctx is done.
type MessageSource interface {
	Read(ctx context.Context) (protocol.MidiMessage, error)
}

// IngressReader runs on its own OS thread in production (§5): it never
// suspends on shared state, applies the currently-published pipeline, and
// pushes the result onto the SPSC ring without blocking. A Push that
// finds the ring full is dropped and counted by the ring itself — the
// reader never slows down to accommodate a slow consumer.
type IngressReader struct {
	log      *zap.Logger
	source   MessageSource
	pipeline *pipeline.Publisher
	ring     *ring.Ring
}

// NewIngressReader wires a MessageSource through pub's currently published
// pipeline into r.
func NewIngressReader(source MessageSource, pub *pipeline.Publisher, r *ring.Ring, log *zap.Logger) *IngressReader {
	return &IngressReader{
		log:      log.Named("ingress"),
		source:   source,
		pipeline: pub,
		ring:     r,
	}
}

// Run reads until ctx is cancelled. Every read error is logged and
// retried rather than treated as fatal, however often it repeats, since a
// transient device hiccup shouldn't take down the reader (§7).
func (ir *IngressReader) Run(ctx context.Context) error {
	rtsched.Pin(rtsched.DefaultPriority, ir.log)
	for {
		msg, err := ir.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ir.log.Warn("ingress read failed", zap.Error(err))
			continue
		}

		out, keep := ir.pipeline.Load().Apply(msg)
		if !keep {
			continue
		}
		_ = ir.ring.Push(out)
	}
}
