// Package focus implements the host-side focus/feedback arbitration from
// §4.11: at most one client's virtual-device input is relayed back to the
// physical device at any time, via a renewable lease.
package focus

import (
	"time"

	"go.uber.org/zap"

	"github.com/midinet-audio/midinet/internal/config"
)

// Decision is the outcome of evaluating a Claim.
type Decision int

const (
	Granted Decision = iota
	Denied
)

func (d Decision) String() string {
	if d == Granted {
		return "granted"
	}
	return "denied"
}

// Controller tracks the current focus holder and arbitrates claims
// per §4.11's rules: last-writer-wins claim acceptance, lease-expiry-based
// reclaim, admin-revoke release, generalized from a wrapping-sequence
// comparison to an explicit lease deadline, since this
// wire format (protocol.FocusPacket) carries LeaseUntilNS rather than a
// claim sequence number.
type Controller struct {
	log     *zap.Logger
	leaseMS int

	holder       uint64
	haveHolder   bool
	leaseUntil   time.Time
	lastFeedback time.Time
}

// New returns a Controller using cfg.Focus.LeaseMS as the lease duration.
func New(cfg config.FocusConfig, log *zap.Logger) *Controller {
	leaseMS := cfg.LeaseMS
	if leaseMS <= 0 {
		leaseMS = 10000
	}
	return &Controller{log: log.Named("focus"), leaseMS: leaseMS}
}

// leaseExpired reports whether the current holder's lease has lapsed as
// of now (or there is no holder at all).
func (c *Controller) leaseExpired(now time.Time) bool {
	return !c.haveHolder || now.After(c.leaseUntil)
}

// Claim evaluates a focus claim from clientID at now, with preempt
// controlling whether an active, unexpired different holder can be
// displaced.
//
// Accepted if there is no holder, the holder's lease has expired, the
// requestor already holds focus (lease renewal), or preempt is true.
// Otherwise denied.
func (c *Controller) Claim(clientID uint64, now time.Time, preempt bool) Decision {
	alreadyHolds := c.haveHolder && c.holder == clientID
	if !alreadyHolds && !preempt && !c.leaseExpired(now) {
		c.log.Info("focus claim denied", zap.Uint64("client_id", clientID), zap.Uint64("current_holder", c.holder))
		return Denied
	}

	oldHolder := c.holder
	hadHolder := c.haveHolder
	c.holder = clientID
	c.haveHolder = true
	c.leaseUntil = now.Add(time.Duration(c.leaseMS) * time.Millisecond)
	c.lastFeedback = now

	if !hadHolder || oldHolder != clientID {
		c.log.Info("focus granted", zap.Uint64("client_id", clientID), zap.Bool("had_prior_holder", hadHolder))
	}
	return Granted
}

// Renew extends the current holder's lease, rejecting renewal from a
// client that does not currently hold focus.
func (c *Controller) Renew(clientID uint64, now time.Time) Decision {
	if !c.haveHolder || c.holder != clientID {
		return Denied
	}
	c.leaseUntil = now.Add(time.Duration(c.leaseMS) * time.Millisecond)
	return Granted
}

// Release relinquishes focus if clientID currently holds it, or
// unconditionally if byAdmin is true (admin revoke, §4.11).
func (c *Controller) Release(clientID uint64, byAdmin bool) {
	if !c.haveHolder {
		return
	}
	if !byAdmin && c.holder != clientID {
		return
	}
	c.log.Info("focus released", zap.Uint64("client_id", c.holder), zap.Bool("by_admin", byAdmin))
	c.haveHolder = false
	c.holder = 0
}

// ObserveFeedback records that feedback MIDI was just received from
// clientID, used by ReleaseIfStale to auto-release a holder that has gone
// quiet.
func (c *Controller) ObserveFeedback(clientID uint64, now time.Time) {
	if c.haveHolder && c.holder == clientID {
		c.lastFeedback = now
	}
}

// ReleaseIfStale auto-releases the current holder if it hasn't produced
// feedback within timeout, mirroring the original's 10s
// no-feedback-means-gone heuristic.
func (c *Controller) ReleaseIfStale(now time.Time, timeout time.Duration) bool {
	if !c.haveHolder {
		return false
	}
	if now.Sub(c.lastFeedback) <= timeout {
		return false
	}
	c.log.Info("focus auto-released (feedback timeout)", zap.Uint64("client_id", c.holder))
	c.haveHolder = false
	c.holder = 0
	return true
}

// Holder returns the current focus holder and whether one exists.
func (c *Controller) Holder() (clientID uint64, ok bool) {
	return c.holder, c.haveHolder
}

// AcceptsFeedbackFrom reports whether feedback MIDI from clientID should
// be relayed to the physical device — true only for the current grant,
// enforcing the single-writer property §4.11 requires.
func (c *Controller) AcceptsFeedbackFrom(clientID uint64) bool {
	return c.haveHolder && c.holder == clientID
}
