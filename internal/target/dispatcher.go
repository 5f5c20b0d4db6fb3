package target

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/scxmlgo/scxml/internal/primitives"
	"github.com/scxmlgo/scxml/internal/scheduler"
)

// RateLimit configures the token bucket applied to sends against a given
// target scheme (internal/parent/invoke or an external scheme name).
// Grounded on the per-destination limiter in
// agentflare-ai-agentml-go/gemini/ratelimiter.go, adapted from limiting
// outbound model calls to limiting outbound SCXML sends per scheme.
type RateLimit struct {
	RatePerSecond float64
	Burst         int
}

// Dispatcher composes a Registry with a scheduler.Scheduler to implement
// <send>: immediate delivery for a zero delay, deferred delivery (C3)
// otherwise, with per-scheme rate limiting and "!"-prefixed target
// rejection applied uniformly to both paths.
type Dispatcher struct {
	registry  *Registry
	scheduler *scheduler.Scheduler
	logger    zerolog.Logger

	mu       sync.Mutex
	limits   map[string]RateLimit
	limiters map[string]*rate.Limiter
}

// NewDispatcher creates a Dispatcher and the C3 Scheduler it owns, wiring
// the scheduler's fire callback back to the dispatcher's own resolution
// path so a target is re-resolved (not cached) at delivery time.
func NewDispatcher(registry *Registry, logger zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		logger:   logger,
		limits:   make(map[string]RateLimit),
		limiters: make(map[string]*rate.Limiter),
	}
	d.scheduler = scheduler.New(d.DeliverScheduled, logger)
	return d
}

// Shutdown stops the owned scheduler; see scheduler.Scheduler.Shutdown.
func (d *Dispatcher) Shutdown(wait bool) {
	d.scheduler.Shutdown(wait)
}

// SetRateLimit installs (or replaces) the token bucket for scheme. scheme is
// "internal", "parent", "invoke", or an external scheme name such as "http".
func (d *Dispatcher) SetRateLimit(scheme string, limit RateLimit) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.limits[scheme] = limit
	d.limiters[scheme] = rate.NewLimiter(rate.Limit(limit.RatePerSecond), limit.Burst)
}

func (d *Dispatcher) limiterFor(scheme string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.limiters[scheme]
}

// Dispatch resolves targetURI and either delivers ev immediately (delay<=0)
// or schedules it via C3. It returns the effective sendid: for a scheduled
// send, the caller's sendID or, when that is "", the id the scheduler mints
// (so a later <cancel> can find it); for an immediate send, the caller's
// sendID as given ("" if it used none).
func (d *Dispatcher) Dispatch(ctx context.Context, sourceSessionID string, ev primitives.Event, targetURI string, delay time.Duration, sendID string) (string, error) {
	t, err := d.registry.Resolve(sourceSessionID, targetURI)
	if err != nil {
		return "", err
	}
	if errs := t.Validate(); len(errs) > 0 {
		return "", errs[0]
	}

	if delay <= 0 {
		if err := d.throttle(ctx, t.TargetType()); err != nil {
			return "", err
		}
		if err := t.Send(ctx, ev); err != nil {
			return "", err
		}
		return sendID, nil
	}

	return d.scheduler.Schedule(sourceSessionID, ev, delay, targetURI, sendID)
}

// DeliverScheduled is the scheduler.Deliver callback NewDispatcher wires
// into its own scheduler: it re-resolves the target (session topology may have
// changed since scheduling) and sends.
func (d *Dispatcher) DeliverScheduled(sessionID string, ev primitives.Event, targetURI string) {
	t, err := d.registry.Resolve(sessionID, targetURI)
	if err != nil {
		d.logger.Warn().Err(err).Str("session", sessionID).Str("target", targetURI).Msg("target: scheduled send could not be resolved at fire time")
		return
	}
	if err := d.throttle(context.Background(), t.TargetType()); err != nil {
		d.logger.Warn().Err(err).Msg("target: rate limit wait failed for scheduled send")
		return
	}
	if err := t.Send(context.Background(), ev); err != nil {
		d.logger.Warn().Err(err).Str("session", sessionID).Str("target", targetURI).Msg("target: scheduled send delivery failed")
	}
}

func (d *Dispatcher) throttle(ctx context.Context, scheme string) error {
	limiter := d.limiterFor(scheme)
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// Cancel forwards to the underlying scheduler, per <cancel sendid="...">.
func (d *Dispatcher) Cancel(sendID string) bool {
	return d.scheduler.Cancel(sendID)
}

// CancelForSession forwards to the underlying scheduler, used when a session
// terminates so its scheduled sends never fire into a dead session.
func (d *Dispatcher) CancelForSession(sessionID string) int {
	return d.scheduler.CancelForSession(sessionID)
}

// Schemes reports every externally-registered I/O processor scheme, used to
// populate a session's _ioprocessors system variable.
func (d *Dispatcher) Schemes() []string {
	return d.registry.Schemes()
}
