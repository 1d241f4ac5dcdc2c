package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/altered-tcg-client/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	rateLimitHitsTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "altered_rate_limit_hits_total",
		Help: "Total number of rate-limited (429) responses recorded",
	})

	rateLimitWaitsTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "altered_rate_limit_waits_total",
		Help: "Total number of requests delayed by an active cooldown",
	})

	rateLimitWaitSeconds = promauto.With(metrics.Registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "altered_rate_limit_wait_seconds",
		Help:    "Time requests spent waiting for a rate limit cooldown",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

// Tracker records rate limit cooldowns and gates requests on them.
type Tracker struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewTracker creates a new rate limit tracker.
func NewTracker(store Store, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// GetState retrieves the current rate limit state.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	state, err := t.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}
	return state, nil
}

// RecordRateLimit registers a rate-limited response. A non-positive
// retryAfter falls back to DefaultCooldown.
func (t *Tracker) RecordRateLimit(ctx context.Context, retryAfter time.Duration) error {
	if retryAfter <= 0 {
		retryAfter = DefaultCooldown
	}
	now := t.now()
	until := now.Add(retryAfter)

	if err := t.store.Extend(ctx, until, now); err != nil {
		return err
	}
	rateLimitHitsTotal.Inc()

	t.logger.Warn().
		Dur("cooldown", retryAfter).
		Time("blocked_until", until).
		Msg("Rate limited - cooling down")
	return nil
}

// Wait blocks until any active cooldown has passed or ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		return err
	}

	wait := state.TimeUntilUnblocked(t.now())
	if wait <= 0 {
		return nil
	}

	rateLimitWaitsTotal.Inc()
	rateLimitWaitSeconds.Observe(wait.Seconds())
	t.logger.Debug().
		Dur("wait", wait).
		Int64("hits", state.Hits).
		Msg("Waiting for rate limit cooldown")

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
