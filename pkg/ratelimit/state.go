// Package ratelimit tracks marketplace rate-limit responses (HTTP 429) and
// gates outgoing requests until the cooldown they announce has passed.
// The state can live in process memory or be shared through Redis so that
// several CLI processes back off together.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyBlockedUntil = "altered:rate_limit:blocked_until"
	RedisKeyHits         = "altered:rate_limit:hits"
	RedisKeyLastUpdate   = "altered:rate_limit:last_update"
)

// DefaultCooldown is applied when a 429 response carries no usable Retry-After header.
const DefaultCooldown = 1 * time.Second

// RateLimitState represents the current rate limit cooldown.
type RateLimitState struct {
	// BlockedUntil is the instant before which no request should be sent.
	BlockedUntil time.Time `json:"blocked_until"`

	// Hits counts the rate-limited responses observed so far.
	Hits int64 `json:"hits"`

	// LastUpdate is the timestamp when this state was last updated.
	LastUpdate time.Time `json:"last_update"`
}

// IsBlocked reports whether requests should currently wait.
func (s *RateLimitState) IsBlocked(now time.Time) bool {
	return now.Before(s.BlockedUntil)
}

// TimeUntilUnblocked returns the remaining cooldown.
// Returns 0 if the cooldown has already passed.
func (s *RateLimitState) TimeUntilUnblocked(now time.Time) time.Duration {
	d := s.BlockedUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// IsStale returns true if the state data is older than the given duration.
func (s *RateLimitState) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.LastUpdate) > maxAge
}
