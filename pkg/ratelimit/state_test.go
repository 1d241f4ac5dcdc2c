package ratelimit

import (
	"testing"
	"time"
)

func TestRateLimitState_IsBlocked(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name         string
		blockedUntil time.Time
		want         bool
	}{
		{"zero state", time.Time{}, false},
		{"cooldown passed", now.Add(-time.Second), false},
		{"cooldown ends now", now, false},
		{"cooldown active", now.Add(time.Second), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &RateLimitState{BlockedUntil: tt.blockedUntil}
			if got := state.IsBlocked(now); got != tt.want {
				t.Errorf("IsBlocked() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRateLimitState_TimeUntilUnblocked(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name         string
		blockedUntil time.Time
		want         time.Duration
	}{
		{"zero state", time.Time{}, 0},
		{"in the past", now.Add(-5 * time.Second), 0},
		{"in the future", now.Add(3 * time.Second), 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &RateLimitState{BlockedUntil: tt.blockedUntil}
			if got := state.TimeUntilUnblocked(now); got != tt.want {
				t.Errorf("TimeUntilUnblocked() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRateLimitState_IsStale(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name       string
		lastUpdate time.Time
		maxAge     time.Duration
		want       bool
	}{
		{"fresh", now.Add(-30 * time.Second), time.Minute, false},
		{"stale", now.Add(-2 * time.Minute), time.Minute, true},
		{"never updated", time.Time{}, time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &RateLimitState{LastUpdate: tt.lastUpdate}
			if got := state.IsStale(now, tt.maxAge); got != tt.want {
				t.Errorf("IsStale() = %v, want %v", got, tt.want)
			}
		})
	}
}
