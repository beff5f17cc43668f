// Package ratelimit implements rate limit tracking and request gating for the
// validation endpoint. It follows the X-RateLimit-Remaining, X-RateLimit-Limit
// and X-RateLimit-Reset headers and can additionally pace requests with a
// client-side token bucket.
package ratelimit

import (
	"time"
)

// Response headers read by the tracker.
const (
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Thresholds for rate limit decisions.
const (
	// RemainingThresholdCritical blocks requests until the window resets when the
	// remaining quota falls below this value.
	RemainingThresholdCritical = 1

	// RemainingThresholdWarning applies throttling when the remaining quota falls
	// below this value.
	RemainingThresholdWarning = 5

	// RemainingThresholdHealthy indicates normal operation.
	RemainingThresholdHealthy = 20
)

// RateLimitState is the latest rate limit snapshot reported by the server.
// It lives in memory only and belongs to a single process.
type RateLimitState struct {
	// Known is false until a response carried rate limit headers.
	Known bool `json:"known"`

	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// Limit is the window size, 0 when the server does not send it.
	Limit int `json:"limit"`

	// ResetAt is when the current window ends.
	ResetAt time.Time `json:"reset_at"`

	LastUpdate time.Time `json:"last_update"`
	IsHealthy  bool      `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests must wait for the window to reset.
// A window that has already reset never blocks.
func (s *RateLimitState) NeedsCriticalBlock() bool {
	return s.Known && s.Remaining < RemainingThresholdCritical && s.TimeUntilReset() > 0
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *RateLimitState) NeedsThrottling() bool {
	if !s.Known || s.Remaining >= RemainingThresholdWarning {
		return false
	}
	if s.Remaining < RemainingThresholdCritical {
		return false
	}
	return s.ResetAt.IsZero() || s.TimeUntilReset() > 0
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on current Remaining.
func (s *RateLimitState) UpdateHealth() {
	s.IsHealthy = !s.Known || s.Remaining >= RemainingThresholdHealthy
}
