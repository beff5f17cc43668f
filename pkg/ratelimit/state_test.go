package ratelimit

import (
	"testing"
	"time"
)

func TestRateLimitState_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		state    *RateLimitState
		maxAge   time.Duration
		expected bool
	}{
		{
			name:     "fresh state",
			state:    &RateLimitState{LastUpdate: time.Now()},
			maxAge:   5 * time.Minute,
			expected: false,
		},
		{
			name:     "stale state",
			state:    &RateLimitState{LastUpdate: time.Now().Add(-10 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.state.IsStale(tt.maxAge)
			if result != tt.expected {
				t.Errorf("IsStale() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestRateLimitState_NeedsCriticalBlock(t *testing.T) {
	future := time.Now().Add(time.Minute)
	past := time.Now().Add(-time.Minute)

	tests := []struct {
		name     string
		state    RateLimitState
		expected bool
	}{
		{
			name:     "unknown state never blocks",
			state:    RateLimitState{Remaining: 0, ResetAt: future},
			expected: false,
		},
		{
			name:     "quota left",
			state:    RateLimitState{Known: true, Remaining: RemainingThresholdCritical, ResetAt: future},
			expected: false,
		},
		{
			name:     "exhausted before reset",
			state:    RateLimitState{Known: true, Remaining: 0, ResetAt: future},
			expected: true,
		},
		{
			name:     "exhausted after reset",
			state:    RateLimitState{Known: true, Remaining: 0, ResetAt: past},
			expected: false,
		},
		{
			name:     "exhausted without reset hint",
			state:    RateLimitState{Known: true, Remaining: 0},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.state.NeedsCriticalBlock()
			if result != tt.expected {
				t.Errorf("NeedsCriticalBlock() = %v, want %v (remaining=%d)", result, tt.expected, tt.state.Remaining)
			}
		})
	}
}

func TestRateLimitState_NeedsThrottling(t *testing.T) {
	tests := []struct {
		name      string
		remaining int
		expected  bool
	}{
		{name: "healthy state", remaining: 50, expected: false},
		{name: "at warning threshold", remaining: RemainingThresholdWarning, expected: false},
		{name: "just below warning threshold", remaining: RemainingThresholdWarning - 1, expected: true},
		{name: "at critical threshold", remaining: RemainingThresholdCritical, expected: true},
		{name: "below critical threshold", remaining: RemainingThresholdCritical - 1, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &RateLimitState{
				Known:     true,
				Remaining: tt.remaining,
				ResetAt:   time.Now().Add(time.Minute),
			}
			result := state.NeedsThrottling()
			if result != tt.expected {
				t.Errorf("NeedsThrottling() = %v, want %v (remaining=%d)", result, tt.expected, tt.remaining)
			}
		})
	}
}

func TestRateLimitState_TimeUntilReset(t *testing.T) {
	state := &RateLimitState{ResetAt: time.Now().Add(5 * time.Minute)}
	diff := state.TimeUntilReset() - 5*time.Minute
	if diff < -time.Second || diff > time.Second {
		t.Errorf("TimeUntilReset() = %v, want approximately 5m", state.TimeUntilReset())
	}

	state = &RateLimitState{ResetAt: time.Now().Add(-5 * time.Minute)}
	if got := state.TimeUntilReset(); got != 0 {
		t.Errorf("TimeUntilReset() = %v, want 0 for past reset time", got)
	}
}

func TestRateLimitState_UpdateHealth(t *testing.T) {
	tests := []struct {
		name     string
		state    RateLimitState
		expected bool
	}{
		{name: "unknown is healthy", state: RateLimitState{}, expected: true},
		{name: "at healthy threshold", state: RateLimitState{Known: true, Remaining: RemainingThresholdHealthy}, expected: true},
		{name: "below healthy threshold", state: RateLimitState{Known: true, Remaining: RemainingThresholdHealthy - 1}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.state.UpdateHealth()
			if tt.state.IsHealthy != tt.expected {
				t.Errorf("IsHealthy = %v, want %v", tt.state.IsHealthy, tt.expected)
			}
		})
	}
}
