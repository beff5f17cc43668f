package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Config controls client-side pacing.
type Config struct {
	// RequestsPerSecond enables a token bucket when > 0.
	RequestsPerSecond float64

	// Burst is the token bucket size. Defaults to 1 when pacing is enabled.
	Burst int

	// ThrottleDelay is slept before each request while the server reports a low
	// remaining quota. 0 disables throttling.
	ThrottleDelay time.Duration

	// MaxBlock caps how long a single Wait holds a request for a window reset.
	MaxBlock time.Duration
}

// DefaultConfig returns a config with pacing disabled.
func DefaultConfig() Config {
	return Config{
		ThrottleDelay: 250 * time.Millisecond,
		MaxBlock:      60 * time.Second,
	}
}

// Tracker monitors server rate limits and gates requests.
// The mutex guards the header snapshot only and is never held while waiting.
type Tracker struct {
	mu    sync.Mutex
	state RateLimitState

	limiter       *rate.Limiter
	throttleDelay time.Duration
	maxBlock      time.Duration
	logger        zerolog.Logger
}

// NewTracker creates a new rate limit tracker.
func NewTracker(cfg Config, logger zerolog.Logger) *Tracker {
	t := &Tracker{
		throttleDelay: cfg.ThrottleDelay,
		maxBlock:      cfg.MaxBlock,
		logger:        logger,
	}
	t.state.UpdateHealth()

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return t
}

// GetState returns a copy of the current rate limit state.
func (t *Tracker) GetState() RateLimitState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// UpdateFromHeaders parses rate limit headers and updates the snapshot.
// Responses without X-RateLimit-Remaining leave the state untouched.
func (t *Tracker) UpdateFromHeaders(headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(strings.TrimSpace(remainStr))
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	limit := 0
	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		limit, err = strconv.Atoi(strings.TrimSpace(limitStr))
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
	}

	now := time.Now()
	state := RateLimitState{
		Known:      true,
		Remaining:  remain,
		Limit:      limit,
		LastUpdate: now,
	}

	if resetStr := headers.Get(HeaderReset); resetStr != "" {
		resetSeconds, err := strconv.Atoi(strings.TrimSpace(resetStr))
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderReset, err)
		}
		state.ResetAt = now.Add(time.Duration(resetSeconds) * time.Second)
	}
	state.UpdateHealth()

	t.mu.Lock()
	t.state = state
	t.mu.Unlock()

	rateLimitRemaining.Set(float64(remain))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Warn().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit exhausted - requests will wait for reset")
	case state.NeedsThrottling():
		t.logger.Debug().
			Int("remaining", remain).
			Msg("Rate limit low - requests will be throttled")
	}

	return nil
}

// Wait blocks until a request may be sent: first while the server reports an
// exhausted window, then on the client-side token bucket.
// Returns ctx.Err() if the context ends first.
func (t *Tracker) Wait(ctx context.Context) error {
	start := time.Now()
	defer func() {
		rateLimitWaitSeconds.Observe(time.Since(start).Seconds())
	}()

	state := t.GetState()

	switch {
	case state.NeedsCriticalBlock():
		wait := state.TimeUntilReset()
		if t.maxBlock > 0 && wait > t.maxBlock {
			wait = t.maxBlock
		}

		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("wait_duration", wait).
			Msg("Rate limit exhausted - holding request")

		rateLimitBlocksTotal.Inc()
		if err := sleep(ctx, wait); err != nil {
			return err
		}

	case state.NeedsThrottling() && t.throttleDelay > 0:
		rateLimitThrottlesTotal.Inc()
		if err := sleep(ctx, t.throttleDelay); err != nil {
			return err
		}
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	return nil
}

// ParseRetryAfter reads the Retry-After header, given either in seconds or as an
// HTTP date. ok is false when the header is absent or malformed.
func ParseRetryAfter(headers http.Header) (d time.Duration, ok bool) {
	v := strings.TrimSpace(headers.Get(HeaderRetryAfter))
	if v == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}

	if at, err := http.ParseTime(v); err == nil {
		d = time.Until(at)
		if d < 0 {
			d = 0
		}
		return d, true
	}

	return 0, false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
