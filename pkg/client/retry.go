package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/Sternrassler/account-validator/pkg/validation"
	"github.com/rs/zerolog/log"
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the computed backoff and any Retry-After hint.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64

	// Jitter adds ±20% randomness to every backoff.
	Jitter bool
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// Backoff returns the un-jittered wait before retry n (1-based):
// InitialBackoff * BackoffMultiplier^(n-1), capped at MaxBackoff.
func (c RetryConfig) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	multiplier := c.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}

	backoff := float64(c.InitialBackoff)
	for i := 1; i < n; i++ {
		backoff *= multiplier
		if c.MaxBackoff > 0 && backoff >= float64(c.MaxBackoff) {
			return c.MaxBackoff
		}
	}

	d := time.Duration(backoff)
	if c.MaxBackoff > 0 && d > c.MaxBackoff {
		d = c.MaxBackoff
	}
	return d
}

func (c RetryConfig) withJitter(d time.Duration) time.Duration {
	if !c.Jitter || d <= 0 {
		return d
	}
	return time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
}

// attemptResult is what one attempt reports back to the retry loop.
type attemptResult struct {
	// outcome is set when the attempt produced a definite Valid or Invalid verdict.
	outcome *validation.Outcome

	// class is empty on success, otherwise the classification of the failure.
	class ErrorClass
	err   error

	// retryAfter is a server hint raising the next backoff.
	retryAfter time.Duration

	// immediate skips the backoff sleep before the next attempt.
	immediate bool

	// fatal stops the loop and must be surfaced to the caller as a system error.
	fatal error

	// halt ends the loop before anything was sent in this attempt. The previous
	// result is kept as the last one.
	halt error
}

func (r attemptResult) terminal() bool {
	return r.fatal != nil || r.class == "" || !shouldRetry(r.class)
}

// retryWithBackoff runs fn until it reports a terminal result or the retry budget
// is spent. It returns the number of retries consumed and the last result.
// The error is non-nil when the loop ended without a terminal result:
// ErrRetryExhausted, ErrContextCancelled or ErrStopped, or the halt error of
// an attempt that gave up before sending.
// The stop channel and context are checked before each attempt and during each
// backoff sleep. A nil stop channel never fires.
func retryWithBackoff(ctx context.Context, stop <-chan struct{}, config RetryConfig, fn func(attempt int) attemptResult) (int, attemptResult, error) {
	var last attemptResult
	retries := 0

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return retries, last, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-stop:
			return retries, last, ErrStopped
		default:
		}

		res := fn(attempt)
		if res.halt != nil {
			return retries, last, res.halt
		}
		last = res
		if last.terminal() {
			if attempt > 1 && last.class == "" {
				log.Debug().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return retries, last, nil
		}

		if retries >= config.MaxRetries {
			break
		}
		retries++
		retriesTotal.WithLabelValues(string(last.class)).Inc()

		if last.immediate {
			log.Debug().
				Str("error_class", string(last.class)).
				Int("attempt", attempt).
				Msg("Retrying request immediately")
			continue
		}

		wait := config.withJitter(config.Backoff(retries))
		if last.retryAfter > wait {
			wait = last.retryAfter
			if config.MaxBackoff > 0 && wait > config.MaxBackoff {
				wait = config.MaxBackoff
			}
		}
		retryBackoffSeconds.WithLabelValues(string(last.class)).Observe(wait.Seconds())

		log.Debug().
			Str("error_class", string(last.class)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Debug().
				Str("error_class", string(last.class)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return retries, last, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-stop:
			timer.Stop()
			return retries, last, ErrStopped
		case <-timer.C:
		}
	}

	retryExhaustedTotal.WithLabelValues(string(last.class)).Inc()
	log.Debug().
		Str("error_class", string(last.class)).
		Int("max_retries", config.MaxRetries).
		Msg("Retry attempts exhausted")

	return retries, last, fmt.Errorf("%w after %d retries: %v", ErrRetryExhausted, retries, last.err)
}
