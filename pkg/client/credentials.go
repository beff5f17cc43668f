package client

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/account-validator/pkg/validation"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Credential is an API key shared read-only by all executors.
// A refresh replaces the whole value; it is never mutated in place.
type Credential struct {
	Token      string
	AcquiredAt time.Time

	// Generation starts at 1 and increases with every replacement.
	Generation uint64
}

// CredentialManager owns the process-wide API key. Reads are lock-free;
// concurrent acquisitions collapse into a single key request.
type CredentialManager struct {
	client  *Client
	retry   RetryConfig
	current atomic.Pointer[Credential]
	group   singleflight.Group
	logger  zerolog.Logger
}

// NewCredentialManager creates a manager fetching keys through c. A non-empty
// apiKey seeds generation 1 without a network call.
func NewCredentialManager(c *Client, apiKey string) *CredentialManager {
	m := &CredentialManager{
		client: c,
		retry:  c.config.RetryConfig(),
		logger: log.With().Str("component", "credentials").Logger(),
	}
	if apiKey != "" {
		m.current.Store(&Credential{
			Token:      apiKey,
			AcquiredAt: time.Now(),
			Generation: 1,
		})
	}
	return m
}

// Current returns the cached credential or nil.
func (m *CredentialManager) Current() *Credential {
	return m.current.Load()
}

// Token returns the cached credential, acquiring one if none exists or
// forceRefresh is set.
func (m *CredentialManager) Token(ctx context.Context, forceRefresh bool) (*Credential, error) {
	cur := m.current.Load()
	if !forceRefresh {
		if cur != nil {
			return cur, nil
		}
		return m.acquire(ctx, 0, "initial")
	}
	return m.acquire(ctx, generation(cur), "refresh")
}

// Refresh replaces stale with a new credential. If stale has already been
// replaced, the current credential is returned without a network call, so any
// number of callers rejected with the same credential cause one refresh.
func (m *CredentialManager) Refresh(ctx context.Context, stale *Credential) (*Credential, error) {
	if cur := m.current.Load(); cur != nil && cur.Generation != generation(stale) {
		return cur, nil
	}
	return m.acquire(ctx, generation(stale), "refresh")
}

// acquire fetches a key unless the current generation already differs from
// staleGen. Callers only share a fetch when they hold the same stale
// generation, and the result is always newer than staleGen. The shared fetch
// outlives an individual caller's cancellation.
func (m *CredentialManager) acquire(ctx context.Context, staleGen uint64, reason string) (*Credential, error) {
	ch := m.group.DoChan(flightKey(staleGen), func() (any, error) {
		cur := m.current.Load()
		if cur != nil && cur.Generation != staleGen {
			return cur, nil
		}

		token, err := m.fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		next := &Credential{
			Token:      token,
			AcquiredAt: time.Now(),
			Generation: generation(cur) + 1,
		}
		if !m.current.CompareAndSwap(cur, next) {
			return m.current.Load(), nil
		}
		credentialAcquisitionsTotal.WithLabelValues(reason).Inc()

		m.logger.Info().
			Str("reason", reason).
			Uint64("generation", next.Generation).
			Msg("API key acquired")

		return next, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Credential), nil
	}
}

// fetch calls the key endpoint under the shared retry policy. Failures wrap
// validation.ErrAuth.
func (m *CredentialManager) fetch(ctx context.Context) (string, error) {
	var token string

	_, last, err := retryWithBackoff(ctx, nil, m.retry, func(attempt int) attemptResult {
		resp, err := m.client.FetchKey(ctx)
		if err != nil {
			class := classifyTransportError(ctx, err)
			errorsTotal.WithLabelValues(string(class)).Inc()
			return attemptResult{class: class, err: err}
		}

		class := classifyStatus(resp.StatusCode)
		if class == "" {
			key, err := decodeKey(resp.Body)
			if err != nil {
				return attemptResult{class: ErrorClassClient, err: err}
			}
			token = key
			return attemptResult{}
		}

		// A rejected key request will not succeed with another key request.
		if class == ErrorClassAuth {
			class = ErrorClassClient
		}
		errorsTotal.WithLabelValues(string(class)).Inc()

		m.logger.Warn().
			Int("status", resp.StatusCode).
			Int("attempt", attempt).
			Str("error_class", string(class)).
			Msg("API key request failed")

		return attemptResult{
			class: class,
			err: &APIError{
				StatusCode: resp.StatusCode,
				ErrorClass: class,
				Message:    string(resp.Body),
			},
		}
	})
	if err != nil {
		return "", fmt.Errorf("%w: fetch API key: %v", validation.ErrAuth, err)
	}
	if last.class != "" {
		return "", fmt.Errorf("%w: fetch API key: %v", validation.ErrAuth, last.err)
	}

	return token, nil
}

func flightKey(staleGen uint64) string {
	return "credential:" + strconv.FormatUint(staleGen, 10)
}

func generation(c *Credential) uint64 {
	if c == nil {
		return 0
	}
	return c.Generation
}
