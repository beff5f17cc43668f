package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/account-validator/pkg/validation"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Executor validates single records with retry, backoff and credential refresh.
// One Executor is shared by all workers.
type Executor struct {
	client *Client
	creds  *CredentialManager
	retry  RetryConfig
	logger zerolog.Logger
}

// NewExecutor creates an executor on top of an existing client and credential manager.
func NewExecutor(c *Client, creds *CredentialManager) *Executor {
	return &Executor{
		client: c,
		creds:  creds,
		retry:  c.config.RetryConfig(),
		logger: log.With().Str("component", "executor").Logger(),
	}
}

// NewExecutorFromConfig builds the client, credential manager and executor in one step.
func NewExecutorFromConfig(cfg Config) (*Executor, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return NewExecutor(c, NewCredentialManager(c, cfg.APIKey)), nil
}

// Credentials returns the executor's credential manager.
func (e *Executor) Credentials() *CredentialManager {
	return e.creds
}

// Validate produces the outcome for one record. The error is non-nil only for
// fatal system errors (validation.ErrAuth); every remote result, including
// exhausted retries, is reported through the outcome.
//
// stop is checked before each attempt, during each backoff sleep and while a
// request is held for rate limit quota. A record stopped before its first
// request is sent is reported as NOT_ATTEMPTED.
func (e *Executor) Validate(ctx context.Context, rec validation.Record, stop <-chan struct{}) (validation.Outcome, error) {
	start := time.Now()

	if err := rec.Validate(); err != nil {
		out := validation.NewInvalid(rec, validation.ReasonInvalidFormat, err.Error())
		out.Duration = time.Since(start)
		return out, nil
	}

	if halted(ctx, stop) {
		return validation.NotAttempted(rec), nil
	}

	cred, err := e.creds.Token(ctx, false)
	if err != nil {
		if ctx.Err() != nil {
			return validation.NotAttempted(rec), nil
		}
		out := validation.NewErrored(rec, validation.ErrorKindAuthentication, err.Error())
		out.Duration = time.Since(start)
		return out, err
	}

	attempts := 0
	retries, last, loopErr := retryWithBackoff(ctx, stop, e.retry, func(attempt int) attemptResult {
		if err := e.waitForQuota(ctx, stop); err != nil {
			return attemptResult{halt: err}
		}
		attempts = attempt

		resp, err := e.client.Validate(ctx, rec, cred.Token)
		res := classify(ctx, rec, resp, err)
		if res.class == "" {
			return res
		}
		errorsTotal.WithLabelValues(string(res.class)).Inc()

		e.logger.Debug().
			Str("account", rec.MaskedAccount()).
			Str("bank_code", rec.BankCode).
			Int("attempt", attempt).
			Str("error_class", string(res.class)).
			Err(res.err).
			Msg("Validation attempt failed")

		// No refresh once the budget is spent; the next attempt would never run.
		if res.class == ErrorClassAuth && attempt <= e.retry.MaxRetries {
			fresh, err := e.creds.Refresh(ctx, cred)
			if err != nil {
				if ctx.Err() != nil {
					return attemptResult{class: ErrorClassCancelled, err: err}
				}
				res.fatal = err
				return res
			}
			cred = fresh
			res.immediate = true
		}
		return res
	})

	out, fatal := e.resolve(rec, attempts, last, loopErr)
	out.Attempts = attempts
	out.Retries = retries
	out.Duration = time.Since(start)

	if out.Kind == validation.KindErrored {
		e.logger.Warn().
			Str("account", rec.MaskedAccount()).
			Str("bank_code", rec.BankCode).
			Str("error_kind", string(out.ErrorKind)).
			Int("attempts", attempts).
			Msg("Record could not be validated")
	}

	return out, fatal
}

// waitForQuota holds the next request on the rate limit tracker. It returns
// ErrStopped when stop fires during the hold.
func (e *Executor) waitForQuota(ctx context.Context, stop <-chan struct{}) error {
	waitCtx, release := withStop(ctx, stop)
	defer release()

	err := e.client.rateLimiter.Wait(waitCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && halted(ctx, stop) {
		return ErrStopped
	}
	return fmt.Errorf("%w: %v", ErrContextCancelled, err)
}

// withStop derives a context that is also cancelled when stop is closed.
func withStop(ctx context.Context, stop <-chan struct{}) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	if stop == nil {
		return ctx, cancel
	}
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// resolve converts the final state of the retry loop into an outcome.
func (e *Executor) resolve(rec validation.Record, attempts int, last attemptResult, loopErr error) (validation.Outcome, error) {
	switch {
	case last.fatal != nil:
		return validation.NewErrored(rec, validation.ErrorKindAuthentication, last.fatal.Error()), last.fatal

	case loopErr != nil && attempts == 0:
		// Stopped or cancelled before anything was sent.
		return validation.NotAttempted(rec), nil

	case errors.Is(loopErr, ErrContextCancelled):
		return validation.NewErrored(rec, validation.ErrorKindCancelled, loopErr.Error()), nil

	case errors.Is(loopErr, ErrStopped):
		return validation.NewErrored(rec, errorKindFor(last.class),
			fmt.Sprintf("stopped after %d attempts: %v", attempts, last.err)), nil

	case last.outcome != nil:
		return *last.outcome, nil

	default:
		detail := "request failed"
		if last.err != nil {
			detail = last.err.Error()
		}
		return validation.NewErrored(rec, errorKindFor(last.class), detail), nil
	}
}

func halted(ctx context.Context, stop <-chan struct{}) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
