package validation

import "errors"

// Fatal pipeline errors. Per-record failures are never reported through these;
// they become Errored outcomes instead.
var (
	// ErrConfiguration is returned for invalid settings (batch size, concurrency,
	// missing base URL). It aborts a run before any work starts.
	ErrConfiguration = errors.New("configuration error")

	// ErrAuth is returned when an API key cannot be obtained or refreshed after
	// the key endpoint's retry policy is exhausted.
	ErrAuth = errors.New("authentication error")
)

// IsFatal reports whether err must halt the scheduler.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrAuth)
}
