package sources

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// MaxFetchAttempts bounds the retry budget per request.
	MaxFetchAttempts = 3

	retryInitialInterval = 1 * time.Second
	retryMaxInterval     = 10 * time.Second
)

// WithRetry runs op under the shared fetch retry policy: up to
// MaxFetchAttempts attempts with exponential backoff, retrying
// transport errors only. Protocol and parse errors abort immediately.
func WithRetry(op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryInitialInterval
	policy.MaxInterval = retryMaxInterval

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		var transport *TransportError
		if errors.As(err, &transport) {
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(wrapped, backoff.WithMaxRetries(policy, MaxFetchAttempts-1))
}
