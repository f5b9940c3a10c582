package auth

import (
	"context"
	"errors"
	"time"
)

// DefaultRetryDelay is the fixed pause before the single token retry.
const DefaultRetryDelay = 300 * time.Millisecond

// WithRetry wraps a source with the bounded retry policy for the window right
// after sign-in: when the provider reports no token, wait delay once and ask
// again. Exactly one retry; the second failure is surfaced. Errors other than
// ErrNoToken are never retried.
func WithRetry(src TokenSource, delay time.Duration) TokenSource {
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	return &retryingSource{src: src, delay: delay, maxRetries: 1}
}

type retryingSource struct {
	src        TokenSource
	delay      time.Duration
	maxRetries int
}

func (r *retryingSource) Token(ctx context.Context) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		token, err := r.src.Token(ctx)
		if err == nil && token != "" {
			return token, nil
		}
		if err == nil {
			err = ErrNoToken
		}
		if !errors.Is(err, ErrNoToken) {
			return "", err
		}
		lastErr = err
		if attempt >= r.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.delay):
		}
	}
	return "", lastErr
}
