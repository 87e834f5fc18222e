package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// retryPolicy drives exponential backoff for transient back-end errors.
type retryPolicy struct {
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxRetries:    3,
		initialDelay:  2 * time.Second,
		backoffFactor: 2.0,
	}
}

// do executes fn with exponential backoff, retrying transient errors.
func (p retryPolicy) do(ctx context.Context, fn func() error) error {
	delay := p.initialDelay
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !isRetryable(lastErr) {
			return lastErr
		}

		if attempt < p.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * p.backoffFactor)
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryable determines if an error should be retried.
func isRetryable(err error) bool {
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		return false
	}

	switch provErr.StatusCode() {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}

	return false
}
