package retry

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultConfig returns the retry policy used for evaluator transport:
// a few attempts with exponential backoff and jitter.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
	}
}

// WithBackoff executes operation, retrying transient failures with
// exponential backoff. Non-retryable errors return immediately.
func WithBackoff(ctx context.Context, config Config, operation func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err = operation(ctx)
		if err == nil {
			return nil
		}

		if !isRetryableError(err) {
			return err
		}

		if attempt == config.MaxRetries {
			return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries+1, err)
		}

		delay := config.BaseDelay*time.Duration(1<<attempt) +
			time.Duration(rand.Int63n(int64(config.BaseDelay)))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

// isRetryableError keeps network-level failures, 5xx responses, and rate
// limiting retryable; other client errors are not worth repeating.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "temporary failure") {
		return true
	}

	if strings.Contains(errStr, "status 5") || strings.Contains(errStr, "status 429") {
		return true
	}
	if strings.Contains(errStr, "status 4") {
		return false
	}

	return false
}

// HTTPStatusRetryable reports whether an HTTP status code is worth retrying.
func HTTPStatusRetryable(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
