package rpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/stakewatch/stakewatch/internal/config"
)

// Substrings that mark an error as transient when the provider reports the
// condition in a plain message instead of a typed error.
var transientMarkers = []string{
	"timeout",
	"deadline exceeded",
	"429",
	"too many requests",
	"rate limit",
	"502",
	"503",
	"504",
	"bad gateway",
	"service unavailable",
	"gateway timeout",
	"connection pool",
	"no available connection",
}

// isTransient reports whether an error is worth retrying: network-level
// failures, dropped connections, rate limiting and upstream 5xx conditions.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}

// backoffDelay computes the wait after the given failed attempt:
// exponential from InitialBackoff, capped at MaxBackoff, with 25% jitter.
// The first retry goes out immediately.
func backoffDelay(attempt int, cfg *config.RetryConfig) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delay := float64(cfg.InitialBackoff.Duration) * math.Pow(cfg.BackoffMultiplier, float64(attempt-2))
	delay = math.Min(delay, float64(cfg.MaxBackoff.Duration))

	jitter := delay * 0.25
	delay += rand.Float64()*2*jitter - jitter

	return time.Duration(math.Max(delay, 0))
}

// retryWithBackoff runs fn up to cfg.MaxAttempts times, sleeping between
// attempts and honoring context cancellation throughout. A nil cfg means a
// single attempt with no retries. Non-transient errors fail immediately.
func retryWithBackoff(ctx context.Context, cfg *config.RetryConfig, operation string, fn func() error) error {
	if cfg == nil {
		return fn()
	}

	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled before attempt %d: %w", attempt, err)
		}

		err := fn()
		if err == nil {
			if attempt > 1 {
				recordRetry(operation)
			}
			return nil
		}
		lastErr = err

		if !isTransient(err) {
			return fmt.Errorf("non-retryable error on attempt %d/%d: %w", attempt, cfg.MaxAttempts, err)
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		if delay := backoffDelay(attempt, cfg); delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during backoff (attempt %d/%d): %w",
					attempt, cfg.MaxAttempts, ctx.Err())
			}
		}

		recordRetry(operation)
	}

	return fmt.Errorf("all %d attempts failed after %v (last error: %w)",
		cfg.MaxAttempts, time.Since(start), lastErr)
}
