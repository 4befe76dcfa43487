package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stakewatch/stakewatch/internal/common"
	"github.com/stakewatch/stakewatch/internal/config"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func testRetryConfig() *config.RetryConfig {
	return &config.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    common.NewDuration(time.Millisecond),
		MaxBackoff:        common.NewDuration(10 * time.Millisecond),
		BackoffMultiplier: 2.0,
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{name: "nil", err: nil, transient: false},
		{name: "net.Error", err: timeoutError{}, transient: true},
		{name: "wrapped net.Error", err: fmt.Errorf("eth_getLogs: %w", &net.OpError{Op: "dial", Err: timeoutError{}}), transient: true},
		{name: "connection refused", err: syscall.ECONNREFUSED, transient: true},
		{name: "connection reset", err: fmt.Errorf("call failed: %w", syscall.ECONNRESET), transient: true},
		{name: "broken pipe", err: syscall.EPIPE, transient: true},
		{name: "rate limited", err: errors.New("429 Too Many Requests"), transient: true},
		{name: "provider rate limit text", err: errors.New("rate limit exceeded for key"), transient: true},
		{name: "bad gateway", err: errors.New("502 Bad Gateway"), transient: true},
		{name: "service unavailable", err: errors.New("503 Service Unavailable"), transient: true},
		{name: "gateway timeout", err: errors.New("504 gateway timeout"), transient: true},
		{name: "deadline exceeded text", err: errors.New("context deadline exceeded"), transient: true},
		{name: "pool exhausted", err: errors.New("no available connection"), transient: true},
		{name: "execution reverted", err: errors.New("execution reverted"), transient: false},
		{name: "invalid argument", err: errors.New("invalid argument 0"), transient: false},
		{name: "unknown block", err: errors.New("header not found"), transient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.transient, isTransient(tt.err))
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	cfg := &config.RetryConfig{
		InitialBackoff:    common.NewDuration(time.Second),
		MaxBackoff:        common.NewDuration(30 * time.Second),
		BackoffMultiplier: 2.0,
	}

	// First retry goes out immediately.
	require.Zero(t, backoffDelay(1, cfg))

	// Later attempts double each time; jitter keeps them within 25% of the
	// nominal delay. Sampled repeatedly since the jitter is random.
	nominal := map[int]time.Duration{
		2: time.Second,
		3: 2 * time.Second,
		4: 4 * time.Second,
		5: 8 * time.Second,
	}
	for attempt, want := range nominal {
		for range 10 {
			got := backoffDelay(attempt, cfg)
			require.GreaterOrEqual(t, got, want*3/4, "attempt %d", attempt)
			require.LessOrEqual(t, got, want*5/4, "attempt %d", attempt)
		}
	}
}

func TestBackoffDelay_CappedAtMax(t *testing.T) {
	cfg := &config.RetryConfig{
		InitialBackoff:    common.NewDuration(time.Second),
		MaxBackoff:        common.NewDuration(5 * time.Second),
		BackoffMultiplier: 2.0,
	}

	for range 10 {
		require.LessOrEqual(t, backoffDelay(10, cfg), 5*time.Second*5/4)
	}
}

func TestRetryWithBackoff_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), testRetryConfig(), "eth_blockNumber", func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestRetryWithBackoff_RecoversFromTransientError(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), testRetryConfig(), "eth_getLogs", func() error {
		calls++
		if calls < 3 {
			return errors.New("503 Service Unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryWithBackoff_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), testRetryConfig(), "eth_getLogs", func() error {
		calls++
		return errors.New("504 gateway timeout")
	})

	require.Error(t, err)
	require.Contains(t, err.Error(), "all 3 attempts failed")
	require.Equal(t, 3, calls)
}

func TestRetryWithBackoff_PermanentErrorFailsFast(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), testRetryConfig(), "eth_call", func() error {
		calls++
		return errors.New("execution reverted")
	})

	require.Error(t, err)
	require.Contains(t, err.Error(), "non-retryable")
	require.Equal(t, 1, calls)
}

func TestRetryWithBackoff_NilConfigRunsOnce(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), nil, "eth_blockNumber", func() error {
		calls++
		return errors.New("503 Service Unavailable")
	})

	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestRetryWithBackoff_CancelledBeforeAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retryWithBackoff(ctx, testRetryConfig(), "eth_getLogs", func() error {
		calls++
		return nil
	})

	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, calls)
}

func TestRetryWithBackoff_CancelledDuringBackoff(t *testing.T) {
	cfg := &config.RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    common.NewDuration(time.Minute),
		MaxBackoff:        common.NewDuration(time.Minute),
		BackoffMultiplier: 2.0,
	}

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := retryWithBackoff(ctx, cfg, "eth_getLogs", func() error {
		calls++
		return errors.New("503 Service Unavailable")
	})

	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, calls)
}
