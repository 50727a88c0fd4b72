package sessioncore

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"
)

// withRetry retries call with capped exponential backoff. The manager
// applies it to the DeviceManager.RegisterDevice call, made outside its own
// lock.
func (m *Manager) withRetry(ctx context.Context, operation string, call func() error) error {
	attempts := m.retryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	base := m.retryBaseBackoff
	if base < 0 {
		base = 0
	}
	max := m.retryMaxBackoff
	if max < base {
		max = base
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt >= attempts || !isTransientNetworkError(err) {
			break
		}

		backoff := backoffForAttempt(base, max, attempt)
		m.safeLogf("retrying_operation",
			slog.String("operation", operation),
			slog.Int("attempt", attempt+1),
			slog.Int("attempts", attempts),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()))
		if waitErr := waitForBackoff(ctx, backoff); waitErr != nil {
			return waitErr
		}
	}
	return lastErr
}

func backoffForAttempt(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	backoff := base
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if max > 0 && backoff >= max {
			return max
		}
	}
	if max > 0 && backoff > max {
		return max
	}
	return backoff
}

func waitForBackoff(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isTransientNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && (netErr.Timeout() || netErr.Temporary()) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"timeout", "temporar", "connection reset", "connection refused",
		"broken pipe", "unexpected eof", "i/o timeout",
		"network is unreachable", "no route to host",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
