// Package wait provides the bounded polling primitive used for browser probes.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when a condition is still unmet when the bound elapses.
var ErrTimeout = errors.New("condition not met before timeout")

// Condition reports whether the awaited state has been reached. Errors are
// treated as "not yet" and retried until the bound elapses.
type Condition func(ctx context.Context) (bool, error)

// Until evaluates cond immediately and then every interval until it returns
// true or timeout elapses. Cancellation of ctx is returned as-is.
func Until(ctx context.Context, timeout, interval time.Duration, cond Condition) error {
	if timeout <= 0 {
		return fmt.Errorf("wait timeout must be > 0")
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := cond(pollCtx)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}
		select {
		case <-pollCtx.Done():
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("wait canceled: %w", ctxErr)
			}
			if lastErr != nil {
				return fmt.Errorf("%w after %s: last error: %v", ErrTimeout, timeout, lastErr)
			}
			return fmt.Errorf("%w after %s", ErrTimeout, timeout)
		case <-ticker.C:
		}
	}
}
