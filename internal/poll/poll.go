// Package poll implements bounded polling of asynchronous remote
// tasks: sleep a randomized delay, check, classify, repeat until the
// task resolves or the attempt budget runs out.
package poll

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Inter-attempt delay bounds. The delay is drawn uniformly from this
// interval so concurrent pollers don't synchronize against the remote.
const (
	DefaultMinDelay = 500 * time.Millisecond
	DefaultMaxDelay = 1 * time.Second
)

// ErrTimeout is returned when the attempt budget is exhausted while
// the task still reports pending. Use errors.Is to check; the concrete
// *TimeoutError carries the task id.
var ErrTimeout = errors.New("poll: attempt budget exhausted")

// TimeoutError reports a task that was still pending after the full
// attempt budget. The underlying remote task is not canceled and may
// still complete later.
type TimeoutError struct {
	TaskID   string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("poll: task %s still pending after %d attempts", e.TaskID, e.Attempts)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// CheckFunc performs one status check for the given zero-based attempt
// index. done=true with a nil error is terminal success; a non-nil
// error is a terminal failure and is never retried; otherwise the task
// is pending and polling continues.
type CheckFunc[T any] func(ctx context.Context, attempt int) (payload T, done bool, err error)

// Policy bounds a polling run.
type Policy struct {
	// MaxAttempts is the total check budget.
	MaxAttempts int

	// MinDelay and MaxDelay bound the randomized sleep before each
	// check. Zero values fall back to the defaults.
	MinDelay time.Duration
	MaxDelay time.Duration

	// Sleep waits between attempts. Defaults to a timer honoring ctx.
	// Tests override this to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run polls check under the given policy. taskID is carried into the
// timeout error for diagnostics only.
func Run[T any](ctx context.Context, taskID string, p Policy, check CheckFunc[T]) (T, error) {
	var zero T

	sleep := p.Sleep
	if sleep == nil {
		sleep = timedSleep
	}

	minDelay, maxDelay := p.MinDelay, p.MaxDelay
	if minDelay <= 0 {
		minDelay = DefaultMinDelay
	}

	if maxDelay < minDelay {
		maxDelay = DefaultMaxDelay
	}

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		delay := minDelay
		if span := maxDelay - minDelay; span > 0 {
			delay += rand.N(span) //nolint:gosec // jitter does not need crypto rand
		}

		if err := sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("poll: canceled: %w", err)
		}

		payload, done, err := check(ctx, attempt)
		if err != nil {
			return zero, err
		}

		if done {
			return payload, nil
		}
	}

	return zero, &TimeoutError{TaskID: taskID, Attempts: p.MaxAttempts}
}

// timedSleep waits for d or until the context is canceled.
func timedSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
