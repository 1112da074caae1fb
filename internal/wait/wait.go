// Package wait provides the bounded polling used wherever the agent waits on
// the page: login fields, search results, add confirmations and checkout.
package wait

import (
	"context"
	"errors"
	"time"
)

var ErrTimeout = errors.New("condition not met before timeout")

type Backoff struct {
	Interval    time.Duration
	MaxInterval time.Duration
	// Multiplier grows the interval after each miss. Values <= 1 keep it fixed.
	Multiplier float64
	Timeout    time.Duration
}

func Fixed(interval, timeout time.Duration) Backoff {
	return Backoff{Interval: interval, Timeout: timeout}
}

// Condition reports whether the awaited state holds. A returned error is
// treated as "not yet" and only kept for the timeout message.
type Condition func() (bool, error)

// Until evaluates cond immediately and then after each interval until it
// holds, the timeout expires or ctx is cancelled.
func Until(ctx context.Context, b Backoff, cond Condition) error {
	interval := b.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	deadline := time.Now().Add(b.Timeout)
	var lastErr error

	for {
		ok, err := cond()
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			if lastErr != nil {
				return errors.Join(ErrTimeout, lastErr)
			}
			return ErrTimeout
		}

		sleep := interval
		if sleep > remaining {
			sleep = remaining
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		interval = next(interval, b)
	}
}

func next(interval time.Duration, b Backoff) time.Duration {
	if b.Multiplier <= 1 {
		return interval
	}
	grown := time.Duration(float64(interval) * b.Multiplier)
	if b.MaxInterval > 0 && grown > b.MaxInterval {
		return b.MaxInterval
	}
	return grown
}
