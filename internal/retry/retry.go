// Package retry provides the one retry-with-backoff helper used for
// outbound sync pushes and token refreshes. Permanent errors abort
// immediately; only errors classified transient earn another attempt.
package retry

import (
	"context"
	"time"

	"agenda-service/internal/apperr"
)

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy suits remote-calendar writes: 4 attempts, 500ms..8s.
var DefaultPolicy = Policy{MaxAttempts: 4, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}

// Do runs fn until it succeeds, returns a non-transient error, the policy
// is exhausted, or ctx is done. The last error is returned verbatim so
// callers keep the full classification chain.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	delay := p.BaseDelay
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil || !apperr.IsTransient(err) || attempt >= p.MaxAttempts {
			return err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}
