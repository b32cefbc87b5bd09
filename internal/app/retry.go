package app

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"themesync/internal/themesync"
)

const (
	conflictAttempts  = 4
	conflictBaseDelay = 50 * time.Millisecond
	maxConflictDelay  = 2 * time.Second
)

// retryConflicts runs fn until it succeeds, fails with something other
// than ErrConflict, or the attempts are used up. A conflicting transaction
// has already rolled back, so fn can simply be called again.
func retryConflicts(ctx context.Context, attempts int, fn func() error) error {
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if waitErr := waitBackoff(ctx, attempt); waitErr != nil {
				return err
			}
		}
		err = fn()
		if err == nil || !errors.Is(err, themesync.ErrConflict) {
			return err
		}
	}
	return err
}

// waitBackoff sleeps for the attempt's backoff or until ctx is done.
func waitBackoff(ctx context.Context, attempt int) error {
	t := time.NewTimer(backoff(conflictBaseDelay, attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoff doubles base each attempt, capped at maxConflictDelay, with up
// to 25% jitter either way.
func backoff(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > 16 {
		attempt = 16
	}
	d := base * time.Duration(1<<uint(attempt))
	if d > maxConflictDelay {
		d = maxConflictDelay
	}
	jitter := time.Duration(rand.Int64N(int64(d)/2+1)) - d/4
	return d + jitter
}
