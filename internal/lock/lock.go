// Package lock serialises check-and-emit per subject so two concurrent runs
// cannot both pass the alert cool-down check.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired the lock is held elsewhere and ctx ended first.
var ErrNotAcquired = errors.New("lock not acquired")

// SubjectLocker hands out per-subject mutual exclusion. The returned
// release function is safe to call more than once.
type SubjectLocker interface {
	Lock(ctx context.Context, subjectID string) (release func(), err error)
}
