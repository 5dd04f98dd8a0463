package lock

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLocker per-subject lock inside one process (DB-less mode, tests).
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]chan struct{})}
}

var _ SubjectLocker = (*MemoryLocker)(nil)

func (l *MemoryLocker) slot(subjectID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[subjectID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[subjectID] = ch
	}
	return ch
}

func (l *MemoryLocker) Lock(ctx context.Context, subjectID string) (func(), error) {
	if subjectID == "" {
		return nil, fmt.Errorf("subject_id is required")
	}
	ch := l.slot(subjectID)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, subjectID, ctx.Err())
	}
	var once sync.Once
	return func() { once.Do(func() { <-ch }) }, nil
}
