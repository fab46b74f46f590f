package redisclient

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// localResourceLocker is the single-process variant: one buffered channel per
// key acts as a mutex that honours context cancellation.
type localResourceLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	wait  time.Duration
}

// NewLocalResourceLocker returns an in-process Locker. Acquisition waits at
// most wait per key before failing with ErrLockNotAcquired.
func NewLocalResourceLocker(wait time.Duration) Locker {
	return &localResourceLocker{
		slots: make(map[string]chan struct{}),
		wait:  wait,
	}
}

func (l *localResourceLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *localResourceLocker) WithLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	keys = SortedKeys(keys)

	held := make([]chan struct{}, 0, len(keys))
	defer func() {
		for _, ch := range held {
			<-ch
		}
	}()

	for _, key := range keys {
		ch := l.slot(key)
		timer := time.NewTimer(l.wait)
		select {
		case ch <- struct{}{}:
			timer.Stop()
			held = append(held, ch)
		case <-timer.C:
			return fmt.Errorf("%w: %s", ErrLockNotAcquired, key)
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	return fn(ctx)
}
