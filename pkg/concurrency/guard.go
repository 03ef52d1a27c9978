package concurrency

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

var ErrBusy = errors.New("handler limit reached")

// Limiter runs handler goroutines, optionally capping how many run at once.
// A Limiter created with a limit <= 0 never blocks and never reports busy.
type Limiter struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

func NewLimiter(limit int) *Limiter {
	l := &Limiter{}
	if limit > 0 {
		l.sem = semaphore.NewWeighted(int64(limit))
	}
	return l
}

// Go waits for a free slot, then runs task in a new goroutine. It only fails
// when ctx is done before a slot frees up.
func (l *Limiter) Go(ctx context.Context, task func()) error {
	if l.sem != nil {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	l.spawn(task)
	return nil
}

// TryGo runs task in a new goroutine if a slot is free and returns ErrBusy
// otherwise.
func (l *Limiter) TryGo(task func()) error {
	if l.sem != nil && !l.sem.TryAcquire(1) {
		return ErrBusy
	}
	l.spawn(task)
	return nil
}

// Wait blocks until every task started by the limiter has returned.
func (l *Limiter) Wait() {
	l.wg.Wait()
}

func (l *Limiter) spawn(task func()) {
	l.wg.Add(1)
	go func() {
		defer func() {
			if l.sem != nil {
				l.sem.Release(1)
			}
			l.wg.Done()
		}()
		task()
	}()
}
