package ratelimiting

import (
	"context"
	"slices"
	"sync"
	"time"
)

// RequestLimiter bounds how many operations may start within a sliding window.
type RequestLimiter interface {
	// Limit runs operation once a slot is available and reports whether it ran.
	// It does not run operation when ctx is done first, or when the wait plus
	// maxOperationTime would pass the deadline of ctx.
	Limit(ctx context.Context, maxOperationTime time.Duration, operation func(ctx context.Context)) bool
}

type windowLimitRequestLimiter struct {
	limit     int
	window    time.Duration
	nowFunc   func() time.Time
	afterFunc func(time.Duration) <-chan time.Time

	// One token per operation allowed to run or wait concurrently
	slots chan struct{}

	// Completion times of the last `limit` operations, oldest first
	mutex     sync.Mutex
	completed []time.Time
}

func NewWindowLimitRequestLimiter(
	limit int,
	window time.Duration,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) *windowLimitRequestLimiter {
	slots := make(chan struct{}, limit)
	completed := make([]time.Time, limit)
	longAgo := nowFunc().Add(-window)
	for i := range limit {
		slots <- struct{}{}
		completed[i] = longAgo
	}

	return &windowLimitRequestLimiter{
		limit:     limit,
		window:    window,
		nowFunc:   nowFunc,
		afterFunc: afterFunc,
		slots:     slots,
		completed: completed,
	}
}

func insertSorted(times []time.Time, t time.Time) []time.Time {
	i, _ := slices.BinarySearchFunc(times, t, func(a, b time.Time) int {
		return a.Compare(b)
	})
	return slices.Insert(times, i, t)
}

func (l *windowLimitRequestLimiter) Limit(ctx context.Context, maxOperationTime time.Duration, operation func(ctx context.Context)) bool {
	if ctx.Err() != nil {
		return false
	}

	select {
	case <-l.slots:
		defer func() {
			l.slots <- struct{}{}
		}()
	case <-ctx.Done():
		return false
	}

	oldest, ok := l.takeOldest(ctx, maxOperationTime)
	if !ok {
		return false
	}
	// Put back the entry we took unless the operation runs
	finishedAt := oldest
	defer func() {
		l.insertCompleted(finishedAt)
	}()

	if wait := l.waitFor(oldest); wait > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-l.afterFunc(wait):
		}
	}

	operation(ctx)

	finishedAt = l.nowFunc()
	return true
}

func (l *windowLimitRequestLimiter) waitFor(completedAt time.Time) time.Duration {
	return l.window - l.nowFunc().Sub(completedAt)
}

func (l *windowLimitRequestLimiter) insertCompleted(t time.Time) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.completed = insertSorted(l.completed, t)
}

func (l *windowLimitRequestLimiter) takeOldest(ctx context.Context, maxOperationTime time.Duration) (time.Time, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	oldest := l.completed[0]

	if deadline, ok := ctx.Deadline(); ok {
		if l.waitFor(oldest)+maxOperationTime > deadline.Sub(l.nowFunc()) {
			return time.Time{}, false
		}
	}

	l.completed = l.completed[1:]
	return oldest, true
}
