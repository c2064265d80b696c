package cache

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Amund211/docprompt/internal/logging"
	"golang.org/x/sync/singleflight"
)

// Returned to every waiter when create panics
var ErrCreatePanicked = errors.New("cache entry creation panicked")

type State int

const (
	// No value and nothing in flight
	StateEmpty State = iota
	// A materialization is in flight
	StatePending
	// A value is stored
	StateReady
	// The last materialization failed. The next call retries.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// SingleFlight lazily materializes values per key.
//
// At most one materialization runs per key at any time. Every caller that
// arrives while it runs waits for it and observes the same outcome. Successful
// values are stored until invalidated (or until they expire, depending on the
// backing Cache). Failures are not stored, so the next call starts a new
// attempt.
type SingleFlight[T any] struct {
	name          string
	store         Cache[T]
	group         singleflight.Group
	createTimeout time.Duration

	// Guards the bookkeeping below and the transition of values into store
	mu      sync.Mutex
	pending map[string]struct{}
	failed  map[string]struct{}
	waiters map[string]int
}

type Option func(*options)

type options struct {
	name          string
	createTimeout time.Duration
}

// Name used in logs and metrics
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// Upper bound on the duration of a single materialization. Zero means no bound.
func WithCreateTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.createTimeout = timeout
	}
}

func NewSingleFlight[T any](store Cache[T], opts ...Option) *SingleFlight[T] {
	o := options{name: "default"}
	for _, opt := range opts {
		opt(&o)
	}

	return &SingleFlight[T]{
		name:          o.name,
		store:         store,
		createTimeout: o.createTimeout,
		pending:       make(map[string]struct{}),
		failed:        make(map[string]struct{}),
		waiters:       make(map[string]int),
	}
}

// GetOrCreate returns the value stored for key, calling create to
// materialize it if there is none.
//
// create runs detached from the cancellation of ctx, but keeps its values. If
// ctx is done before the value is available GetOrCreate returns ctx.Err(),
// while the materialization carries on for the remaining callers and its
// result is still stored.
func (s *SingleFlight[T]) GetOrCreate(ctx context.Context, key string, create func(ctx context.Context) (T, error)) (T, error) {
	var empty T
	logger := logging.FromContext(ctx)

	if err := ctx.Err(); err != nil {
		return empty, err
	}

	if data, ok := s.store.get(key); ok {
		logger.InfoContext(ctx, "Getting cached value", "cache", s.name, "key", key, "result", "hit")
		recordEvent(ctx, s.name, eventHit)
		return data, nil
	}

	resultChan := s.group.DoChan(key, func() (any, error) {
		data, err := s.materialize(ctx, key, create)
		return data, err
	})

	s.addWaiter(key, 1)
	defer s.addWaiter(key, -1)

	select {
	case result := <-resultChan:
		if result.Shared {
			recordEvent(ctx, s.name, eventDedup)
		}
		if result.Err != nil {
			return empty, fmt.Errorf("failed to create cache entry: %w", result.Err)
		}
		data, _ := result.Val.(T)
		return data, nil
	case <-ctx.Done():
		logger.InfoContext(ctx, "Stopped waiting for cache entry", "cache", s.name, "key", key, "error", ctx.Err())
		recordEvent(ctx, s.name, eventAbandon)
		return empty, ctx.Err()
	}
}

func (s *SingleFlight[T]) materialize(ctx context.Context, key string, create func(ctx context.Context) (T, error)) (T, error) {
	logger := logging.FromContext(ctx)

	s.mu.Lock()
	// The previous flight may have stored a value after our lookup, but before we joined
	if data, ok := s.store.get(key); ok {
		s.mu.Unlock()
		recordEvent(ctx, s.name, eventHit)
		return data, nil
	}
	s.pending[key] = struct{}{}
	delete(s.failed, key)
	s.mu.Unlock()

	logger.InfoContext(ctx, "Getting cached value", "cache", s.name, "key", key, "result", "miss")
	recordEvent(ctx, s.name, eventMiss)

	createCtx := context.WithoutCancel(ctx)
	if s.createTimeout > 0 {
		var cancel context.CancelFunc
		createCtx, cancel = context.WithTimeout(createCtx, s.createTimeout)
		defer cancel()
	}

	start := time.Now()
	data, err := s.callCreate(createCtx, key, create)
	recordCreateDuration(ctx, s.name, time.Since(start), err != nil)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, key)
	if err != nil {
		s.failed[key] = struct{}{}
		logger.WarnContext(ctx, "Failed to create cache entry", "cache", s.name, "key", key, "error", err.Error())
		recordEvent(ctx, s.name, eventFailure)
		var empty T
		return empty, err
	}

	s.store.set(key, data)
	return data, nil
}

// A panic would otherwise escape on the singleflight goroutine and take the
// process down
func (s *SingleFlight[T]) callCreate(ctx context.Context, key string, create func(ctx context.Context) (T, error)) (data T, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "Cache entry creation panicked", "cache", s.name, "key", key, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			var empty T
			data, err = empty, fmt.Errorf("%w: %v", ErrCreatePanicked, r)
		}
	}()

	return create(ctx)
}

// Invalidate drops the stored value for key so the next call materializes it
// again. A materialization already in flight is not affected.
func (s *SingleFlight[T]) Invalidate(ctx context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.delete(key)
	delete(s.failed, key)

	logging.FromContext(ctx).InfoContext(ctx, "Invalidated cache entry", "cache", s.name, "key", key)
	recordEvent(ctx, s.name, eventInvalidate)
}

func (s *SingleFlight[T]) State(key string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[key]; ok {
		return StatePending
	}
	if _, ok := s.store.get(key); ok {
		return StateReady
	}
	if _, ok := s.failed[key]; ok {
		return StateFailed
	}
	return StateEmpty
}

func (s *SingleFlight[T]) addWaiter(key string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.waiters[key] += delta
	if s.waiters[key] <= 0 {
		delete(s.waiters, key)
	}
}

// Number of callers currently waiting on the flight for key
func (s *SingleFlight[T]) waiting(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.waiters[key]
}
