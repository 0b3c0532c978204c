package query

import (
	"context"
	"sync"
	"time"
)

// Fetcher loads the value for key.
type Fetcher[T any] func(ctx context.Context, key string) (T, error)

type entry[T any] struct {
	state     State[T]
	fetchedAt time.Time
	invalid   bool
}

type call[T any] struct {
	done  chan struct{}
	state State[T]
}

// Query caches results per key and tracks a current-key pointer. A result that
// completes after the pointer moved to another key is discarded.
type Query[T any] struct {
	fetch     Fetcher[T]
	staleTime time.Duration
	now       func() time.Time

	mu       sync.Mutex
	current  string
	hasKey   bool
	cache    map[string]*entry[T]
	inflight map[string]*call[T]
}

// New creates a query. Results younger than staleTime are served from cache;
// zero means every Load refetches.
func New[T any](fetch Fetcher[T], staleTime time.Duration) *Query[T] {
	return &Query[T]{
		fetch:     fetch,
		staleTime: staleTime,
		now:       time.Now,
		cache:     make(map[string]*entry[T]),
		inflight:  make(map[string]*call[T]),
	}
}

// SetKey moves the current-key pointer without fetching.
func (q *Query[T]) SetKey(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.current = key
	q.hasKey = true
}

// Key returns the current key.
func (q *Query[T]) Key() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current, q.hasKey
}

// Load points the query at key and fetches it.
func (q *Query[T]) Load(ctx context.Context, key string) State[T] {
	q.SetKey(key)
	return q.Fetch(ctx, key)
}

// Fetch loads key without moving the pointer, unless a fresh result is cached.
// Concurrent fetches of the same key share one call. The result is stored only
// if key is still current when it completes.
func (q *Query[T]) Fetch(ctx context.Context, key string) State[T] {
	q.mu.Lock()
	if e, ok := q.cache[key]; ok && q.freshLocked(e) {
		state := e.state
		q.mu.Unlock()
		return state
	}
	if c, ok := q.inflight[key]; ok {
		q.mu.Unlock()
		return q.wait(ctx, c, key)
	}

	c := &call[T]{done: make(chan struct{})}
	q.inflight[key] = c
	q.mu.Unlock()

	data, err := q.fetch(ctx, key)

	q.mu.Lock()
	delete(q.inflight, key)
	state := State[T]{Key: key}
	if err != nil {
		state.Status = StatusError
		state.Err = err
		if prev, ok := q.cache[key]; ok && prev.state.HasData {
			state.Data = prev.state.Data
			state.HasData = true
		}
	} else {
		state.Status = StatusSuccess
		state.Data = data
		state.HasData = true
	}
	if q.current != key {
		state.Stale = true
	} else {
		q.cache[key] = &entry[T]{state: state, fetchedAt: q.now()}
	}
	c.state = state
	close(c.done)
	q.mu.Unlock()
	return state
}

func (q *Query[T]) wait(ctx context.Context, c *call[T], key string) State[T] {
	select {
	case <-c.done:
		return c.state
	case <-ctx.Done():
		return State[T]{Key: key, Status: StatusError, Err: ctx.Err()}
	}
}

// Current returns the state of the current key. A key with a fetch in flight
// reports pending, carrying any previous result.
func (q *Query[T]) Current() State[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.hasKey {
		return State[T]{}
	}
	return q.stateLocked(q.current)
}

// Peek returns the state held for key without moving the pointer.
func (q *Query[T]) Peek(key string) State[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stateLocked(key)
}

func (q *Query[T]) stateLocked(key string) State[T] {
	state := State[T]{Key: key}
	if e, ok := q.cache[key]; ok {
		state = e.state
	}
	if _, ok := q.inflight[key]; ok {
		state.Status = StatusPending
		state.Err = nil
	}
	return state
}

// Invalidate forces the next Load of key to refetch. Cached data stays visible
// until then.
func (q *Query[T]) Invalidate(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.cache[key]; ok {
		e.invalid = true
	}
}

// InvalidateAll marks every cached key for refetch.
func (q *Query[T]) InvalidateAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.cache {
		e.invalid = true
	}
}

func (q *Query[T]) freshLocked(e *entry[T]) bool {
	if e.invalid || e.state.Status != StatusSuccess || q.staleTime <= 0 {
		return false
	}
	return q.now().Sub(e.fetchedAt) < q.staleTime
}
