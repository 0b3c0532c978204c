package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedFetcher blocks each key until released.
type gatedFetcher struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	started chan string
	calls   map[string]int
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{
		gates:   map[string]chan struct{}{},
		started: make(chan string, 16),
		calls:   map[string]int{},
	}
}

func (g *gatedFetcher) gate(key string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[key]
	if !ok {
		ch = make(chan struct{})
		g.gates[key] = ch
	}
	return ch
}

func (g *gatedFetcher) fetch(ctx context.Context, key string) (string, error) {
	g.mu.Lock()
	g.calls[key]++
	g.mu.Unlock()
	g.started <- key
	<-g.gate(key)
	return "data-" + key, nil
}

func (g *gatedFetcher) count(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[key]
}

func TestQuery_StaleResultIsDiscarded(t *testing.T) {
	g := newGatedFetcher()
	q := New(g.fetch, 0)
	ctx := context.Background()

	resultA := make(chan State[string], 1)
	go func() { resultA <- q.Load(ctx, "a") }()
	require.Equal(t, "a", <-g.started)
	assert.True(t, q.Current().IsLoading())

	resultB := make(chan State[string], 1)
	go func() { resultB <- q.Load(ctx, "b") }()
	require.Equal(t, "b", <-g.started)

	close(g.gate("b"))
	b := <-resultB
	assert.Equal(t, "data-b", b.Data)
	assert.False(t, b.Stale)

	close(g.gate("a"))
	a := <-resultA
	assert.True(t, a.Stale, "a finished after the pointer moved to b")
	assert.Equal(t, "data-a", a.Data)

	current := q.Current()
	assert.Equal(t, "b", current.Key)
	assert.Equal(t, "data-b", current.Data)
	assert.False(t, q.Peek("a").HasData, "stale result is not stored")
	assert.Equal(t, 1, g.count("a"))
	assert.Equal(t, 1, g.count("b"))
}

func TestQuery_StaleTimeServesCache(t *testing.T) {
	var calls int32
	q := New(func(_ context.Context, key string) (int, error) {
		return int(atomic.AddInt32(&calls, 1)), nil
	}, time.Minute)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return clock }
	ctx := context.Background()

	assert.Equal(t, 1, q.Load(ctx, "k").Data)
	assert.Equal(t, 1, q.Load(ctx, "k").Data, "fresh result is reused")

	q.Invalidate("k")
	assert.Equal(t, 1, q.Current().Data, "invalidated data stays visible")
	assert.Equal(t, 2, q.Load(ctx, "k").Data)

	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, 3, q.Load(ctx, "k").Data, "expired result is refetched")

	q.InvalidateAll()
	assert.Equal(t, 4, q.Load(ctx, "k").Data)
}

func TestQuery_ZeroStaleTimeAlwaysFetches(t *testing.T) {
	var calls int32
	q := New(func(context.Context, string) (int32, error) {
		return atomic.AddInt32(&calls, 1), nil
	}, 0)

	q.Load(context.Background(), "k")
	q.Load(context.Background(), "k")
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestQuery_ErrorKeepsPreviousData(t *testing.T) {
	fail := false
	boom := errors.New("boom")
	q := New(func(context.Context, string) (string, error) {
		if fail {
			return "", boom
		}
		return "ok", nil
	}, 0)
	ctx := context.Background()

	require.True(t, q.Load(ctx, "k").IsSuccess())

	fail = true
	state := q.Load(ctx, "k")
	assert.True(t, state.IsError())
	assert.ErrorIs(t, state.Err, boom)
	assert.True(t, state.HasData)
	assert.Equal(t, "ok", state.Data)
}

func TestMutation_RejectsWhileInFlight(t *testing.T) {
	var m Mutation[string]
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		_, err := m.Run(context.Background(), func(context.Context) (string, error) {
			close(started)
			<-release
			return "sent", nil
		})
		done <- err
	}()
	<-started

	assert.True(t, m.Pending())
	_, err := m.Run(context.Background(), func(context.Context) (string, error) {
		t.Fatal("second run must not execute")
		return "", nil
	})
	assert.ErrorIs(t, err, ErrInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.True(t, m.State().IsSuccess())
	assert.Equal(t, "sent", m.State().Data)

	m.Reset()
	assert.Equal(t, StatusIdle, m.State().Status)
}

func TestMutation_RecordsError(t *testing.T) {
	var m Mutation[int]
	boom := errors.New("boom")

	_, err := m.Run(context.Background(), func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.True(t, m.State().IsError())
	assert.False(t, m.Pending())
}

func TestQuery_FetchKeepsPointer(t *testing.T) {
	q := New(func(_ context.Context, key string) (string, error) { return "v-" + key, nil }, 0)
	ctx := context.Background()
	q.SetKey("current")

	state := q.Fetch(ctx, "other")
	assert.True(t, state.Stale)
	key, _ := q.Key()
	assert.Equal(t, "current", key)

	state = q.Fetch(ctx, "current")
	assert.False(t, state.Stale)
	assert.Equal(t, "v-current", q.Current().Data)
}
