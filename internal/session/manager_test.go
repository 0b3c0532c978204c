package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/criteria-it/servicedesk-copilot/internal/copilotapi"
	"github.com/criteria-it/servicedesk-copilot/internal/events"
)

type eventSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *eventSink) handle(_ context.Context, e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *eventSink) types() []events.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.EventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestManager(t *testing.T) (*Manager, *eventSink, *MemoryStorage) {
	srv, _ := newBackend(t)
	dispatcher := events.NewInMemoryDispatcher()
	sink := &eventSink{}
	events.SubscribeAll(dispatcher, sink.handle)
	storage := NewMemoryStorage()
	base := copilotapi.NewClient(copilotapi.Options{BaseURL: srv.URL})
	return NewManager(base, storage, dispatcher, nil), sink, storage
}

func TestManager_SessionsHaveIndependentTokens(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	a := m.Create()
	b := m.Create()
	_, err := m.Login(ctx, a, "a@example.com")
	require.NoError(t, err)

	assert.Equal(t, "a@example.com", a.Client().AuthToken())
	assert.Empty(t, b.Client().AuthToken())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestManager_GetRestoresFromStorage(t *testing.T) {
	m, _, storage := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, storage.Save(ctx, "known:"+TokenKey, "tech@example.com"))

	sess, err := m.Get(ctx, "known")
	require.NoError(t, err)
	assert.Equal(t, "tech@example.com", sess.Token())

	again, err := m.Get(ctx, "known")
	require.NoError(t, err)
	assert.Same(t, sess, again)
	assert.Equal(t, 1, m.Len())
}

func TestManager_LoginLogoutPublish(t *testing.T) {
	m, sink, _ := newTestManager(t)
	ctx := context.Background()
	sess := m.Create()

	_, err := m.Login(ctx, sess, "tech@example.com")
	require.NoError(t, err)
	require.NoError(t, m.Logout(ctx, sess))

	assert.Equal(t, []events.EventType{events.EventSessionStarted, events.EventSessionEnded}, sink.types())
}

func TestManager_FailedLoginPublishesNothing(t *testing.T) {
	m, sink, _ := newTestManager(t)

	_, err := m.Login(context.Background(), m.Create(), "nobody@other.com")
	require.Error(t, err)
	assert.Empty(t, sink.types())
}

func TestManager_SweepDropsIdleSessions(t *testing.T) {
	m, sink, storage := newTestManager(t)
	ctx := context.Background()
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	idle := m.Create()
	_, err := m.Login(ctx, idle, "idle@example.com")
	require.NoError(t, err)
	idle.touch(clock.Add(-3 * time.Hour))

	fresh := m.Create()
	fresh.touch(clock)

	dropped := m.Sweep(ctx, time.Hour)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 1, m.Len())
	assert.Contains(t, sink.types(), events.EventSessionExpired)

	restored, err := m.Get(ctx, idle.ID())
	require.NoError(t, err)
	assert.NotSame(t, idle, restored)
	assert.Equal(t, "idle@example.com", restored.Token(), "token survives the sweep in durable storage")
	assert.Equal(t, 1, storage.Len())
}
