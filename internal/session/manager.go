package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/criteria-it/servicedesk-copilot/internal/copilotapi"
	"github.com/criteria-it/servicedesk-copilot/internal/events"
)

// Manager tracks one Session per browser. Sessions not in memory are rebuilt
// from durable storage on first use.
type Manager struct {
	base       *copilotapi.Client
	storage    Storage
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager builds a manager. Each session receives a clone of base.
func NewManager(base *copilotapi.Client, storage Storage, dispatcher events.Dispatcher, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		base:       base,
		storage:    storage,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
		sessions:   make(map[string]*Session),
	}
}

// Create starts a fresh logged-out session with a new id.
func (m *Manager) Create() *Session {
	sess := New(uuid.NewString(), m.base.Clone(), m.storage)
	m.mu.Lock()
	m.sessions[sess.ID()] = sess
	m.mu.Unlock()
	return sess
}

// Get returns the session for id, restoring its token from storage when the
// session is not held in memory.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		sess.touch(m.now())
		return sess, nil
	}

	sess = New(id, m.base.Clone(), m.storage)
	if err := sess.Restore(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if existing, ok := m.sessions[id]; ok {
		sess = existing
	} else {
		m.sessions[id] = sess
	}
	m.mu.Unlock()
	sess.touch(m.now())
	return sess, nil
}

// Login logs sess in and announces it.
func (m *Manager) Login(ctx context.Context, sess *Session, identifier string) (*copilotapi.UserInfo, error) {
	profile, err := sess.Login(ctx, identifier)
	if err != nil {
		return profile, err
	}
	m.publish(ctx, events.Event{
		Type:      events.EventSessionStarted,
		SessionID: sess.ID(),
		Actor:     profile.UserUPN,
	})
	return profile, nil
}

// Logout logs sess out and announces it.
func (m *Manager) Logout(ctx context.Context, sess *Session) error {
	actor := sess.Token()
	err := sess.Logout(ctx)
	m.publish(ctx, events.Event{
		Type:      events.EventSessionEnded,
		SessionID: sess.ID(),
		Actor:     actor,
	})
	return err
}

// Sweep drops sessions unused for longer than idle. Their persisted tokens stay,
// so a returning browser is restored. It returns the number of dropped sessions.
func (m *Manager) Sweep(ctx context.Context, idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	var expired []*Session
	for id, sess := range m.sessions {
		if sess.idleSince().Before(cutoff) {
			expired = append(expired, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, sess := range expired {
		m.publish(ctx, events.Event{
			Type:      events.EventSessionExpired,
			SessionID: sess.ID(),
			Actor:     sess.Token(),
		})
	}
	return len(expired)
}

// Len reports how many sessions are held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) publish(ctx context.Context, event events.Event) {
	if m.dispatcher == nil {
		return
	}
	if err := m.dispatcher.Publish(ctx, event); err != nil {
		m.logger.Warn("session event handler failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
