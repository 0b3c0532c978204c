package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/criteria-it/servicedesk-copilot/internal/copilotapi"
)

var (
	// ErrEmptyIdentifier is returned when login is attempted without a UPN.
	ErrEmptyIdentifier = errors.New("session: empty identifier")
	// ErrLoginFailed wraps every backend failure during login.
	ErrLoginFailed = errors.New("session: login failed")
)

// Session holds one technician's bearer token and profile. The token doubles as
// the login identifier; the client's authorization header always mirrors it.
type Session struct {
	id      string
	client  *copilotapi.Client
	storage Storage

	mu       sync.RWMutex
	token    string
	user     *copilotapi.UserInfo
	lastSeen time.Time
}

// New creates a logged-out session backed by client and storage.
func New(id string, client *copilotapi.Client, storage Storage) *Session {
	return &Session{id: id, client: client, storage: storage, lastSeen: time.Now()}
}

// ID returns the browser session identifier.
func (s *Session) ID() string {
	return s.id
}

// Client returns the API client whose header follows this session's token.
func (s *Session) Client() *copilotapi.Client {
	return s.client
}

// Token returns the current bearer token, empty when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the resolved profile. It is nil after a restore until the next login.
func (s *Session) User() *copilotapi.UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Authenticated reports whether a token is set.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Restore loads a persisted token without revalidating it.
func (s *Session) Restore(ctx context.Context) error {
	token, ok, err := s.storage.Load(ctx, s.storageKey())
	if err != nil {
		return fmt.Errorf("session: restore: %w", err)
	}
	if !ok || token == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTokenLocked(token)
	return nil
}

// Login resolves identifier through the API and, on success, stores and persists it
// as the session token.
func (s *Session) Login(ctx context.Context, identifier string) (*copilotapi.UserInfo, error) {
	upn := strings.TrimSpace(identifier)
	if upn == "" {
		return nil, ErrEmptyIdentifier
	}

	profile, err := s.client.LoginWithUPN(ctx, upn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	s.mu.Lock()
	s.user = profile
	s.setTokenLocked(upn)
	s.mu.Unlock()

	if err := s.storage.Save(ctx, s.storageKey(), upn); err != nil {
		return profile, fmt.Errorf("session: persist token: %w", err)
	}
	return profile, nil
}

// Logout clears the token, profile and persisted key.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.user = nil
	s.setTokenLocked("")
	s.mu.Unlock()

	if err := s.storage.Remove(ctx, s.storageKey()); err != nil {
		return fmt.Errorf("session: remove token: %w", err)
	}
	return nil
}

// setTokenLocked is the only place the token changes. s.mu must be held.
func (s *Session) setTokenLocked(token string) {
	s.token = token
	s.client.SetAuthToken(token)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

func (s *Session) storageKey() string {
	return s.id + ":" + TokenKey
}
