package workspace

import (
	"context"
	"sync"

	"github.com/criteria-it/servicedesk-copilot/internal/events"
	"github.com/criteria-it/servicedesk-copilot/internal/session"
)

// Registry keeps one Workspace per live session.
type Registry struct {
	opts Options

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// NewRegistry creates an empty registry whose workspaces share opts.
func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts, workspaces: make(map[string]*Workspace)}
}

// For returns the workspace of sess, creating it on first use. A workspace built
// for an older Session value with the same id is replaced.
func (r *Registry) For(sess *session.Session) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.workspaces[sess.ID()]; ok && w.session == sess {
		return w
	}
	w := New(sess, r.opts)
	r.workspaces[sess.ID()] = w
	return w
}

// Drop forgets the workspace of session id.
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workspaces, id)
}

// Len reports how many workspaces are held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// Subscribe drops workspaces when their session ends or expires.
func (r *Registry) Subscribe(d events.Dispatcher) {
	drop := func(_ context.Context, e events.Event) error {
		r.Drop(e.SessionID)
		return nil
	}
	d.Subscribe(events.EventSessionEnded, drop)
	d.Subscribe(events.EventSessionExpired, drop)
}
