package query

import (
	"context"
	"errors"
	"sync"
)

// ErrInFlight is returned when a mutation is started while its previous run is pending.
var ErrInFlight = errors.New("query: mutation already in flight")

// Mutation tracks a single-flight write action.
type Mutation[T any] struct {
	mu    sync.Mutex
	state State[T]
}

// Run executes fn unless a previous run is still pending.
func (m *Mutation[T]) Run(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	m.mu.Lock()
	if m.state.Status == StatusPending {
		m.mu.Unlock()
		var zero T
		return zero, ErrInFlight
	}
	m.state = State[T]{Status: StatusPending}
	m.mu.Unlock()

	data, err := fn(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = State[T]{Status: StatusError, Err: err}
		return data, err
	}
	m.state = State[T]{Status: StatusSuccess, Data: data, HasData: true}
	return data, nil
}

// State returns the latest request-state.
func (m *Mutation[T]) State() State[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Pending reports whether a run is in flight.
func (m *Mutation[T]) Pending() bool {
	return m.State().Status == StatusPending
}

// Reset returns the mutation to idle unless a run is in flight.
func (m *Mutation[T]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status != StatusPending {
		m.state = State[T]{}
	}
}
