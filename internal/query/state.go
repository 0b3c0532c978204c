package query

// Status is the lifecycle of one request.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// State is a request-state snapshot for one key.
type State[T any] struct {
	Key    string
	Status Status
	Data   T
	Err    error

	// HasData is set once a successful result exists for Key, even while a
	// refetch is pending or after it failed.
	HasData bool

	// Stale marks a result that completed after the current key moved on; it
	// was not stored.
	Stale bool
}

// IsLoading is true while the first result for the key is outstanding.
func (s State[T]) IsLoading() bool {
	return s.Status == StatusPending && !s.HasData
}

func (s State[T]) IsPending() bool { return s.Status == StatusPending }

func (s State[T]) IsError() bool { return s.Status == StatusError }

func (s State[T]) IsSuccess() bool { return s.Status == StatusSuccess }
