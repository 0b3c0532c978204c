package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/criteria-it/servicedesk-copilot/internal/events"
	"github.com/criteria-it/servicedesk-copilot/internal/messaging"
)

// ErrAuditQueueFull is returned to the dispatcher when an event is dropped.
var ErrAuditQueueFull = errors.New("worker: audit queue full")

const publishTimeout = 10 * time.Second

// AuditWorker logs every console event and forwards it to the publisher. Events
// are queued so request handlers never wait on the broker.
type AuditWorker struct {
	publisher messaging.Publisher
	producer  string
	logger    *zap.Logger

	queue  chan events.Event
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewAuditWorker creates a worker buffering up to buffer events.
func NewAuditWorker(publisher messaging.Publisher, producer string, logger *zap.Logger, buffer int) *AuditWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = messaging.NewNoop(logger)
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &AuditWorker{
		publisher: publisher,
		producer:  producer,
		logger:    logger.Named("audit"),
		queue:     make(chan events.Event, buffer),
	}
}

// Register subscribes the worker to every event type.
func (w *AuditWorker) Register(d events.Dispatcher) {
	events.SubscribeAll(d, w.enqueue)
}

// Start drains the queue until Stop.
func (w *AuditWorker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for event := range w.queue {
			w.handle(event)
		}
	}()
}

// Stop closes the queue and waits for queued events to be handled.
func (w *AuditWorker) Stop() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *AuditWorker) enqueue(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return nil
	}
	select {
	case w.queue <- event:
		return nil
	default:
		w.logger.Warn("audit event dropped", zap.String("type", string(event.Type)), zap.String("event_id", event.ID))
		return ErrAuditQueueFull
	}
}

func (w *AuditWorker) handle(event events.Event) {
	w.logger.Info("console event",
		zap.String("type", string(event.Type)),
		zap.String("event_id", event.ID),
		zap.String("session_id", event.SessionID),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor", event.Actor),
	)

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	env := messaging.EnvelopeFor(event, w.producer)
	if err := w.publisher.Publish(ctx, messaging.RoutingKey(event.Type), env); err != nil {
		w.logger.Error("audit publish failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
