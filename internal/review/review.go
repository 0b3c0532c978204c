package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/criteria-it/servicedesk-copilot/internal/copilotapi"
	"github.com/criteria-it/servicedesk-copilot/internal/events"
)

var (
	ErrFormDisabled      = errors.New("review: form is not enabled")
	ErrInvalidReason     = errors.New("review: unknown reason")
	ErrSubmissionPending = errors.New("review: submission already in progress")
	ErrAlreadySubmitted  = errors.New("review: token already submitted")
)

// Reasons are the satisfaction choices in display order.
var Reasons = []string{"Conforme", "No conforme", "Regular"}

// DefaultReason is preselected on a fresh form.
const DefaultReason = "Conforme"

const (
	MessageValidationFailed = "No pudimos validar el enlace. Intenta de nuevo."
	MessageSubmitFailed     = "No pudimos enviar tu respuesta. Intenta de nuevo."
	CommentPlaceholder      = "¿Qué podríamos mejorar?"
)

const (
	defaultRetention  = 24 * time.Hour
	validationTimeout = 15 * time.Second
)

func validReason(reason string) bool {
	for _, r := range Reasons {
		if r == reason {
			return true
		}
	}
	return false
}

// Options configures a Service.
type Options struct {
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	// Retention bounds how long submitted tokens are remembered.
	Retention time.Duration
}

// Service validates review tokens and submits reviews. It must be given a client
// without a bearer token.
type Service struct {
	client     *copilotapi.Client
	dispatcher events.Dispatcher
	logger     *zap.Logger
	retention  time.Duration
	now        func() time.Time

	validations singleflight.Group

	mu        sync.Mutex
	pending   map[string]bool
	submitted map[string]time.Time
}

// NewService builds a review service over client.
func NewService(client *copilotapi.Client, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retention := opts.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Service{
		client:     client,
		dispatcher: opts.Dispatcher,
		logger:     logger,
		retention:  retention,
		now:        time.Now,
		pending:    make(map[string]bool),
		submitted:  make(map[string]time.Time),
	}
}

// Open builds the form for token. Concurrent opens of one token share a single
// validation call.
func (s *Service) Open(ctx context.Context, token string) *Form {
	token = strings.TrimSpace(token)
	form := &Form{Token: token, Reason: DefaultReason}
	if token == "" {
		form.Phase = PhaseNoToken
		return form
	}
	if s.wasSubmitted(token) {
		form.Phase = PhaseSubmitted
		return form
	}

	form.Phase = PhaseValidating
	v, err, _ := s.validations.Do(token, func() (any, error) {
		// shared by every concurrent opener, so one caller's cancellation must not end it
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), validationTimeout)
		defer cancel()
		return s.client.ValidateReviewToken(callCtx, token)
	})
	if err != nil {
		s.logger.Warn("review token validation failed", zap.Error(err))
		form.Phase = PhaseInvalid
		form.Error = MessageValidationFailed
		return form
	}
	validation, _ := v.(*copilotapi.ReviewValidation)
	if validation == nil || !validation.Valid {
		form.Phase = PhaseInvalid
		return form
	}
	form.Phase = PhaseValid
	form.TicketID = validation.TicketID
	return form
}

// Submit posts the review held by form with the chosen reason and comment. A
// token is submitted at most once per process.
func (s *Service) Submit(ctx context.Context, form *Form, reason, comment string) error {
	form.Reason = reason
	form.Comment = comment
	if !form.Enabled() {
		return ErrFormDisabled
	}
	if !validReason(reason) {
		return fmt.Errorf("%w: %q", ErrInvalidReason, reason)
	}

	token := form.Token
	s.mu.Lock()
	s.pruneLocked()
	if _, ok := s.submitted[token]; ok {
		s.mu.Unlock()
		form.Phase = PhaseSubmitted
		return ErrAlreadySubmitted
	}
	if s.pending[token] {
		s.mu.Unlock()
		return ErrSubmissionPending
	}
	s.pending[token] = true
	s.mu.Unlock()

	_, err := s.client.SubmitReview(ctx, copilotapi.ReviewSubmission{
		Token:   token,
		Reason:  reason,
		Comment: comment,
	})

	s.mu.Lock()
	delete(s.pending, token)
	if err == nil {
		s.submitted[token] = s.now()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("review submission failed", zap.String("ticket_id", form.TicketID), zap.Error(err))
		form.Error = MessageSubmitFailed
		return err
	}
	form.Phase = PhaseSubmitted
	form.Error = ""

	if s.dispatcher != nil {
		event := events.Event{
			Type:     events.EventReviewSubmitted,
			TicketID: form.TicketID,
			Payload: events.ReviewSubmittedPayload{
				Reason:     reason,
				HasComment: strings.TrimSpace(comment) != "",
			},
		}
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("review event handler failed", zap.Error(err))
		}
	}
	return nil
}

func (s *Service) wasSubmitted(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	_, ok := s.submitted[token]
	return ok
}

func (s *Service) pruneLocked() {
	cutoff := s.now().Add(-s.retention)
	for token, at := range s.submitted {
		if at.Before(cutoff) {
			delete(s.submitted, token)
		}
	}
}
