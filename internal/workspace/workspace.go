package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/criteria-it/servicedesk-copilot/internal/copilotapi"
	"github.com/criteria-it/servicedesk-copilot/internal/events"
	"github.com/criteria-it/servicedesk-copilot/internal/query"
	"github.com/criteria-it/servicedesk-copilot/internal/session"
	"github.com/criteria-it/servicedesk-copilot/internal/tickets"
)

var (
	ErrNoSelection         = errors.New("workspace: no ticket selected")
	ErrActionPending       = errors.New("workspace: action already in progress")
	ErrEmptyReply          = errors.New("workspace: reply is empty")
	ErrUnknownMessageType  = errors.New("workspace: unknown message type")
	ErrUnknownCloseStatus  = errors.New("workspace: unknown close status")
	ErrSuggestionDiscarded = errors.New("workspace: selection changed before the suggestion arrived")
)

// NoticeReplySent confirms a delivered reply.
const NoticeReplySent = "Respuesta enviada al usuario."

const ticketsKey = "tickets"

// Options configures a Workspace.
type Options struct {
	StaleTime  time.Duration
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// Workspace is one technician's ticket console: the selected ticket, the
// queries keyed by it and the AI-assist panel.
type Workspace struct {
	session    *session.Session
	dispatcher events.Dispatcher
	logger     *zap.Logger

	tickets *query.Query[[]copilotapi.Ticket]
	detail  *query.Query[*copilotapi.TicketDetail]
	history *query.Query[[]copilotapi.HistoryEvent]

	generate  query.Mutation[string]
	interpret query.Mutation[string]
	send      query.Mutation[map[string]any]

	mu         sync.Mutex
	selectedID string
	filter     tickets.Filter
	assist     Assist
	notice     string
}

// New builds a workspace over sess. Requests go through the session's client, so
// they carry its current token.
func New(sess *session.Session, opts Options) *Workspace {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Workspace{
		session:    sess,
		dispatcher: opts.Dispatcher,
		logger:     logger.With(zap.String("session_id", sess.ID())),
		filter:     tickets.Filter{Priority: tickets.PriorityAll},
		assist:     defaultAssist(),
	}
	client := sess.Client()
	w.tickets = query.New[[]copilotapi.Ticket](func(ctx context.Context, _ string) ([]copilotapi.Ticket, error) {
		return client.FetchTickets(ctx)
	}, opts.StaleTime)
	w.detail = query.New[*copilotapi.TicketDetail](client.FetchTicketDetail, opts.StaleTime)
	w.history = query.New[[]copilotapi.HistoryEvent](client.FetchTicketHistory, opts.StaleTime)
	return w
}

// Session returns the session this workspace acts for.
func (w *Workspace) Session() *session.Session {
	return w.session
}

// LoadTickets fetches the assigned tickets and selects the first one when
// nothing is selected yet.
func (w *Workspace) LoadTickets(ctx context.Context) query.State[[]copilotapi.Ticket] {
	state := w.tickets.Load(ctx, ticketsKey)
	if state.HasData && len(state.Data) > 0 {
		w.mu.Lock()
		if w.selectedID == "" {
			w.selectTicketLocked(state.Data[0].ID)
		}
		w.mu.Unlock()
	}
	return state
}

// Select makes id the current ticket and fetches its detail and history
// concurrently, once each.
func (w *Workspace) Select(ctx context.Context, id string) {
	w.mu.Lock()
	w.selectTicketLocked(id)
	w.mu.Unlock()
	w.loadSelection(ctx, id)
}

// Point makes id the current ticket without fetching anything. The next Open
// loads its detail and history.
func (w *Workspace) Point(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selectTicketLocked(id)
}

// Open is the page-load path: the ticket list is fetched, then the requested
// ticket is selected, or the first one when nothing is selected, and its detail
// and history are fetched once each.
func (w *Workspace) Open(ctx context.Context, requestedID string) View {
	w.LoadTickets(ctx)
	if requestedID != "" {
		w.mu.Lock()
		w.selectTicketLocked(requestedID)
		w.mu.Unlock()
	}
	if id := w.SelectedID(); id != "" {
		w.loadSelection(ctx, id)
	}
	return w.View()
}

// SelectedID returns the current ticket id, empty when none.
func (w *Workspace) SelectedID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectedID
}

func (w *Workspace) selectTicketLocked(id string) {
	if w.selectedID != id {
		w.notice = ""
		w.generate.Reset()
		w.interpret.Reset()
		w.send.Reset()
	}
	w.selectedID = id
	w.detail.SetKey(id)
	w.history.SetKey(id)
}

func (w *Workspace) loadSelection(ctx context.Context, id string) {
	if id == "" {
		return
	}
	var g errgroup.Group
	g.Go(func() error {
		if st := w.detail.Fetch(ctx, id); st.IsError() {
			w.logger.Warn("ticket detail fetch failed", zap.String("ticket_id", id), zap.Error(st.Err))
		}
		return nil
	})
	g.Go(func() error {
		if st := w.history.Fetch(ctx, id); st.IsError() {
			w.logger.Warn("ticket history fetch failed", zap.String("ticket_id", id), zap.Error(st.Err))
		}
		return nil
	})
	_ = g.Wait()
}

// SetFilter replaces the list filter.
func (w *Workspace) SetFilter(f tickets.Filter) {
	if f.Priority == "" {
		f.Priority = tickets.PriorityAll
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.filter = f
}

// SetMessageType picks the reply kind.
func (w *Workspace) SetMessageType(mt MessageType) error {
	if !mt.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, mt)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.assist.MessageType = mt
	return nil
}

// SetCloseStatus picks the status applied by a closure reply.
func (w *Workspace) SetCloseStatus(status string) error {
	if !validCloseStatus(status) {
		return fmt.Errorf("%w: %q", ErrUnknownCloseStatus, status)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.assist.CloseStatus = status
	return nil
}

// SetDraft stores the technician's intent notes for the AI.
func (w *Workspace) SetDraft(draft string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.assist.Draft = draft
}

// SetReply stores the edited reply text.
func (w *Workspace) SetReply(reply string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.assist.Reply = reply
}

// Generate asks the AI for a reply using the panel settings.
func (w *Workspace) Generate(ctx context.Context) error {
	w.mu.Lock()
	id := w.selectedID
	params := copilotapi.GenerateReplyParams{
		TicketID:    id,
		MessageType: string(w.assist.MessageType),
		Draft:       w.assist.Draft,
		CloseStatus: w.assist.effectiveCloseStatus(),
	}
	w.mu.Unlock()
	if id == "" {
		return ErrNoSelection
	}

	client := w.session.Client()
	msg, err := w.generate.Run(ctx, func(ctx context.Context) (string, error) {
		return client.GenerateReply(ctx, params)
	})
	if err != nil {
		return w.actionError(err)
	}
	if err := w.applySuggestion(id, msg); err != nil {
		return err
	}
	w.publish(ctx, events.Event{
		Type:     events.EventSuggestionGenerated,
		TicketID: id,
		Payload: events.SuggestionGeneratedPayload{
			Source:      "generate",
			MessageType: params.MessageType,
			Length:      len(msg),
		},
	})
	return nil
}

// Interpret asks the AI to read the conversation and propose a reply.
func (w *Workspace) Interpret(ctx context.Context) error {
	id := w.SelectedID()
	if id == "" {
		return ErrNoSelection
	}

	client := w.session.Client()
	msg, err := w.interpret.Run(ctx, func(ctx context.Context) (string, error) {
		return client.InterpretConversation(ctx, id)
	})
	if err != nil {
		return w.actionError(err)
	}
	if err := w.applySuggestion(id, msg); err != nil {
		return err
	}
	w.publish(ctx, events.Event{
		Type:     events.EventSuggestionGenerated,
		TicketID: id,
		Payload:  events.SuggestionGeneratedPayload{Source: "interpret", Length: len(msg)},
	})
	return nil
}

// Send delivers the reply box text to the requester and invalidates the
// ticket list so status changes show up on the next load. An earlier
// suggestion is never sent in place of a cleared reply.
func (w *Workspace) Send(ctx context.Context) error {
	w.mu.Lock()
	id := w.selectedID
	hasReply := w.assist.HasReply()
	reply := w.assist.Reply
	edited := reply != w.assist.Suggested
	w.mu.Unlock()
	if id == "" {
		return ErrNoSelection
	}
	if !hasReply {
		return ErrEmptyReply
	}

	client := w.session.Client()
	_, err := w.send.Run(ctx, func(ctx context.Context) (map[string]any, error) {
		return client.SendReply(ctx, id, copilotapi.SendReplyRequest{Message: reply})
	})
	if err != nil {
		return w.actionError(err)
	}

	w.tickets.InvalidateAll()
	w.mu.Lock()
	w.notice = NoticeReplySent
	w.mu.Unlock()

	w.publish(ctx, events.Event{
		Type:     events.EventReplySent,
		TicketID: id,
		Payload:  events.ReplySentPayload{Length: len(reply), Edited: edited},
	})
	return nil
}

func (w *Workspace) applySuggestion(id, msg string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.selectedID != id {
		return ErrSuggestionDiscarded
	}
	w.assist.Suggested = msg
	w.assist.Reply = msg
	w.notice = ""
	return nil
}

func (w *Workspace) actionError(err error) error {
	if errors.Is(err, query.ErrInFlight) {
		return ErrActionPending
	}
	return err
}

func (w *Workspace) publish(ctx context.Context, event events.Event) {
	if w.dispatcher == nil {
		return
	}
	event.SessionID = w.session.ID()
	event.Actor = w.session.Token()
	if err := w.dispatcher.Publish(ctx, event); err != nil {
		w.logger.Warn("workspace event handler failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
