package workspace

import (
	"github.com/criteria-it/servicedesk-copilot/internal/copilotapi"
	"github.com/criteria-it/servicedesk-copilot/internal/query"
	"github.com/criteria-it/servicedesk-copilot/internal/tickets"
)

// TicketView is the selected ticket with its derived display state.
type TicketView struct {
	*copilotapi.TicketDetail
	SLAAtRisk       bool
	StatusBadge     string
	DescriptionText string
}

// EventView is one timeline row ready for display.
type EventView struct {
	copilotapi.HistoryEvent
	Label  string
	Author string
	Body   string
}

const unknownAuthor = "N/D"

// Actions reports which assist controls are usable.
type Actions struct {
	CanGenerate      bool
	CanInterpret     bool
	CanSend          bool
	GeneratePending  bool
	InterpretPending bool
	SendPending      bool
	GenerateErr      error
	InterpretErr     error
	SendErr          error
}

// View is a point-in-time snapshot of the workspace.
type View struct {
	User       *copilotapi.UserInfo
	List       tickets.ListView
	TicketsErr error
	SelectedID string
	Detail     query.State[*copilotapi.TicketDetail]
	History    query.State[[]copilotapi.HistoryEvent]
	Ticket     *TicketView
	Events     []EventView
	Assist     Assist
	Actions    Actions
	Notice     string
}

// View returns the current snapshot. The notice is reported once.
func (w *Workspace) View() View {
	ticketsState := w.tickets.Current()

	w.mu.Lock()
	selected := w.selectedID
	filter := w.filter
	assist := w.assist
	notice := w.notice
	w.notice = ""
	w.mu.Unlock()

	v := View{
		User: w.session.User(),
		List: tickets.ListView{
			Tickets:    ticketsState.Data,
			SelectedID: selected,
			Filter:     filter,
			Loading:    ticketsState.IsLoading(),
		},
		TicketsErr: ticketsState.Err,
		SelectedID: selected,
		Assist:     assist,
		Notice:     notice,
	}

	if selected != "" {
		v.Detail = w.detail.Peek(selected)
		v.History = w.history.Peek(selected)
	}
	if v.Detail.HasData && v.Detail.Data != nil {
		d := v.Detail.Data
		v.Ticket = &TicketView{
			TicketDetail:    d,
			SLAAtRisk:       tickets.SLAAtRisk(d.HoursSinceLastUserContact, d.CommunicationSLAHours),
			StatusBadge:     tickets.StatusBadge(d.Status),
			DescriptionText: tickets.PlainText(d.Description),
		}
	}
	for _, ev := range v.History.Data {
		label := ev.Visibility
		if label == "" {
			label = ev.Type
		}
		author := ev.AuthorName
		if author == "" {
			author = unknownAuthor
		}
		v.Events = append(v.Events, EventView{
			HistoryEvent: ev,
			Label:        label,
			Author:       author,
			Body:         tickets.PlainText(ev.Text),
		})
	}

	gen, interp, send := w.generate.State(), w.interpret.State(), w.send.State()
	v.Actions = Actions{
		GeneratePending:  gen.IsPending(),
		InterpretPending: interp.IsPending(),
		SendPending:      send.IsPending(),
		GenerateErr:      gen.Err,
		InterpretErr:     interp.Err,
		SendErr:          send.Err,
	}
	v.Actions.CanGenerate = selected != "" && !v.Actions.GeneratePending
	v.Actions.CanInterpret = selected != "" && !v.Actions.InterpretPending
	v.Actions.CanSend = selected != "" && assist.HasReply() && !v.Actions.SendPending
	return v
}
