package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/flosch/pongo2/v6"

	"github.com/criteria-it/servicedesk-copilot/internal/copilotapi"
	"github.com/criteria-it/servicedesk-copilot/internal/tickets"
	"github.com/criteria-it/servicedesk-copilot/internal/workspace"
)

const (
	notAvailable = "N/D"
	noSLA        = "N/A"
	noDate       = "sin fecha"
)

// requestErrorMessage turns a failed backend call into an inline message.
func requestErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var reqErr *copilotapi.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.StatusCode == 0 {
			return "No pudimos contactar al servicio. Intenta de nuevo."
		}
		return fmt.Sprintf("El servicio respondió con un error (HTTP %d).", reqErr.StatusCode)
	}
	return "Ocurrió un error inesperado."
}

// actionErrorMessage explains why an assist action was refused or failed.
func actionErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, workspace.ErrNoSelection):
		return "Selecciona un ticket primero."
	case errors.Is(err, workspace.ErrActionPending):
		return "Ya hay una solicitud en curso para esta acción."
	case errors.Is(err, workspace.ErrEmptyReply):
		return "El mensaje está vacío."
	case errors.Is(err, workspace.ErrSuggestionDiscarded):
		return "La selección cambió antes de recibir la sugerencia."
	case errors.Is(err, workspace.ErrUnknownMessageType), errors.Is(err, workspace.ErrUnknownCloseStatus):
		return "Opción no válida."
	default:
		return requestErrorMessage(err)
	}
}

func formatHours(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func ticketItems(list tickets.ListView) []pongo2.Context {
	items := list.Items()
	out := make([]pongo2.Context, 0, len(items))
	for _, it := range items {
		out = append(out, pongo2.Context{
			"id":         it.ID,
			"display_id": it.DisplayID,
			"subject":    it.Subject,
			"status":     it.Status,
			"priority":   it.Priority,
			"service":    firstNonEmpty(it.ServiceName, it.ServiceCode),
			"active":     it.Active,
		})
	}
	return out
}

func ticketContext(t *workspace.TicketView) pongo2.Context {
	if t == nil {
		return nil
	}
	ctx := pongo2.Context{
		"id":               t.ID,
		"display_id":       t.DisplayID,
		"subject":          t.Subject,
		"status":           t.Status,
		"priority":         t.Priority,
		"badge":            t.StatusBadge,
		"sla_at_risk":      t.SLAAtRisk,
		"is_silent":        t.IsSilent,
		"review_requested": t.ExperienceReviewRequested,
		"service":          firstNonEmpty(t.ServiceName, t.ServiceCode, notAvailable),
		"sla_name":         noSLA,
		"sla_hours":        formatHours(t.CommunicationSLAHours),
		"hours_since":      formatHours(t.HoursSinceLastUserContact),
		"created":          noDate,
		"requester_name":   notAvailable,
		"requester_email":  "",
		"description":      t.DescriptionText,
	}
	if t.SLA != nil && t.SLA.Name != "" {
		ctx["sla_name"] = t.SLA.Name
	}
	if t.CreatedTime != nil && *t.CreatedTime != "" {
		ctx["created"] = *t.CreatedTime
	}
	if t.Requester != nil {
		ctx["requester_name"] = firstNonEmpty(t.Requester.Name, notAvailable)
		ctx["requester_email"] = t.Requester.EmailID
	}
	return ctx
}

func eventItems(evs []workspace.EventView) []pongo2.Context {
	out := make([]pongo2.Context, 0, len(evs))
	for _, ev := range evs {
		out = append(out, pongo2.Context{
			"id":        string(ev.EventID),
			"timestamp": ev.Timestamp,
			"label":     ev.Label,
			"author":    ev.Author,
			"body":      ev.Body,
		})
	}
	return out
}

func messageTypeOptions(selected workspace.MessageType) []pongo2.Context {
	out := make([]pongo2.Context, 0, len(workspace.MessageTypes))
	for _, mt := range workspace.MessageTypes {
		out = append(out, pongo2.Context{
			"value":  string(mt),
			"label":  mt.Label(),
			"active": mt == selected,
		})
	}
	return out
}

func closeStatusOptions(selected string) []pongo2.Context {
	out := make([]pongo2.Context, 0, len(workspace.CloseStatuses))
	for _, s := range workspace.CloseStatuses {
		label := s
		if s == workspace.CloseStatusNone {
			label = "No cambiar"
		}
		out = append(out, pongo2.Context{
			"value":    s,
			"label":    label,
			"selected": s == selected,
		})
	}
	return out
}

func priorityOptions() []pongo2.Context {
	out := make([]pongo2.Context, 0, len(tickets.Priorities)+1)
	out = append(out, pongo2.Context{"value": tickets.PriorityAll, "label": "Todas"})
	for _, p := range tickets.Priorities {
		out = append(out, pongo2.Context{"value": p, "label": p})
	}
	return out
}

// ticketPage flattens a workspace snapshot into the template context.
func ticketPage(v workspace.View, actionErr error) pongo2.Context {
	return pongo2.Context{
		"user_name":       v.User.Name(),
		"search":          v.List.Filter.Search,
		"priority":        v.List.Filter.Priority,
		"priorities":      priorityOptions(),
		"tickets_loading": v.List.Loading,
		"tickets_error":   requestErrorMessage(v.TicketsErr),
		"items":           ticketItems(v.List),
		"selected_id":     v.SelectedID,
		"detail_error":    requestErrorMessage(v.Detail.Err),
		"ticket":          ticketContext(v.Ticket),
		"history_error":   requestErrorMessage(v.History.Err),
		"events":          eventItems(v.Events),
		"event_count":     len(v.Events),
		"message_types":   messageTypeOptions(v.Assist.MessageType),
		"is_closure":      v.Assist.MessageType == workspace.MessageClosure,
		"close_statuses":  closeStatusOptions(v.Assist.CloseStatus),
		"draft":           v.Assist.Draft,
		"reply":           v.Assist.Reply,
		"can_generate":    v.Actions.CanGenerate,
		"can_interpret":   v.Actions.CanInterpret,
		"can_send":        v.Actions.CanSend,
		// the reply box is edited in the browser, so the button stays usable without text
		"send_enabled":    v.SelectedID != "" && !v.Actions.SendPending,
		"generate_error":  requestErrorMessage(v.Actions.GenerateErr),
		"interpret_error": requestErrorMessage(v.Actions.InterpretErr),
		"send_error":      requestErrorMessage(v.Actions.SendErr),
		"notice":          v.Notice,
		"action_error":    actionErrorMessage(actionErr),
	}
}
