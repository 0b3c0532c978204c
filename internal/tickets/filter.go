package tickets

import (
	"strings"

	"github.com/criteria-it/servicedesk-copilot/internal/copilotapi"
)

// PriorityAll disables the priority filter.
const PriorityAll = "todos"

// Priorities are the selectable priority values, in display order.
var Priorities = []string{"Alta", "Media", "Baja"}

// Filter narrows an already-fetched ticket list.
type Filter struct {
	Search   string
	Priority string
}

// Match reports whether t passes the filter: subject or display id contains
// Search case-insensitively, and the priority is PriorityAll or equal.
func (f Filter) Match(t copilotapi.Ticket) bool {
	needle := strings.ToLower(f.Search)
	matchesSearch := strings.Contains(strings.ToLower(t.Subject), needle) ||
		strings.Contains(strings.ToLower(t.DisplayID), needle)
	return matchesSearch && f.matchesPriority(t.Priority)
}

func (f Filter) matchesPriority(priority string) bool {
	return f.Priority == "" || f.Priority == PriorityAll || f.Priority == priority
}

// Apply returns the tickets that match f, preserving order.
func Apply(list []copilotapi.Ticket, f Filter) []copilotapi.Ticket {
	out := make([]copilotapi.Ticket, 0, len(list))
	for _, t := range list {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}
