package tickets

import (
	"github.com/criteria-it/servicedesk-copilot/internal/copilotapi"
)

// Item is one rendered row of the ticket list.
type Item struct {
	copilotapi.Ticket
	Active bool
}

// ListView is the assigned-ticket sidebar.
type ListView struct {
	Tickets    []copilotapi.Ticket
	SelectedID string
	Filter     Filter
	Loading    bool
	OnSelect   func(id string)
}

// Items returns the filtered rows with the selected one flagged.
func (v ListView) Items() []Item {
	filtered := Apply(v.Tickets, v.Filter)
	items := make([]Item, 0, len(filtered))
	for _, t := range filtered {
		items = append(items, Item{Ticket: t, Active: t.ID == v.SelectedID})
	}
	return items
}

// Empty reports whether nothing survives the filter.
func (v ListView) Empty() bool {
	return len(v.Items()) == 0
}

// Select hands id to the selection callback.
func (v ListView) Select(id string) {
	if v.OnSelect != nil {
		v.OnSelect(id)
	}
}
