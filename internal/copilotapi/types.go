package copilotapi

import (
	"bytes"
	"encoding/json"
	"strings"
)

// UserInfo is the technician profile resolved from a UPN.
type UserInfo struct {
	UserUPN         string `json:"user_upn"`
	DisplayName     string `json:"display_name,omitempty"`
	TechnicianIDSDP string `json:"technician_id_sdp,omitempty"`
}

// Name returns the display name, falling back to the UPN.
func (u *UserInfo) Name() string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.UserUPN
}

// Ticket is the summary row returned by the ticket list.
type Ticket struct {
	ID                        string   `json:"id"`
	DisplayID                 string   `json:"display_id"`
	Subject                   string   `json:"subject"`
	Status                    string   `json:"status"`
	Priority                  string   `json:"priority"`
	ServiceCode               string   `json:"service_code,omitempty"`
	ServiceName               string   `json:"service_name,omitempty"`
	LastUserContactAt         *string  `json:"last_user_contact_at,omitempty"`
	HoursSinceLastUserContact *float64 `json:"hours_since_last_user_contact,omitempty"`
	CommunicationSLAHours     *float64 `json:"communication_sla_hours,omitempty"`
	IsSilent                  bool     `json:"is_silent,omitempty"`
	ExperienceReviewRequested bool     `json:"experience_review_requested,omitempty"`
}

// Requester holds the contact fields of the person who opened a ticket.
type Requester struct {
	Name    string `json:"name,omitempty"`
	EmailID string `json:"email_id,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// SLA names the service-level agreement attached to a ticket.
type SLA struct {
	Name string `json:"name,omitempty"`
	ID   string `json:"id,omitempty"`
}

// TicketDetail is the full ticket fetched for the workspace.
type TicketDetail struct {
	Ticket
	Description  string     `json:"description,omitempty"`
	Requester    *Requester `json:"requester,omitempty"`
	Site         string     `json:"site,omitempty"`
	Group        string     `json:"group,omitempty"`
	TechnicianID *int64     `json:"technician_id,omitempty"`
	CreatedTime  *string    `json:"created_time,omitempty"`
	SLA          *SLA       `json:"sla,omitempty"`
}

// EventID accepts both numeric and string identifiers.
type EventID string

func (id *EventID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = EventID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = EventID(strings.TrimSpace(n.String()))
	return nil
}

// HistoryEvent is one entry of a ticket timeline.
type HistoryEvent struct {
	EventID    EventID `json:"event_id"`
	Type       string  `json:"type"`
	AuthorName string  `json:"author_name,omitempty"`
	AuthorType string  `json:"author_type,omitempty"`
	Visibility string  `json:"visibility,omitempty"`
	Timestamp  string  `json:"timestamp"`
	Text       string  `json:"text"`
	OldValue   string  `json:"old_value,omitempty"`
	NewValue   string  `json:"new_value,omitempty"`
}

// GenerateReplyParams drives the AI suggestion endpoint.
type GenerateReplyParams struct {
	TicketID    string
	MessageType string
	Draft       string
	CloseStatus string
}

// ReviewValidation gates the experience review form.
type ReviewValidation struct {
	Valid    bool   `json:"valid"`
	TicketID string `json:"ticket_id,omitempty"`
}

// ReviewSubmission is posted once per review token.
type ReviewSubmission struct {
	Token   string `json:"token"`
	Reason  string `json:"reason"`
	Comment string `json:"comment"`
}

// SendReplyRequest carries the technician's final reply.
type SendReplyRequest struct {
	Message string `json:"message"`
}

type generateReplyRequest struct {
	MessageType string `json:"message_type"`
	Draft       string `json:"draft"`
	CloseStatus string `json:"close_status,omitempty"`
}

type generateReplyResponse struct {
	SuggestedMessage string `json:"suggested_message"`
}

type interpretRequest struct {
	TicketID string `json:"ticket_id"`
}

type interpretResponse struct {
	Suggestion string `json:"suggestion"`
}

type ticketsResponse struct {
	Tickets []Ticket `json:"tickets"`
}

type historyResponse struct {
	Events []HistoryEvent `json:"events"`
}
