package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionStarted      EventType = "session_started"
	EventSessionEnded        EventType = "session_ended"
	EventSessionExpired      EventType = "session_expired"
	EventSuggestionGenerated EventType = "suggestion_generated"
	EventReplySent           EventType = "reply_sent"
	EventReviewSubmitted     EventType = "review_submitted"
)

// Event represents something a technician or reviewer did through the console.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Actor     string      `json:"actor,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// SuggestionGeneratedPayload payload.
type SuggestionGeneratedPayload struct {
	Source      string `json:"source"`
	MessageType string `json:"message_type,omitempty"`
	Length      int    `json:"length"`
}

// ReplySentPayload payload.
type ReplySentPayload struct {
	Length int  `json:"length"`
	Edited bool `json:"edited"`
}

// ReviewSubmittedPayload payload.
type ReviewSubmittedPayload struct {
	Reason     string `json:"reason"`
	HasComment bool   `json:"has_comment"`
}
