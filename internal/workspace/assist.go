package workspace

import (
	"strings"
)

// MessageType selects the kind of reply the AI drafts.
type MessageType string

const (
	MessageFirstResponse MessageType = "primera_respuesta"
	MessageUpdate        MessageType = "actualizacion"
	MessageClosure       MessageType = "cierre"
)

// MessageTypes lists the selectable message types in display order.
var MessageTypes = []MessageType{MessageFirstResponse, MessageUpdate, MessageClosure}

// Label is the human form shown on the selector.
func (m MessageType) Label() string {
	return strings.Replace(string(m), "_", " ", 1)
}

func (m MessageType) valid() bool {
	for _, t := range MessageTypes {
		if t == m {
			return true
		}
	}
	return false
}

// CloseStatusNone leaves the ticket status untouched on a closure reply.
const CloseStatusNone = ""

// CloseStatuses are the statuses a closure reply may apply.
var CloseStatuses = []string{"Cerrado", "Resuelto", CloseStatusNone}

func validCloseStatus(s string) bool {
	for _, c := range CloseStatuses {
		if c == s {
			return true
		}
	}
	return false
}

// Assist is the AI-assist panel state.
type Assist struct {
	MessageType MessageType
	CloseStatus string
	Draft       string
	Suggested   string
	Reply       string
}

func defaultAssist() Assist {
	return Assist{MessageType: MessageClosure, CloseStatus: "Cerrado"}
}

// effectiveCloseStatus is sent only with closure replies.
func (a Assist) effectiveCloseStatus() string {
	if a.MessageType != MessageClosure {
		return ""
	}
	return a.CloseStatus
}

// HasReply reports whether the reply box holds something to send.
func (a Assist) HasReply() bool {
	return strings.TrimSpace(a.Reply) != ""
}
