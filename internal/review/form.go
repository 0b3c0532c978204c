package review

import "fmt"

// Phase is where a review form stands.
type Phase int

const (
	PhaseNoToken Phase = iota
	PhaseValidating
	PhaseInvalid
	PhaseValid
	PhaseSubmitted
)

// Form is the review page state for one token.
type Form struct {
	Token    string
	Phase    Phase
	TicketID string
	Reason   string
	Comment  string
	// Error is a user-facing message, empty when there is nothing to report.
	Error string
}

// Title is the page heading for the current phase.
func (f *Form) Title() string {
	switch f.Phase {
	case PhaseValidating:
		return "Validando enlace..."
	case PhaseValid:
		return fmt.Sprintf("Feedback de atención (Ticket %s)", f.TicketID)
	case PhaseSubmitted:
		return "¡Gracias por compartir tu experiencia!"
	default:
		return "Enlace inválido o vencido"
	}
}

// Enabled reports whether the controls accept input.
func (f *Form) Enabled() bool {
	return f.Phase == PhaseValid
}

// Reasons lists the selectable reasons.
func (f *Form) Reasons() []string {
	return Reasons
}
