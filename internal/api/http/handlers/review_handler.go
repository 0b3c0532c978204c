package handlers

import (
	"errors"

	"github.com/flosch/pongo2/v6"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/criteria-it/servicedesk-copilot/internal/api/http/views"
	"github.com/criteria-it/servicedesk-copilot/internal/review"
)

// ReviewHandler serves the public experience review page.
type ReviewHandler struct {
	reviews  *review.Service
	renderer *views.Renderer
	logger   *zap.Logger
}

// NewReviewHandler constructs handler.
func NewReviewHandler(reviews *review.Service, renderer *views.Renderer, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, renderer: renderer, logger: logger}
}

// Page GET /experience/review.
func (h *ReviewHandler) Page(c *fiber.Ctx) error {
	form := h.reviews.Open(c.UserContext(), c.Query("token"))
	return h.render(c, fiber.StatusOK, form)
}

// Submit POST /experience/review.
func (h *ReviewHandler) Submit(c *fiber.Ctx) error {
	ctx := c.UserContext()
	form := h.reviews.Open(ctx, c.FormValue("token"))

	err := h.reviews.Submit(ctx, form, c.FormValue("reason"), c.FormValue("comment"))
	switch {
	case err == nil, errors.Is(err, review.ErrAlreadySubmitted):
		return h.render(c, fiber.StatusOK, form)
	case errors.Is(err, review.ErrFormDisabled):
		return h.render(c, fiber.StatusUnprocessableEntity, form)
	case errors.Is(err, review.ErrInvalidReason):
		form.Error = "Selecciona una calificación válida."
		return h.render(c, fiber.StatusUnprocessableEntity, form)
	case errors.Is(err, review.ErrSubmissionPending):
		form.Error = "Tu respuesta ya se está enviando."
		return h.render(c, fiber.StatusConflict, form)
	default:
		h.logger.Warn("review submit failed", zap.String("ticket_id", form.TicketID), zap.Error(err))
		return h.render(c, fiber.StatusBadGateway, form)
	}
}

func (h *ReviewHandler) render(c *fiber.Ctx, code int, form *review.Form) error {
	return h.renderer.Render(c, code, "review.pongo2", pongo2.Context{
		"title":       form.Title(),
		"token":       form.Token,
		"enabled":     form.Enabled(),
		"submitted":   form.Phase == review.PhaseSubmitted,
		"reasons":     form.Reasons(),
		"reason":      form.Reason,
		"comment":     form.Comment,
		"placeholder": review.CommentPlaceholder,
		"error":       form.Error,
	})
}
