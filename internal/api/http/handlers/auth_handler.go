package handlers

import (
	"errors"

	"github.com/flosch/pongo2/v6"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/criteria-it/servicedesk-copilot/internal/api/http/views"
	"github.com/criteria-it/servicedesk-copilot/internal/auth"
	"github.com/criteria-it/servicedesk-copilot/internal/session"
	apperrors "github.com/criteria-it/servicedesk-copilot/pkg/util/errorutil"
)

// MessageLoginFailed is shown for any rejected login.
const MessageLoginFailed = "No pudimos validar tu usuario. Verifica el UPN/correo."

// AuthHandler serves the login page and session lifecycle.
type AuthHandler struct {
	sessions *session.Manager
	renderer *views.Renderer
	logger   *zap.Logger
}

// NewAuthHandler constructs handler.
func NewAuthHandler(sessions *session.Manager, renderer *views.Renderer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, renderer: renderer, logger: logger}
}

// LoginPage GET /login.
func (h *AuthHandler) LoginPage(c *fiber.Ctx) error {
	sess, ok := auth.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("session required")
	}
	if sess.Authenticated() {
		return c.Redirect(TicketsPath, fiber.StatusSeeOther)
	}
	return h.renderer.Render(c, fiber.StatusOK, "login.pongo2", pongo2.Context{})
}

// Login POST /login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	sess, ok := auth.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("session required")
	}
	upn := c.FormValue("upn")

	_, err := h.sessions.Login(c.UserContext(), sess, upn)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrEmptyIdentifier), errors.Is(err, session.ErrLoginFailed):
		h.logger.Info("login rejected", zap.String("session_id", sess.ID()), zap.Error(err))
		return h.renderer.Render(c, fiber.StatusUnauthorized, "login.pongo2", pongo2.Context{
			"upn":   upn,
			"error": MessageLoginFailed,
		})
	default:
		// the session is usable; only persistence failed
		h.logger.Warn("login token not persisted", zap.String("session_id", sess.ID()), zap.Error(err))
	}
	return c.Redirect(TicketsPath, fiber.StatusSeeOther)
}

// Logout POST /logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sess, ok := auth.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("session required")
	}
	if err := h.sessions.Logout(c.UserContext(), sess); err != nil {
		h.logger.Warn("logout cleanup failed", zap.String("session_id", sess.ID()), zap.Error(err))
	}
	return c.Redirect(LoginPath, fiber.StatusSeeOther)
}
