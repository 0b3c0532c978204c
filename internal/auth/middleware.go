package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/criteria-it/servicedesk-copilot/internal/session"
	apperrors "github.com/criteria-it/servicedesk-copilot/pkg/util/errorutil"
)

const sessionKey = "copilot_session"

// Sessions resolves browser sessions.
type Sessions interface {
	Create() *session.Session
	Get(ctx context.Context, id string) (*session.Session, error)
}

// CookieOptions shapes the session cookie.
type CookieOptions struct {
	Name   string
	Secure bool
}

// SessionMiddleware attaches the browser's session to every request, issuing a
// new cookie when none is present or the present one fails validation.
type SessionMiddleware struct {
	signer   *CookieSigner
	sessions Sessions
	cookie   CookieOptions
	logger   *zap.Logger
}

// NewSessionMiddleware constructs middleware.
func NewSessionMiddleware(signer *CookieSigner, sessions Sessions, cookie CookieOptions, logger *zap.Logger) *SessionMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionMiddleware{signer: signer, sessions: sessions, cookie: cookie, logger: logger}
}

// Handle resolves the session and stores it in the request locals.
func (m *SessionMiddleware) Handle(c *fiber.Ctx) error {
	var sess *session.Session
	if raw := c.Cookies(m.cookie.Name); raw != "" {
		claims, err := m.signer.Parse(raw)
		if err != nil {
			m.logger.Debug("discarding session cookie", zap.Error(err))
		} else {
			sess, err = m.sessions.Get(c.UserContext(), claims.SessionID)
			if err != nil {
				return apperrors.NewInternalError(err)
			}
		}
	}

	if sess == nil {
		sess = m.sessions.Create()
		value, expiresAt, err := m.signer.Sign(sess.ID())
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		c.Cookie(&fiber.Cookie{
			Name:     m.cookie.Name,
			Value:    value,
			Path:     "/",
			Expires:  expiresAt,
			Secure:   m.cookie.Secure,
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}

	c.Locals(sessionKey, sess)
	return c.Next()
}

// RequireLogin redirects requests without a session token to loginPath.
func RequireLogin(loginPath string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, ok := SessionFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("session required")
		}
		if !sess.Authenticated() {
			return c.Redirect(loginPath, fiber.StatusSeeOther)
		}
		return c.Next()
	}
}

// SessionFromContext retrieves the request's session.
func SessionFromContext(c *fiber.Ctx) (*session.Session, bool) {
	val := c.Locals(sessionKey)
	if val == nil {
		return nil, false
	}
	sess, ok := val.(*session.Session)
	return sess, ok
}
