package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/criteria-it/servicedesk-copilot/internal/api/http/handlers"
	"github.com/criteria-it/servicedesk-copilot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	Tickets *handlers.TicketsHandler
	Review  *handlers.ReviewHandler
	Session *auth.SessionMiddleware
	Metrics http.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	app.Get(handlers.ReviewPath, cfg.Review.Page)
	app.Post(handlers.ReviewPath, cfg.Review.Submit)

	web := app.Group("", cfg.Session.Handle)
	web.Get(handlers.LoginPath, cfg.Auth.LoginPage)
	web.Post(handlers.LoginPath, cfg.Auth.Login)
	web.Post("/logout", cfg.Auth.Logout)

	protected := web.Group("", auth.RequireLogin(handlers.LoginPath))
	protected.Get(handlers.TicketsPath, cfg.Tickets.Page)
	protected.Post(handlers.TicketsPath+"/assist", cfg.Tickets.Assist)

	app.Use(func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodGet {
			return fiber.ErrNotFound
		}
		return c.Redirect(handlers.TicketsPath, fiber.StatusSeeOther)
	})
}
