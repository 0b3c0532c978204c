package handlers

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/criteria-it/servicedesk-copilot/internal/api/http/views"
	"github.com/criteria-it/servicedesk-copilot/internal/auth"
	"github.com/criteria-it/servicedesk-copilot/internal/tickets"
	"github.com/criteria-it/servicedesk-copilot/internal/workspace"
	apperrors "github.com/criteria-it/servicedesk-copilot/pkg/util/errorutil"
)

// Console paths shared by handlers and the router.
const (
	LoginPath   = "/login"
	TicketsPath = "/tickets"
	ReviewPath  = "/experience/review"
)

// Assist actions posted by the workspace form.
const (
	ActionGenerate  = "generate"
	ActionInterpret = "interpret"
	ActionSend      = "send"
	ActionSettings  = "settings"
)

// TicketsHandler serves the technician workspace.
type TicketsHandler struct {
	workspaces *workspace.Registry
	renderer   *views.Renderer
	logger     *zap.Logger
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(workspaces *workspace.Registry, renderer *views.Renderer, logger *zap.Logger) *TicketsHandler {
	return &TicketsHandler{workspaces: workspaces, renderer: renderer, logger: logger}
}

func (h *TicketsHandler) workspace(c *fiber.Ctx) (*workspace.Workspace, error) {
	sess, ok := auth.SessionFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("session required")
	}
	return h.workspaces.For(sess), nil
}

// Page GET /tickets.
func (h *TicketsHandler) Page(c *fiber.Ctx) error {
	ws, err := h.workspace(c)
	if err != nil {
		return err
	}
	ws.SetFilter(tickets.Filter{Search: c.Query("q"), Priority: c.Query("priority")})
	view := ws.Open(c.UserContext(), c.Query("id"))
	return h.renderer.Render(c, fiber.StatusOK, "tickets.pongo2", ticketPage(view, nil))
}

// Assist POST /tickets/assist.
func (h *TicketsHandler) Assist(c *fiber.Ctx) error {
	ws, err := h.workspace(c)
	if err != nil {
		return err
	}
	ctx := c.UserContext()

	if id := c.FormValue("ticket_id"); id != "" && id != ws.SelectedID() {
		ws.Point(id)
	}
	actionErr := applySettings(c, ws)
	if actionErr == nil {
		switch action := c.FormValue("action"); action {
		case ActionGenerate:
			actionErr = ws.Generate(ctx)
		case ActionInterpret:
			actionErr = ws.Interpret(ctx)
		case ActionSend:
			actionErr = ws.Send(ctx)
		case ActionSettings, "":
		default:
			return apperrors.NewValidationError("unknown action", map[string]any{"action": action})
		}
	}

	if actionErr != nil {
		h.logger.Info("assist action failed",
			zap.String("action", c.FormValue("action")),
			zap.String("ticket_id", ws.SelectedID()),
			zap.Error(actionErr),
		)
		view := ws.Open(ctx, ws.SelectedID())
		return h.renderer.Render(c, fiber.StatusUnprocessableEntity, "tickets.pongo2", ticketPage(view, actionErr))
	}
	return c.Redirect(ticketURL(ws.SelectedID(), c.FormValue("q"), c.FormValue("priority")), fiber.StatusSeeOther)
}

// applySettings copies the panel fields present in the form onto the workspace.
func applySettings(c *fiber.Ctx, ws *workspace.Workspace) error {
	if mt := c.FormValue("message_type"); mt != "" {
		if err := ws.SetMessageType(workspace.MessageType(mt)); err != nil {
			return err
		}
	}
	args := c.Request().PostArgs()
	if args.Has("close_status") {
		if err := ws.SetCloseStatus(c.FormValue("close_status")); err != nil {
			return err
		}
	}
	if args.Has("draft") {
		ws.SetDraft(c.FormValue("draft"))
	}
	if args.Has("reply") {
		ws.SetReply(c.FormValue("reply"))
	}
	return nil
}

func ticketURL(id, search, priority string) string {
	q := url.Values{}
	if id != "" {
		q.Set("id", id)
	}
	if search != "" {
		q.Set("q", search)
	}
	if priority != "" && priority != tickets.PriorityAll {
		q.Set("priority", priority)
	}
	if len(q) == 0 {
		return TicketsPath
	}
	return TicketsPath + "?" + q.Encode()
}
