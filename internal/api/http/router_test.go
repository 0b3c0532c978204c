package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/criteria-it/servicedesk-copilot/internal/api/http/handlers"
	"github.com/criteria-it/servicedesk-copilot/internal/api/http/views"
	"github.com/criteria-it/servicedesk-copilot/internal/auth"
	"github.com/criteria-it/servicedesk-copilot/internal/copilotapi"
	"github.com/criteria-it/servicedesk-copilot/internal/events"
	"github.com/criteria-it/servicedesk-copilot/internal/observability"
	"github.com/criteria-it/servicedesk-copilot/internal/review"
	"github.com/criteria-it/servicedesk-copilot/internal/session"
	"github.com/criteria-it/servicedesk-copilot/internal/workspace"
)

// fakeCopilot answers the subset of the copilot API the console calls.
type fakeCopilot struct {
	mu     sync.Mutex
	bodies map[string]string
	hits   map[string]int
}

func (f *fakeCopilot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.hits[r.URL.Path]++
	f.bodies[r.URL.Path] = string(body)
	f.mu.Unlock()

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	w.Header().Set("Content-Type", "application/json")
	write := func(v any) { _ = json.NewEncoder(w).Encode(v) }

	switch path := r.URL.Path; {
	case path == "/api/experience/review/validate":
		write(map[string]any{"valid": r.URL.Query().Get("token") == "good", "ticket_id": "4521"})
	case path == "/api/experience/review/submit":
		write(map[string]bool{"ok": true})
	case token == "" || token == "nobody@example.com":
		w.WriteHeader(http.StatusUnauthorized)
	case path == "/api/me":
		write(map[string]string{"user_upn": token, "display_name": "Técnico Uno"})
	case path == "/api/tickets":
		write(map[string]any{"tickets": []map[string]any{
			{"id": "1", "display_id": "101", "subject": "VPN caída", "status": "Abierto", "priority": "Alta"},
			{"id": "2", "display_id": "102", "subject": "Impresora", "status": "Cerrado", "priority": "Baja"},
		}})
	case strings.HasSuffix(path, "/history"):
		write(map[string]any{"events": []map[string]any{
			{"event_id": 1, "type": "note", "author_name": "Ana", "timestamp": "2024-01-01T10:00:00Z", "text": "<p>Hola</p>"},
		}})
	case strings.HasSuffix(path, "/ia"):
		write(map[string]string{"suggested_message": "Sugerencia generada"})
	case strings.HasSuffix(path, "/send_reply"):
		write(map[string]bool{"ok": true})
	case strings.HasPrefix(path, "/api/tickets/"):
		id := strings.TrimPrefix(path, "/api/tickets/")
		write(map[string]any{"id": id, "display_id": "10" + id, "subject": "Ticket " + id, "status": "Abierto", "priority": "Alta"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeCopilot) body(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[path]
}

func (f *fakeCopilot) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

type testServer struct {
	app     *fiber.App
	copilot *fakeCopilot
	cookie  *http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithStaleTime(t, time.Minute)
}

func newTestServerWithStaleTime(t *testing.T, staleTime time.Duration) *testServer {
	t.Helper()
	copilot := &fakeCopilot{bodies: map[string]string{}, hits: map[string]int{}}
	backend := httptest.NewServer(copilot)
	t.Cleanup(backend.Close)

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	client := copilotapi.NewClient(copilotapi.Options{BaseURL: backend.URL, Metrics: metrics, Logger: logger})

	sessions := session.NewManager(client, session.NewMemoryStorage(), dispatcher, logger)
	workspaces := workspace.NewRegistry(workspace.Options{StaleTime: staleTime, Dispatcher: dispatcher, Logger: logger})
	workspaces.Subscribe(dispatcher)
	reviews := review.NewService(client.Clone(), review.Options{Dispatcher: dispatcher, Logger: logger})

	renderer, err := views.NewRenderer("../../../web/templates", false)
	require.NoError(t, err)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, renderer, 0)
	RegisterRoutes(app, RouteConfig{
		Health:  handlers.NewHealthHandler("copilot-test", "test", nil),
		Auth:    handlers.NewAuthHandler(sessions, renderer, logger),
		Tickets: handlers.NewTicketsHandler(workspaces, renderer, logger),
		Review:  handlers.NewReviewHandler(reviews, renderer, logger),
		Session: auth.NewSessionMiddleware(auth.NewCookieSigner("test-secret", 0), sessions, auth.CookieOptions{Name: "copilot_sid"}, logger),
		Metrics: metrics.Handler(),
	})
	return &testServer{app: app, copilot: copilot}
}

func (s *testServer) do(t *testing.T, method, target string, form url.Values) (*http.Response, string) {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	for _, c := range resp.Cookies() {
		if c.Name == "copilot_sid" {
			s.cookie = c
		}
	}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func (s *testServer) login(t *testing.T, upn string) *http.Response {
	t.Helper()
	s.do(t, http.MethodGet, "/login", nil)
	resp, _ := s.do(t, http.MethodPost, "/login", url.Values{"upn": {upn}})
	return resp
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"status":"alive"`)

	resp, body = s.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"redis":"disabled"`)
	assert.Nil(t, s.cookie, "probes do not open browser sessions")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/health/live", nil)

	resp, body := s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "http_requests_total")
}

func TestUnknownRoutes(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodGet, "/somewhere", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, handlers.TicketsPath, resp.Header.Get("Location"))

	req := httptest.NewRequest(http.MethodPost, "/somewhere", nil)
	req.Header.Set("Accept", fiber.MIMEApplicationJSON)
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "HTTP_ERROR", payload.Error.Code)
}

func TestTicketsRequireLogin(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodGet, handlers.TicketsPath, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, handlers.LoginPath, resp.Header.Get("Location"))
	assert.NotNil(t, s.cookie)
}

func TestLogin_RejectsUnknownUser(t *testing.T) {
	s := newTestServer(t)

	resp := s.login(t, "nobody@example.com")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := s.do(t, http.MethodPost, handlers.LoginPath, url.Values{"upn": {"   "}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, handlers.MessageLoginFailed)

	resp, _ = s.do(t, http.MethodGet, handlers.TicketsPath, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestLogin_OpensWorkspace(t *testing.T) {
	s := newTestServer(t)

	resp := s.login(t, "tech@example.com")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, handlers.TicketsPath, resp.Header.Get("Location"))

	resp, body := s.do(t, http.MethodGet, handlers.TicketsPath, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Sesión: Técnico Uno")
	assert.Contains(t, body, "VPN caída")
	assert.Contains(t, body, "Ticket 1", "the first ticket is selected")
	assert.Contains(t, body, "Ana")
	assert.NotContains(t, body, "&lt;p&gt;", "history bodies are shown as plain text")

	resp, _ = s.do(t, http.MethodGet, handlers.LoginPath, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode, "an authenticated session skips the login page")
}

func TestTicketsFilter(t *testing.T) {
	s := newTestServer(t)
	s.login(t, "tech@example.com")

	_, body := s.do(t, http.MethodGet, handlers.TicketsPath+"?priority=Baja", nil)
	assert.Contains(t, body, "Impresora")
	assert.NotContains(t, body, "VPN caída")
	assert.Equal(t, 1, s.copilot.count("/api/tickets"))
}

func TestAssist_GenerateRedirectsToTicket(t *testing.T) {
	s := newTestServer(t)
	s.login(t, "tech@example.com")
	s.do(t, http.MethodGet, handlers.TicketsPath, nil)

	resp, _ := s.do(t, http.MethodPost, handlers.TicketsPath+"/assist", url.Values{
		"ticket_id":    {"2"},
		"action":       {handlers.ActionGenerate},
		"message_type": {string(workspace.MessageUpdate)},
		"draft":        {"avisar demora"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, handlers.TicketsPath+"?id=2", resp.Header.Get("Location"))

	var sent map[string]any
	require.NoError(t, json.Unmarshal([]byte(s.copilot.body("/api/tickets/2/ia")), &sent))
	assert.Equal(t, "actualizacion", sent["message_type"])
	assert.Equal(t, "avisar demora", sent["draft"])
	assert.NotContains(t, sent, "close_status")

	_, body := s.do(t, http.MethodGet, resp.Header.Get("Location"), nil)
	assert.Contains(t, body, "Sugerencia generada")
	assert.Contains(t, body, "Ticket 2")
	assert.NotContains(t, body, "Escribe o genera un mensaje antes de enviar.")
}

func TestAssist_SendFlow(t *testing.T) {
	s := newTestServer(t)
	s.login(t, "tech@example.com")
	s.do(t, http.MethodGet, handlers.TicketsPath, nil)

	resp, body := s.do(t, http.MethodPost, handlers.TicketsPath+"/assist", url.Values{
		"ticket_id": {"1"},
		"action":    {handlers.ActionSend},
		"reply":     {"   "},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "El mensaje está vacío.")
	assert.Zero(t, s.copilot.count("/api/tickets/1/send_reply"))

	resp, _ = s.do(t, http.MethodPost, handlers.TicketsPath+"/assist", url.Values{
		"ticket_id": {"1"},
		"action":    {handlers.ActionSend},
		"reply":     {"Listo, quedó resuelto"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, 1, s.copilot.count("/api/tickets/1/send_reply"))
	assert.Contains(t, s.copilot.body("/api/tickets/1/send_reply"), "Listo, quedó resuelto")

	_, body = s.do(t, http.MethodGet, resp.Header.Get("Location"), nil)
	assert.Contains(t, body, `class="notice"`)
	assert.Equal(t, 2, s.copilot.count("/api/tickets"), "sending refreshes the list")

	_, body = s.do(t, http.MethodGet, resp.Header.Get("Location"), nil)
	assert.NotContains(t, body, `class="notice"`, "the notice is shown once")
}

func TestAssist_SendRejectsClearedSuggestion(t *testing.T) {
	s := newTestServer(t)
	s.login(t, "tech@example.com")
	s.do(t, http.MethodGet, handlers.TicketsPath, nil)

	resp, _ := s.do(t, http.MethodPost, handlers.TicketsPath+"/assist", url.Values{
		"ticket_id": {"1"},
		"action":    {handlers.ActionGenerate},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, body := s.do(t, http.MethodPost, handlers.TicketsPath+"/assist", url.Values{
		"ticket_id": {"1"},
		"action":    {handlers.ActionSend},
		"reply":     {""},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "El mensaje está vacío.")
	assert.NotContains(t, body, ">Sugerencia generada</textarea>", "the reply box stays as the technician left it")
	assert.Contains(t, body, "Escribe o genera un mensaje antes de enviar.")
	assert.Zero(t, s.copilot.count("/api/tickets/1/send_reply"))
}

func TestAssist_SelectionFetchesDetailOnce(t *testing.T) {
	s := newTestServerWithStaleTime(t, 0)
	s.login(t, "tech@example.com")
	s.do(t, http.MethodGet, handlers.TicketsPath, nil)

	resp, _ := s.do(t, http.MethodPost, handlers.TicketsPath+"/assist", url.Values{
		"ticket_id": {"2"},
		"action":    {handlers.ActionSettings},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Zero(t, s.copilot.count("/api/tickets/2"), "the redirected page loads the selection")

	_, body := s.do(t, http.MethodGet, resp.Header.Get("Location"), nil)
	assert.Contains(t, body, "Ticket 2")
	assert.Equal(t, 1, s.copilot.count("/api/tickets/2"))
	assert.Equal(t, 1, s.copilot.count("/api/tickets/2/history"))
}

func TestTicketsPage_PriorityLabels(t *testing.T) {
	s := newTestServer(t)
	s.login(t, "tech@example.com")

	_, body := s.do(t, http.MethodGet, handlers.TicketsPath, nil)
	assert.Contains(t, body, `<option value="todos" selected>Todas</option>`)
	assert.Contains(t, body, `<option value="Alta">Alta</option>`)
}

func TestAssist_UnknownAction(t *testing.T) {
	s := newTestServer(t)
	s.login(t, "tech@example.com")

	resp, _ := s.do(t, http.MethodPost, handlers.TicketsPath+"/assist", url.Values{"action": {"delete"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogout_EndsSession(t *testing.T) {
	s := newTestServer(t)
	s.login(t, "tech@example.com")

	resp, _ := s.do(t, http.MethodPost, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, handlers.LoginPath, resp.Header.Get("Location"))

	resp, _ = s.do(t, http.MethodGet, handlers.TicketsPath, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, handlers.LoginPath, resp.Header.Get("Location"))
}

func TestReviewPage(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, handlers.ReviewPath, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Enlace inválido o vencido")
	assert.Zero(t, s.copilot.count("/api/experience/review/validate"))

	resp, body = s.do(t, http.MethodGet, handlers.ReviewPath+"?token=good", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Feedback de atención (Ticket 4521)")
	assert.Nil(t, s.cookie, "the review page is public")

	resp, body = s.do(t, http.MethodPost, handlers.ReviewPath, url.Values{
		"token":   {"good"},
		"reason":  {"No conforme"},
		"comment": {"Muy rápido"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "¡Gracias por compartir tu experiencia!")
	assert.Contains(t, s.copilot.body("/api/experience/review/submit"), `"reason":"No conforme"`)

	resp, _ = s.do(t, http.MethodPost, handlers.ReviewPath, url.Values{"token": {"good"}, "reason": {"Conforme"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, s.copilot.count("/api/experience/review/submit"), "a token is submitted once")

	resp, _ = s.do(t, http.MethodPost, handlers.ReviewPath, url.Values{"token": {"expired"}, "reason": {"Conforme"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}
