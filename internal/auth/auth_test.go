package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/criteria-it/servicedesk-copilot/internal/copilotapi"
	"github.com/criteria-it/servicedesk-copilot/internal/session"
)

func TestCookieSigner_RoundTrip(t *testing.T) {
	signer := NewCookieSigner("secret", time.Hour)

	value, expiresAt, err := signer.Sign("sid-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := signer.Parse(value)
	require.NoError(t, err)
	assert.Equal(t, "sid-1", claims.SessionID)
}

func TestCookieSigner_RejectsForeignAndExpired(t *testing.T) {
	signer := NewCookieSigner("secret", time.Hour)
	other := NewCookieSigner("other", time.Hour)

	value, _, err := other.Sign("sid-1")
	require.NoError(t, err)
	_, err = signer.Parse(value)
	assert.Error(t, err)

	value, _, err = signer.Sign("sid-2")
	require.NoError(t, err)
	signer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = signer.Parse(value)
	assert.Error(t, err)

	_, err = signer.Parse("not-a-token")
	assert.Error(t, err)
}

type testApp struct {
	*fiber.App
	manager *session.Manager
	storage *session.MemoryStorage
	signer  *CookieSigner
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	backend := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(backend.Close)

	storage := session.NewMemoryStorage()
	manager := session.NewManager(copilotapi.NewClient(copilotapi.Options{BaseURL: backend.URL}), storage, nil, nil)
	signer := NewCookieSigner("secret", 0)
	mw := NewSessionMiddleware(signer, manager, CookieOptions{Name: "sid"}, nil)

	app := fiber.New()
	app.Use(mw.Handle)
	app.Get("/whoami", func(c *fiber.Ctx) error {
		sess, ok := SessionFromContext(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(sess.ID())
	})
	app.Get("/private", RequireLogin("/login"), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return &testApp{App: app, manager: manager, storage: storage, signer: signer}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestSessionMiddleware_IssuesAndReusesCookie(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.NoError(t, err)
	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	first := readBody(t, resp)
	assert.NotEmpty(t, first)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(cookies[0])
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Empty(t, resp.Cookies(), "a valid cookie is not reissued")
	assert.Equal(t, first, readBody(t, resp))
	assert.Equal(t, 1, app.manager.Len())
}

func TestSessionMiddleware_ReplacesInvalidCookie(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "forged"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, resp.Cookies(), 1)
}

func TestRequireLogin_RedirectsAnonymous(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/private", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestRequireLogin_AcceptsRestoredToken(t *testing.T) {
	app := newTestApp(t)
	require.NoError(t, app.storage.Save(context.Background(), "sid-7:"+session.TokenKey, "tech@example.com"))
	value, _, err := app.signer.Sign("sid-7")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: value})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", readBody(t, resp))
}
