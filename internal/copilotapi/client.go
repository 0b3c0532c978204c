package copilotapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Operation names, used as metric labels and in errors.
const (
	OpMe                    = "me"
	OpTickets               = "tickets"
	OpTicketDetail          = "ticket_detail"
	OpTicketHistory         = "ticket_history"
	OpGenerateReply         = "generate_reply"
	OpInterpretConversation = "interpret_conversation"
	OpSendReply             = "send_reply"
	OpReviewValidate        = "review_validate"
	OpReviewSubmit          = "review_submit"
)

// MetricsRecorder receives one observation per backend call.
type MetricsRecorder interface {
	RecordBackendCall(operation string, status int, duration time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Metrics    MetricsRecorder
	Logger     *zap.Logger
}

// Client calls the copilot REST API. Each Client carries its own bearer token;
// clones share the underlying transport.
type Client struct {
	http    *resty.Client
	metrics MetricsRecorder
	logger  *zap.Logger

	mu    sync.RWMutex
	token string
}

// NewClient builds a client for the API rooted at opts.BaseURL.
func NewClient(opts Options) *Client {
	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		rc.SetTimeout(opts.Timeout)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rc.SetLogger(logger.Named("copilotapi").Sugar())

	return &Client{http: rc, metrics: opts.Metrics, logger: logger}
}

// Clone returns a client sharing transport and configuration but with no token.
func (c *Client) Clone() *Client {
	return &Client{http: c.http, metrics: c.metrics, logger: c.logger}
}

// SetAuthToken sets the bearer sent on every request. An empty token clears it.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// AuthToken returns the bearer currently attached to requests.
func (c *Client) AuthToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// LoginWithUPN resolves the technician profile, presenting upn itself as the bearer.
func (c *Client) LoginWithUPN(ctx context.Context, upn string) (*UserInfo, error) {
	var out UserInfo
	err := c.do(ctx, OpMe, http.MethodGet, "/api/me", nil, &out, func(r *resty.Request) {
		r.SetAuthToken(upn)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchTickets lists the tickets assigned to the session's technician.
func (c *Client) FetchTickets(ctx context.Context) ([]Ticket, error) {
	var out ticketsResponse
	if err := c.do(ctx, OpTickets, http.MethodGet, "/api/tickets", nil, &out, nil); err != nil {
		return nil, err
	}
	return out.Tickets, nil
}

// FetchTicketDetail fetches one ticket.
func (c *Client) FetchTicketDetail(ctx context.Context, id string) (*TicketDetail, error) {
	var out TicketDetail
	if err := c.do(ctx, OpTicketDetail, http.MethodGet, "/api/tickets/{id}", nil, &out, withID(id)); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchTicketHistory fetches the timeline of one ticket.
func (c *Client) FetchTicketHistory(ctx context.Context, id string) ([]HistoryEvent, error) {
	var out historyResponse
	if err := c.do(ctx, OpTicketHistory, http.MethodGet, "/api/tickets/{id}/history", nil, &out, withID(id)); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// GenerateReply asks the backend for an AI-suggested reply.
func (c *Client) GenerateReply(ctx context.Context, params GenerateReplyParams) (string, error) {
	body := generateReplyRequest{
		MessageType: params.MessageType,
		Draft:       params.Draft,
		CloseStatus: params.CloseStatus,
	}
	var out generateReplyResponse
	if err := c.do(ctx, OpGenerateReply, http.MethodPost, "/api/tickets/{id}/ia", body, &out, withID(params.TicketID)); err != nil {
		return "", err
	}
	return out.SuggestedMessage, nil
}

// InterpretConversation asks the backend to summarize the conversation into a reply.
func (c *Client) InterpretConversation(ctx context.Context, ticketID string) (string, error) {
	var out interpretResponse
	if err := c.do(ctx, OpInterpretConversation, http.MethodPost, "/api/ia/interpret_conversation", interpretRequest{TicketID: ticketID}, &out, nil); err != nil {
		return "", err
	}
	return out.Suggestion, nil
}

// SendReply posts the reply to the requester. The payload is returned as decoded.
func (c *Client) SendReply(ctx context.Context, ticketID string, req SendReplyRequest) (map[string]any, error) {
	out := map[string]any{}
	if err := c.do(ctx, OpSendReply, http.MethodPost, "/api/tickets/{id}/send_reply", req, &out, withID(ticketID)); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateReviewToken checks an emailed review token.
func (c *Client) ValidateReviewToken(ctx context.Context, token string) (*ReviewValidation, error) {
	var out ReviewValidation
	err := c.do(ctx, OpReviewValidate, http.MethodGet, "/api/experience/review/validate", nil, &out, func(r *resty.Request) {
		r.SetQueryParam("token", token)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitReview posts the satisfaction review for a token.
func (c *Client) SubmitReview(ctx context.Context, sub ReviewSubmission) (map[string]any, error) {
	out := map[string]any{}
	if err := c.do(ctx, OpReviewSubmit, http.MethodPost, "/api/experience/review/submit", sub, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func withID(id string) func(*resty.Request) {
	return func(r *resty.Request) {
		r.SetPathParam("id", id)
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any, edit func(*resty.Request)) error {
	req := c.http.R().SetContext(ctx)
	if token := c.AuthToken(); token != "" {
		req.SetAuthToken(token)
	}
	if body != nil {
		req.SetBody(body)
	}
	if edit != nil {
		edit(req)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		c.record(op, 0, time.Since(start))
		return &RequestError{Op: op, Method: method, Path: path, Err: err}
	}
	status := resp.StatusCode()
	c.record(op, status, time.Since(start))

	if !resp.IsSuccess() {
		c.logger.Debug("copilot api error",
			zap.String("operation", op),
			zap.Int("status", status),
		)
		return &RequestError{
			Op:         op,
			Method:     method,
			Path:       path,
			StatusCode: status,
			Body:       strings.TrimSpace(resp.String()),
		}
	}

	raw := resp.Body()
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &RequestError{
			Op:         op,
			Method:     method,
			Path:       path,
			StatusCode: status,
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}

func (c *Client) record(op string, status int, d time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordBackendCall(op, status, d)
	}
}
