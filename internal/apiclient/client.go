// Package apiclient is the candidate-side HTTP and WebSocket client of the
// skill evaluator API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nefziamine/skill-evaluator/internal/credstore"
	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/rs/zerolog"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx reply decoded from the response envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error: HTTP %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCode returns the envelope error code of err, or "" when err is not an *APIError.
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// Client talks to one API server. Requests are authenticated with the token
// currently held by the credential store.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	dialer  *websocket.Dialer
	creds   credstore.Store
	log     zerolog.Logger
}

// New builds a client for baseURL such as "http://localhost:8080".
func New(baseURL string, creds credstore.Store, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: defaultTimeout},
		dialer:  websocket.DefaultDialer,
		creds:   creds,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "apiclient").Logger()
	return c, nil
}

// ─── Auth ───────────────────────────────────────────────────────────

// Login signs in and stores the returned token and role.
func (c *Client) Login(ctx context.Context, username, password string) (*model.LoginResponse, error) {
	var out model.LoginResponse
	req := model.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", req, &out, false); err != nil {
		return nil, err
	}

	err := c.creds.Save(&credstore.Credentials{
		Token:     out.Token,
		Role:      out.User.Role,
		Username:  out.User.Username,
		ExpiresAt: out.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("save credentials: %w", err)
	}
	return &out, nil
}

// Logout revokes the token on the server and always clears local credentials.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil, true)
	if clearErr := c.creds.Clear(); clearErr != nil {
		return errors.Join(err, clearErr)
	}
	return err
}

func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var out model.User
	if err := c.do(ctx, http.MethodGet, "/api/v1/auth/me", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// ─── Candidate ──────────────────────────────────────────────────────

func (c *Client) ListTests(ctx context.Context) ([]model.Test, error) {
	var out []model.Test
	if err := c.do(ctx, http.MethodGet, "/api/v1/candidate/tests", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) StartTest(ctx context.Context, testID int64) (*model.StartSessionResponse, error) {
	var out model.StartSessionResponse
	path := fmt.Sprintf("/api/v1/candidate/tests/%d/start", testID)
	if err := c.do(ctx, http.MethodPost, path, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SubmitTest(ctx context.Context, testID int64, req *model.SubmitTestRequest) (*model.SubmitTestResult, error) {
	var out model.SubmitTestResult
	path := fmt.Sprintf("/api/v1/candidate/tests/%d/submit", testID)
	if err := c.do(ctx, http.MethodPost, path, req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]model.TestSession, error) {
	var out []model.TestSession
	if err := c.do(ctx, http.MethodGet, "/api/v1/candidate/sessions", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SessionResult(ctx context.Context, sessionID int64) (*model.SessionResult, error) {
	var out model.SessionResult
	path := fmt.Sprintf("/api/v1/candidate/sessions/%d/result", sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SessionRank(ctx context.Context, sessionID int64) (*model.SessionRank, error) {
	var out model.SessionRank
	path := fmt.Sprintf("/api/v1/candidate/sessions/%d/rank", sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// ─── Transport ──────────────────────────────────────────────────────

func (c *Client) token() (string, error) {
	creds, err := c.creds.Load()
	if err != nil {
		return "", err
	}
	if creds.Expired(time.Now()) {
		return "", fmt.Errorf("%w: session expired, log in again", credstore.ErrNoCredentials)
	}
	return creds.Token, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, auth bool) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		token, err := c.token()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("request")

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	if resp.StatusCode >= 300 || env.Error != nil {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Fields = env.Error.Fields
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
