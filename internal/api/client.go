// Package api is the authenticated HTTP client for the ProxMon backend.
//
// Every outbound request goes through Client.Do, which attaches the stored
// bearer credential and translates failures into structured errors. Client is
// also the single place where a hard authentication failure ends the
// session: it clears the token store (compare-and-clear on the credential
// the request was sent with) and notifies termination handlers exactly once.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/logger"
	"github.com/rileyhilliard/proxmon/internal/tokenstore"
)

// Endpoints with special failure handling.
const (
	PathLogin = "/login"
	PathMe    = "/me"
)

// HeaderRequestID carries a per-request UUID for correlating server logs.
const HeaderRequestID = "X-Request-ID"

// Termination messages shown to the user when the session ends.
const (
	MessageDisabled = "Your account has been disabled. Contact the system administrator."
	MessageExpired  = "Your session has expired. Please log in again."
)

// TerminationReason says why the session ended.
type TerminationReason string

const (
	ReasonExpired  TerminationReason = "expired"
	ReasonDisabled TerminationReason = "disabled"
)

// Termination is delivered to handlers registered with OnTerminate.
type Termination struct {
	Reason  TerminationReason
	Message string
}

// Request describes one call to the backend.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON-encoded when non-nil.
	Body any
	// Anonymous sends the request without the stored credential.
	Anonymous bool
}

// Response is a successful (2xx) reply. Body is empty for 204.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Empty reports whether the reply carried no representation.
func (r *Response) Empty() bool {
	return len(bytes.TrimSpace(r.Body)) == 0
}

// Decode unmarshals the JSON body into out. An empty body leaves out as is.
func (r *Response) Decode(out any) error {
	if r.Empty() || out == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return errors.WrapWithCode(err, errors.ErrServer,
			"Unexpected response from server",
			"The server returned a body proxmon could not parse")
	}
	return nil
}

// Client talks to one ProxMon server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      tokenstore.Store
	log        logger.Logger

	mu          sync.Mutex
	onTerminate []func(Termination)
	onForbidden []func()
	// terminated remembers the last credential that ended a session, so a
	// store that fails to clear still produces a single notification.
	terminated string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithInsecureSkipVerify disables TLS certificate checks.
func WithInsecureSkipVerify(skip bool) Option {
	return func(c *Client) {
		if !skip {
			return
		}
		c.httpClient.Transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // opt-in for self-signed lab servers
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for baseURL backed by store.
func New(baseURL string, store tokenstore.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		store:      store,
		log:        logger.New("api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Store returns the token store the client reads credentials from.
func (c *Client) Store() tokenstore.Store {
	return c.store
}

// OnTerminate registers fn to run when the session ends because of a hard
// authentication failure. Handlers run once per ended session, on the
// goroutine that observed the failure.
func (c *Client) OnTerminate(fn func(Termination)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTerminate = append(c.onTerminate, fn)
}

// OnForbidden registers fn to run when a non-identity request is refused
// with 403. The session resolver uses it to revalidate right away.
func (c *Client) OnForbidden(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onForbidden = append(c.onForbidden, fn)
}

// Do sends req and returns the 2xx response or a structured error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var token string
	if !req.Anonymous {
		token, _ = c.store.Get()
	}

	httpReq, err := c.newRequest(ctx, req, token)
	if err != nil {
		return nil, err
	}

	c.log.Debug("%s %s (request %s)", req.Method, req.Path, httpReq.Header.Get(HeaderRequestID))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.WrapWithCode(err, errors.ErrNetwork,
			"Cannot reach the ProxMon server",
			"Check your connection and try again later")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.WrapWithCode(err, errors.ErrNetwork,
			"Connection to the server was interrupted",
			"Try again later")
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
	}

	return nil, c.failure(req, token, resp.StatusCode, body)
}

func (c *Client) newRequest(ctx context.Context, req Request, token string) (*http.Request, error) {
	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader = http.NoBody
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrInput,
				"Cannot encode request body", "")
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid server URL: "+c.baseURL,
			"Check the server setting")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderRequestID, uuid.NewString())
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, nil
}

// failure maps a non-2xx status to a structured error and runs the
// session side effects for hard authentication failures.
func (c *Client) failure(req Request, token string, status int, body []byte) error {
	detail := parseDetail(body)

	if req.Path == PathLogin {
		switch status {
		case http.StatusBadRequest, http.StatusUnauthorized:
			return errors.NewHTTP(errors.ErrAuth, status, detail, "Incorrect email or password")
		case http.StatusForbidden:
			return errors.NewHTTP(errors.ErrAuthDisabled, status, detail, MessageDisabled)
		}
	}

	switch {
	case status == http.StatusUnauthorized:
		if token == "" {
			e := errors.NewHTTP(errors.ErrAuth, status, detail, "Not logged in")
			e.Suggestion = "Run 'proxmon login'"
			return e
		}
		c.terminate(token, Termination{Reason: ReasonExpired, Message: MessageExpired})
		e := errors.NewHTTP(errors.ErrAuth, status, detail, MessageExpired)
		e.Message = MessageExpired
		e.Suggestion = "Run 'proxmon login'"
		return e

	case status == http.StatusForbidden && req.Path == PathMe && token != "":
		c.terminate(token, Termination{Reason: ReasonDisabled, Message: MessageDisabled})
		e := errors.NewHTTP(errors.ErrAuthDisabled, status, detail, MessageDisabled)
		e.Message = MessageDisabled
		return e

	case status == http.StatusForbidden:
		c.forbidden()
		return errors.NewHTTP(errors.ErrPermission, status, detail, "Permission denied")

	case status >= 500:
		return errors.NewHTTP(errors.ErrServer, status, detail, fmt.Sprintf("Server error (%d)", status))

	default:
		return errors.NewHTTP(errors.ErrValidation, status, detail, fmt.Sprintf("Request rejected (%d)", status))
	}
}

func (c *Client) terminate(token string, t Termination) {
	cleared, err := c.store.ClearIf(token)
	if err != nil {
		c.log.Error("failed to clear credentials: %v", err)
	}
	if !cleared && err == nil {
		// Either another failure already ended this session, or a newer
		// login replaced the credential this request was sent with.
		return
	}

	c.mu.Lock()
	if c.terminated == token {
		c.mu.Unlock()
		return
	}
	c.terminated = token
	handlers := append([]func(Termination){}, c.onTerminate...)
	c.mu.Unlock()

	c.log.Info("session ended: %s", t.Reason)
	for _, fn := range handlers {
		fn(t)
	}
}

func (c *Client) forbidden() {
	c.mu.Lock()
	handlers := append([]func(){}, c.onForbidden...)
	c.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

// parseDetail extracts a human message from a FastAPI error body:
// {"detail": "text"}, {"detail": [{"msg": "text"}, ...]} or {"message": "text"}.
func parseDetail(body []byte) string {
	if len(bytes.TrimSpace(body)) == 0 {
		return ""
	}
	var env struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	if len(env.Detail) > 0 {
		var s string
		if err := json.Unmarshal(env.Detail, &s); err == nil {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
			Loc []any  `json:"loc"`
		}
		if err := json.Unmarshal(env.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg == "" {
					continue
				}
				if field := lastLoc(it.Loc); field != "" {
					msgs = append(msgs, field+": "+it.Msg)
				} else {
					msgs = append(msgs, it.Msg)
				}
			}
			return strings.Join(msgs, "; ")
		}
	}
	return env.Message
}

func lastLoc(loc []any) string {
	if len(loc) == 0 {
		return ""
	}
	if s, ok := loc[len(loc)-1].(string); ok && s != "body" {
		return s
	}
	return ""
}
