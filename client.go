package hopon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
)

// Client is the HTTP collaborator for the HopOn backend. It attaches the
// current access token to every request, reading it fresh at send time, and
// funnels 401 responses through the registered unauthorized handler before
// retrying the original request exactly once.
type Client struct {
	baseURL        *url.URL
	http           *http.Client
	logger         Logger
	metrics        *Metrics
	tokenSource    func() string
	onUnauthorized UnauthorizedHandler
}

// NewClient returns a Client for the backend at cfg.GetBaseURL(). The
// underlying http.Client carries a cookie jar so the session probe and the
// refresh endpoint see the ambient session cookies.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.GetBaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Client{
		baseURL: base,
		http: &http.Client{
			Jar:     jar,
			Timeout: cfg.GetRequestTimeout(),
		},
		logger:      defLogger{},
		tokenSource: func() string { return "" },
	}, nil
}

func (c *Client) WithLogger(logger Logger) *Client {
	c.logger = logger
	return c
}

func (c *Client) WithMetrics(metrics *Metrics) *Client {
	c.metrics = metrics
	return c
}

// SetTokenSource installs the callback the client reads the bearer token
// from. Reading at send time, not at request-build time, keeps retries from
// reusing a pre-refresh token.
func (c *Client) SetTokenSource(source func() string) {
	if source == nil {
		source = func() string { return "" }
	}
	c.tokenSource = source
}

// SetUnauthorizedHandler registers the callback invoked on 401 responses.
func (c *Client) SetUnauthorizedHandler(handler UnauthorizedHandler) {
	c.onUnauthorized = handler
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, retry bool) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(c.baseURL.String(), "/")+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokenSource(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// Label metrics with the bare route; query values would blow up label
	// cardinality.
	metricPath := path
	if i := strings.IndexByte(metricPath, '?'); i >= 0 {
		metricPath = metricPath[:i]
	}

	res, err := c.http.Do(req)
	if err != nil {
		c.metrics.observeFailure(method, metricPath)
		return err
	}
	defer res.Body.Close()

	c.metrics.observeRequest(method, metricPath, res.StatusCode)

	if res.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil && retry {
		// Read the body before the handler runs; when the refresh fails the
		// backend's message still has to surface on the returned error.
		raw, _ := io.ReadAll(res.Body)
		if c.onUnauthorized(ctx) {
			c.metrics.observeRetry(method, metricPath)
			return c.do(ctx, method, path, body, out, false)
		}
		return &APIError{Status: res.StatusCode, Message: messageFromBody(raw, res.Status)}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		raw, _ := io.ReadAll(res.Body)
		return &APIError{Status: res.StatusCode, Message: messageFromBody(raw, res.Status)}
	}

	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// messageFromBody prefers the backend's JSON error/message field, falling
// back to the raw body and finally the status text.
func messageFromBody(raw []byte, statusText string) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, msg := range []string{body.Error, body.Message, body.Detail} {
			if msg != "" {
				return msg
			}
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return statusText
}

// Session probes the backend for an ambient authenticated session.
func (c *Client) Session(ctx context.Context) (*SessionResult, error) {
	out := &SessionResult{}
	if err := c.do(ctx, http.MethodGet, "/auth/session", nil, out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// GoogleLoginURL builds the backend-hosted OAuth entry URL embedding next as
// the post-auth redirect target.
func (c *Client) GoogleLoginURL(next string) string {
	u := c.baseURL.JoinPath("/auth/google/login")
	q := u.Query()
	q.Set("next", next)
	u.RawQuery = q.Encode()
	return u.String()
}

// Login exchanges credentials for an auth payload.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthPayload, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	out := &AuthPayload{}
	if err := c.do(ctx, http.MethodPost, "/auth/login", creds, out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// Signup registers a new account and returns its auth payload.
func (c *Client) Signup(ctx context.Context, input SignupInput) (*AuthPayload, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	out := &AuthPayload{}
	if err := c.do(ctx, http.MethodPost, "/auth/signup", input, out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// DemoLogin signs in without Google for local development.
func (c *Client) DemoLogin(ctx context.Context, opts DemoOptions) (*AuthPayload, error) {
	out := &AuthPayload{}
	if err := c.do(ctx, http.MethodPost, "/auth/demo-login", opts, out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// RefreshAccessToken attempts a silent refresh against the ambient refresh
// credential. It must not recurse into unauthorized recovery, so the retry
// flag is off.
func (c *Client) RefreshAccessToken(ctx context.Context) (*AuthPayload, error) {
	out := &AuthPayload{}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, out, false); err != nil {
		return nil, err
	}
	c.metrics.observeRefresh()
	return out, nil
}

// Logout tells the backend to drop the session. Callers treat the result as
// best-effort.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, false)
}

// DeleteAccount removes the authenticated account.
func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/auth/delete-account", nil, nil, true)
}

// SetupAccount completes a profile after a first social login.
func (c *Client) SetupAccount(ctx context.Context, input SetupAccountInput) (*User, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	out := &struct {
		Message string `json:"message"`
		User    *User  `json:"user"`
	}{}
	if err := c.do(ctx, http.MethodPost, "/auth/setup-account", input, out, true); err != nil {
		return nil, err
	}
	return out.User, nil
}

// CheckUsernameAvailable asks whether a username is free to register.
func (c *Client) CheckUsernameAvailable(ctx context.Context, username string) (bool, error) {
	out := &struct {
		Available bool   `json:"available"`
		Message   string `json:"message"`
	}{}
	path := "/auth/username-available?username=" + url.QueryEscape(username)
	if err := c.do(ctx, http.MethodGet, path, nil, out, true); err != nil {
		return false, err
	}
	return out.Available, nil
}

// NearbyEvents lists events around the given coordinates. Zero coordinates
// list all events.
func (c *Client) NearbyEvents(ctx context.Context, lat, lng float64) ([]Event, error) {
	path := "/events/nearby"
	if lat != 0 && lng != 0 {
		path = fmt.Sprintf("/events/nearby?lat=%s&lng=%s",
			strconv.FormatFloat(lat, 'f', -1, 64),
			strconv.FormatFloat(lng, 'f', -1, 64))
	}
	var out []Event
	if err := c.do(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateEvent hosts a new event.
func (c *Client) CreateEvent(ctx context.Context, input CreateEventInput) (*Event, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	out := &struct {
		Message string `json:"message"`
		Event   *Event `json:"event"`
	}{}
	if err := c.do(ctx, http.MethodPost, "/events", input, out, true); err != nil {
		return nil, err
	}
	return out.Event, nil
}

// MyEvents lists the caller's joined and hosted events.
func (c *Client) MyEvents(ctx context.Context) (*MyEvents, error) {
	out := &MyEvents{}
	if err := c.do(ctx, http.MethodGet, "/me/events", nil, out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// PlayersNearby lists other players around the caller.
func (c *Client) PlayersNearby(ctx context.Context) ([]User, error) {
	var out []User
	if err := c.do(ctx, http.MethodGet, "/users/nearby", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// Follow follows another player.
func (c *Client) Follow(ctx context.Context, userID int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/users/%d/follow", userID), nil, nil, true)
}

// Unfollow stops following another player.
func (c *Client) Unfollow(ctx context.Context, userID int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/users/%d/follow", userID), nil, nil, true)
}

// JoinEvent adds the caller, or a named guest, to an event roster.
func (c *Client) JoinEvent(ctx context.Context, eventID int, input JoinEventInput) (*JoinEventResult, error) {
	out := &JoinEventResult{}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/events/%d/join", eventID), input, out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// LeaveEvent removes the caller, or the guest holding the token, from an
// event roster.
func (c *Client) LeaveEvent(ctx context.Context, eventID int, guestToken string) error {
	body := map[string]string{}
	if guestToken != "" {
		body["guest_token"] = guestToken
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/events/%d/leave", eventID), body, nil, true)
}
