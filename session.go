package hopon

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// SessionManager owns the single source of truth for the current actor and
// mediates every authentication transition. It is the only writer of session
// state; the Client collaborator reads the token through the installed token
// source and calls back in through HandleUnauthorized.
type SessionManager struct {
	client   *Client
	store    Store
	cfg      Config
	logger   Logger
	launcher Launcher
	verifier TokenVerifier

	// refreshLimiter throttles silent refresh attempts so a burst of 401s
	// cannot stampede the refresh endpoint.
	refreshLimiter *rate.Limiter

	// persistMu serializes durable guest-state writes so a stale snapshot
	// can never land after a newer one.
	persistMu sync.Mutex

	mu           sync.Mutex
	status       Status
	user         *User
	token        string
	guestName    string
	guestTokens  map[int]string
	popup        Popup
	loginPending bool
	closed       bool
}

// NewSessionManager wires a manager to its HTTP collaborator and durable
// store. The manager installs itself as the client's token source and
// unauthorized handler; call Start to resolve the initial session.
func NewSessionManager(client *Client, store Store, cfg Config) *SessionManager {
	m := &SessionManager{
		client:         client,
		store:          store,
		cfg:            cfg,
		logger:         defLogger{},
		launcher:       nil,
		refreshLimiter: rate.NewLimiter(rate.Every(defaultRefreshInterval), defaultRefreshBurst),
		status:         StatusLoading,
		guestTokens:    map[int]string{},
	}

	client.SetTokenSource(m.AccessToken)
	client.SetUnauthorizedHandler(m.HandleUnauthorized)

	return m
}

func (m *SessionManager) WithLogger(logger Logger) *SessionManager {
	m.logger = logger
	return m
}

// WithLauncher sets the window launcher used by LoginWithGoogle.
func (m *SessionManager) WithLauncher(launcher Launcher) *SessionManager {
	m.launcher = launcher
	return m
}

// WithTokenVerifier makes the manager verify access tokens before they are
// committed to session state.
func (m *SessionManager) WithTokenVerifier(verifier TokenVerifier) *SessionManager {
	m.verifier = verifier
	return m
}

// Status returns the current session status.
func (m *SessionManager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// CurrentUser returns the profile snapshot, nil unless authenticated.
func (m *SessionManager) CurrentUser() *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// AccessToken returns the in-memory bearer token, empty unless
// authenticated. The Client reads this fresh at send time.
func (m *SessionManager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Start resolves the initial session. It rehydrates durable guest state,
// consumes a pending one-shot handoff payload if a prior handshake left one,
// and otherwise probes the backend session endpoint. Probe failures demote
// to guest so callers never stay stuck in StatusLoading. A canceled context
// never commits state.
func (m *SessionManager) Start(ctx context.Context) error {
	m.hydrateGuestState(ctx)

	if payload, ok := m.consumeHandoff(ctx); ok {
		if err := m.applyPayload(*payload); err != nil {
			m.logger.Warn("stored handoff payload rejected: %v", err)
			m.resetToGuest()
		}
		return nil
	}

	result, err := m.client.Session(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		m.logger.Debug("session probe failed: %v", err)
		m.resetToGuest()
		return nil
	}

	if result.Authenticated && result.User != nil {
		payload := AuthPayload{User: result.User, AccessToken: result.AccessToken}
		if err := m.applyPayload(payload); err != nil {
			m.logger.Warn("session probe payload rejected: %v", err)
			m.resetToGuest()
		}
		return nil
	}

	m.resetToGuest()
	return nil
}

// Login exchanges credentials for a session. State is untouched on failure.
func (m *SessionManager) Login(ctx context.Context, creds Credentials) error {
	payload, err := m.client.Login(ctx, creds)
	if err != nil {
		return err
	}
	return m.applyCompletePayload(payload)
}

// Signup registers an account and signs it in. State is untouched on failure.
func (m *SessionManager) Signup(ctx context.Context, input SignupInput) error {
	payload, err := m.client.Signup(ctx, input)
	if err != nil {
		return err
	}
	return m.applyCompletePayload(payload)
}

// LoginAsDemo signs in through the development demo endpoint.
func (m *SessionManager) LoginAsDemo(ctx context.Context, opts DemoOptions) error {
	payload, err := m.client.DemoLogin(ctx, opts)
	if err != nil {
		return err
	}
	return m.applyCompletePayload(payload)
}

// Logout drops the session. The backend call is best-effort; local state
// always resets to guest. Guest tokens and guest name survive, they are
// device-local identities independent of the account. Safe to call twice.
func (m *SessionManager) Logout(ctx context.Context) error {
	if err := m.client.Logout(ctx); err != nil {
		m.logger.Debug("backend logout failed: %v", err)
	}
	m.closePopup()
	m.resetToGuest()
	return nil
}

// HandleUnauthorized is the 401 callback registered with the Client. It
// attempts one silent refresh; success means the caller should retry the
// original request exactly once. Refresh rejection demotes to guest. A
// throttled attempt fails the original request without touching state.
func (m *SessionManager) HandleUnauthorized(ctx context.Context) bool {
	if !m.refreshLimiter.Allow() {
		m.logger.Warn("token refresh throttled")
		return false
	}

	payload, err := m.client.RefreshAccessToken(ctx)
	if err == nil && payload.AccessToken != "" && payload.User != nil {
		if err := m.applyPayload(*payload); err == nil {
			return true
		}
	}

	m.resetToGuest()
	return false
}

// Close tears the manager down. Late-arriving async results no longer
// commit state.
func (m *SessionManager) Close() {
	m.closePopup()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// applyCompletePayload applies login/signup/demo responses, which must carry
// the full {token, user} pair before they count.
func (m *SessionManager) applyCompletePayload(payload *AuthPayload) error {
	if payload == nil || payload.AccessToken == "" || payload.User == nil {
		return ErrInvalidAuthPayload
	}
	return m.applyPayload(*payload)
}

// applyPayload is the idempotent merge every auth result funnels through. A
// payload carrying only a user or only a token still flips the session to
// authenticated; the partial half is hydrated by the next probe or refresh.
func (m *SessionManager) applyPayload(payload AuthPayload) error {
	if m.verifier != nil && payload.AccessToken != "" {
		if err := m.verifier.Verify(context.Background(), payload.AccessToken); err != nil {
			return errors.Join(ErrTokenRejected, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrSessionClosed
	}

	authenticated := false
	if payload.User != nil {
		user := *payload.User
		user.NeedsUsernameSetup = payload.NeedsUsernameSetup || user.NeedsUsernameSetup
		m.user = &user
		authenticated = true
	}
	if payload.AccessToken != "" {
		m.token = payload.AccessToken
		authenticated = true
	}
	if authenticated {
		m.status = StatusAuthenticated
	}

	return nil
}

func (m *SessionManager) resetToGuest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.user = nil
	m.token = ""
	m.status = StatusGuest
}

// consumeHandoff reads and deletes the one-shot handoff payload. The key is
// removed even when the stored document is corrupt, the payload is spent
// either way.
func (m *SessionManager) consumeHandoff(ctx context.Context) (*AuthPayload, bool) {
	raw, err := m.store.Get(ctx, m.cfg.GetHandoffKey())
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			m.logger.Debug("handoff read failed: %v", err)
		}
		return nil, false
	}

	if err := m.store.Delete(ctx, m.cfg.GetHandoffKey()); err != nil {
		m.logger.Warn("handoff delete failed: %v", err)
	}

	payload := &AuthPayload{}
	if err := json.Unmarshal(raw, payload); err != nil {
		m.logger.Error("failed to parse stored handoff payload: %v", err)
		return nil, false
	}
	if payload.Empty() {
		m.logger.Warn("stored handoff payload carries neither user nor token")
		return nil, false
	}

	return payload, true
}

func (m *SessionManager) closePopup() {
	m.mu.Lock()
	popup := m.popup
	m.popup = nil
	m.mu.Unlock()

	if popup != nil && !popup.Closed() {
		if err := popup.Close(); err != nil {
			m.logger.Debug("popup close failed: %v", err)
		}
	}
}
