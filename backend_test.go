package hopon_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hopon/go-hopon"
)

const testSigningKey = "test-signing-key"

// fakeBackend is a minimal HopOn backend: it mints real HS256 tokens, keeps
// a cookie-based refresh credential, and counts calls per endpoint so tests
// can assert on retry behavior.
type fakeBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu               sync.Mutex
	calls            map[string]int
	demoPasswordHash string
	sessionResult    *hopon.SessionResult
	refreshEnabled   bool
	reject401        int // next N protected calls answer 401
	guestTokens      map[string]int
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("demo-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash demo password: %v", err)
	}

	b := &fakeBackend{
		t:                t,
		calls:            map[string]int{},
		demoPasswordHash: string(hash),
		refreshEnabled:   true,
		guestTokens:      map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/session", b.handleSession)
	mux.HandleFunc("POST /auth/login", b.handleLogin)
	mux.HandleFunc("POST /auth/signup", b.handleSignup)
	mux.HandleFunc("POST /auth/demo-login", b.handleDemoLogin)
	mux.HandleFunc("POST /auth/refresh", b.handleRefresh)
	mux.HandleFunc("POST /auth/logout", b.handleLogout)
	mux.HandleFunc("GET /auth/username-available", b.handleUsernameAvailable)
	mux.HandleFunc("POST /auth/setup-account", b.handleSetupAccount)
	mux.HandleFunc("GET /me/events", b.handleMyEvents)
	mux.HandleFunc("GET /events/nearby", b.handleNearby)
	mux.HandleFunc("POST /events/{id}/join", b.handleJoin)
	mux.HandleFunc("POST /events/{id}/leave", b.handleLeave)

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)

	return b
}

func (b *fakeBackend) URL() string { return b.srv.URL }

func (b *fakeBackend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

func (b *fakeBackend) record(r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[r.URL.Path]++
}

func (b *fakeBackend) setSession(result *hopon.SessionResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessionResult = result
}

func (b *fakeBackend) disableRefresh() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshEnabled = false
}

func (b *fakeBackend) rejectNextProtected(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reject401 = n
}

func (b *fakeBackend) mintToken(email string) string {
	claims := jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
	if err != nil {
		b.t.Fatalf("mint token: %v", err)
	}
	return token
}

func (b *fakeBackend) validBearer(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return []byte(testSigningKey), nil
	})
	return err == nil && parsed.Valid
}

// setRefreshCookie stores the ambient refresh credential the way the real
// backend does: an opaque session id derived from the account.
func (b *fakeBackend) setRefreshCookie(w http.ResponseWriter, email string) {
	sid, err := hashid.NewUUID(email)
	if err != nil {
		b.t.Fatalf("derive session id: %v", err)
	}
	http.SetCookie(w, &http.Cookie{Name: "hopon_session", Value: sid.String(), Path: "/"})
}

func (b *fakeBackend) user(email string) *hopon.User {
	return &hopon.User{
		ID:       7,
		Username: strings.Split(email, "@")[0],
		Email:    email,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (b *fakeBackend) handleSession(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	b.mu.Lock()
	result := b.sessionResult
	b.mu.Unlock()

	if result == nil {
		writeJSON(w, http.StatusOK, hopon.SessionResult{Authenticated: false})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (b *fakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	var creds hopon.Credentials
	json.NewDecoder(r.Body).Decode(&creds)

	if bcrypt.CompareHashAndPassword([]byte(b.demoPasswordHash), []byte(creds.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	b.setRefreshCookie(w, creds.Email)
	writeJSON(w, http.StatusOK, hopon.AuthPayload{
		User:        b.user(creds.Email),
		AccessToken: b.mintToken(creds.Email),
	})
}

func (b *fakeBackend) handleSignup(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	var input hopon.SignupInput
	json.NewDecoder(r.Body).Decode(&input)

	if input.Username == "taken" {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "username already registered"})
		return
	}

	b.setRefreshCookie(w, input.Email)
	user := b.user(input.Email)
	user.Username = input.Username
	writeJSON(w, http.StatusOK, hopon.AuthPayload{
		User:        user,
		AccessToken: b.mintToken(input.Email),
	})
}

func (b *fakeBackend) handleDemoLogin(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	var opts hopon.DemoOptions
	json.NewDecoder(r.Body).Decode(&opts)

	email := opts.Email
	if email == "" {
		email = "demo@hopon.dev"
	}

	b.setRefreshCookie(w, email)
	user := b.user(email)
	if opts.Username != "" {
		user.Username = opts.Username
	}
	writeJSON(w, http.StatusOK, hopon.AuthPayload{
		User:        user,
		AccessToken: b.mintToken(email),
	})
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	b.mu.Lock()
	enabled := b.refreshEnabled
	b.mu.Unlock()

	cookie, err := r.Cookie("hopon_session")
	if !enabled || err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no refresh credential"})
		return
	}

	writeJSON(w, http.StatusOK, hopon.AuthPayload{
		User:        b.user("refreshed@hopon.dev"),
		AccessToken: b.mintToken("refreshed@hopon.dev"),
	})
}

func (b *fakeBackend) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (b *fakeBackend) handleUsernameAvailable(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	username := r.URL.Query().Get("username")
	writeJSON(w, http.StatusOK, map[string]any{
		"available": username != "" && username != "taken",
	})
}

func (b *fakeBackend) handleSetupAccount(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	if !b.validBearer(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var input hopon.SetupAccountInput
	json.NewDecoder(r.Body).Decode(&input)

	user := b.user("setup@hopon.dev")
	user.Username = input.Username
	user.NeedsUsernameSetup = false
	writeJSON(w, http.StatusOK, map[string]any{"message": "account ready", "user": user})
}

func (b *fakeBackend) handleMyEvents(w http.ResponseWriter, r *http.Request) {
	b.record(r)

	b.mu.Lock()
	reject := b.reject401 > 0
	if reject {
		b.reject401--
	}
	b.mu.Unlock()

	if reject || !b.validBearer(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	writeJSON(w, http.StatusOK, hopon.MyEvents{
		Joined: []hopon.Event{{ID: 1, Name: "Morning Run", Sport: "running"}},
		Hosted: []hopon.Event{},
	})
}

func (b *fakeBackend) handleNearby(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	writeJSON(w, http.StatusOK, []hopon.Event{
		{ID: 1, Name: "Morning Run", Sport: "running", Location: "Riverside", MaxPlayers: 10, CurrentPlayers: 3},
		{ID: 2, Name: "5v5 Futsal", Sport: "soccer", Location: "Court B", MaxPlayers: 10, CurrentPlayers: 9},
	})
}

func (b *fakeBackend) handleJoin(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	eventID, _ := strconv.Atoi(r.PathValue("id"))

	var input hopon.JoinEventInput
	json.NewDecoder(r.Body).Decode(&input)

	if b.validBearer(r) {
		writeJSON(w, http.StatusOK, hopon.JoinEventResult{Message: "joined"})
		return
	}

	if input.PlayerName == "" && input.GuestToken == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "player_name required"})
		return
	}

	b.mu.Lock()
	if input.GuestToken != "" {
		if b.guestTokens[input.GuestToken] == eventID {
			b.mu.Unlock()
			writeJSON(w, http.StatusOK, hopon.JoinEventResult{Message: "already joined"})
			return
		}
		b.mu.Unlock()
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "unknown guest token"})
		return
	}
	token := uuid.NewString()
	b.guestTokens[token] = eventID
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, hopon.JoinEventResult{Message: "joined as guest", GuestToken: token})
}

func (b *fakeBackend) handleLeave(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	eventID, _ := strconv.Atoi(r.PathValue("id"))

	var input struct {
		GuestToken string `json:"guest_token"`
	}
	json.NewDecoder(r.Body).Decode(&input)

	if b.validBearer(r) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "left"})
		return
	}

	b.mu.Lock()
	known := b.guestTokens[input.GuestToken] == eventID
	if known {
		delete(b.guestTokens, input.GuestToken)
	}
	b.mu.Unlock()

	if !known {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "unknown guest token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "left"})
}
