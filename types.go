package hopon

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Store is the durable client-side storage the SDK persists guest identity
// and one-shot auth handoffs to. Values are raw JSON documents keyed by
// well-known names; Get returns ErrKeyNotFound for missing keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Popup is an open authentication window. Closed reports whether the user
// dismissed it; Close tears it down after a terminal outcome.
type Popup interface {
	Closed() bool
	Close() error
}

// Launcher opens the OAuth entry URL and returns the window handle plus the
// channel completion messages arrive on. loginURL builds the entry URL for a
// given post-auth redirect target, which only the launcher knows (a loopback
// launcher learns its callback address when its listener binds). The channel
// is closed when no further messages can be delivered.
type Launcher interface {
	Open(ctx context.Context, loginURL func(next string) string) (Popup, <-chan AuthMessage, error)
}

// UnauthorizedHandler is invoked by Client when a request comes back 401.
// A true result means the session was refreshed and the caller should retry
// the original request exactly once.
type UnauthorizedHandler func(ctx context.Context) bool

// TokenVerifier checks an access token received from the backend before it
// is committed to session state.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) error
}

// Config holds client options
type Config interface {
	GetBaseURL() string
	GetRequestTimeout() time.Duration
	GetPopupPollInterval() time.Duration
	GetHandoffKey() string
	GetGuestNameKey() string
	GetGuestTokensKey() string
}

// SimpleConfig is a literal-friendly Config implementation. Zero fields fall
// back to defaults, so SimpleConfig{BaseURL: "..."} is a complete config.
type SimpleConfig struct {
	BaseURL           string
	RequestTimeout    time.Duration
	PopupPollInterval time.Duration
	HandoffKey        string
	GuestNameKey      string
	GuestTokensKey    string
}

const (
	defaultBaseURL           = "http://localhost:8000"
	defaultRequestTimeout    = 15 * time.Second
	defaultPopupPollInterval = 500 * time.Millisecond

	defaultRefreshInterval = 2 * time.Second
	defaultRefreshBurst    = 3

	defaultHandoffKey     = "hoponAuthPayload"
	defaultGuestNameKey   = "hopon_guest_name"
	defaultGuestTokensKey = "hopon_guest_tokens"
)

func (c SimpleConfig) GetBaseURL() string {
	if c.BaseURL == "" {
		return defaultBaseURL
	}
	return c.BaseURL
}

func (c SimpleConfig) GetRequestTimeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return defaultRequestTimeout
	}
	return c.RequestTimeout
}

func (c SimpleConfig) GetPopupPollInterval() time.Duration {
	if c.PopupPollInterval <= 0 {
		return defaultPopupPollInterval
	}
	return c.PopupPollInterval
}

func (c SimpleConfig) GetHandoffKey() string {
	if c.HandoffKey == "" {
		return defaultHandoffKey
	}
	return c.HandoffKey
}

func (c SimpleConfig) GetGuestNameKey() string {
	if c.GuestNameKey == "" {
		return defaultGuestNameKey
	}
	return c.GuestNameKey
}

func (c SimpleConfig) GetGuestTokensKey() string {
	if c.GuestTokensKey == "" {
		return defaultGuestTokensKey
	}
	return c.GuestTokensKey
}

var _ Config = SimpleConfig{}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] HOPON "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] HOPON "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] HOPON "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] HOPON "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
