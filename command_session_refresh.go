package hopon

import (
	"context"
	"errors"
)

// ErrRefreshFailed is returned when a commanded refresh could not produce a
// new session.
var ErrRefreshFailed = errors.New("session refresh failed")

// RefreshSessionMessage asks the session manager to attempt a silent token
// refresh, for host applications that route maintenance work through a
// command bus.
type RefreshSessionMessage struct {
	Reason string `json:"reason"`
}

func (e RefreshSessionMessage) Type() string { return "session.refresh" }

type RefreshSessionHandler struct {
	manager *SessionManager
}

func NewRefreshSessionHandler(manager *SessionManager) *RefreshSessionHandler {
	return &RefreshSessionHandler{manager: manager}
}

func (h *RefreshSessionHandler) Execute(ctx context.Context, event RefreshSessionMessage) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !h.manager.HandleUnauthorized(ctx) {
		return ErrRefreshFailed
	}

	return nil
}
