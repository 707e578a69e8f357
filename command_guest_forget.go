package hopon

import (
	"context"
)

// ForgetGuestTokenMessage drops the guest join token for one event, e.g.
// after the backend reports the event deleted.
type ForgetGuestTokenMessage struct {
	EventID int `json:"event_id"`
}

func (e ForgetGuestTokenMessage) Type() string { return "guest.token.forget" }

type ForgetGuestTokenHandler struct {
	manager *SessionManager
}

func NewForgetGuestTokenHandler(manager *SessionManager) *ForgetGuestTokenHandler {
	return &ForgetGuestTokenHandler{manager: manager}
}

func (h *ForgetGuestTokenHandler) Execute(ctx context.Context, event ForgetGuestTokenMessage) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return h.manager.ClearGuestToken(ctx, event.EventID)
	}
}
