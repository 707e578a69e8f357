package hopon

import (
	"fmt"
	"time"

	"github.com/goliatone/go-print"
)

// Snapshot is a point-in-time view of session state for diagnostics and for
// UI layers that render the whole session at once.
type Snapshot struct {
	Status      Status     `json:"status"`
	User        *User      `json:"user,omitempty"`
	HasToken    bool       `json:"has_token"`
	TokenExpiry *time.Time `json:"token_expiry,omitempty"`
	GuestName   string     `json:"guest_name,omitempty"`
	GuestEvents []int      `json:"guest_events,omitempty"`
}

// Snapshot returns the current session view. The token itself is never
// included, only whether one is held and its decoded expiry.
func (m *SessionManager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Status:    m.status,
		HasToken:  m.token != "",
		GuestName: m.guestName,
	}

	if m.user != nil {
		u := *m.user
		snap.User = &u
	}

	if m.token != "" {
		if expiry, ok := TokenExpiry(m.token); ok {
			snap.TokenExpiry = &expiry
		}
	}

	for eventID := range m.guestTokens {
		snap.GuestEvents = append(snap.GuestEvents, eventID)
	}

	return snap
}

// TODO: enable only in development!
func (s Snapshot) String() string {
	return fmt.Sprintf("session %s %s", s.Status, print.MaybePrettyJSON(s))
}
