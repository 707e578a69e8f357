package hopon

import (
	"context"
	"encoding/json"
	"errors"
)

// Guest identity is device-local: the backend keeps no session for an
// unauthenticated visitor, so the per-event join tokens it mints are the only
// proof of participation. They persist through logout, restarts, and
// authenticated sessions. A lost guest token is unrecoverable.

// GuestName returns the persisted display name for unauthenticated joins.
func (m *SessionManager) GuestName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guestName
}

// SetGuestName stores the display name used for unauthenticated joins.
func (m *SessionManager) SetGuestName(ctx context.Context, name string) error {
	m.mu.Lock()
	m.guestName = name
	m.mu.Unlock()

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	current := m.guestName
	m.mu.Unlock()

	return m.store.Set(ctx, m.cfg.GetGuestNameKey(), []byte(current))
}

// GuestToken returns the join token remembered for an event, empty when the
// guest never joined it from this device.
func (m *SessionManager) GuestToken(eventID int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guestTokens[eventID]
}

// RememberGuestToken persists the join token the backend minted for an
// unauthenticated join.
func (m *SessionManager) RememberGuestToken(ctx context.Context, eventID int, token string) error {
	m.mu.Lock()
	m.guestTokens[eventID] = token
	m.mu.Unlock()

	return m.persistGuestTokens(ctx)
}

// ClearGuestToken forgets the join token for an event, typically after the
// guest leaves it.
func (m *SessionManager) ClearGuestToken(ctx context.Context, eventID int) error {
	m.mu.Lock()
	if _, ok := m.guestTokens[eventID]; !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.guestTokens, eventID)
	m.mu.Unlock()

	return m.persistGuestTokens(ctx)
}

// persistGuestTokens writes the current token map to the durable store. The
// snapshot is taken inside the persist critical section, so whichever write
// lands last always carries the newest map and a slow Set cannot clobber a
// later one.
func (m *SessionManager) persistGuestTokens(ctx context.Context) error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	raw, err := json.Marshal(m.guestTokens)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	return m.store.Set(ctx, m.cfg.GetGuestTokensKey(), raw)
}

// hydrateGuestState reloads guest identity from the durable store. A corrupt
// token document is dropped rather than wedging every later mutation.
func (m *SessionManager) hydrateGuestState(ctx context.Context) {
	if raw, err := m.store.Get(ctx, m.cfg.GetGuestNameKey()); err == nil {
		m.mu.Lock()
		m.guestName = string(raw)
		m.mu.Unlock()
	} else if !errors.Is(err, ErrKeyNotFound) {
		m.logger.Debug("guest name read failed: %v", err)
	}

	raw, err := m.store.Get(ctx, m.cfg.GetGuestTokensKey())
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			m.logger.Debug("guest tokens read failed: %v", err)
		}
		return
	}

	tokens := map[int]string{}
	if err := json.Unmarshal(raw, &tokens); err != nil {
		m.logger.Warn("dropping corrupt guest token store: %v", err)
		if err := m.store.Delete(ctx, m.cfg.GetGuestTokensKey()); err != nil {
			m.logger.Debug("guest tokens delete failed: %v", err)
		}
		return
	}

	m.mu.Lock()
	m.guestTokens = tokens
	m.mu.Unlock()
}
