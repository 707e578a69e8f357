package hopon

import (
	"context"
	"time"
)

// LoginWithGoogle runs the popup OAuth handshake. It opens the backend's
// OAuth entry URL through the configured Launcher and blocks until one of:
//
//   - a completion message arrives on the launcher channel: the payload is
//     applied and the handshake succeeds;
//   - the window is detected closed (polled) before any message arrived: a
//     payload the completion page wrote to durable storage is consumed as a
//     fallback, otherwise the handshake fails with ErrAuthWindowClosed;
//   - a recognized message carries an incomplete payload: the handshake
//     fails with ErrInvalidAuthPayload and state is untouched;
//   - ctx is canceled.
//
// The window is closed on every terminal outcome. Only one handshake may be
// in flight; a concurrent call fails with ErrLoginInFlight.
func (m *SessionManager) LoginWithGoogle(ctx context.Context) error {
	if m.launcher == nil {
		return ErrPopupBlocked
	}

	m.mu.Lock()
	if m.loginPending {
		m.mu.Unlock()
		return ErrLoginInFlight
	}
	m.loginPending = true
	m.mu.Unlock()

	defer func() {
		m.closePopup()
		m.mu.Lock()
		m.loginPending = false
		m.mu.Unlock()
	}()

	popup, messages, err := m.launcher.Open(ctx, m.client.GoogleLoginURL)
	if err != nil {
		m.logger.Error("failed to open login window: %v", err)
		return ErrPopupBlocked
	}

	m.mu.Lock()
	m.popup = popup
	m.mu.Unlock()

	ticker := time.NewTicker(m.cfg.GetPopupPollInterval())
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				// Channel gone; the close poll below is the only exit left.
				messages = nil
				continue
			}
			if msg.Type != AuthMessageType {
				continue
			}
			m.closePopup()
			if msg.Payload.User == nil || msg.Payload.AccessToken == "" {
				m.logger.Error("invalid authentication payload")
				return ErrInvalidAuthPayload
			}
			if err := m.applyPayload(msg.Payload); err != nil {
				return err
			}
			// The completion page may also have written the storage
			// fallback; spend it so a later Start cannot replay it.
			m.discardHandoff(ctx)
			m.logger.Info("google login completed via %s", SourceMessage)
			return nil

		case <-ticker.C:
			if !popup.Closed() {
				continue
			}
			if payload, found := m.consumeHandoff(ctx); found {
				if err := m.applyPayload(*payload); err != nil {
					return err
				}
				m.logger.Info("google login completed via %s", SourceStorage)
				return nil
			}
			return ErrAuthWindowClosed

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// discardHandoff drops any stored handoff payload without applying it.
func (m *SessionManager) discardHandoff(ctx context.Context) {
	if err := m.store.Delete(ctx, m.cfg.GetHandoffKey()); err != nil {
		m.logger.Debug("handoff discard failed: %v", err)
	}
}
