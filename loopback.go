package hopon

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// LoopbackLauncher is the native stand-in for the browser popup. It binds a
// loopback listener, hands its callback address to the backend as the
// post-auth redirect target, and opens the system browser on the OAuth entry
// URL. The backend's completion page delivers the handoff payload to the
// callback, which becomes the AuthMessage the session manager is waiting on.
//
// A state nonce pairs the callback with this attempt so a stray or replayed
// completion cannot finish someone else's login.
type LoopbackLauncher struct {
	logger Logger

	// OpenBrowser launches the user's browser on the entry URL. Tests
	// replace it.
	OpenBrowser func(url string) error

	// HandshakeTimeout bounds how long the listener stays up. After it the
	// window reports closed and the session manager falls back to durable
	// storage. Zero means 5 minutes.
	HandshakeTimeout time.Duration
}

var _ Launcher = (*LoopbackLauncher)(nil)

func NewLoopbackLauncher(logger Logger) *LoopbackLauncher {
	if logger == nil {
		logger = defLogger{}
	}
	return &LoopbackLauncher{
		logger:      logger,
		OpenBrowser: openSystemBrowser,
	}
}

const completionPage = `<!doctype html>
<html><body>
<p>You're signed in to HopOn. You can close this window.</p>
<script>window.close()</script>
</body></html>`

// Open implements Launcher.
func (l *LoopbackLauncher) Open(ctx context.Context, loginURL func(next string) string) (Popup, <-chan AuthMessage, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, nil, fmt.Errorf("bind loopback listener: %w", err)
	}

	state := uuid.NewString()
	messages := make(chan AuthMessage, 1)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	window := &loopbackWindow{app: app, messages: messages}

	handle := func(c *fiber.Ctx) error {
		if c.Query("state") != state {
			l.logger.Warn("loopback callback with wrong state rejected")
			return c.Status(fiber.StatusForbidden).SendString("state mismatch")
		}

		msg := AuthMessage{Source: SourceMessage}
		if err := c.BodyParser(&msg); err != nil {
			l.logger.Error("loopback callback body unreadable: %v", err)
			return c.Status(fiber.StatusBadRequest).SendString("bad payload")
		}

		window.deliver(msg)
		return c.Type("html").SendString(completionPage)
	}

	app.Post("/callback", handle)
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	go func() {
		if err := app.Listener(listener); err != nil {
			l.logger.Debug("loopback listener stopped: %v", err)
		}
	}()

	timeout := l.HandshakeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	window.timer = time.AfterFunc(timeout, func() {
		l.logger.Warn("login handshake timed out")
		window.Close()
	})

	callback := fmt.Sprintf("http://%s/callback?state=%s", listener.Addr().String(), state)
	entry := loginURL(callback)

	if err := l.OpenBrowser(entry); err != nil {
		window.Close()
		return nil, nil, fmt.Errorf("open browser: %w", err)
	}

	l.logger.Debug("waiting for login callback on %s", callback)
	return window, messages, nil
}

type loopbackWindow struct {
	app      *fiber.App
	messages chan AuthMessage
	timer    *time.Timer

	mu     sync.Mutex
	closed bool
}

func (w *loopbackWindow) deliver(msg AuthMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.messages <- msg:
	default:
	}
}

func (w *loopbackWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *loopbackWindow) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.messages)
	w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	return w.app.Shutdown()
}

func openSystemBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
