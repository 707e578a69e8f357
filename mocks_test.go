package hopon_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/hopon/go-hopon"
)

// fakePopup is a controllable window handle.
type fakePopup struct {
	mu     sync.Mutex
	closed bool
}

func (p *fakePopup) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePopup) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// fakeLauncher hands back a scripted popup and message channel, recording
// the entry URL it was asked to open.
type fakeLauncher struct {
	popup    *fakePopup
	messages chan hopon.AuthMessage

	mu       sync.Mutex
	entryURL string
	openErr  error
	opens    int
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{
		popup:    &fakePopup{},
		messages: make(chan hopon.AuthMessage, 1),
	}
}

func (l *fakeLauncher) Open(ctx context.Context, loginURL func(next string) string) (hopon.Popup, <-chan hopon.AuthMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.opens++
	if l.openErr != nil {
		return nil, nil, l.openErr
	}

	l.entryURL = loginURL("http://127.0.0.1:9999/callback")
	return l.popup, l.messages, nil
}

func (l *fakeLauncher) EntryURL() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entryURL
}

// failingStore wraps a Store and fails writes on demand.
type failingStore struct {
	hopon.Store
	failSet bool
}

func (s *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if s.failSet {
		return fmt.Errorf("disk full")
	}
	return s.Store.Set(ctx, key, value)
}

// quietLogger drops everything; tests that assert on logs use their own.
type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Warn(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}
