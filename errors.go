package hopon

import (
	"errors"
	"fmt"
	"strings"
)

// ErrKeyNotFound is returned by Store implementations for missing keys
var ErrKeyNotFound = errors.New("key not found")

// ErrPopupBlocked is the error when the login window could not be opened
var ErrPopupBlocked = errors.New("unable to open login window, check if pop-ups are blocked")

// ErrAuthWindowClosed is the error when the window closed before completing auth
var ErrAuthWindowClosed = errors.New("authentication window closed")

// ErrInvalidAuthPayload is the error for handoff payloads missing user or token
var ErrInvalidAuthPayload = errors.New("invalid authentication payload")

// ErrLoginInFlight rejects a second Google login while one is still pending
var ErrLoginInFlight = errors.New("login already in flight")

// ErrSessionClosed is returned once the manager has been shut down
var ErrSessionClosed = errors.New("session manager closed")

// ErrTokenRejected is the error when a configured TokenVerifier refuses a token
var ErrTokenRejected = errors.New("access token failed verification")

// APIError carries a backend error response verbatim so callers can render
// the backend's message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Sprintf("API %d: %s", e.Status, msg)
}

// IsUnauthorizedError will check for 401 responses
func IsUnauthorizedError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == 401
	}
	return false
}

// IsNotFoundError will check for 404 responses
func IsNotFoundError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == 404
	}
	return false
}

// IsConflictError matches duplicate username/email rejections
func IsConflictError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == 409 {
			return true
		}
		return strings.Contains(strings.ToLower(apiErr.Message), "already")
	}
	return false
}
