package core

import "errors"

// Error codes sent back to clients.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotInRoom    = "not_in_room"
	ErrCodeUnknownEvent = "unknown_event"
	ErrCodeRateLimited  = "rate_limited"
)

// ErrHubStopped is returned by calls made after the hub loop has exited.
var ErrHubStopped = errors.New("hub stopped")

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
