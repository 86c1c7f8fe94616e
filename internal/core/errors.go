package core

import "errors"

// Rejection codes reported to clients in auth_rejected.
const (
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeUsernameTaken      = "username_taken"
	ErrCodeAlreadyOnline      = "already_online"
	ErrCodeInvalidRequest     = "invalid_request"
	ErrCodeUnsupportedVersion = "unsupported_version"
	ErrCodeUnavailable        = "unavailable"
)

var (
	// ErrUsernameTaken is returned by TryRegister when the username already has a live session.
	ErrUsernameTaken = errors.New("username already online")
	// ErrSlowConsumer kills a client whose outbox is full.
	ErrSlowConsumer = errors.New("slow consumer")
	// ErrClientClosed is the terminal error of a client closed by its owner.
	ErrClientClosed = errors.New("client closed")
)

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
