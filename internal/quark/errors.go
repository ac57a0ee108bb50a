// Package quark provides an HTTP client for the Quark drive API
// with error classification and typed responses.
package quark

import (
	"errors"
	"fmt"
)

// Sentinel errors for remote failure classification.
// Use errors.Is(err, quark.ErrNotFound) to check.
var (
	ErrInvalidInput  = errors.New("quark: invalid input")
	ErrAuth          = errors.New("quark: authentication failed")
	ErrNotFound      = errors.New("quark: not found")
	ErrConflict      = errors.New("quark: name conflict")
	ErrQuotaExceeded = errors.New("quark: storage quota exceeded")
	ErrRemoteFailure = errors.New("quark: remote task failure")
	ErrProtocol      = errors.New("quark: unexpected response shape")
)

// Remote error codes observed on the drive API.
const (
	codeDirConflict    = 23008 // directory name collision
	codeQuotaExceeded  = 32003 // drive capacity exhausted
	codeDestMissing    = 41013 // destination directory no longer exists
	taskStatusRunning  = 0
	taskStatusFailed   = 1
	taskStatusFinished = 2
)

// Error wraps a sentinel error with the remote status code and the
// API error message for debugging.
type Error struct {
	Code    int
	Message string
	Err     error // sentinel, for errors.Is()
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("quark: code %d: %s", e.Code, e.Message)
	}

	return fmt.Sprintf("quark: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// remoteErr builds an *Error carrying the remote code and message.
func remoteErr(sentinel error, code int, message string) error {
	if message == "" {
		message = "unknown remote error"
	}

	return &Error{Code: code, Message: message, Err: sentinel}
}

// classifyTaskCode maps a task failure code to its sentinel.
func classifyTaskCode(code int) error {
	switch code {
	case codeQuotaExceeded:
		return ErrQuotaExceeded
	case codeDestMissing:
		return ErrNotFound
	default:
		return ErrRemoteFailure
	}
}
