package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// StorageErrorMessage describes SQL storage failures.
	StorageErrorMessage = "storage operation failed"
	// NotFoundMessage describes a missing record.
	NotFoundMessage = "record not found"
	// BackendErrorMessage describes a failed call to the chat backend.
	BackendErrorMessage = "chat backend request failed"
)

// Error wraps an underlying error with a status and a safe message.
type Error struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the provided information.
func New(err error, status int, message string) *Error {
	return &Error{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// NotFound builds a not-found error for the given resource description.
func NotFound(what string) *Error {
	return New(nil, http.StatusNotFound, fmt.Sprintf("%s: %s", NotFoundMessage, what))
}

// WrapBackend wraps a chat backend failure.
func WrapBackend(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, BackendErrorMessage)
}

// IsNotFound reports whether err carries a not-found status anywhere in its chain.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Status == http.StatusNotFound
	}
	return false
}

// StatusOf returns the status carried by err, or 500 when err is not an *Error.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}
