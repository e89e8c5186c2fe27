// Package apperror defines the domain errors shared by every layer.
//
// Services return these; the HTTP layer (handler.writeError) maps them to
// status codes and to the `{"error": ..., "details": ...}` body the dashboard
// page parses.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotConnected = errors.New("not connected")
	ErrRateLimited  = errors.New("rate limited")
	ErrUpstream     = errors.New("upstream failure")
)

type AppError struct {
	Err     error          // actual error
	Message string         // Human-readable error message
	Field   string         // Optional: field causing the error
	Details map[string]any // Optional: structured details echoed to API clients
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned when credentials (ours or GitHub's) are missing or revoked.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// NotConnected means the user has no linked account for provider.
func NotConnected(provider string) *AppError {
	return &AppError{
		Err:     ErrNotConnected,
		Message: fmt.Sprintf("%s account is not connected", provider),
		Details: map[string]any{"provider": provider},
	}
}

// RateLimited carries the number of seconds the caller should wait before retrying.
func RateLimited(message string, retryAfterSeconds int) *AppError {
	return &AppError{
		Err:     ErrRateLimited,
		Message: message,
		Details: map[string]any{"retryAfter": retryAfterSeconds},
	}
}

// Upstream wraps a failure of a remote dependency (GitHub) that is not the caller's fault.
func Upstream(message string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrUpstream, cause),
		Message: message,
	}
}
