package poll_errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors. Every failure reported to a connection wraps exactly one of these.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidState   = errors.New("invalid state")
	ErrNotRevealed    = errors.New("question not revealed")
	ErrValidation     = errors.New("validation error")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrRateLimited    = errors.New("rate limited")
	ErrInfrastructure = errors.New("infrastructure error")

	// ErrAlreadyExists is a store-level key collision. Callers retry or wrap it.
	ErrAlreadyExists = errors.New("already exists")
)

// Infra marks a store or transport failure. Nil stays nil.
func Infra(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInfrastructure) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInfrastructure, err)
}

// IsDomain reports whether err is one of the recoverable domain errors.
func IsDomain(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrNotRevealed) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrRateLimited)
}

// Code returns the wire code used in HTTP error bodies and socket error events.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidState):
		return "INVALID_STATE"
	case errors.Is(err, ErrNotRevealed):
		return "NOT_REVEALED"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	default:
		return "INTERNAL_ERROR"
	}
}

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrNotRevealed):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Message is the text shown to the caller. Infrastructure details never leak.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if !IsDomain(err) {
		return "internal error"
	}
	return err.Error()
}
