// Package common defines shared constants and sentinel errors used across
// gatekeeper layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrValidation     = errors.New("validation error")

	// Invite lifecycle errors. Both are terminal: the invite is deleted.
	ErrExpired   = errors.New("invite expired")
	ErrExhausted = errors.New("invite exhausted")

	// Login errors. The message is identical whether or not the user exists.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// Remote media server errors.
	ErrRemoteUnavailable = errors.New("remote server unavailable")
	ErrRemoteRejected    = errors.New("remote server rejected request")

	// Session token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Kind returns a short machine-readable name for a known sentinel error
// wrapped in err, or "internal" when err matches none of them.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrorNotFound):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrExhausted):
		return "exhausted"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrRemoteUnavailable), errors.Is(err, ErrRemoteRejected):
		return "remote_unavailable"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrorUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "internal"
	}
}
