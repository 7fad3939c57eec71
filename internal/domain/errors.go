package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// ErrRateLimited signals that a verification code for the same
	// (subject, purpose) was issued within the cooldown window.
	ErrRateLimited = errors.New("rate limited")

	// ErrCodeInvalid is deliberately opaque: wrong code, expired code,
	// already-consumed code and unknown subject all map to it so the
	// verifier leaks no enumeration signal.
	ErrCodeInvalid = errors.New("invalid or expired code")

	// ErrInvalidInterval rejects scheduler intervals below the floor.
	ErrInvalidInterval = errors.New("invalid interval")
)
