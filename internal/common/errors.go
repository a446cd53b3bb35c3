// Package common defines shared sentinel errors used across the rentproof
// server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors. ErrNotFound deliberately covers both "row does
	// not exist" and "row exists but belongs to someone else" so that the API
	// never leaks whether another user's case exists.
	ErrNotFound = errors.New("not found")

	// Auth errors.
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidToken    = errors.New("invalid token")

	// Idempotency signals. The desired end state is already true; callers may
	// treat these as success-with-no-op, but the API reports them distinctly.
	ErrAlreadyLocked    = errors.New("phase already locked")
	ErrAlreadyConfirmed = errors.New("already confirmed")
	ErrAlreadyGranted   = errors.New("pack already granted")

	// Lifecycle violations.
	ErrPhaseOrderViolation = errors.New("handover cannot be locked before check-in")
	ErrPhaseLocked         = errors.New("phase is locked, record is immutable")

	// Entitlement gate failure.
	ErrEntitlementDenied = errors.New("entitlement denied")

	// Validation.
	ErrValidation = errors.New("validation error")

	// Collaborator failures (store, object storage, email, payments). Always
	// logged with full detail server-side, reported to callers generically.
	ErrUpstream = errors.New("upstream collaborator failure")
)
