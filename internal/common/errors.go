// Package common defines shared constants and sentinel errors used across
// the VeriAuth service. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound     = errors.New("not found")
	ErrDuplicateEmail = errors.New("duplicate email")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Registration / verification errors.
	ErrEmailAlreadyRegistered     = errors.New("email already registered")
	ErrAccountNotFound            = errors.New("account not found")
	ErrEmailNotVerified           = errors.New("email not verified")
	ErrAlreadyVerified            = errors.New("email already verified")
	ErrNotificationDeliveryFailed = errors.New("verification email could not be delivered")

	// Login errors.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Token errors (invalid, malformed or expired signed token).
	ErrInvalidToken = errors.New("invalid token")

	// Configuration errors.
	ErrMissingSecret = errors.New("signing secret is not configured")
)
