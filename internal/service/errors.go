package service

import "errors"

// Errores de negocio del ciclo de vida de identidad. La capa HTTP los traduce a códigos de estado.
var (
	ErrMissingFields      = errors.New("missing fields")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrWeakPassword       = errors.New("weak password")
	ErrUsernameTaken      = errors.New("username taken")
	ErrEmailTaken         = errors.New("email taken")
	ErrNotFound           = errors.New("not found")
	ErrAccountNotVerified = errors.New("account not verified")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidCode        = errors.New("invalid code")
	ErrMFANotConfigured   = errors.New("mfa not configured")
	ErrInvalidOrExpired   = errors.New("invalid or expired code")
	ErrTooManyAttempts    = errors.New("too many attempts")
	ErrRateLimited        = errors.New("rate limited")
	ErrEmailSendFailure   = errors.New("email send failed")
)
