package usecase

import "errors"

// Sentinel errors surfaced by the use cases. Transport layers map them to
// status codes; messages stay opaque so callers cannot distinguish which
// sub-check rejected them.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidAccessToken  = errors.New("invalid access token")
	ErrExpiredAccessToken  = errors.New("access token expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrInvalidResetToken   = errors.New("invalid reset token")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrInvalidMFACode      = errors.New("invalid mfa code")
	ErrMFANotEnabled       = errors.New("mfa not enabled")
	ErrMFAAlreadyEnabled   = errors.New("mfa already enabled")
	ErrTooManyAttempts     = errors.New("too many attempts")
	ErrAccountSuspended    = errors.New("account suspended or archived")
	ErrNotSupported        = errors.New("operation not supported")
	ErrUserNotFound        = errors.New("user not found")
)
