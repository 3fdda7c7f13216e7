package domain

import "time"

// LoginEvent captures the outcome of an authentication attempt.
type LoginEvent struct {
	EventID    string
	UserID     string
	Identifier string
	Succeeded  bool
	MFAPending bool
	IPAddress  *string
	UserAgent  *string
	At         time.Time
}

// TokenRefreshedEvent records a successful refresh token rotation.
type TokenRefreshedEvent struct {
	EventID    string
	UserID     string
	OldTokenID string
	NewTokenID string
	IPAddress  *string
	At         time.Time
}

// TokenReuseEvent flags the presentation of an already rotated or revoked
// refresh token, a signal of possible token theft.
type TokenReuseEvent struct {
	EventID   string
	UserID    string
	TokenID   string
	UsedAt    *time.Time
	RevokedAt *time.Time
	At        time.Time
}

// MFAStateChangedEvent records enabling or disabling of a second factor.
type MFAStateChangedEvent struct {
	EventID         string
	UserID          string
	Type            string
	Enabled         bool
	SessionsRevoked int
	At              time.Time
}

// LockoutEvent records an MFA attempt limit tripping for a user.
type LockoutEvent struct {
	EventID string
	UserID  string
	Method  string
	At      time.Time
}

// PasswordResetEvent records completion of a password reset.
type PasswordResetEvent struct {
	EventID         string
	UserID          string
	SessionsRevoked int
	At              time.Time
}
