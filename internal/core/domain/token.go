package domain

import "time"

// RefreshToken represents a persisted refresh token record. Only a salted
// hash of the secret is stored; the plaintext is returned once at issuance
// and never retrievable afterwards.
type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	IP         *string
	UserAgent  *string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	UsedAt     *time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
}

// IsExpired reports whether the token has elapsed its validity window.
func (t RefreshToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// IsActive reports whether the token can still be presented for rotation.
// A record never re-enters this state after leaving it.
func (t RefreshToken) IsActive(at time.Time) bool {
	if t.RevokedAt != nil || t.UsedAt != nil {
		return false
	}
	return !t.IsExpired(at)
}

// MarkUsed records the moment the refresh token was exchanged and the
// identifier of its successor. Returns true if the token was previously
// unused.
func (t *RefreshToken) MarkUsed(at time.Time, replacedBy string) bool {
	if t.UsedAt != nil {
		return false
	}
	timeCopy := at
	t.UsedAt = &timeCopy
	if replacedBy != "" {
		idCopy := replacedBy
		t.ReplacedBy = &idCopy
	}
	return true
}

// Revoke marks the token as revoked. Terminal.
func (t *RefreshToken) Revoke(at time.Time) bool {
	if t.RevokedAt != nil {
		return false
	}
	timeCopy := at
	t.RevokedAt = &timeCopy
	return true
}

// PasswordResetToken represents a single-use password reset token hash.
type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// IsExpired reports whether the reset token can still be redeemed.
func (t PasswordResetToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// Consume marks the reset token as used.
func (t *PasswordResetToken) Consume(at time.Time) bool {
	if t.UsedAt != nil {
		return false
	}
	timeCopy := at
	t.UsedAt = &timeCopy
	return true
}
