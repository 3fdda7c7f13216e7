package port

import (
	"context"
	"time"

	"github.com/valcriss/sovrane/internal/core/domain"
)

// RefreshTokenRepository persists refresh token records backing the ledger.
// MarkUsed must be a conditional update that succeeds only while the record
// is still active, so two concurrent rotations of the same token cannot
// both win.
type RefreshTokenRepository interface {
	Save(ctx context.Context, token domain.RefreshToken) error
	FindActive(ctx context.Context, at time.Time) ([]domain.RefreshToken, error)
	FindActiveByUser(ctx context.Context, userID string, at time.Time) ([]domain.RefreshToken, error)
	// FindTerminated returns used or revoked records that have not yet
	// expired. The ledger scans them to flag reuse of a spent token.
	FindTerminated(ctx context.Context, at time.Time) ([]domain.RefreshToken, error)
	MarkUsed(ctx context.Context, tokenID string, usedAt time.Time, replacedBy string) error
	Revoke(ctx context.Context, tokenID string, revokedAt time.Time, reason string) error
	RevokeAllForUser(ctx context.Context, userID string, revokedAt time.Time, reason string) (int, error)
}

// ResetTokenRepository persists single-use password reset token hashes.
type ResetTokenRepository interface {
	Save(ctx context.Context, token domain.PasswordResetToken) error
	FindByHash(ctx context.Context, hash string) (*domain.PasswordResetToken, error)
	Consume(ctx context.Context, tokenID string, usedAt time.Time) error
}
