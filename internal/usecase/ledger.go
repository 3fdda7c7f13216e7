package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/valcriss/sovrane/internal/core/domain"
	"github.com/valcriss/sovrane/internal/core/port"
	"github.com/valcriss/sovrane/internal/infra/config"
	"github.com/valcriss/sovrane/internal/infra/security"
	"github.com/valcriss/sovrane/internal/repository"
)

const refreshSecretBytes = 32

// RefreshTokenLedger owns the refresh token lifecycle. Records move from
// active to used or revoked exactly once and never come back; only a
// salted hash of each secret is stored, so lookups verify candidates
// instead of indexing by digest.
type RefreshTokenLedger struct {
	cfg    *config.AppConfig
	tokens port.RefreshTokenRepository
	audit  port.AuditPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewRefreshTokenLedger constructs a ledger instance.
func NewRefreshTokenLedger(
	cfg *config.AppConfig,
	tokens port.RefreshTokenRepository,
	audit port.AuditPublisher,
	logger *zap.Logger,
) *RefreshTokenLedger {
	if logger == nil {
		logger = zap.NewNop()
	}

	ledger := &RefreshTokenLedger{
		cfg:    cfg,
		tokens: tokens,
		audit:  audit,
		logger: logger,
	}
	ledger.now = func() time.Time { return time.Now().UTC() }
	return ledger
}

// WithClock overrides the ledger clock for deterministic tests.
func (l *RefreshTokenLedger) WithClock(clock func() time.Time) {
	if clock != nil {
		l.now = clock
	}
}

// Issue creates a new active record for the user and returns the plaintext
// secret. The plaintext is never retrievable afterwards.
func (l *RefreshTokenLedger) Issue(ctx context.Context, user *domain.User, ip, userAgent *string) (string, *domain.RefreshToken, error) {
	if user == nil {
		return "", nil, ErrUserNotFound
	}

	plaintext, err := security.GenerateSecureToken(refreshSecretBytes)
	if err != nil {
		return "", nil, fmt.Errorf("generate refresh secret: %w", err)
	}

	hash, err := security.HashSecret(plaintext)
	if err != nil {
		return "", nil, fmt.Errorf("hash refresh secret: %w", err)
	}

	now := l.now()
	record := domain.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hash,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(l.refreshTTL()),
	}

	if err := l.tokens.Save(ctx, record); err != nil {
		return "", nil, fmt.Errorf("save refresh token: %w", err)
	}

	return plaintext, &record, nil
}

// FindValid resolves a presented plaintext to its active record by
// verifying the secret against each candidate hash. Presenting a spent or
// unknown token fails identically with ErrInvalidRefreshToken; reuse of a
// spent record is logged and audited as possible theft before failing.
func (l *RefreshTokenLedger) FindValid(ctx context.Context, plaintext string) (*domain.RefreshToken, error) {
	if plaintext == "" {
		return nil, ErrInvalidRefreshToken
	}

	now := l.now()

	candidates, err := l.tokens.FindActive(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("find active refresh tokens: %w", err)
	}

	for i := range candidates {
		match, err := security.VerifySecret(plaintext, candidates[i].TokenHash)
		if err != nil {
			l.logger.Warn("refresh token hash verification failed",
				zap.String("token_id", candidates[i].ID),
				zap.Error(err),
			)
			continue
		}
		if match {
			return &candidates[i], nil
		}
	}

	l.flagReuse(ctx, plaintext, now)

	return nil, ErrInvalidRefreshToken
}

// Rotate exchanges the old record for a fresh one. The successor is issued
// first, then the old record transitions to used via a conditional update;
// losing that race revokes the successor and fails the exchange, so a
// token is exchangeable at most once.
func (l *RefreshTokenLedger) Rotate(ctx context.Context, old *domain.RefreshToken, user *domain.User, ip, userAgent *string) (string, *domain.RefreshToken, error) {
	if old == nil {
		return "", nil, ErrInvalidRefreshToken
	}

	plaintext, successor, err := l.Issue(ctx, user, ip, userAgent)
	if err != nil {
		return "", nil, err
	}

	now := l.now()

	if err := l.tokens.MarkUsed(ctx, old.ID, now, successor.ID); err != nil {
		if revokeErr := l.tokens.Revoke(ctx, successor.ID, now, "rotation conflict"); revokeErr != nil {
			l.logger.Error("revoke orphaned successor token failed",
				zap.String("token_id", successor.ID),
				zap.Error(revokeErr),
			)
		}

		if errors.Is(err, repository.ErrConflict) {
			l.logger.Warn("refresh token double spend detected",
				zap.String("token_id", old.ID),
				zap.String("user_id", old.UserID),
			)
			l.publishReuse(ctx, *old, now)
			return "", nil, ErrInvalidRefreshToken
		}

		return "", nil, fmt.Errorf("mark refresh token used: %w", err)
	}

	old.MarkUsed(now, successor.ID)

	return plaintext, successor, nil
}

// Revoke terminates a single record.
func (l *RefreshTokenLedger) Revoke(ctx context.Context, tokenID, reason string) error {
	if err := l.tokens.Revoke(ctx, tokenID, l.now(), reason); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidRefreshToken
		}
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAll terminates every non-revoked record owned by the user. Invoked
// on logout, password reset completion, MFA state changes, and user
// removal; callers must revoke before honoring any dependent state.
func (l *RefreshTokenLedger) RevokeAll(ctx context.Context, userID, reason string) (int, error) {
	count, err := l.tokens.RevokeAllForUser(ctx, userID, l.now(), reason)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens for user: %w", err)
	}

	if count > 0 {
		l.logger.Info("refresh tokens revoked",
			zap.String("user_id", userID),
			zap.String("reason", reason),
			zap.Int("count", count),
		)
	}

	return count, nil
}

// flagReuse scans spent records for a hash match so reuse of a used or
// revoked token is logged distinctly from garbage input. The caller still
// reports ErrInvalidRefreshToken either way.
func (l *RefreshTokenLedger) flagReuse(ctx context.Context, plaintext string, now time.Time) {
	spent, err := l.tokens.FindTerminated(ctx, now)
	if err != nil {
		l.logger.Warn("scan terminated refresh tokens failed", zap.Error(err))
		return
	}

	for i := range spent {
		match, err := security.VerifySecret(plaintext, spent[i].TokenHash)
		if err != nil || !match {
			continue
		}

		l.logger.Warn("spent refresh token presented",
			zap.String("token_id", spent[i].ID),
			zap.String("user_id", spent[i].UserID),
			zap.Bool("used", spent[i].UsedAt != nil),
			zap.Bool("revoked", spent[i].RevokedAt != nil),
		)
		l.publishReuse(ctx, spent[i], now)
		return
	}
}

func (l *RefreshTokenLedger) publishReuse(ctx context.Context, record domain.RefreshToken, at time.Time) {
	if l.audit == nil {
		return
	}

	event := domain.TokenReuseEvent{
		EventID:   uuid.NewString(),
		UserID:    record.UserID,
		TokenID:   record.ID,
		UsedAt:    record.UsedAt,
		RevokedAt: record.RevokedAt,
		At:        at,
	}

	if err := l.audit.PublishTokenReuse(ctx, event); err != nil {
		l.logger.Warn("publish token reuse event failed", zap.Error(err))
	}
}

func (l *RefreshTokenLedger) refreshTTL() time.Duration {
	if l.cfg != nil && l.cfg.JWT.RefreshTokenTTL > 0 {
		return l.cfg.JWT.RefreshTokenTTL
	}
	return 168 * time.Hour
}
