package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/valcriss/sovrane/internal/core/domain"
	"github.com/valcriss/sovrane/internal/core/port"
	"github.com/valcriss/sovrane/internal/infra/config"
	"github.com/valcriss/sovrane/internal/infra/logger"
	"github.com/valcriss/sovrane/internal/infra/security"
	"github.com/valcriss/sovrane/internal/repository"
)

const resetSecretBytes = 32

// PasswordResetService drives the forgot-password flow: a single-use
// hashed token is mailed out, and redeeming it changes the password and
// revokes every session the user holds.
type PasswordResetService struct {
	cfg    *config.AppConfig
	users  port.UserRepository
	resets port.ResetTokenRepository
	ledger *RefreshTokenLedger
	policy port.PasswordPolicyValidator
	hasher port.PasswordHasher
	mailer port.Mailer
	audit  port.AuditPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewPasswordResetService constructs the reset service.
func NewPasswordResetService(
	cfg *config.AppConfig,
	users port.UserRepository,
	resets port.ResetTokenRepository,
	ledger *RefreshTokenLedger,
	policy port.PasswordPolicyValidator,
	hasher port.PasswordHasher,
	mailer port.Mailer,
	audit port.AuditPublisher,
	log *zap.Logger,
) *PasswordResetService {
	if log == nil {
		log = zap.NewNop()
	}

	service := &PasswordResetService{
		cfg:    cfg,
		users:  users,
		resets: resets,
		ledger: ledger,
		policy: policy,
		hasher: hasher,
		mailer: mailer,
		audit:  audit,
		logger: log,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the service clock for deterministic tests.
func (s *PasswordResetService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// RequestPasswordReset issues a reset token for the identifier and mails
// it out. Unknown identifiers succeed silently so the endpoint does not
// reveal which accounts exist.
func (s *PasswordResetService) RequestPasswordReset(ctx context.Context, identifier string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil
	}

	user, err := s.users.FindByEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug("password reset requested for unknown identifier",
				zap.String("email", logger.MaskEmail(identifier)),
			)
			return nil
		}
		return err
	}

	plaintext, err := security.GenerateSecureToken(resetSecretBytes)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	now := s.now()
	record := domain.PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: security.HashLookupToken(plaintext),
		CreatedAt: now,
		ExpiresAt: now.Add(s.resetTTL()),
	}

	if err := s.resets.Save(ctx, record); err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}

	if s.mailer != nil {
		if err := s.mailer.SendPasswordResetLink(ctx, user.Email, plaintext); err != nil {
			s.logger.Warn("dispatch password reset mail failed",
				zap.String("email", logger.MaskEmail(user.Email)),
				zap.Error(err),
			)
		}
	}

	return nil
}

// ResetPassword redeems a reset token. The new password must satisfy the
// policy; the token is consumed exactly once, and completion revokes all
// refresh tokens so no pre-reset session survives.
func (s *PasswordResetService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	resetToken = strings.TrimSpace(resetToken)
	if resetToken == "" {
		return ErrInvalidResetToken
	}

	record, err := s.resets.FindByHash(ctx, security.HashLookupToken(resetToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("find reset token: %w", err)
	}

	now := s.now()
	if record.UsedAt != nil || record.IsExpired(now) {
		return ErrInvalidResetToken
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	if err := s.policy.Validate(newPassword, domain.PasswordContext{
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	if err := s.resets.Consume(ctx, record.ID, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("consume reset token: %w", err)
	}

	user.PasswordHash = hash
	user.PasswordAlgo = "argon2id"
	changedAt := now
	user.PasswordChangedAt = &changedAt

	if err := s.users.Update(ctx, *user); err != nil {
		return fmt.Errorf("persist new password: %w", err)
	}

	revoked, err := s.ledger.RevokeAll(ctx, user.ID, "password reset")
	if err != nil {
		return err
	}

	s.publishReset(ctx, user.ID, revoked, now)

	return nil
}

func (s *PasswordResetService) publishReset(ctx context.Context, userID string, revoked int, at time.Time) {
	if s.audit == nil {
		return
	}

	event := domain.PasswordResetEvent{
		EventID:         uuid.NewString(),
		UserID:          userID,
		SessionsRevoked: revoked,
		At:              at,
	}
	if err := s.audit.PublishPasswordReset(ctx, event); err != nil {
		s.logger.Warn("publish password reset event failed", zap.Error(err))
	}
}

func (s *PasswordResetService) resetTTL() time.Duration {
	if s.cfg != nil && s.cfg.JWT.ResetTokenTTL > 0 {
		return s.cfg.JWT.ResetTokenTTL
	}
	return time.Hour
}
