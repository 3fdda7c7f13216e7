package usecase

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/valcriss/sovrane/internal/core/domain"
	"github.com/valcriss/sovrane/internal/core/port"
	"github.com/valcriss/sovrane/internal/infra/config"
	"github.com/valcriss/sovrane/internal/infra/security"
)

const recoveryCodeBytes = 8

// TOTPService implements the time-based second factor. Secrets live
// encrypted on the user record and are decrypted only transiently during
// verification; attempt limiting and replay protection ride on the cache.
type TOTPService struct {
	cfg       *config.AppConfig
	users     port.UserRepository
	cache     port.Cache
	cipher    port.SecretCipher
	generator *security.TOTPGenerator
	audit     port.AuditPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewTOTPService constructs the TOTP second-factor service.
func NewTOTPService(
	cfg *config.AppConfig,
	users port.UserRepository,
	cache port.Cache,
	cipher port.SecretCipher,
	generator *security.TOTPGenerator,
	audit port.AuditPublisher,
	logger *zap.Logger,
) *TOTPService {
	if logger == nil {
		logger = zap.NewNop()
	}

	service := &TOTPService{
		cfg:       cfg,
		users:     users,
		cache:     cache,
		cipher:    cipher,
		generator: generator,
		audit:     audit,
		logger:    logger,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the service clock for deterministic tests.
func (s *TOTPService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// GenerateSecret enrolls the user: a fresh secret is encrypted and
// persisted on the account together with hashed recovery codes, and the
// plaintext material is returned once for provisioning.
func (s *TOTPService) GenerateSecret(ctx context.Context, user *domain.User) (*MFAEnrollment, error) {
	if user == nil {
		return nil, ErrUserNotFound
	}

	secret, uri, err := s.generator.GenerateSecret(user.Email)
	if err != nil {
		return nil, err
	}

	encrypted, err := s.cipher.Encrypt(secret)
	if err != nil {
		return nil, fmt.Errorf("encrypt totp secret: %w", err)
	}

	plainCodes, hashedCodes, err := s.generateRecoveryCodes()
	if err != nil {
		return nil, err
	}

	user.EnableMFA(domain.MFATypeTOTP, encrypted, hashedCodes)
	if err := s.users.Update(ctx, *user); err != nil {
		return nil, fmt.Errorf("persist totp enrollment: %w", err)
	}

	return &MFAEnrollment{
		Secret:          secret,
		ProvisioningURI: uri,
		RecoveryCodes:   plainCodes,
	}, nil
}

// Verify checks a presented code. The attempt counter is consumed before
// anything else and fails closed at the configured maximum regardless of
// code correctness; an accepted code is marked consumed for its remaining
// validity window so immediate replay fails.
func (s *TOTPService) Verify(ctx context.Context, user *domain.User, code string) error {
	if user == nil || user.MFASecret == nil {
		return ErrMFANotEnabled
	}
	if code == "" {
		return ErrInvalidMFACode
	}

	maxAttempts := s.maxAttempts()

	attempts, err := s.cache.Increment(ctx, totpAttemptKey(user.ID), s.attemptTTL())
	if err != nil {
		return fmt.Errorf("count totp attempt: %w", err)
	}

	if attempts > int64(maxAttempts) {
		if attempts == int64(maxAttempts)+1 {
			s.publishLockout(ctx, user.ID)
		}
		return ErrTooManyAttempts
	}

	secret, err := s.cipher.Decrypt(*user.MFASecret)
	if err != nil {
		return fmt.Errorf("decrypt totp secret: %w", err)
	}

	valid, err := s.generator.Validate(code, secret, s.now())
	if err != nil {
		return ErrInvalidMFACode
	}

	if !valid {
		if s.consumeRecoveryCode(ctx, user, code) {
			return s.resetAttempts(ctx, user.ID)
		}
		return ErrInvalidMFACode
	}

	fresh, err := s.cache.SetIfAbsent(ctx, totpReplayKey(user.ID, code), "1", s.generator.ReplayWindow())
	if err != nil {
		return fmt.Errorf("mark totp code consumed: %w", err)
	}
	if !fresh {
		s.logger.Warn("totp code replay rejected", zap.String("user_id", user.ID))
		return ErrInvalidMFACode
	}

	return s.resetAttempts(ctx, user.ID)
}

// Disable clears the stored secret, type, and recovery codes.
func (s *TOTPService) Disable(ctx context.Context, user *domain.User) error {
	if user == nil {
		return ErrUserNotFound
	}

	user.DisableMFA()
	if err := s.users.Update(ctx, *user); err != nil {
		return fmt.Errorf("persist mfa disable: %w", err)
	}

	if err := s.cache.Delete(ctx, totpAttemptKey(user.ID)); err != nil {
		s.logger.Warn("clear totp attempt counter failed", zap.Error(err))
	}

	return nil
}

// consumeRecoveryCode accepts a single-use fallback code, removing it from
// the account on success.
func (s *TOTPService) consumeRecoveryCode(ctx context.Context, user *domain.User, code string) bool {
	digest := security.HashLookupToken(code)

	for i, stored := range user.MFARecoveryCodes {
		if subtle.ConstantTimeCompare([]byte(stored), []byte(digest)) != 1 {
			continue
		}

		user.MFARecoveryCodes = append(user.MFARecoveryCodes[:i], user.MFARecoveryCodes[i+1:]...)
		if err := s.users.Update(ctx, *user); err != nil {
			s.logger.Error("persist recovery code consumption failed",
				zap.String("user_id", user.ID),
				zap.Error(err),
			)
			return false
		}

		s.logger.Info("recovery code consumed",
			zap.String("user_id", user.ID),
			zap.Int("remaining", len(user.MFARecoveryCodes)),
		)
		return true
	}

	return false
}

func (s *TOTPService) generateRecoveryCodes() (plain, hashed []string, err error) {
	count := 8
	if s.cfg != nil && s.cfg.MFA.RecoveryCodes > 0 {
		count = s.cfg.MFA.RecoveryCodes
	}

	plain = make([]string, 0, count)
	hashed = make([]string, 0, count)

	for i := 0; i < count; i++ {
		code, err := security.GenerateSecureToken(recoveryCodeBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("generate recovery code: %w", err)
		}
		plain = append(plain, code)
		hashed = append(hashed, security.HashLookupToken(code))
	}

	return plain, hashed, nil
}

func (s *TOTPService) resetAttempts(ctx context.Context, userID string) error {
	if err := s.cache.Delete(ctx, totpAttemptKey(userID)); err != nil {
		s.logger.Warn("reset totp attempt counter failed", zap.Error(err))
	}
	return nil
}

func (s *TOTPService) publishLockout(ctx context.Context, userID string) {
	s.logger.Warn("totp attempt limit reached", zap.String("user_id", userID))

	if s.audit == nil {
		return
	}

	event := domain.LockoutEvent{
		EventID: uuid.NewString(),
		UserID:  userID,
		Method:  string(domain.MFATypeTOTP),
		At:      s.now(),
	}
	if err := s.audit.PublishLockout(ctx, event); err != nil {
		s.logger.Warn("publish lockout event failed", zap.Error(err))
	}
}

func (s *TOTPService) maxAttempts() int {
	if s.cfg != nil && s.cfg.MFA.TOTPMaxAttempts > 0 {
		return s.cfg.MFA.TOTPMaxAttempts
	}
	return 5
}

func (s *TOTPService) attemptTTL() time.Duration {
	if s.cfg != nil && s.cfg.MFA.TOTPAttemptTTL > 0 {
		return s.cfg.MFA.TOTPAttemptTTL
	}
	return time.Minute
}

var _ MFAVerifier = (*TOTPService)(nil)
