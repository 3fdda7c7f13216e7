package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
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

// EmailOTPService implements the mailed one-time-code second factor. The
// pending code and its attempt counter share a TTL in the cache; a
// successful verification deletes both.
type EmailOTPService struct {
	cfg    *config.AppConfig
	cache  port.Cache
	mailer port.Mailer
	audit  port.AuditPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewEmailOTPService constructs the email second-factor service.
func NewEmailOTPService(
	cfg *config.AppConfig,
	cache port.Cache,
	mailer port.Mailer,
	audit port.AuditPublisher,
	logger *zap.Logger,
) *EmailOTPService {
	if logger == nil {
		logger = zap.NewNop()
	}

	service := &EmailOTPService{
		cfg:    cfg,
		cache:  cache,
		mailer: mailer,
		audit:  audit,
		logger: logger,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the service clock for deterministic tests.
func (s *EmailOTPService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Generate caches a fresh numeric code for the user and dispatches it by
// mail. Dispatch failures are logged, never surfaced as auth failures.
func (s *EmailOTPService) Generate(ctx context.Context, user *domain.User) error {
	if user == nil {
		return ErrUserNotFound
	}

	code, err := security.GenerateNumericCode(s.codeLength())
	if err != nil {
		return fmt.Errorf("generate email otp: %w", err)
	}

	if err := s.cache.Set(ctx, emailCodeKey(user.ID), code, s.codeTTL()); err != nil {
		return fmt.Errorf("cache email otp: %w", err)
	}

	if s.mailer != nil {
		if err := s.mailer.SendOTPCode(ctx, user.Email, code); err != nil {
			s.logger.Warn("dispatch email otp failed",
				zap.String("email", logger.MaskEmail(user.Email)),
				zap.Error(err),
			)
		}
	}

	return nil
}

// Verify compares a presented code against the cached one. The attempt
// counter is consulted first and fails closed at the configured maximum
// without comparing; a match deletes both code and counter, a mismatch
// increments the counter and fails.
func (s *EmailOTPService) Verify(ctx context.Context, user *domain.User, code string) error {
	if user == nil {
		return ErrMFANotEnabled
	}
	if code == "" {
		return ErrInvalidMFACode
	}

	maxAttempts := s.maxAttempts()

	attempts, err := s.attemptCount(ctx, user.ID)
	if err != nil {
		return err
	}
	if attempts >= int64(maxAttempts) {
		return ErrTooManyAttempts
	}

	stored, err := s.cache.Get(ctx, emailCodeKey(user.ID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.recordFailure(ctx, user.ID, maxAttempts)
		}
		return fmt.Errorf("load email otp: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return s.recordFailure(ctx, user.ID, maxAttempts)
	}

	if err := s.cache.Delete(ctx, emailCodeKey(user.ID)); err != nil {
		s.logger.Warn("clear email otp failed", zap.Error(err))
	}
	if err := s.cache.Delete(ctx, emailAttemptKey(user.ID)); err != nil {
		s.logger.Warn("clear email otp attempt counter failed", zap.Error(err))
	}

	return nil
}

// Disable drops any pending code and counter for the user.
func (s *EmailOTPService) Disable(ctx context.Context, user *domain.User) error {
	if user == nil {
		return ErrUserNotFound
	}

	if err := s.cache.Delete(ctx, emailCodeKey(user.ID)); err != nil {
		return fmt.Errorf("clear email otp: %w", err)
	}
	if err := s.cache.Delete(ctx, emailAttemptKey(user.ID)); err != nil {
		return fmt.Errorf("clear email otp attempt counter: %w", err)
	}

	return nil
}

func (s *EmailOTPService) attemptCount(ctx context.Context, userID string) (int64, error) {
	value, err := s.cache.Get(ctx, emailAttemptKey(userID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("load email otp attempt counter: %w", err)
	}

	count, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse email otp attempt counter: %w", err)
	}

	return count, nil
}

func (s *EmailOTPService) recordFailure(ctx context.Context, userID string, maxAttempts int) error {
	count, err := s.cache.Increment(ctx, emailAttemptKey(userID), s.codeTTL())
	if err != nil {
		return fmt.Errorf("count email otp attempt: %w", err)
	}

	if count == int64(maxAttempts) {
		s.publishLockout(ctx, userID)
	}

	return ErrInvalidMFACode
}

func (s *EmailOTPService) publishLockout(ctx context.Context, userID string) {
	s.logger.Warn("email otp attempt limit reached", zap.String("user_id", userID))

	if s.audit == nil {
		return
	}

	event := domain.LockoutEvent{
		EventID: uuid.NewString(),
		UserID:  userID,
		Method:  string(domain.MFATypeEmail),
		At:      s.now(),
	}
	if err := s.audit.PublishLockout(ctx, event); err != nil {
		s.logger.Warn("publish lockout event failed", zap.Error(err))
	}
}

func (s *EmailOTPService) codeLength() int {
	if s.cfg != nil && s.cfg.MFA.EmailCodeLength > 0 {
		return s.cfg.MFA.EmailCodeLength
	}
	return 6
}

func (s *EmailOTPService) codeTTL() time.Duration {
	if s.cfg != nil && s.cfg.MFA.EmailCodeTTL > 0 {
		return s.cfg.MFA.EmailCodeTTL
	}
	return 5 * time.Minute
}

func (s *EmailOTPService) maxAttempts() int {
	if s.cfg != nil && s.cfg.MFA.EmailMaxAttempts > 0 {
		return s.cfg.MFA.EmailMaxAttempts
	}
	return 5
}

var _ MFAVerifier = (*EmailOTPService)(nil)
