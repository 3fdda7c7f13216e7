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
	"github.com/valcriss/sovrane/internal/repository"
)

// SessionTokens is an issued access/refresh pair.
type SessionTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// LoginResult is the outcome of an authentication attempt. When a second
// factor gates completion, MFARequired is set and no tokens are issued.
type LoginResult struct {
	User        *domain.User
	MFARequired bool
	MFAType     *domain.MFAType
	Tokens      *SessionTokens
}

// SessionService orchestrates login, MFA completion, token refresh, and
// session-terminating state changes.
type SessionService struct {
	cfg         *config.AppConfig
	users       port.UserRepository
	providers   AuthProvider
	issuer      *TokenIssuer
	ledger      *RefreshTokenLedger
	permissions *PermissionEngine
	totp        *TOTPService
	email       *EmailOTPService
	audit       port.AuditPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewSessionService constructs the session orchestrator.
func NewSessionService(
	cfg *config.AppConfig,
	users port.UserRepository,
	providers AuthProvider,
	issuer *TokenIssuer,
	ledger *RefreshTokenLedger,
	permissions *PermissionEngine,
	totp *TOTPService,
	email *EmailOTPService,
	audit port.AuditPublisher,
	log *zap.Logger,
) *SessionService {
	if log == nil {
		log = zap.NewNop()
	}

	service := &SessionService{
		cfg:         cfg,
		users:       users,
		providers:   providers,
		issuer:      issuer,
		ledger:      ledger,
		permissions: permissions,
		totp:        totp,
		email:       email,
		audit:       audit,
		logger:      log,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the service clock for deterministic tests.
func (s *SessionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Login authenticates a credential pair. Accounts with a second factor
// receive a challenge result without tokens; a pending email code is
// dispatched on the spot.
func (s *SessionService) Login(ctx context.Context, identifier, password string, ip, userAgent *string) (*LoginResult, error) {
	user, err := s.providers.Authenticate(ctx, identifier, password)
	if err != nil {
		s.publishLogin(ctx, "", identifier, false, false, ip, userAgent)
		return nil, err
	}

	return s.completeAuthentication(ctx, user, identifier, ip, userAgent)
}

// LoginWithProvider authenticates a federated token through the provider
// chain, then follows the same tail as Login.
func (s *SessionService) LoginWithProvider(ctx context.Context, providerName, token string, ip, userAgent *string) (*LoginResult, error) {
	user, err := s.providers.AuthenticateWithProvider(ctx, providerName, token)
	if err != nil {
		s.publishLogin(ctx, "", providerName, false, false, ip, userAgent)
		return nil, err
	}

	return s.completeAuthentication(ctx, user, user.Email, ip, userAgent)
}

func (s *SessionService) completeAuthentication(ctx context.Context, user *domain.User, identifier string, ip, userAgent *string) (*LoginResult, error) {
	if user.HasSecondFactor() {
		if *user.MFAType == domain.MFATypeEmail && s.email != nil {
			if err := s.email.Generate(ctx, user); err != nil {
				return nil, err
			}
		}

		s.publishLogin(ctx, user.ID, identifier, true, true, ip, userAgent)

		return &LoginResult{User: user, MFARequired: true, MFAType: user.MFAType}, nil
	}

	return s.establishSession(ctx, user, identifier, ip, userAgent)
}

// VerifyMFA completes a challenged login by dispatching the code to the
// variant matching the user's stored mfa type.
func (s *SessionService) VerifyMFA(ctx context.Context, identifier, code string, ip, userAgent *string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive() {
		return nil, ErrAccountSuspended
	}

	verifier, err := s.verifierFor(user)
	if err != nil {
		return nil, err
	}

	if err := verifier.Verify(ctx, user, code); err != nil {
		return nil, err
	}

	return s.establishSession(ctx, user, identifier, ip, userAgent)
}

func (s *SessionService) establishSession(ctx context.Context, user *domain.User, identifier string, ip, userAgent *string) (*LoginResult, error) {
	user.Touch(s.now())
	if err := s.users.Update(ctx, *user); err != nil {
		return nil, fmt.Errorf("persist login timestamps: %w", err)
	}

	tokens, err := s.issueTokens(ctx, user, ip, userAgent)
	if err != nil {
		return nil, err
	}

	s.publishLogin(ctx, user.ID, identifier, true, false, ip, userAgent)

	return &LoginResult{User: user, Tokens: tokens}, nil
}

// Refresh exchanges a valid refresh token for a fresh pair. Any failure
// along the way issues nothing; a suspended or archived owner is reported
// as such after the token itself checks out.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string, ip, userAgent *string) (*SessionTokens, error) {
	record, err := s.ledger.FindValid(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	if !user.IsActive() {
		return nil, ErrAccountSuspended
	}

	accessToken, accessExpiresAt, err := s.issuer.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}

	plaintext, successor, err := s.ledger.Rotate(ctx, record, user, ip, userAgent)
	if err != nil {
		return nil, err
	}

	now := s.now()
	activity := now
	user.LastActivity = &activity
	if err := s.users.Update(ctx, *user); err != nil {
		s.logger.Warn("persist refresh activity failed",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}

	s.publishRefreshed(ctx, user.ID, record.ID, successor.ID, ip, now)

	return &SessionTokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     plaintext,
		RefreshExpiresAt: successor.ExpiresAt,
	}, nil
}

// Logout revokes every refresh token the user holds.
func (s *SessionService) Logout(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserNotFound
	}

	_, err := s.ledger.RevokeAll(ctx, userID, "logout")
	return err
}

// EnableMFA enrolls the actor in the requested second factor. The
// permission check runs before any state change; completion revokes every
// session so pre-enrollment tokens cannot bypass the new factor.
func (s *SessionService) EnableMFA(ctx context.Context, actor *domain.User, kind domain.MFAType) (*MFAEnrollment, error) {
	if actor == nil {
		return nil, ErrUserNotFound
	}
	if err := s.permissions.Check(actor, PermissionManageMFA, nil); err != nil {
		return nil, err
	}
	if actor.HasSecondFactor() {
		return nil, ErrMFAAlreadyEnabled
	}

	var enrollment *MFAEnrollment

	switch kind {
	case domain.MFATypeTOTP:
		result, err := s.totp.GenerateSecret(ctx, actor)
		if err != nil {
			return nil, err
		}
		enrollment = result
	case domain.MFATypeEmail:
		actor.MFAEnabled = true
		kindCopy := domain.MFATypeEmail
		actor.MFAType = &kindCopy
		actor.MFASecret = nil
		actor.MFARecoveryCodes = nil
		if err := s.users.Update(ctx, *actor); err != nil {
			return nil, fmt.Errorf("persist mfa enrollment: %w", err)
		}
		enrollment = &MFAEnrollment{}
	default:
		return nil, ErrNotSupported
	}

	revoked, err := s.ledger.RevokeAll(ctx, actor.ID, "mfa enabled")
	if err != nil {
		return nil, err
	}

	s.publishMFAChanged(ctx, actor.ID, string(kind), true, revoked)

	return enrollment, nil
}

// DisableMFA clears the actor's second factor. The permission check runs
// first; completion revokes every session.
func (s *SessionService) DisableMFA(ctx context.Context, actor *domain.User) error {
	if actor == nil {
		return ErrUserNotFound
	}
	if err := s.permissions.Check(actor, PermissionManageMFA, nil); err != nil {
		return err
	}
	if !actor.MFAEnabled || actor.MFAType == nil {
		return ErrMFANotEnabled
	}

	kind := *actor.MFAType

	switch kind {
	case domain.MFATypeTOTP:
		if err := s.totp.Disable(ctx, actor); err != nil {
			return err
		}
	case domain.MFATypeEmail:
		if err := s.email.Disable(ctx, actor); err != nil {
			return err
		}
		actor.DisableMFA()
		if err := s.users.Update(ctx, *actor); err != nil {
			return fmt.Errorf("persist mfa disable: %w", err)
		}
	default:
		return ErrNotSupported
	}

	revoked, err := s.ledger.RevokeAll(ctx, actor.ID, "mfa disabled")
	if err != nil {
		return err
	}

	s.publishMFAChanged(ctx, actor.ID, string(kind), false, revoked)

	return nil
}

func (s *SessionService) verifierFor(user *domain.User) (MFAVerifier, error) {
	if !user.HasSecondFactor() {
		return nil, ErrMFANotEnabled
	}

	switch *user.MFAType {
	case domain.MFATypeTOTP:
		if s.totp == nil {
			return nil, ErrNotSupported
		}
		return s.totp, nil
	case domain.MFATypeEmail:
		if s.email == nil {
			return nil, ErrNotSupported
		}
		return s.email, nil
	default:
		return nil, ErrMFANotEnabled
	}
}

func (s *SessionService) issueTokens(ctx context.Context, user *domain.User, ip, userAgent *string) (*SessionTokens, error) {
	accessToken, accessExpiresAt, err := s.issuer.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}

	plaintext, record, err := s.issuer.GenerateRefreshToken(ctx, user, ip, userAgent)
	if err != nil {
		return nil, err
	}

	return &SessionTokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     plaintext,
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

func (s *SessionService) publishLogin(ctx context.Context, userID, identifier string, succeeded, mfaPending bool, ip, userAgent *string) {
	if s.audit == nil {
		return
	}

	event := domain.LoginEvent{
		EventID:    uuid.NewString(),
		UserID:     userID,
		Identifier: logger.MaskEmail(identifier),
		Succeeded:  succeeded,
		MFAPending: mfaPending,
		IPAddress:  ip,
		UserAgent:  userAgent,
		At:         s.now(),
	}
	if err := s.audit.PublishLogin(ctx, event); err != nil {
		s.logger.Warn("publish login event failed", zap.Error(err))
	}
}

func (s *SessionService) publishRefreshed(ctx context.Context, userID, oldTokenID, newTokenID string, ip *string, at time.Time) {
	if s.audit == nil {
		return
	}

	event := domain.TokenRefreshedEvent{
		EventID:    uuid.NewString(),
		UserID:     userID,
		OldTokenID: oldTokenID,
		NewTokenID: newTokenID,
		IPAddress:  ip,
		At:         at,
	}
	if err := s.audit.PublishTokenRefreshed(ctx, event); err != nil {
		s.logger.Warn("publish token refreshed event failed", zap.Error(err))
	}
}

func (s *SessionService) publishMFAChanged(ctx context.Context, userID, kind string, enabled bool, revoked int) {
	if s.audit == nil {
		return
	}

	event := domain.MFAStateChangedEvent{
		EventID:         uuid.NewString(),
		UserID:          userID,
		Type:            kind,
		Enabled:         enabled,
		SessionsRevoked: revoked,
		At:              s.now(),
	}
	if err := s.audit.PublishMFAStateChanged(ctx, event); err != nil {
		s.logger.Warn("publish mfa state event failed", zap.Error(err))
	}
}
