package usecase

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/valcriss/sovrane/internal/core/domain"
	"github.com/valcriss/sovrane/internal/core/port"
	"github.com/valcriss/sovrane/internal/infra/logger"
	"github.com/valcriss/sovrane/internal/repository"
)

// LocalAuthProvider authenticates against the identity store using stored
// password hashes and verifies self-issued access tokens.
type LocalAuthProvider struct {
	users  port.UserRepository
	hasher port.PasswordHasher
	issuer *TokenIssuer
	resets *PasswordResetService
	logger *zap.Logger
}

// NewLocalAuthProvider constructs the local provider.
func NewLocalAuthProvider(
	users port.UserRepository,
	hasher port.PasswordHasher,
	issuer *TokenIssuer,
	resets *PasswordResetService,
	log *zap.Logger,
) *LocalAuthProvider {
	if log == nil {
		log = zap.NewNop()
	}

	return &LocalAuthProvider{
		users:  users,
		hasher: hasher,
		issuer: issuer,
		resets: resets,
		logger: log,
	}
}

// Name identifies the provider.
func (p *LocalAuthProvider) Name() string {
	return "local"
}

// Authenticate verifies the password against the stored hash and rejects
// suspended or archived accounts. Unknown identifiers and wrong passwords
// fail identically.
func (p *LocalAuthProvider) Authenticate(ctx context.Context, identifier, secret string) (*domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := p.users.FindByEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	match, err := p.hasher.Verify(secret, user.PasswordHash)
	if err != nil {
		p.logger.Warn("password verification failed",
			zap.String("email", logger.MaskEmail(identifier)),
			zap.Error(err),
		)
		return nil, ErrInvalidCredentials
	}
	if !match {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive() {
		return nil, ErrAccountSuspended
	}

	return user, nil
}

// AuthenticateWithProvider is not supported locally; federated tokens are
// handled by the external provider adapter.
func (p *LocalAuthProvider) AuthenticateWithProvider(_ context.Context, _, _ string) (*domain.User, error) {
	return nil, ErrNotSupported
}

// RequestPasswordReset delegates to the reset service.
func (p *LocalAuthProvider) RequestPasswordReset(ctx context.Context, identifier string) error {
	if p.resets == nil {
		return ErrNotSupported
	}
	return p.resets.RequestPasswordReset(ctx, identifier)
}

// ResetPassword delegates to the reset service.
func (p *LocalAuthProvider) ResetPassword(ctx context.Context, resetToken, newSecret string) error {
	if p.resets == nil {
		return ErrNotSupported
	}
	return p.resets.ResetPassword(ctx, resetToken, newSecret)
}

// VerifyToken validates a self-issued access token and resolves its
// subject against the identity store, rejecting non-active accounts.
func (p *LocalAuthProvider) VerifyToken(ctx context.Context, token string) (*domain.User, error) {
	if p.issuer == nil {
		return nil, ErrNotSupported
	}

	claims, err := p.issuer.ParseAccessToken(token)
	if err != nil {
		return nil, err
	}

	user, err := p.users.FindByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidAccessToken
		}
		return nil, err
	}

	if !user.IsActive() {
		return nil, ErrAccountSuspended
	}

	return user, nil
}

var _ AuthProvider = (*LocalAuthProvider)(nil)
