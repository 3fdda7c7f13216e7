package usecase

import (
	"context"
	"crypto/rsa"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/valcriss/sovrane/internal/core/domain"
	"github.com/valcriss/sovrane/internal/core/port"
	"github.com/valcriss/sovrane/internal/repository"
)

// externalClaims is the subset of federated token claims the adapter reads.
type externalClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ExternalTokenProvider validates tokens minted by a third-party identity
// provider against a configured issuer and verification key, then resolves
// the subject against the local identity store. Credential and password
// operations are not supported here.
type ExternalTokenProvider struct {
	name   string
	issuer string
	key    *rsa.PublicKey
	users  port.UserRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewExternalTokenProvider constructs the external provider adapter.
func NewExternalTokenProvider(
	name, issuer string,
	key *rsa.PublicKey,
	users port.UserRepository,
	logger *zap.Logger,
) *ExternalTokenProvider {
	if logger == nil {
		logger = zap.NewNop()
	}

	provider := &ExternalTokenProvider{
		name:   strings.TrimSpace(name),
		issuer: strings.TrimSpace(issuer),
		key:    key,
		users:  users,
		logger: logger,
	}
	provider.now = func() time.Time { return time.Now().UTC() }
	return provider
}

// WithClock overrides the provider clock for deterministic tests.
func (p *ExternalTokenProvider) WithClock(clock func() time.Time) {
	if clock != nil {
		p.now = clock
	}
}

// Name identifies the configured provider.
func (p *ExternalTokenProvider) Name() string {
	return p.name
}

// Authenticate is not supported; the external provider owns the credentials.
func (p *ExternalTokenProvider) Authenticate(_ context.Context, _, _ string) (*domain.User, error) {
	return nil, ErrNotSupported
}

// AuthenticateWithProvider verifies a federated token when the requested
// provider name matches this adapter.
func (p *ExternalTokenProvider) AuthenticateWithProvider(ctx context.Context, providerName, token string) (*domain.User, error) {
	if !strings.EqualFold(strings.TrimSpace(providerName), p.name) {
		return nil, ErrNotSupported
	}
	return p.VerifyToken(ctx, token)
}

// RequestPasswordReset is not supported; resets happen at the provider.
func (p *ExternalTokenProvider) RequestPasswordReset(_ context.Context, _ string) error {
	return ErrNotSupported
}

// ResetPassword is not supported; resets happen at the provider.
func (p *ExternalTokenProvider) ResetPassword(_ context.Context, _, _ string) error {
	return ErrNotSupported
}

// VerifyToken validates the token signature, issuer, and expiry, then
// resolves the subject to a local active account.
func (p *ExternalTokenProvider) VerifyToken(ctx context.Context, token string) (*domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidAccessToken
	}
	if p.key == nil || p.issuer == "" {
		return nil, ErrNotSupported
	}

	claims := &externalClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return p.key, nil
	},
		jwt.WithTimeFunc(p.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(p.issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrInvalidAccessToken
	}

	identifier := strings.TrimSpace(claims.Email)
	if identifier == "" {
		identifier = strings.TrimSpace(claims.Subject)
	}
	if identifier == "" {
		return nil, ErrInvalidAccessToken
	}

	user, err := p.users.FindByEmail(ctx, identifier)
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

var _ AuthProvider = (*ExternalTokenProvider)(nil)
