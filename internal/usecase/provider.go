package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/valcriss/sovrane/internal/core/domain"
)

// AuthProvider resolves actors from credentials or tokens. A provider that
// cannot support an operation fails with ErrNotSupported rather than
// silently succeeding.
type AuthProvider interface {
	Name() string
	Authenticate(ctx context.Context, identifier, secret string) (*domain.User, error)
	AuthenticateWithProvider(ctx context.Context, providerName, token string) (*domain.User, error)
	RequestPasswordReset(ctx context.Context, identifier string) error
	ResetPassword(ctx context.Context, resetToken, newSecret string) error
	VerifyToken(ctx context.Context, token string) (*domain.User, error)
}

// CompositeAuthProvider fans out over an ordered provider list. Credential
// and password-reset operations go to the primary provider only; token
// verification and federated authentication try every provider in order
// and fail only once all of them have failed, so one endpoint accepts
// locally-issued and federated tokens transparently.
type CompositeAuthProvider struct {
	providers []AuthProvider
	logger    *zap.Logger
}

// NewCompositeAuthProvider constructs a composite over the given providers.
// The first provider is the primary.
func NewCompositeAuthProvider(logger *zap.Logger, providers ...AuthProvider) *CompositeAuthProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompositeAuthProvider{providers: providers, logger: logger}
}

// Name identifies the composite.
func (c *CompositeAuthProvider) Name() string {
	return "composite"
}

// Authenticate delegates to the primary provider.
func (c *CompositeAuthProvider) Authenticate(ctx context.Context, identifier, secret string) (*domain.User, error) {
	primary, err := c.primary()
	if err != nil {
		return nil, err
	}
	return primary.Authenticate(ctx, identifier, secret)
}

// AuthenticateWithProvider tries each provider in order, absorbing
// per-provider failures. Exhaustion surfaces ErrInvalidCredentials.
func (c *CompositeAuthProvider) AuthenticateWithProvider(ctx context.Context, providerName, token string) (*domain.User, error) {
	for _, provider := range c.providers {
		user, err := provider.AuthenticateWithProvider(ctx, providerName, token)
		if err == nil {
			return user, nil
		}
		c.logger.Debug("provider authentication rejected",
			zap.String("provider", provider.Name()),
			zap.Error(err),
		)
	}
	return nil, ErrInvalidCredentials
}

// RequestPasswordReset delegates to the primary provider.
func (c *CompositeAuthProvider) RequestPasswordReset(ctx context.Context, identifier string) error {
	primary, err := c.primary()
	if err != nil {
		return err
	}
	return primary.RequestPasswordReset(ctx, identifier)
}

// ResetPassword delegates to the primary provider.
func (c *CompositeAuthProvider) ResetPassword(ctx context.Context, resetToken, newSecret string) error {
	primary, err := c.primary()
	if err != nil {
		return err
	}
	return primary.ResetPassword(ctx, resetToken, newSecret)
}

// VerifyToken tries each provider in order, absorbing per-provider
// failures. Exhaustion surfaces ErrInvalidAccessToken.
func (c *CompositeAuthProvider) VerifyToken(ctx context.Context, token string) (*domain.User, error) {
	for _, provider := range c.providers {
		user, err := provider.VerifyToken(ctx, token)
		if err == nil {
			return user, nil
		}
		c.logger.Debug("provider token verification rejected",
			zap.String("provider", provider.Name()),
			zap.Error(err),
		)
	}
	return nil, ErrInvalidAccessToken
}

func (c *CompositeAuthProvider) primary() (AuthProvider, error) {
	if len(c.providers) == 0 {
		return nil, ErrNotSupported
	}
	return c.providers[0], nil
}

var _ AuthProvider = (*CompositeAuthProvider)(nil)
