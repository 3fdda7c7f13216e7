package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/valcriss/sovrane/internal/core/domain"
	"github.com/valcriss/sovrane/internal/infra/config"
	"github.com/valcriss/sovrane/internal/infra/security"
)

// AccessTokenClaims is the claim set embedded in self-issued access tokens.
type AccessTokenClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *AccessTokenClaims) UserID() string {
	return strings.TrimSpace(c.Subject)
}

// TokenIssuer mints RS256 access tokens and delegates refresh issuance to
// the ledger. Access tokens are stateless; nothing is persisted for them.
type TokenIssuer struct {
	cfg    *config.AppConfig
	keys   security.KeyProvider
	ledger *RefreshTokenLedger
	logger *zap.Logger
	now    func() time.Time
}

// NewTokenIssuer constructs a token issuer.
func NewTokenIssuer(
	cfg *config.AppConfig,
	keys security.KeyProvider,
	ledger *RefreshTokenLedger,
	logger *zap.Logger,
) *TokenIssuer {
	if logger == nil {
		logger = zap.NewNop()
	}

	issuer := &TokenIssuer{
		cfg:    cfg,
		keys:   keys,
		ledger: ledger,
		logger: logger,
	}
	issuer.now = func() time.Time { return time.Now().UTC() }
	return issuer
}

// WithClock overrides the issuer clock for deterministic tests.
func (i *TokenIssuer) WithClock(clock func() time.Time) {
	if clock != nil {
		i.now = clock
	}
}

// GenerateAccessToken signs a short-lived access token for the user.
func (i *TokenIssuer) GenerateAccessToken(user *domain.User) (string, time.Time, error) {
	if user == nil {
		return "", time.Time{}, ErrUserNotFound
	}
	if i.keys == nil {
		return "", time.Time{}, fmt.Errorf("key provider not configured")
	}

	key, err := i.keys.GetSigningKey()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("get signing key: %w", err)
	}

	now := i.now()
	expiresAt := now.Add(i.accessTTL())

	claims := AccessTokenClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    i.issuerName(),
			Audience:  jwt.ClaimStrings{i.issuerName()},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = i.keys.SigningKID()

	signed, err := token.SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}

	return signed, expiresAt, nil
}

// GenerateRefreshToken issues a refresh token through the ledger and
// returns the plaintext secret.
func (i *TokenIssuer) GenerateRefreshToken(ctx context.Context, user *domain.User, ip, userAgent *string) (string, *domain.RefreshToken, error) {
	if i.ledger == nil {
		return "", nil, fmt.Errorf("refresh token ledger not configured")
	}
	return i.ledger.Issue(ctx, user, ip, userAgent)
}

// ParseAccessToken validates a self-issued token and returns its claims.
// Expiry is reported as ErrExpiredAccessToken; every other rejection is
// collapsed into ErrInvalidAccessToken.
func (i *TokenIssuer) ParseAccessToken(token string) (*AccessTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidAccessToken
	}
	if i.keys == nil {
		return nil, fmt.Errorf("key provider not configured")
	}

	claims := &AccessTokenClaims{}

	options := []jwt.ParserOption{
		jwt.WithTimeFunc(i.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
	}
	if name := i.issuerName(); name != "" {
		options = append(options, jwt.WithIssuer(name), jwt.WithAudience(name))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		kid = strings.TrimSpace(kid)
		if kid == "" {
			return nil, fmt.Errorf("kid header not found")
		}
		return i.keys.GetVerificationKey(kid)
	}, options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}

	if parsed == nil || !parsed.Valid || claims.UserID() == "" {
		return nil, ErrInvalidAccessToken
	}

	return claims, nil
}

func (i *TokenIssuer) issuerName() string {
	if i.cfg == nil {
		return ""
	}
	return strings.TrimSpace(i.cfg.App.Name)
}

func (i *TokenIssuer) accessTTL() time.Duration {
	if i.cfg != nil && i.cfg.JWT.AccessTokenTTL > 0 {
		return i.cfg.JWT.AccessTokenTTL
	}
	return 15 * time.Minute
}
