package security

import (
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod     = 30
	totpDigits     = otp.DigitsSix
	totpSkew       = 1
	totpSecretSize = 20
)

// TOTPGenerator wraps RFC 6238 code generation and validation around a
// per-service issuer label.
type TOTPGenerator struct {
	issuer string
}

// NewTOTPGenerator constructs a generator labelling enrollments with the
// supplied issuer.
func NewTOTPGenerator(issuer string) *TOTPGenerator {
	if issuer == "" {
		issuer = "sovrane"
	}
	return &TOTPGenerator{issuer: issuer}
}

// GenerateSecret creates a fresh base32 secret and its otpauth provisioning
// URI for the supplied account.
func (g *TOTPGenerator) GenerateSecret(account string) (secret, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      g.issuer,
		AccountName: account,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      totpDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", fmt.Errorf("totp: generate secret: %w", err)
	}

	return key.Secret(), key.URL(), nil
}

// Validate checks a code against the secret, accepting the standard
// adjacent-step tolerance around the supplied moment.
func (g *TOTPGenerator) Validate(code, secret string, at time.Time) (bool, error) {
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, fmt.Errorf("totp: validate: %w", err)
	}
	return ok, nil
}

// ReplayWindow returns how long an accepted code must stay consumed: the
// remainder of its own step plus the accepted skew on either side.
func (g *TOTPGenerator) ReplayWindow() time.Duration {
	return time.Duration(totpPeriod*(2*totpSkew+1)) * time.Second
}
