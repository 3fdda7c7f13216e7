package security

import (
	"fmt"

	"github.com/valcriss/sovrane/internal/core/domain"
)

const (
	defaultMinPasswordLength = 10
	defaultMaxPasswordLength = 128
	defaultMinZxcvbnScore    = 3
)

// PasswordPolicyConfig carries the externally configured complexity
// thresholds. Zero values fall back to the defaults.
type PasswordPolicyConfig struct {
	MinLength        int
	MaxLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSymbol    bool
	MinStrengthScore int
}

// DefaultPasswordPolicyConfig returns the built-in policy thresholds.
func DefaultPasswordPolicyConfig() PasswordPolicyConfig {
	return PasswordPolicyConfig{
		MinLength:        defaultMinPasswordLength,
		MaxLength:        defaultMaxPasswordLength,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
		RequireSymbol:    true,
		MinStrengthScore: defaultMinZxcvbnScore,
	}
}

// PasswordPolicy adapts the rule-chain validator to the domain-level
// policy interface, including contextual user inputs in strength checks.
type PasswordPolicy struct {
	cfg PasswordPolicyConfig
}

// NewPasswordPolicy builds a policy from the supplied thresholds.
func NewPasswordPolicy(cfg PasswordPolicyConfig) *PasswordPolicy {
	if cfg.MinLength <= 0 {
		cfg.MinLength = defaultMinPasswordLength
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = defaultMaxPasswordLength
	}
	return &PasswordPolicy{cfg: cfg}
}

// Validate applies the configured rules and raises the first violation.
func (p *PasswordPolicy) Validate(password string, ctx domain.PasswordContext) error {
	if p == nil {
		return fmt.Errorf("password policy not configured")
	}

	rules := []PasswordRule{
		MinLengthRule(p.cfg.MinLength),
		MaxLengthRule(p.cfg.MaxLength),
	}
	if p.cfg.RequireUppercase {
		rules = append(rules, RequireUppercaseRule())
	}
	if p.cfg.RequireLowercase {
		rules = append(rules, RequireLowercaseRule())
	}
	if p.cfg.RequireDigit {
		rules = append(rules, RequireDigitRule())
	}
	if p.cfg.RequireSymbol {
		rules = append(rules, RequireSymbolRule())
	}

	if p.cfg.MinStrengthScore > 0 {
		inputs := make([]string, 0, 3)
		if ctx.Email != "" {
			inputs = append(inputs, ctx.Email)
		}
		if ctx.FirstName != "" {
			inputs = append(inputs, ctx.FirstName)
		}
		if ctx.LastName != "" {
			inputs = append(inputs, ctx.LastName)
		}
		rules = append(rules, RequirePasswordStrengthRule(p.cfg.MinStrengthScore, inputs...))
	}

	return NewPasswordValidator(rules...).Validate(password)
}
