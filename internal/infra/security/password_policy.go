package security

import (
	"fmt"
	"strings"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
)

const (
	defaultMinPasswordLength = 8
	defaultMinZxcvbnScore    = 3
)

// PasswordPolicyConfig selects which rules the service enforces.
type PasswordPolicyConfig struct {
	MinLength         int
	ComplexityChecker string
}

// PasswordPolicy adapts the password validator to the domain-level policy interface.
type PasswordPolicy struct {
	factory func(inputs []string) *PasswordValidator
}

// NewPasswordPolicy builds the policy from configuration. Length is always
// enforced; the zxcvbn strength check joins only when the checker is enabled,
// fed with the account's own identifiers so a user's email or username scores
// poorly as a password.
func NewPasswordPolicy(cfg PasswordPolicyConfig) *PasswordPolicy {
	minLength := cfg.MinLength
	if minLength <= 0 {
		minLength = defaultMinPasswordLength
	}
	useZxcvbn := strings.EqualFold(cfg.ComplexityChecker, "zxcvbn")

	return &PasswordPolicy{
		factory: func(inputs []string) *PasswordValidator {
			rules := []PasswordRule{MinLengthRule(minLength)}
			if useZxcvbn {
				rules = append(rules, RequirePasswordStrengthRule(defaultMinZxcvbnScore, inputs...))
			}
			return NewPasswordValidator(rules...)
		},
	}
}

// NewPasswordPolicyFromValidator wraps an existing validator instance without contextual enhancements.
func NewPasswordPolicyFromValidator(validator *PasswordValidator) *PasswordPolicy {
	if validator == nil {
		validator = NewPasswordValidator(MinLengthRule(defaultMinPasswordLength))
	}
	return &PasswordPolicy{
		factory: func(_ []string) *PasswordValidator {
			return validator
		},
	}
}

// Validate applies the configured validator to ensure the password meets policy requirements.
func (p *PasswordPolicy) Validate(password string, ctx domain.PasswordContext) error {
	if p == nil || p.factory == nil {
		return fmt.Errorf("password policy not configured")
	}

	validator := p.factory(ctx.Inputs())
	if validator == nil {
		return fmt.Errorf("password validator not configured")
	}

	return validator.Validate(password)
}
