package domain

import "strings"

// DegradationPolicyMode names the behavior when revocation caches cannot
// answer: fail open (lenient) or fail closed (strict).
type DegradationPolicyMode string

const (
	// DegradationPolicyModeLenient lets requests proceed when revocation
	// caches are cold or unavailable.
	DegradationPolicyModeLenient DegradationPolicyMode = "lenient"
	// DegradationPolicyModeStrict rejects requests whenever revocation data
	// cannot be confirmed.
	DegradationPolicyModeStrict DegradationPolicyMode = "strict"
)

// DegradationReason says why a revocation check could not be answered.
type DegradationReason string

const (
	// DegradationReasonCacheMiss: no entry exists for the session or token.
	DegradationReasonCacheMiss DegradationReason = "cache_miss"
	// DegradationReasonRevocationCacheUnavailable: the redis lookup failed
	// or timed out.
	DegradationReasonRevocationCacheUnavailable DegradationReason = "revocation_cache_unavailable"
)

// DegradationPolicy decides whether cache-dependent checks pass when the
// cache cannot answer.
type DegradationPolicy struct {
	mode DegradationPolicyMode
}

// NewDegradationPolicy builds a policy for the mode, treating anything but
// strict as lenient.
func NewDegradationPolicy(mode DegradationPolicyMode) DegradationPolicy {
	if mode != DegradationPolicyModeStrict {
		mode = DegradationPolicyModeLenient
	}
	return DegradationPolicy{mode: mode}
}

// ParseDegradationPolicyMode maps config text onto a supported mode.
func ParseDegradationPolicyMode(value string) DegradationPolicyMode {
	if strings.EqualFold(strings.TrimSpace(value), string(DegradationPolicyModeStrict)) {
		return DegradationPolicyModeStrict
	}
	return DegradationPolicyModeLenient
}

// Mode returns the underlying policy mode.
func (p DegradationPolicy) Mode() DegradationPolicyMode {
	return p.mode
}

// IsStrict indicates whether the policy rejects degraded states.
func (p DegradationPolicy) IsStrict() bool {
	return p.mode == DegradationPolicyModeStrict
}

// Allow reports whether a check may pass despite the supplied degradation reason.
func (p DegradationPolicy) Allow(_ DegradationReason) bool {
	return !p.IsStrict()
}
