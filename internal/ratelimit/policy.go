package ratelimit

import "time"

// LimitConfig caps a client at Max requests per sliding Window.
type LimitConfig struct {
	Window time.Duration
	Max    int64
}

// Policy maps each scope to the limits enforced for it. A request must satisfy
// every limit of every scope it resolves to.
type Policy struct {
	Limits map[Scope][]LimitConfig
}

// PolicyBuilder assembles a Policy.
type PolicyBuilder struct {
	limits map[Scope][]LimitConfig
}

// NewPolicyBuilder creates an empty policy builder.
func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{limits: make(map[Scope][]LimitConfig)}
}

// AddLimit adds a max-per-window limit to scope. A scope may carry several windows,
// for example a burst limit and a sustained one.
func (b *PolicyBuilder) AddLimit(scope Scope, maxRequests int64, window time.Duration) *PolicyBuilder {
	b.limits[scope] = append(b.limits[scope], LimitConfig{Window: window, Max: maxRequests})

	return b
}

// Build returns the assembled policy.
func (b *PolicyBuilder) Build() *Policy {
	limits := make(map[Scope][]LimitConfig, len(b.limits))
	for scope, configs := range b.limits {
		limits[scope] = append([]LimitConfig(nil), configs...)
	}

	return &Policy{Limits: limits}
}

// DefaultPolicy is the policy the server runs with. Challenges get a burst limit on top
// of the per-minute one.
func DefaultPolicy() *Policy {
	return NewPolicyBuilder().
		AddLimit(ScopeGlobal, 1200, time.Minute).
		AddLimit(ScopeRead, 600, time.Minute).
		AddLimit(ScopeChallenge, 120, time.Minute).
		AddLimit(ScopeChallenge, 20, time.Second).
		AddLimit(ScopeWrite, 120, time.Minute).
		Build()
}
