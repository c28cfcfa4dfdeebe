package ratelimit

import (
	"context"
	"fmt"
)

// Exceeded describes the first limit a request went over.
type Exceeded struct {
	Scope Scope
	Limit LimitConfig
	Count int64
}

func (e *Exceeded) Error() string {
	return fmt.Sprintf("rate limit exceeded: %s scope, %d/%d requests in %s",
		e.Scope, e.Count, e.Limit.Max, e.Limit.Window)
}

// PolicyLimiter enforces a Policy against a sliding-window Store.
type PolicyLimiter struct {
	store  Store
	policy *Policy
}

// NewPolicyLimiter creates a new policy-based rate limiter.
func NewPolicyLimiter(store Store, policy *Policy) *PolicyLimiter {
	return &PolicyLimiter{
		store:  store,
		policy: policy,
	}
}

// Allow records the request against every limit of scopes. It returns nil when the
// request is within all of them.
func (l *PolicyLimiter) Allow(ctx context.Context, clientKey string, scopes []Scope) (*Exceeded, error) {
	for _, scope := range scopes {
		exceeded, err := l.check(ctx, clientKey, scope, l.policy.Limits[scope])
		if err != nil || exceeded != nil {
			return exceeded, err
		}
	}

	return nil, nil
}

// AllowRoute applies limits declared on a single route instead of the policy.
// Counters are keyed by the route template, so every request to the route shares them.
func (l *PolicyLimiter) AllowRoute(ctx context.Context, clientKey, route string, limits []LimitConfig) (*Exceeded, error) {
	return l.check(ctx, clientKey, Scope("route:"+route), limits)
}

func (l *PolicyLimiter) check(ctx context.Context, clientKey string, scope Scope, limits []LimitConfig) (*Exceeded, error) {
	for _, limit := range limits {
		key := fmt.Sprintf("%s:%s:%d", clientKey, scope, limit.Window.Milliseconds())

		count, err := l.store.Record(ctx, key, limit.Window)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", scope, err)
		}

		if count > limit.Max {
			return &Exceeded{Scope: scope, Limit: limit, Count: count}, nil
		}
	}

	return nil, nil
}
