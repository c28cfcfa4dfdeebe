package pow

import (
	"context"
	"time"
)

// ReplayGuard records that a token has been spent. Claim returns false when the
// signature was already claimed and the claim has not yet lapsed. Claims only need
// to live until the token expires, after which the verifier rejects it anyway.
type ReplayGuard interface {
	Claim(ctx context.Context, signature string, until time.Time) (bool, error)
}

// NoReplayGuard accepts every claim. Solved tokens stay reusable until expiry.
type NoReplayGuard struct{}

func (NoReplayGuard) Claim(context.Context, string, time.Time) (bool, error) {
	return true, nil
}
