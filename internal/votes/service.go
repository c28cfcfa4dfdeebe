package votes

import (
	"context"
	"fmt"

	"github.com/serroba/page-votes/internal/pow"
)

// Verifier checks a proof-of-work solution for a canonical URL.
type Verifier interface {
	Verify(canonicalURL, token string, nonce int64) (*pow.Token, error)
}

// Ballot is a vote submission as received from the client.
type Ballot struct {
	URL     string
	Like    bool
	Dislike bool
	Token   string
	Nonce   int64
}

// Direction returns the delta the ballot asks for. Dislike wins when both are set.
func (b *Ballot) Direction() (Delta, error) {
	switch {
	case b.Dislike:
		return Dislike, nil
	case b.Like:
		return Like, nil
	default:
		return 0, ErrMissingDirection
	}
}

// Tally is the state of one record after a read or an accepted vote.
type Tally struct {
	Key    Key
	Counts Counts
	Delta  Delta
}

// Service accepts votes only after their proof-of-work checks out.
type Service struct {
	store    Store
	verifier Verifier
	guard    pow.ReplayGuard
}

// NewService creates a new vote service. A nil guard leaves tokens reusable until expiry.
func NewService(store Store, verifier Verifier, guard pow.ReplayGuard) *Service {
	if guard == nil {
		guard = pow.NoReplayGuard{}
	}

	return &Service{
		store:    store,
		verifier: verifier,
		guard:    guard,
	}
}

// Counts returns the current totals for rawURL.
func (s *Service) Counts(ctx context.Context, rawURL string) (*Tally, error) {
	key, err := KeyFor(rawURL)
	if err != nil {
		return nil, err
	}

	counts, err := s.store.Read(ctx, key)
	if err != nil {
		return nil, err
	}

	return &Tally{Key: key, Counts: counts}, nil
}

// Record verifies the ballot and applies it. Nothing is written unless every check passes.
func (s *Service) Record(ctx context.Context, ballot *Ballot) (*Tally, error) {
	key, err := KeyFor(ballot.URL)
	if err != nil {
		return nil, err
	}

	delta, err := ballot.Direction()
	if err != nil {
		return nil, err
	}

	token, err := s.verifier.Verify(key.URL, ballot.Token, ballot.Nonce)
	if err != nil {
		return nil, err
	}

	fresh, err := s.guard.Claim(ctx, token.ClaimKey(), token.ExpiresAt())
	if err != nil {
		return nil, fmt.Errorf("%w: claim token: %w", ErrStorage, err)
	}

	if !fresh {
		return nil, pow.ErrTokenReused
	}

	counts, err := s.store.Increment(ctx, key, delta)
	if err != nil {
		return nil, err
	}

	return &Tally{Key: key, Counts: counts, Delta: delta}, nil
}
