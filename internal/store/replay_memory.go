package store

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/page-votes/internal/pow"
)

// ReplayMemoryStore is an in-memory implementation of pow.ReplayGuard.
type ReplayMemoryStore struct {
	mu     sync.Mutex
	claims map[string]time.Time
	now    func() time.Time
}

// NewReplayMemoryStore creates a new in-memory replay guard.
func NewReplayMemoryStore() *ReplayMemoryStore {
	return &ReplayMemoryStore{
		claims: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (s *ReplayMemoryStore) Claim(_ context.Context, signature string, until time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	// Prune lapsed claims
	for sig, exp := range s.claims {
		if !exp.After(now) {
			delete(s.claims, sig)
		}
	}

	if _, taken := s.claims[signature]; taken {
		return false, nil
	}

	// Keep the claim through the expiry second the verifier still accepts.
	s.claims[signature] = until.Add(time.Second)

	return true, nil
}

// Compile-time check.
var _ pow.ReplayGuard = (*ReplayMemoryStore)(nil)
