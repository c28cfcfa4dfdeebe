package votes

import (
	"context"
	"errors"

	"github.com/serroba/page-votes/internal/pow"
)

var (
	ErrInvalidDelta     = errors.New("delta must be +1 (like) or -1 (dislike)")
	ErrMissingDirection = errors.New("missing like or dislike field")
	ErrStorage          = errors.New("storage failure")
)

// Delta is the change applied by one accepted vote.
type Delta int

const (
	Like    Delta = 1
	Dislike Delta = -1
)

// Valid reports whether d is Like or Dislike.
func (d Delta) Valid() bool {
	return d == Like || d == Dislike
}

func (d Delta) String() string {
	switch d {
	case Like:
		return "like"
	case Dislike:
		return "dislike"
	default:
		return "invalid"
	}
}

// Key addresses one vote record. ShardKey selects the single writer responsible
// for the record; URLHash and URL together identify it inside the shard.
type Key struct {
	ShardKey string
	URLHash  uint64
	URL      string
}

// KeyFor canonicalizes rawURL and derives its record key.
func KeyFor(rawURL string) (Key, error) {
	canonical, host, err := pow.CanonicalURL(rawURL)
	if err != nil {
		return Key{}, err
	}

	return Key{
		ShardKey: host,
		URLHash:  pow.CanonicalHash(canonical),
		URL:      canonical,
	}, nil
}

// Counts are the like and dislike totals of one record.
type Counts struct {
	Likes    int64
	Dislikes int64
}

// Apply returns c with delta added to the matching counter.
func (c Counts) Apply(delta Delta) Counts {
	if delta == Like {
		c.Likes++
	} else {
		c.Dislikes++
	}

	return c
}

// Store is the sharded counter store. Implementations must make Increment an atomic
// insert-or-add that returns the post-increment totals, linearizable per key.
type Store interface {
	// Read returns the counts for key, or zero counts if the record does not exist.
	Read(ctx context.Context, key Key) (Counts, error)

	// Increment adds one vote in the direction of delta and returns the new totals.
	// Deltas other than Like and Dislike fail with ErrInvalidDelta.
	Increment(ctx context.Context, key Key, delta Delta) (Counts, error)
}
