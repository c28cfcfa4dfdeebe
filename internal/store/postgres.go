package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/page-votes/internal/votes"
)

// PostgresStore is a PostgreSQL implementation of votes.Store.
// vote_counters is hash partitioned on shard_key so a domain always lives in one partition.
type PostgresStore struct {
	pool       *pgxpool.Pool
	partitions int
}

// NewPostgresStore creates a new PostgreSQL-backed vote store.
func NewPostgresStore(pool *pgxpool.Pool, partitions int) *PostgresStore {
	if partitions < 1 {
		partitions = 1
	}

	return &PostgresStore{pool: pool, partitions: partitions}
}

// EnsureSchema creates the counters table and its partitions if they do not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS vote_counters (
				shard_key TEXT   NOT NULL,
				url_hash  BIGINT NOT NULL,
				url       TEXT   NOT NULL,
				likes     BIGINT NOT NULL DEFAULT 0 CHECK (likes >= 0),
				dislikes  BIGINT NOT NULL DEFAULT 0 CHECK (dislikes >= 0),
				PRIMARY KEY (shard_key, url_hash, url)
			) PARTITION BY HASH (shard_key)
		`)
		if err != nil {
			return fmt.Errorf("create vote_counters: %w", err)
		}

		for i := range p.partitions {
			query := fmt.Sprintf(
				`CREATE TABLE IF NOT EXISTS vote_counters_p%d PARTITION OF vote_counters
				FOR VALUES WITH (MODULUS %d, REMAINDER %d)`,
				i, p.partitions, i,
			)

			if _, err := tx.Exec(ctx, query); err != nil {
				return fmt.Errorf("create partition %d: %w", i, err)
			}
		}

		return nil
	})
}

func (p *PostgresStore) Read(ctx context.Context, key votes.Key) (votes.Counts, error) {
	query := `
		SELECT likes, dislikes
		FROM vote_counters
		WHERE shard_key = $1 AND url_hash = $2 AND url = $3
	`

	var counts votes.Counts

	err := p.pool.QueryRow(ctx, query, key.ShardKey, int64(key.URLHash), key.URL).Scan(
		&counts.Likes,
		&counts.Dislikes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return votes.Counts{}, nil
		}

		return votes.Counts{}, fmt.Errorf("%w: %w", votes.ErrStorage, err)
	}

	return counts, nil
}

func (p *PostgresStore) Increment(ctx context.Context, key votes.Key, delta votes.Delta) (votes.Counts, error) {
	if !delta.Valid() {
		return votes.Counts{}, votes.ErrInvalidDelta
	}

	// A single statement: the row lock taken by ON CONFLICT serializes writers per record.
	query := `
		INSERT INTO vote_counters (shard_key, url_hash, url, likes, dislikes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (shard_key, url_hash, url) DO UPDATE
		SET likes = vote_counters.likes + EXCLUDED.likes,
		    dislikes = vote_counters.dislikes + EXCLUDED.dislikes
		RETURNING likes, dislikes
	`

	added := votes.Counts{}.Apply(delta)

	var counts votes.Counts

	err := p.pool.QueryRow(ctx, query,
		key.ShardKey,
		int64(key.URLHash),
		key.URL,
		added.Likes,
		added.Dislikes,
	).Scan(&counts.Likes, &counts.Dislikes)
	if err != nil {
		return votes.Counts{}, fmt.Errorf("%w: %w", votes.ErrStorage, err)
	}

	return counts, nil
}

// Ping checks database connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Compile-time check.
var _ votes.Store = (*PostgresStore)(nil)
