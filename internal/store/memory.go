package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/serroba/page-votes/internal/votes"
)

var errStoreClosed = errors.New("store is shut down")

// ShardedMemoryStore is an in-memory implementation of votes.Store. Every shard key
// is owned by one goroutine that applies its requests in mailbox order, so writes to a
// domain are serialized without locks and different domains never wait on each other.
type ShardedMemoryStore struct {
	mu      sync.Mutex
	shards  map[string]*shard
	mailbox int
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

type recordKey struct {
	hash uint64
	url  string
}

type shardRequest struct {
	key   votes.Key
	delta votes.Delta // zero for reads
	reply chan votes.Counts
}

type shard struct {
	requests chan shardRequest
	records  map[recordKey]votes.Counts
}

// NewShardedMemoryStore creates a new in-memory store. mailbox is the per-shard queue length.
func NewShardedMemoryStore(mailbox int) *ShardedMemoryStore {
	if mailbox < 1 {
		mailbox = 1
	}

	return &ShardedMemoryStore{
		shards:  make(map[string]*shard),
		mailbox: mailbox,
		done:    make(chan struct{}),
	}
}

func (m *ShardedMemoryStore) Read(ctx context.Context, key votes.Key) (votes.Counts, error) {
	return m.send(ctx, key, 0)
}

func (m *ShardedMemoryStore) Increment(ctx context.Context, key votes.Key, delta votes.Delta) (votes.Counts, error) {
	if !delta.Valid() {
		return votes.Counts{}, votes.ErrInvalidDelta
	}

	return m.send(ctx, key, delta)
}

// Shards returns the number of shards created so far.
func (m *ShardedMemoryStore) Shards() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.shards)
}

// Ping reports whether the store still accepts requests.
func (m *ShardedMemoryStore) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errStoreClosed
	}

	return nil
}

// Shutdown stops every shard goroutine and waits for them to exit.
func (m *ShardedMemoryStore) Shutdown() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()

		return nil
	}

	m.closed = true
	close(m.done)
	m.mu.Unlock()

	m.wg.Wait()

	return nil
}

func (m *ShardedMemoryStore) send(ctx context.Context, key votes.Key, delta votes.Delta) (votes.Counts, error) {
	sh, err := m.shardFor(key.ShardKey)
	if err != nil {
		return votes.Counts{}, err
	}

	req := shardRequest{key: key, delta: delta, reply: make(chan votes.Counts, 1)}

	select {
	case sh.requests <- req:
	case <-ctx.Done():
		return votes.Counts{}, fmt.Errorf("%w: %w", votes.ErrStorage, ctx.Err())
	case <-m.done:
		return votes.Counts{}, fmt.Errorf("%w: %w", votes.ErrStorage, errStoreClosed)
	}

	// Once queued the request is applied even if ctx ends, so wait for the reply.
	select {
	case counts := <-req.reply:
		return counts, nil
	case <-m.done:
		return votes.Counts{}, fmt.Errorf("%w: %w", votes.ErrStorage, errStoreClosed)
	}
}

// shardFor returns the shard owning key, starting it on first reference.
func (m *ShardedMemoryStore) shardFor(key string) (*shard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("%w: %w", votes.ErrStorage, errStoreClosed)
	}

	sh, ok := m.shards[key]
	if !ok {
		sh = &shard{
			requests: make(chan shardRequest, m.mailbox),
			records:  make(map[recordKey]votes.Counts),
		}
		m.shards[key] = sh

		m.wg.Add(1)

		go m.run(sh)
	}

	return sh, nil
}

func (m *ShardedMemoryStore) run(sh *shard) {
	defer m.wg.Done()

	for {
		select {
		case <-m.done:
			return
		case req := <-sh.requests:
			rk := recordKey{hash: req.key.URLHash, url: req.key.URL}

			counts := sh.records[rk]
			if req.delta != 0 {
				counts = counts.Apply(req.delta)
				sh.records[rk] = counts
			}

			req.reply <- counts
		}
	}
}

// Compile-time check.
var _ votes.Store = (*ShardedMemoryStore)(nil)
