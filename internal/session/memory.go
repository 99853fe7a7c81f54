package session

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/nlqgate/nlqgate/internal/observability"
	"github.com/nlqgate/nlqgate/internal/storage"
)

const (
	DefaultShards      = 16
	DefaultMaxPerShard = 1024
	DefaultTTL         = 2 * time.Hour
	DefaultMaxEntries  = 200
	DefaultOwnerTTL    = 24 * time.Hour
)

type MemoryOptions struct {
	Shards      int
	MaxPerShard int
	// TTL counts from the last append.
	TTL time.Duration
	// MaxEntries caps a transcript; the oldest entries are dropped first.
	MaxEntries int
	// OnEvict receives every session that leaves the store, whether by
	// TTL, LRU pressure, Expire or Flush. It runs under the shard cache's
	// lock and must not block or call back into the store.
	OnEvict func(Session)
	// OwnerTTL is how long the subject of an evicted session is remembered.
	// Until then only that subject may re-create the id.
	OwnerTTL time.Duration
}

type shard struct {
	// mu serializes read-modify-write on one shard; the LRU has its own
	// lock for single operations.
	mu    sync.Mutex
	cache *expirable.LRU[string, Session]
	// owners maps evicted session ids to their subject.
	owners *expirable.LRU[string, string]
}

// MemoryStore spreads sessions over independently locked shards so that
// unrelated conversations do not contend.
type MemoryStore struct {
	shards     []*shard
	maxEntries int
	now        func() time.Time
}

func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	if opts.Shards <= 0 {
		opts.Shards = DefaultShards
	}
	if opts.MaxPerShard <= 0 {
		opts.MaxPerShard = DefaultMaxPerShard
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.OwnerTTL <= 0 {
		opts.OwnerTTL = DefaultOwnerTTL
	}

	store := &MemoryStore{
		shards:     make([]*shard, opts.Shards),
		maxEntries: opts.MaxEntries,
		now:        time.Now,
	}
	for i := range store.shards {
		sh := &shard{owners: expirable.NewLRU[string, string](opts.MaxPerShard*4, nil, opts.OwnerTTL)}
		sink := opts.OnEvict
		sh.cache = expirable.NewLRU[string, Session](opts.MaxPerShard, func(id string, s Session) {
			sh.owners.Add(id, s.Subject)
			if sink != nil {
				sink(s)
			}
		}, opts.TTL)
		store.shards[i] = sh
	}
	return store
}

func (m *MemoryStore) shardFor(id string) *shard {
	return m.shards[xxhash.Sum64String(id)%uint64(len(m.shards))]
}

func (m *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Session{}, ErrNotFound
	}
	s, ok := m.shardFor(id).cache.Get(id)
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) Append(_ context.Context, id, subject string, entries ...Entry) (Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	} else if err := storage.ValidateComponent(id, "session id"); err != nil {
		return Session{}, err
	}

	sh := m.shardFor(id)
	sh.mu.Lock()
	now := m.now().UTC()
	current, ok := sh.cache.Get(id)
	if !ok {
		// An expired entry may still be resident until the janitor runs;
		// removing it hands the old transcript to the eviction sink and
		// records its owner.
		sh.cache.Remove(id)
		if owner, known := sh.owners.Get(id); known && owner != subject {
			sh.mu.Unlock()
			return Session{}, fmt.Errorf("%w: %s", ErrSubjectMismatch, id)
		}
		sh.owners.Remove(id)
		current = Session{ID: id, Subject: subject, CreatedAt: now}
	} else if current.Subject != subject {
		sh.mu.Unlock()
		return Session{}, fmt.Errorf("%w: %s", ErrSubjectMismatch, id)
	}

	// Clip forces append to copy, leaving earlier snapshots untouched.
	next := current
	next.Entries = slices.Clip(current.Entries)
	for _, entry := range entries {
		if entry.At.IsZero() {
			entry.At = now
		}
		next.Entries = append(next.Entries, entry)
	}
	if over := len(next.Entries) - m.maxEntries; over > 0 {
		next.Entries = slices.Clone(next.Entries[over:])
	}
	next.UpdatedAt = now
	sh.cache.Add(id, next)
	sh.mu.Unlock()

	observability.SetSessionsActive(m.Len())
	return next, nil
}

func (m *MemoryStore) Expire(_ context.Context, id string) error {
	id = strings.TrimSpace(id)
	sh := m.shardFor(id)
	sh.mu.Lock()
	removed := sh.cache.Remove(id)
	sh.mu.Unlock()
	if !removed {
		return ErrNotFound
	}
	observability.SetSessionsActive(m.Len())
	return nil
}

// Len counts resident sessions. Entries past their TTL are included until
// the background janitor removes them.
func (m *MemoryStore) Len() int {
	total := 0
	for _, sh := range m.shards {
		total += sh.cache.Len()
	}
	return total
}

// Flush empties the store, handing every session to the eviction sink.
func (m *MemoryStore) Flush() {
	for _, sh := range m.shards {
		sh.mu.Lock()
		sh.cache.Purge()
		sh.mu.Unlock()
	}
	observability.SetSessionsActive(0)
}
