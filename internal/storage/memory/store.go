package memory

import (
	"context"
	"time"

	"github.com/cwa-verification/tanserver/internal/core/domain"
	"github.com/cwa-verification/tanserver/pkg/cmap"
)

// Store provides in-memory TAN storage.
type Store struct {
	tans *cmap.Map[*domain.Tan]
}

// Option configures the Store.
type Option func(*storeOptions)

type storeOptions struct {
	shards int
}

// WithShardCount sets the number of map shards (power of 2).
func WithShardCount(n int) Option {
	return func(o *storeOptions) {
		o.shards = n
	}
}

// New creates a new in-memory store.
func New(opts ...Option) *Store {
	o := storeOptions{shards: cmap.DefaultShardCount}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{tans: cmap.NewWithShards[*domain.Tan](o.shards)}
}

// Get retrieves a record by hash.
func (s *Store) Get(_ context.Context, hash string) (*domain.Tan, error) {
	tan, ok := s.tans.Get(hash)
	if !ok {
		return nil, domain.ErrTanNotFound
	}
	// Return a clone to prevent external modification
	return tan.Clone(), nil
}

// Exists reports whether a record is stored.
func (s *Store) Exists(_ context.Context, hash string) (bool, error) {
	return s.tans.Has(hash), nil
}

// Create stores a new record unless the hash is taken.
func (s *Store) Create(_ context.Context, tan *domain.Tan) error {
	if err := tan.Validate(); err != nil {
		return err
	}
	if !s.tans.SetIfAbsent(tan.Hash, tan.Clone()) {
		return domain.ErrTanHashConflict
	}
	return nil
}

// Update replaces a record with optimistic locking.
func (s *Store) Update(_ context.Context, tan *domain.Tan, expectedVersion uint64) error {
	if err := tan.Validate(); err != nil {
		return err
	}

	return s.tans.Modify(tan.Hash, func(existing *domain.Tan, exists bool) (*domain.Tan, error) {
		if !exists {
			return nil, domain.ErrTanNotFound
		}
		if existing.Version != expectedVersion {
			return nil, domain.ErrTanVersionConflict
		}
		return tan.Clone(), nil
	})
}

// Delete removes a record. Absent records are ignored.
func (s *Store) Delete(_ context.Context, hash string) error {
	s.tans.Delete(hash)
	return nil
}

// DeleteCreatedBefore removes records created before cutoff.
func (s *Store) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int, error) {
	return s.tans.DeleteIf(func(_ string, tan *domain.Tan) bool {
		return tan.CreatedAt.Before(cutoff)
	}), nil
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	return s.tans.Count()
}

// Close releases nothing; it exists to satisfy io.Closer.
func (s *Store) Close() error {
	return nil
}
