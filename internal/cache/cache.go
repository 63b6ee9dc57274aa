// Package cache implements the product text cache: a TTL-checked mapping of
// normalized URL to extracted text, persisted as a whole-map snapshot.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/product-copy/internal/product"
)

// DefaultTTL is how long a stored entry is served.
const DefaultTTL = 24 * time.Hour

// Entry is one cached product text.
type Entry struct {
	Payload  string    `json:"payload"`
	StoredAt time.Time `json:"stored_at"`
}

// Snapshot is the full persisted mapping.
type Snapshot map[product.URL]Entry

// Snapshotter loads and saves the full mapping. A missing snapshot loads as an
// empty mapping with a nil error.
type Snapshotter interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// Config controls cache expiry.
type Config struct {
	TTL time.Duration
}

// Store implements product.Cache on top of a Snapshotter. Every Get and Put
// holds the lock for the whole load (-modify-save) cycle.
type Store struct {
	mu     sync.Mutex
	snap   Snapshotter
	ttl    time.Duration
	clock  product.Clock
	logger *zap.Logger
}

// New builds a Store.
func New(snap Snapshotter, cfg Config, clock product.Clock, logger *zap.Logger) (*Store, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshotter is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		snap:   snap,
		ttl:    ttl,
		clock:  clock,
		logger: logger,
	}, nil
}

// Get returns the payload stored for key if it has not expired.
func (s *Store) Get(ctx context.Context, key product.URL) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.snap.Load(ctx)
	if err != nil {
		return "", false, fmt.Errorf("%w: load snapshot: %v", product.ErrCacheUnavailable, err)
	}
	entry, ok := entries[key]
	if !ok || !s.fresh(entry) {
		return "", false, nil
	}
	return entry.Payload, true, nil
}

// Put replaces the entry for key and persists the snapshot.
func (s *Store) Put(ctx context.Context, key product.URL, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.snap.Load(ctx)
	if err != nil {
		s.logger.Warn("cache snapshot unreadable; rewriting from empty", zap.Error(err))
		entries = nil
	}
	if entries == nil {
		entries = Snapshot{}
	}
	entries[key] = Entry{Payload: value, StoredAt: s.clock.Now()}
	if err := s.snap.Save(ctx, entries); err != nil {
		return fmt.Errorf("%w: save snapshot: %v", product.ErrCacheUnavailable, err)
	}
	return nil
}

func (s *Store) fresh(entry Entry) bool {
	return s.clock.Now().Sub(entry.StoredAt) < s.ttl
}
