// Package memory keeps cache snapshots in-memory for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/product-copy/internal/cache"
)

// Snapshotter stores the latest snapshot in-memory. Load and Save copy the
// mapping so callers never share state with the store.
type Snapshotter struct {
	mu    sync.RWMutex
	data  cache.Snapshot
	saves int
}

// NewSnapshotter creates an empty in-memory snapshotter.
func NewSnapshotter() *Snapshotter {
	return &Snapshotter{data: cache.Snapshot{}}
}

// Load returns a copy of the stored snapshot.
func (s *Snapshotter) Load(_ context.Context) (cache.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.data), nil
}

// Save replaces the stored snapshot with a copy of snap.
func (s *Snapshotter) Save(_ context.Context, snap cache.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = clone(snap)
	s.saves++
	return nil
}

// Saves reports how many times Save was called.
func (s *Snapshotter) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func clone(src cache.Snapshot) cache.Snapshot {
	dst := make(cache.Snapshot, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
