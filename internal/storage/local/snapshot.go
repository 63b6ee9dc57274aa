// Package local persists cache snapshots as a JSON file on the local filesystem.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/product-copy/internal/cache"
)

// Config captures the parameters for the local snapshot file.
type Config struct {
	// Path is the snapshot file. Its directory is created when missing.
	Path string `mapstructure:"path" yaml:"path"`
}

// Snapshotter reads and rewrites a single snapshot file.
type Snapshotter struct {
	path string
}

// New creates a file-backed snapshotter.
func New(cfg Config) (*Snapshotter, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}
	dir := filepath.Dir(cfg.Path)

	// Check if the directory exists and is writable.
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
				return nil, fmt.Errorf("failed to create snapshot directory: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("failed to stat snapshot directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("snapshot directory path is not a directory")
	}

	testFile := filepath.Join(dir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("snapshot directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &Snapshotter{path: cfg.Path}, nil
}

// Load reads the snapshot file. A missing file is an empty snapshot.
func (s *Snapshotter) Load(_ context.Context) (cache.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return cache.Snapshot{}, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return cache.Decode(data)
}

// Save writes the snapshot to a temp file and renames it over the old one.
func (s *Snapshotter) Save(_ context.Context, snap cache.Snapshot) error {
	data, err := cache.Encode(snap)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
