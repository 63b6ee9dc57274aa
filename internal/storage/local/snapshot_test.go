// Package local_test tests the local filesystem snapshot store.
package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/product-copy/internal/cache"
	"github.com/JakeFAU/product-copy/internal/product"
	"github.com/JakeFAU/product-copy/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{Path: filepath.Join(t.TempDir(), "cache.json")})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("MissingPath", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("CreatesDirectory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "cache")
		_, err := local.New(local.Config{Path: filepath.Join(dir, "cache.json")})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("ParentIsNotADirectory", func(t *testing.T) {
		tempFile, err := os.CreateTemp(t.TempDir(), "testfile")
		require.NoError(t, err)
		require.NoError(t, tempFile.Close())

		_, err = local.New(local.Config{Path: filepath.Join(tempFile.Name(), "cache.json")})
		assert.Error(t, err)
	})
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	store, err := local.New(local.Config{Path: filepath.Join(t.TempDir(), "cache.json")})
	require.NoError(t, err)

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	store, err := local.New(local.Config{Path: path})
	require.NoError(t, err)

	storedAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	snap := cache.Snapshot{
		"https://www.leonardo.vn/ao-thun": {Payload: "Tên sản phẩm: Áo Thun", StoredAt: storedAt},
	}
	require.NoError(t, store.Save(context.Background(), snap))

	// A fresh snapshotter on the same path sees the data, as after a restart.
	reopened, err := local.New(local.Config{Path: path})
	require.NoError(t, err)
	loaded, err := reopened.Load(context.Background())
	require.NoError(t, err)
	require.Contains(t, loaded, product.URL("https://www.leonardo.vn/ao-thun"))
	assert.Equal(t, "Tên sản phẩm: Áo Thun", loaded["https://www.leonardo.vn/ao-thun"].Payload)
	assert.True(t, storedAt.Equal(loaded["https://www.leonardo.vn/ao-thun"].StoredAt))

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".snapshot-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestLoadCorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	store, err := local.New(local.Config{Path: path})
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	assert.Error(t, err)
}
