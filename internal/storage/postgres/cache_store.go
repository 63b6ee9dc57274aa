// Package postgres provides a Postgres-backed product cache.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/product-copy/internal/cache"
	"github.com/JakeFAU/product-copy/internal/product"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// CacheStoreConfig controls the Postgres connection pool used for cache rows.
type CacheStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	TTL             time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// CacheStore implements product.Cache with one row per URL. Expiry is checked
// on read; rows are never purged.
type CacheStore struct {
	pool  pool
	table string
	ttl   time.Duration
	clock product.Clock
}

// NewCacheStore connects to Postgres and creates the cache table if needed.
func NewCacheStore(ctx context.Context, cfg CacheStoreConfig, clock product.Clock) (*CacheStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewCacheStoreWithPool(p, cfg.Table, cfg.TTL, clock)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewCacheStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewCacheStoreWithPool(p pool, table string, ttl time.Duration, clock product.Clock) (*CacheStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if table == "" {
		table = "product_cache"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &CacheStore{pool: p, table: table, ttl: ttl, clock: clock}, nil
}

// EnsureSchema creates the cache table.
func (s *CacheStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	url TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	stored_at TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create cache table: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *CacheStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *CacheStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Get returns the cached payload for key unless it is missing or expired.
func (s *CacheStore) Get(ctx context.Context, key product.URL) (string, bool, error) {
	query := fmt.Sprintf(`SELECT payload, stored_at FROM %s WHERE url = $1`, s.table)
	var (
		payload  string
		storedAt time.Time
	)
	if err := s.pool.QueryRow(ctx, query, key.String()).Scan(&payload, &storedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: select cache row: %v", product.ErrCacheUnavailable, err)
	}
	if s.clock.Now().Sub(storedAt) >= s.ttl {
		return "", false, nil
	}
	return payload, true, nil
}

// Put upserts the payload for key with the current time.
func (s *CacheStore) Put(ctx context.Context, key product.URL, value string) error {
	query := fmt.Sprintf(`
INSERT INTO %s (url, payload, stored_at) VALUES ($1, $2, $3)
ON CONFLICT (url) DO UPDATE SET payload = EXCLUDED.payload, stored_at = EXCLUDED.stored_at`, s.table)
	if _, err := s.pool.Exec(ctx, query, key.String(), value, s.clock.Now()); err != nil {
		return fmt.Errorf("%w: upsert cache row: %v", product.ErrCacheUnavailable, err)
	}
	return nil
}
