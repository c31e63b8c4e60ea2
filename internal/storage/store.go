// Package storage is the durable store of expenses and the settings row.
// It is the only source of truth; every other component derives its state
// from the live queries exposed here.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	applog "expensetracker/internal/log"

	_ "modernc.org/sqlite"
)

// Options configures Open.
type Options struct {
	Path      string
	CacheSize int           // range query cache entries; 0 disables the cache
	CacheTTL  time.Duration // defaults to 5m
	Logger    *slog.Logger  // defaults to slog.Default()
}

type Store struct {
	db     *sql.DB
	hub    *changeHub
	cache  *cache.LRUCache[[]core.Expense]
	logger *slog.Logger

	// writeMu serializes every write; a write and its change signal complete
	// before the next write starts.
	writeMu sync.Mutex

	mu      sync.Mutex
	closed  bool
	closing chan struct{}
	streams sync.WaitGroup
}

// DSN returns the driver data source name used for path.
func DSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

// Open opens (creating if needed) the database at opts.Path and migrates it.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("open store: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, fault("create db directory", err)
	}

	dsn := DSN(opts.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fault("open sqlite database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fault("ping database", err)
	}
	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fault("migrate database", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		db:      db,
		hub:     newChangeHub(),
		logger:  logger,
		closing: make(chan struct{}),
	}
	if opts.CacheSize > 0 {
		ttl := opts.CacheTTL
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		s.cache = cache.NewLRUCache[[]core.Expense](opts.CacheSize, ttl)
	}

	s.logger.InfoContext(ctx, "Store opened",
		applog.FieldPath, opts.Path,
		"cache_size", opts.CacheSize)

	return s, nil
}

// RangeCache returns the range query cache, or nil when disabled.
func (s *Store) RangeCache() cache.Cleaner {
	if s.cache == nil {
		return nil
	}
	return s.cache
}

// Close ends every live query and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.closing)
	s.mu.Unlock()

	s.streams.Wait()
	return s.db.Close()
}

// startStream registers a live query goroutine. It reports false once the
// store is closed.
func (s *Store) startStream() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.streams.Add(1)
	return true
}

// write runs fn under the write lock and, when fn reports a change, wakes
// the live queries on table after fn has committed.
func (s *Store) write(ctx context.Context, op, table string, fn func(context.Context) (bool, error)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return fault(op, ErrClosed)
	}

	changed, err := fn(ctx)
	if err != nil {
		return fault(op, err)
	}
	if changed {
		s.hub.publish(table)
	}
	return nil
}
