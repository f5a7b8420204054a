// Package store persists fetched catalog pages in SQLite so they survive restarts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"herbolive/internal/logging"
	"herbolive/internal/types"
)

// ErrNotFound is returned by Get when no entry exists under a key.
var ErrNotFound = errors.New("store: key not found")

// Entry is the persisted value of one page: the fetch time and its records.
type Entry struct {
	TS    int64         `json:"ts"` // unix milliseconds
	Items []types.Plant `json:"items"`
}

// Time returns the entry's timestamp.
func (e Entry) Time() time.Time {
	return time.UnixMilli(e.TS)
}

// PageStore is a key-value store of page entries backed by a single SQLite table.
type PageStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	closed bool
}

// Open initializes the SQLite database at the given path.
// ":memory:" opens a private in-memory database.
func Open(path string) (*PageStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "store.Open")
	defer timer.Stop()

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.StoreError("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		logging.StoreError("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &PageStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		logging.StoreError("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}
	logging.StoreDebug("Page store ready at %s", path)
	return s, nil
}

func (s *PageStore) initialize() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS pages (
		key TEXT PRIMARY KEY,
		ts INTEGER NOT NULL,
		items TEXT NOT NULL
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create pages table: %w", err)
	}
	return nil
}

// Path returns the database path.
func (s *PageStore) Path() string {
	return s.dbPath
}

// Get returns the entry stored under key, or ErrNotFound.
func (s *PageStore) Get(ctx context.Context, key string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		ts    int64
		items string
	)
	err := s.db.QueryRowContext(ctx, "SELECT ts, items FROM pages WHERE key = ?", key).Scan(&ts, &items)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read %s: %w", key, err)
	}

	entry := Entry{TS: ts}
	if err := json.Unmarshal([]byte(items), &entry.Items); err != nil {
		return Entry{}, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return entry, nil
}

// Put stores entry under key, replacing any previous value.
func (s *PageStore) Put(ctx context.Context, key string, entry Entry) error {
	data, err := json.Marshal(entry.Items)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if entry.TS == 0 {
		entry.TS = time.Now().UnixMilli()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO pages (key, ts, items) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET ts = excluded.ts, items = excluded.items",
		key, entry.TS, string(data))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes the entry under key. Missing keys are not an error.
func (s *PageStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM pages WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys lists the stored keys beginning with prefix, sorted.
func (s *PageStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT key FROM pages WHERE substr(key, 1, ?) = ? ORDER BY key", len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// PurgeOlderThan deletes entries fetched before cutoff and returns how many were removed.
func (s *PageStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM pages WHERE ts < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge pages: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database. Safe to call more than once.
func (s *PageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
