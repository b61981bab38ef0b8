package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// SQLiteSchema creates the response_cache table.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS response_cache (
	key TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_response_cache_expires ON response_cache(expires_at);
`

// SQLiteStore keeps msgpack-encoded entries in a SQLite table.
// expires_at is stored in unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store over an open database that already has SQLiteSchema applied.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load reads an entry regardless of expiry; the cache decides validity.
func (s *SQLiteStore) Load(key string) (Entry, bool, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM response_cache WHERE key = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to query response_cache: %w", err)
	}

	var e Entry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return Entry{}, false, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	return e, true, nil
}

// Save inserts or replaces an entry.
func (s *SQLiteStore) Save(e Entry) error {
	data, err := msgpack.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", e.Key, err)
	}

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO response_cache (key, data, expires_at) VALUES (?, ?, ?)",
		e.Key, data, e.ExpiresAt().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to store cache entry %s: %w", e.Key, err)
	}
	return nil
}

// Delete removes one entry.
func (s *SQLiteStore) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM response_cache WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	return nil
}

// DeleteMatching removes entries whose key contains pattern.
func (s *SQLiteStore) DeleteMatching(pattern string) (int64, error) {
	if pattern == "" {
		return 0, nil
	}
	result, err := s.db.Exec("DELETE FROM response_cache WHERE instr(key, ?) > 0", pattern)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate cache entries: %w", err)
	}
	return result.RowsAffected()
}

// DeleteExpired removes entries that expired before now.
func (s *SQLiteStore) DeleteExpired(now time.Time) (int64, error) {
	result, err := s.db.Exec("DELETE FROM response_cache WHERE expires_at < ?", now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	return result.RowsAffected()
}

// Clear removes every entry.
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec("DELETE FROM response_cache"); err != nil {
		return fmt.Errorf("failed to clear response_cache: %w", err)
	}
	return nil
}
