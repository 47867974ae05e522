package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LocalCacheRepository implements [models.LocalCache] over the local_cache table.
type LocalCacheRepository struct {
	db *sql.DB
}

// NewLocalCacheRepository creates a new [LocalCacheRepository] with the given database connection
func NewLocalCacheRepository(db *sql.DB) *LocalCacheRepository {
	return &LocalCacheRepository{db: db}
}

// Get returns the value stored under key. ok is false when the key is absent.
func (r *LocalCacheRepository) Get(key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM local_cache WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (r *LocalCacheRepository) Set(key, value string) error {
	query := `
		INSERT INTO local_cache (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := r.db.Exec(query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (r *LocalCacheRepository) Remove(key string) error {
	if _, err := r.db.Exec("DELETE FROM local_cache WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to remove cache entry %s: %w", key, err)
	}
	return nil
}

// Keys lists cached keys with the given prefix, most recently written first.
func (r *LocalCacheRepository) Keys(prefix string) ([]string, error) {
	rows, err := r.db.Query(
		"SELECT key FROM local_cache WHERE key LIKE ? ESCAPE '\\' ORDER BY updated_at DESC",
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan cache key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return keys, nil
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
