package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
)

// MovieCacheRepository caches catalog movie details keyed by canonical movie id.
//
// Entries older than ttl are treated as misses. A zero ttl never expires.
type MovieCacheRepository struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewMovieCacheRepository creates a new [MovieCacheRepository].
func NewMovieCacheRepository(db *sql.DB, ttl time.Duration) *MovieCacheRepository {
	return &MovieCacheRepository{db: db, ttl: ttl, now: time.Now}
}

// Get returns the cached movie or [shared.ErrCacheMiss].
func (r *MovieCacheRepository) Get(id models.MovieID) (*models.Movie, error) {
	var (
		payload   string
		fetchedAt time.Time
	)
	err := r.db.QueryRow("SELECT payload, fetched_at FROM movie_cache WHERE movie_id = ?", string(id)).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read movie cache: %w", err)
	}

	if r.ttl > 0 && r.now().Sub(fetchedAt) > r.ttl {
		return nil, shared.ErrCacheMiss
	}

	var m models.Movie
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, shared.ErrCacheMiss
	}
	return &m, nil
}

// Put stores m, replacing an existing entry.
func (r *MovieCacheRepository) Put(m models.Movie) error {
	if !m.Valid() {
		return shared.ErrInvalidMovie
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode movie: %w", err)
	}

	query := `
		INSERT INTO movie_cache (movie_id, payload, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(movie_id) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at
	`
	if _, err := r.db.Exec(query, string(m.Key()), string(payload), r.now().UTC()); err != nil {
		return fmt.Errorf("failed to cache movie: %w", err)
	}
	return nil
}

// Prune deletes entries older than the ttl and reports how many were removed.
func (r *MovieCacheRepository) Prune() (int64, error) {
	if r.ttl <= 0 {
		return 0, nil
	}
	result, err := r.db.Exec("DELETE FROM movie_cache WHERE fetched_at < ?", r.now().Add(-r.ttl).UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune movie cache: %w", err)
	}
	return result.RowsAffected()
}
