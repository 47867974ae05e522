package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
)

// SessionRepository persists the single signed-in session so a new process can restore it.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Save replaces the stored session.
func (r *SessionRepository) Save(s models.Session) error {
	if s.Identity.UID == "" || s.IDToken == "" {
		return fmt.Errorf("%w: session requires uid and id token", shared.ErrInvalidInput)
	}

	query := `
		INSERT INTO sessions (id, uid, email, display_name, provider_id, id_token, refresh_token, expires_at, created_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			uid = excluded.uid,
			email = excluded.email,
			display_name = excluded.display_name,
			provider_id = excluded.provider_id,
			id_token = excluded.id_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at
	`

	_, err := r.db.Exec(query,
		s.Identity.UID, s.Identity.Email, s.Identity.DisplayName, s.Identity.ProviderID,
		s.IDToken, s.RefreshToken, s.ExpiresAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load returns the stored session or [shared.ErrNoSession].
func (r *SessionRepository) Load() (*models.Session, error) {
	query := `
		SELECT uid, email, display_name, provider_id, id_token, refresh_token, expires_at
		FROM sessions
		WHERE id = 1
	`

	var s models.Session
	err := r.db.QueryRow(query).Scan(
		&s.Identity.UID, &s.Identity.Email, &s.Identity.DisplayName, &s.Identity.ProviderID,
		&s.IDToken, &s.RefreshToken, &s.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &s, nil
}

// Clear removes the stored session.
func (r *SessionRepository) Clear() error {
	if _, err := r.db.Exec("DELETE FROM sessions"); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
