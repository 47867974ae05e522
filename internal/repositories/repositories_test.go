package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func TestLocalCacheRepository(t *testing.T) {
	t.Run("Set and Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLocalCacheRepository(db)
		if err := repo.Set("cart:u1", `{"1":{"id":1}}`); err != nil {
			t.Fatalf("failed to set: %v", err)
		}

		value, ok, err := repo.Get("cart:u1")
		if err != nil || !ok {
			t.Fatalf("expected entry, got ok=%v err=%v", ok, err)
		}
		if value != `{"1":{"id":1}}` {
			t.Errorf("unexpected value %q", value)
		}
	})

	t.Run("Set overwrites", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLocalCacheRepository(db)
		_ = repo.Set("k", "one")
		_ = repo.Set("k", "two")

		value, _, _ := repo.Get("k")
		if value != "two" {
			t.Errorf("expected two, got %q", value)
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		_, ok, err := NewLocalCacheRepository(db).Get("nope")
		if err != nil || ok {
			t.Errorf("expected clean miss, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLocalCacheRepository(db)
		_ = repo.Set("k", "v")
		if err := repo.Remove("k"); err != nil {
			t.Fatalf("failed to remove: %v", err)
		}
		if _, ok, _ := repo.Get("k"); ok {
			t.Error("entry should be gone")
		}
		if err := repo.Remove("k"); err != nil {
			t.Errorf("removing twice should not fail: %v", err)
		}
	})

	t.Run("Keys by prefix", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLocalCacheRepository(db)
		_ = repo.Set("cart:a", "1")
		_ = repo.Set("cart:b", "2")
		_ = repo.Set("purchased:a", "3")
		_ = repo.Set("cart_x", "4")

		keys, err := repo.Keys("cart:")
		if err != nil {
			t.Fatalf("failed to list keys: %v", err)
		}
		if len(keys) != 2 {
			t.Errorf("expected 2 cart keys, got %v", keys)
		}
	})

	t.Run("Closed database", func(t *testing.T) {
		db := setupTestDB(t)
		db.Close()

		repo := NewLocalCacheRepository(db)
		if err := repo.Set("k", "v"); err == nil {
			t.Error("expected error on closed database")
		}
		if _, _, err := repo.Get("k"); err == nil {
			t.Error("expected error on closed database")
		}
	})
}

func TestSessionRepository(t *testing.T) {
	session := models.Session{
		Identity:     models.Identity{UID: "u1", Email: "a@b.c", DisplayName: "Ada L", ProviderID: "password"},
		IDToken:      "id-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	t.Run("Save and Load", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSessionRepository(db)
		if err := repo.Save(session); err != nil {
			t.Fatalf("failed to save session: %v", err)
		}

		loaded, err := repo.Load()
		if err != nil {
			t.Fatalf("failed to load session: %v", err)
		}
		if loaded.Identity != session.Identity {
			t.Errorf("expected identity %+v, got %+v", session.Identity, loaded.Identity)
		}
		if !loaded.ExpiresAt.Equal(session.ExpiresAt) {
			t.Errorf("expected expiry %v, got %v", session.ExpiresAt, loaded.ExpiresAt)
		}
	})

	t.Run("Save replaces", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSessionRepository(db)
		_ = repo.Save(session)

		next := session
		next.Identity.UID = "u2"
		if err := repo.Save(next); err != nil {
			t.Fatalf("failed to replace session: %v", err)
		}

		loaded, _ := repo.Load()
		if loaded.Identity.UID != "u2" {
			t.Errorf("expected u2, got %s", loaded.Identity.UID)
		}
	})

	t.Run("Load empty", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if _, err := NewSessionRepository(db).Load(); !errors.Is(err, shared.ErrNoSession) {
			t.Errorf("expected ErrNoSession, got %v", err)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSessionRepository(db)
		_ = repo.Save(session)
		if err := repo.Clear(); err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		if _, err := repo.Load(); !errors.Is(err, shared.ErrNoSession) {
			t.Errorf("expected ErrNoSession after clear, got %v", err)
		}
	})

	t.Run("Save rejects empty uid", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if err := NewSessionRepository(db).Save(models.Session{IDToken: "x"}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestMovieCacheRepository(t *testing.T) {
	t.Run("Put and Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewMovieCacheRepository(db, time.Hour)
		if err := repo.Put(models.Movie{ID: 550, Title: "Fight Club"}); err != nil {
			t.Fatalf("failed to put: %v", err)
		}

		m, err := repo.Get("550")
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if m.Title != "Fight Club" {
			t.Errorf("expected Fight Club, got %s", m.Title)
		}
	})

	t.Run("Expired entry is a miss", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewMovieCacheRepository(db, time.Hour)
		base := time.Now()
		repo.now = func() time.Time { return base }
		_ = repo.Put(models.Movie{ID: 1, Title: "Old"})

		repo.now = func() time.Time { return base.Add(2 * time.Hour) }
		if _, err := repo.Get("1"); !errors.Is(err, shared.ErrCacheMiss) {
			t.Errorf("expected ErrCacheMiss, got %v", err)
		}

		n, err := repo.Prune()
		if err != nil {
			t.Fatalf("failed to prune: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 pruned entry, got %d", n)
		}
	})

	t.Run("Put rejects invalid movie", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if err := NewMovieCacheRepository(db, 0).Put(models.Movie{}); !errors.Is(err, shared.ErrInvalidMovie) {
			t.Errorf("expected ErrInvalidMovie, got %v", err)
		}
	})
}
