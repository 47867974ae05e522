package services

import (
	"context"

	"github.com/desertthunder/marquee/internal/models"
)

// Catalog is the read-only movie metadata API consumed by the CLI and TUI views.
type Catalog interface {
	NowPlaying(ctx context.Context, page int) (*models.CatalogPage, error)
	Discover(ctx context.Context, genreID, page int) (*models.CatalogPage, error)
	Search(ctx context.Context, query string, page int) (*models.CatalogPage, error)
	Movie(ctx context.Context, id int64) (*models.Movie, error)
	Videos(ctx context.Context, id int64) ([]models.Video, error)
	Trailers(ctx context.Context, id int64) ([]models.Video, error)
}

// Identity is the identity provider used by the auth manager.
//
// Every call that establishes a session returns the provider tokens with it.
// Failures with a user-facing meaning are returned as *[AuthError].
type Identity interface {
	SignUp(ctx context.Context, email, password string) (*models.Session, error)
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignInWithIdP(ctx context.Context, providerID, idToken, requestURI string) (*models.Session, error)
	UpdateProfile(ctx context.Context, idToken, displayName string) error
	UpdatePassword(ctx context.Context, idToken, password string) (*models.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*models.Session, error)
}
