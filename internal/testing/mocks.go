package testing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
)

// MockCatalog is an in-memory movie catalog keyed by id.
type MockCatalog struct {
	Movies     []models.Movie
	VideosByID map[int64][]models.Video
	PageSize   int
	Err        error
}

func (c *MockCatalog) page(movies []models.Movie, page int) *models.CatalogPage {
	size := c.PageSize
	if size <= 0 {
		size = 20
	}
	if page < 1 {
		page = 1
	}
	total := (len(movies) + size - 1) / size
	start := (page - 1) * size
	end := min(start+size, len(movies))
	out := &models.CatalogPage{Page: page, TotalPages: total, TotalResults: len(movies)}
	if start < len(movies) {
		out.Results = movies[start:end]
	}
	return out
}

func (c *MockCatalog) NowPlaying(ctx context.Context, page int) (*models.CatalogPage, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.page(c.Movies, page), nil
}

func (c *MockCatalog) Discover(ctx context.Context, genreID, page int) (*models.CatalogPage, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	var matched []models.Movie
	for _, m := range c.Movies {
		for _, g := range m.GenreIDs {
			if g == genreID {
				matched = append(matched, m)
				break
			}
		}
	}
	return c.page(matched, page), nil
}

func (c *MockCatalog) Search(ctx context.Context, query string, page int) (*models.CatalogPage, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	var matched []models.Movie
	for _, m := range c.Movies {
		if strings.Contains(strings.ToLower(m.Title), strings.ToLower(query)) {
			matched = append(matched, m)
		}
	}
	return c.page(matched, page), nil
}

func (c *MockCatalog) Movie(ctx context.Context, id int64) (*models.Movie, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	for _, m := range c.Movies {
		if m.ID == id {
			cp := m
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", shared.ErrMovieNotFound, id)
}

func (c *MockCatalog) Videos(ctx context.Context, id int64) ([]models.Video, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.VideosByID[id], nil
}

func (c *MockCatalog) Trailers(ctx context.Context, id int64) ([]models.Video, error) {
	videos, err := c.Videos(ctx, id)
	if err != nil {
		return nil, err
	}
	return models.Trailers(videos), nil
}

// MockIdentity is a scripted identity provider. Nil funcs fail with shared.ErrNotImplemented.
type MockIdentity struct {
	mu    sync.Mutex
	Calls []string

	SignUpFunc         func(email, password string) (*models.Session, error)
	SignInFunc         func(email, password string) (*models.Session, error)
	SignInWithIdPFunc  func(providerID, idToken string) (*models.Session, error)
	UpdateProfileFunc  func(idToken, displayName string) error
	UpdatePasswordFunc func(idToken, password string) (*models.Session, error)
	RefreshFunc        func(refreshToken string) (*models.Session, error)
}

func (m *MockIdentity) call(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, name)
}

func (m *MockIdentity) SignUp(ctx context.Context, email, password string) (*models.Session, error) {
	m.call("sign_up")
	if m.SignUpFunc == nil {
		return nil, shared.ErrNotImplemented
	}
	return m.SignUpFunc(email, password)
}

func (m *MockIdentity) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	m.call("sign_in")
	if m.SignInFunc == nil {
		return nil, shared.ErrNotImplemented
	}
	return m.SignInFunc(email, password)
}

func (m *MockIdentity) SignInWithIdP(ctx context.Context, providerID, idToken, requestURI string) (*models.Session, error) {
	m.call("sign_in_idp")
	if m.SignInWithIdPFunc == nil {
		return nil, shared.ErrNotImplemented
	}
	return m.SignInWithIdPFunc(providerID, idToken)
}

func (m *MockIdentity) UpdateProfile(ctx context.Context, idToken, displayName string) error {
	m.call("update_profile")
	if m.UpdateProfileFunc == nil {
		return nil
	}
	return m.UpdateProfileFunc(idToken, displayName)
}

func (m *MockIdentity) UpdatePassword(ctx context.Context, idToken, password string) (*models.Session, error) {
	m.call("update_password")
	if m.UpdatePasswordFunc == nil {
		return nil, shared.ErrNotImplemented
	}
	return m.UpdatePasswordFunc(idToken, password)
}

func (m *MockIdentity) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	m.call("refresh")
	if m.RefreshFunc == nil {
		return nil, shared.ErrNotImplemented
	}
	return m.RefreshFunc(refreshToken)
}
