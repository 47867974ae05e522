package services

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
)

// MovieCache stores movie detail records between runs.
type MovieCache interface {
	Get(id models.MovieID) (*models.Movie, error)
	Put(m models.Movie) error
}

// CachedCatalog serves Movie from a local cache before asking the wrapped catalog.
// Lists and videos always go to the network.
type CachedCatalog struct {
	Catalog
	cache  MovieCache
	logger *log.Logger
}

func NewCachedCatalog(c Catalog, cache MovieCache, logger *log.Logger) *CachedCatalog {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &CachedCatalog{Catalog: c, cache: cache, logger: logger}
}

func (c *CachedCatalog) Movie(ctx context.Context, id int64) (*models.Movie, error) {
	key := models.KeyOf(id)
	m, err := c.cache.Get(key)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, shared.ErrCacheMiss) {
		c.logger.Warn("movie cache read failed", "id", key, "error", err)
	}

	m, err = c.Catalog.Movie(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Put(*m); err != nil {
		c.logger.Warn("movie cache write failed", "id", key, "error", err)
	}
	return m, nil
}
