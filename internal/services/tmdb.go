// The Movie Database (TMDB) v3 implementation of [Catalog]
//
// Response types based on https://developer.themoviedb.org/reference
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
)

const tmdbBaseURL = "https://api.themoviedb.org/3"

type tmdbError struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

type tmdbVideos struct {
	ID      int64          `json:"id"`
	Results []models.Video `json:"results"`
}

// TMDBService is a rate-limited client for the TMDB catalog.
type TMDBService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewTMDBService creates a catalog client from cfg. The API key must already be resolved.
func NewTMDBService(cfg shared.TMDBConfig, client *http.Client) (*TMDBService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: tmdb api_key", shared.ErrMissingCredentials)
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = tmdbBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout()}
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 20
	}

	return &TMDBService{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Limit(limit), int(limit)),
	}, nil
}

func (s *TMDBService) Name() string {
	return "TMDB"
}

// NowPlaying lists movies currently in theatres.
func (s *TMDBService) NowPlaying(ctx context.Context, page int) (*models.CatalogPage, error) {
	return s.list(ctx, "/movie/now_playing", url.Values{}, page)
}

// Discover lists movies tagged with genreID.
func (s *TMDBService) Discover(ctx context.Context, genreID, page int) (*models.CatalogPage, error) {
	q := url.Values{}
	q.Set("with_genres", strconv.Itoa(genreID))
	return s.list(ctx, "/discover/movie", q, page)
}

// Search finds movies by title.
func (s *TMDBService) Search(ctx context.Context, query string, page int) (*models.CatalogPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}
	q := url.Values{}
	q.Set("query", query)
	return s.list(ctx, "/search/movie", q, page)
}

// Movie fetches the full detail record of one movie.
func (s *TMDBService) Movie(ctx context.Context, id int64) (*models.Movie, error) {
	var m models.Movie
	if err := s.get(ctx, fmt.Sprintf("/movie/%d", id), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Videos lists the videos attached to a movie.
func (s *TMDBService) Videos(ctx context.Context, id int64) ([]models.Video, error) {
	var v tmdbVideos
	if err := s.get(ctx, fmt.Sprintf("/movie/%d/videos", id), nil, &v); err != nil {
		return nil, err
	}
	return v.Results, nil
}

// Trailers returns only the trailer videos of a movie.
func (s *TMDBService) Trailers(ctx context.Context, id int64) ([]models.Video, error) {
	videos, err := s.Videos(ctx, id)
	if err != nil {
		return nil, err
	}
	return models.Trailers(videos), nil
}

// RawResponse is an undecoded catalog response.
type RawResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Raw performs an authenticated GET of path (with optional query) and returns the body as-is.
func (s *TMDBService) Raw(ctx context.Context, path string) (*RawResponse, error) {
	p, rawQuery, _ := strings.Cut(path, "?")
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	resp, body, err := s.do(ctx, p, q)
	if err != nil {
		return nil, err
	}

	out := &RawResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: body}
	var data any
	if err := json.Unmarshal(body, &data); err == nil {
		out.IsJSON = true
		out.JSONData = data
	}
	return out, nil
}

func (s *TMDBService) list(ctx context.Context, path string, q url.Values, page int) (*models.CatalogPage, error) {
	if page < 1 {
		page = 1
	}
	q.Set("page", strconv.Itoa(page))

	var out models.CatalogPage
	if err := s.get(ctx, path, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *TMDBService) get(ctx context.Context, path string, q url.Values, result any) error {
	resp, body, err := s.do(ctx, path, q)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr tmdbError
		_ = json.Unmarshal(body, &apiErr)
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", shared.ErrMovieNotFound, path)
		}
		if apiErr.StatusMessage != "" {
			return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, apiErr.StatusMessage)
		}
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (s *TMDBService) do(ctx context.Context, path string, q url.Values) (*http.Response, []byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("rate limiter: %w", err)
	}

	if q == nil {
		q = url.Values{}
	}
	q.Set("api_key", s.apiKey)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, body, nil
}
