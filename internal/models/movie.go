package models

import (
	"fmt"
	"strconv"
	"strings"
)

// MovieID is the canonical cart and purchase key: the catalog integer id rendered in base 10.
type MovieID string

// KeyOf converts a catalog id into its canonical [MovieID].
func KeyOf(id int64) MovieID {
	return MovieID(strconv.FormatInt(id, 10))
}

// ParseMovieID normalizes user or wire input ("42", " 042 ") into a [MovieID].
func ParseMovieID(s string) (MovieID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return "", fmt.Errorf("invalid movie id %q", s)
	}
	return KeyOf(n), nil
}

// Int returns the catalog id, or 0 when the key is not numeric.
func (id MovieID) Int() int64 {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Genre is a catalog genre as embedded in movie detail responses.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Movie is a catalog entry. Treated as an immutable value once fetched.
type Movie struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	OriginalTitle    string  `json:"original_title,omitempty"`
	Overview         string  `json:"overview,omitempty"`
	PosterPath       *string `json:"poster_path"`
	BackdropPath     *string `json:"backdrop_path,omitempty"`
	ReleaseDate      string  `json:"release_date,omitempty"`
	Runtime          int     `json:"runtime,omitempty"`
	VoteAverage      float64 `json:"vote_average,omitempty"`
	VoteCount        int     `json:"vote_count,omitempty"`
	Popularity       float64 `json:"popularity,omitempty"`
	Revenue          int64   `json:"revenue,omitempty"`
	OriginalLanguage string  `json:"original_language,omitempty"`
	GenreIDs         []int   `json:"genre_ids,omitempty"`
	Genres           []Genre `json:"genres,omitempty"`
	Tagline          string  `json:"tagline,omitempty"`
}

// Key returns the canonical cart key for m.
func (m Movie) Key() MovieID {
	return KeyOf(m.ID)
}

// Valid reports whether m carries a usable catalog id.
func (m Movie) Valid() bool {
	return m.ID > 0
}

// Year returns the release year or "" when unknown.
func (m Movie) Year() string {
	if len(m.ReleaseDate) >= 4 {
		return m.ReleaseDate[:4]
	}
	return ""
}

// Poster returns the poster path or "" when the catalog has none.
func (m Movie) Poster() string {
	if m.PosterPath == nil {
		return ""
	}
	return *m.PosterPath
}

// CatalogPage is one page of a catalog list endpoint.
type CatalogPage struct {
	Page         int     `json:"page"`
	Results      []Movie `json:"results"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
}

// HasNext reports whether another page follows this one.
func (p CatalogPage) HasNext() bool {
	return p.Page < p.TotalPages
}

// Video is a catalog video (trailers, teasers, clips).
type Video struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Name     string `json:"name"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Official bool   `json:"official"`
}

// URL returns a watch link for videos hosted on YouTube or Vimeo.
func (v Video) URL() string {
	switch v.Site {
	case "YouTube":
		return "https://www.youtube.com/watch?v=" + v.Key
	case "Vimeo":
		return "https://vimeo.com/" + v.Key
	default:
		return ""
	}
}

// Trailers keeps only videos whose type is "Trailer".
func Trailers(videos []Video) []Video {
	var out []Video
	for _, v := range videos {
		if v.Type == "Trailer" {
			out = append(out, v)
		}
	}
	return out
}
