package models

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/desertthunder/marquee/internal/shared"
)

// MinSelectedGenres is the fewest genres a user may keep selected.
const MinSelectedGenres = 5

// Genres is the fixed storefront genre list, in display order.
var Genres = []Genre{
	{ID: 878, Name: "Sci-Fi"},
	{ID: 53, Name: "Thriller"},
	{ID: 12, Name: "Adventure"},
	{ID: 10751, Name: "Family"},
	{ID: 16, Name: "Animation"},
	{ID: 28, Name: "Action"},
	{ID: 36, Name: "History"},
	{ID: 14, Name: "Fantasy"},
	{ID: 27, Name: "Horror"},
	{ID: 35, Name: "Comedy"},
}

// GenreByID looks up a storefront genre.
func GenreByID(id int) (Genre, bool) {
	for _, g := range Genres {
		if g.ID == id {
			return g, true
		}
	}
	return Genre{}, false
}

// LookupGenre resolves a genre by id or case-insensitive name.
func LookupGenre(s string) (Genre, bool) {
	s = strings.TrimSpace(s)
	if id, err := strconv.Atoi(s); err == nil {
		return GenreByID(id)
	}
	for _, g := range Genres {
		if strings.EqualFold(g.Name, s) {
			return g, true
		}
	}
	return Genre{}, false
}

// ParseGenres resolves a comma separated list of ids or names, dropping duplicates.
func ParseGenres(s string) ([]int, error) {
	var ids []int
	for part := range strings.SplitSeq(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		g, ok := LookupGenre(part)
		if !ok {
			return nil, fmt.Errorf("%w: unknown genre %q", shared.ErrInvalidArgument, strings.TrimSpace(part))
		}
		if !slices.Contains(ids, g.ID) {
			ids = append(ids, g.ID)
		}
	}
	return ids, nil
}

// ValidateGenres enforces the minimum selection and rejects genres outside the storefront list.
func ValidateGenres(ids []int) error {
	for _, id := range ids {
		if _, ok := GenreByID(id); !ok {
			return fmt.Errorf("%w: unknown genre %d", shared.ErrInvalidArgument, id)
		}
	}
	if len(ids) < MinSelectedGenres {
		return fmt.Errorf("%w: please select at least %d genres", shared.ErrTooFewGenres, MinSelectedGenres)
	}
	return nil
}

// SelectedGenres returns the storefront genres in ids, in storefront order.
func SelectedGenres(ids []int) []Genre {
	var out []Genre
	for _, g := range Genres {
		if slices.Contains(ids, g.ID) {
			out = append(out, g)
		}
	}
	return out
}
