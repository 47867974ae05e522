package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/marquee/internal/models"
)

var (
	_ list.Item = genreItem{}
	_ list.Item = movieItem{}
)

// genreItem wraps a storefront genre; id 0 is "Now Playing".
type genreItem struct {
	genre    models.Genre
	selected bool
}

func (i genreItem) FilterValue() string { return i.genre.Name }
func (i genreItem) Title() string       { return i.genre.Name }
func (i genreItem) Description() string {
	switch {
	case i.genre.ID == 0:
		return "In theatres now"
	case i.selected:
		return "★ One of your genres"
	default:
		return fmt.Sprintf("Genre %d", i.genre.ID)
	}
}

// movieItem wraps [models.Movie] with its ownership badge.
type movieItem struct {
	movie  models.Movie
	owned  bool
	inCart bool
}

func (i movieItem) FilterValue() string { return i.movie.Title }
func (i movieItem) Title() string {
	switch {
	case i.owned:
		return i.movie.Title + " " + styles.badge.Render("OWNED")
	case i.inCart:
		return i.movie.Title + " " + styles.warn.Render("• in cart")
	default:
		return i.movie.Title
	}
}
func (i movieItem) Description() string {
	parts := []string{}
	if y := i.movie.Year(); y != "" {
		parts = append(parts, y)
	}
	if i.movie.VoteAverage > 0 {
		parts = append(parts, fmt.Sprintf("★ %.1f", i.movie.VoteAverage))
	}
	if i.movie.Overview != "" {
		parts = append(parts, i.movie.Overview)
	}
	return strings.Join(parts, " • ")
}

func genreItems(selected []int) []list.Item {
	items := []list.Item{genreItem{genre: models.Genre{ID: 0, Name: "Now Playing"}}}
	for _, g := range models.Genres {
		sel := false
		for _, id := range selected {
			if id == g.ID {
				sel = true
				break
			}
		}
		items = append(items, genreItem{genre: g, selected: sel})
	}
	return items
}

func movieItems(movies []models.Movie, snap snapshot) []list.Item {
	items := make([]list.Item, len(movies))
	for i, m := range movies {
		items[i] = movieItem{movie: m, owned: snap.Purchases.Contains(m.Key()), inCart: snap.Cart.Has(m.Key())}
	}
	return items
}
