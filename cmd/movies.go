package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/marquee/internal/cart"
	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
)

// badges marks catalog rows from local state only: the purchase marker and
// cached cart of the stored session, or the guest cart.
type badges struct {
	owned  models.Purchases
	inCart models.Cart
}

func (r *Runner) badges() badges {
	var b badges
	if err := r.local(); err != nil {
		return b
	}
	uid := ""
	if s, err := r.sessions.Load(); err == nil {
		uid = s.Identity.UID
	}
	if uid != "" {
		b.owned, _ = cart.ReadPurchasedMarker(r.cache, uid)
	}
	b.inCart, _ = cart.ReadCachedCart(r.cache, models.CartCacheKey(uid))
	return b
}

func (b badges) of(id models.MovieID) string {
	switch {
	case b.owned.Contains(id):
		return "  [owned]"
	case b.inCart.Has(id):
		return "  [in cart]"
	default:
		return ""
	}
}

func (r *Runner) writePage(cmd *cli.Command, title string, page *models.CatalogPage) error {
	if cmd.Bool("json") {
		return r.writeJSON(page, cmd.Bool("pretty"))
	}

	b := r.badges()
	r.writePlainHeader(title)
	for _, m := range page.Results {
		year := m.Year()
		if year == "" {
			year = "----"
		}
		r.writePlain("%8d  %-40s %s  ★ %.1f%s\n", m.ID, truncate(m.Title, 40), year, m.VoteAverage, b.of(m.Key()))
	}
	r.writePlain("\nPage %d of %d (%d results)\n", page.Page, page.TotalPages, page.TotalResults)
	if page.HasNext() {
		r.writePlain("Next: --page %d\n", page.Page+1)
	}
	return nil
}

// MoviesNowPlaying lists the movies now in theatres.
func (r *Runner) MoviesNowPlaying(ctx context.Context, cmd *cli.Command) error {
	catalog, err := r.movies(ctx)
	if err != nil {
		return err
	}
	page, err := catalog.NowPlaying(ctx, int(cmd.Int("page")))
	if err != nil {
		return err
	}
	return r.writePage(cmd, "Now Playing", page)
}

// MoviesGenres lists the storefront genres.
func (r *Runner) MoviesGenres(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("json") {
		return r.writeJSON(models.Genres, cmd.Bool("pretty"))
	}
	r.writePlainHeader("Genres")
	for _, g := range models.Genres {
		r.writePlain("%6d  %s\n", g.ID, g.Name)
	}
	return nil
}

// MoviesGenre lists movies in one genre, given by id or name.
func (r *Runner) MoviesGenre(ctx context.Context, cmd *cli.Command) error {
	arg, err := requireArg(cmd, "genre")
	if err != nil {
		return err
	}
	genre, ok := models.LookupGenre(arg)
	if !ok {
		return fmt.Errorf("%w: unknown genre %q", shared.ErrInvalidArgument, arg)
	}

	catalog, err := r.movies(ctx)
	if err != nil {
		return err
	}
	page, err := catalog.Discover(ctx, genre.ID, int(cmd.Int("page")))
	if err != nil {
		return err
	}
	return r.writePage(cmd, genre.Name, page)
}

// MoviesSearch searches the catalog by title.
func (r *Runner) MoviesSearch(ctx context.Context, cmd *cli.Command) error {
	query, err := requireArg(cmd, "query")
	if err != nil {
		return err
	}
	catalog, err := r.movies(ctx)
	if err != nil {
		return err
	}
	page, err := catalog.Search(ctx, query, int(cmd.Int("page")))
	if err != nil {
		return err
	}
	return r.writePage(cmd, fmt.Sprintf("Search: %s", query), page)
}

type movieDetail struct {
	*models.Movie
	Trailers []models.Video `json:"trailers"`
}

// MoviesShow prints a movie with its trailers.
func (r *Runner) MoviesShow(ctx context.Context, cmd *cli.Command) error {
	arg, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	id, err := models.ParseMovieID(arg)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	catalog, err := r.movies(ctx)
	if err != nil {
		return err
	}
	movie, err := catalog.Movie(ctx, id.Int())
	if err != nil {
		return err
	}
	trailers, err := catalog.Trailers(ctx, id.Int())
	if err != nil {
		r.logger.Warn("failed to fetch trailers", "id", id, "error", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(movieDetail{Movie: movie, Trailers: trailers}, cmd.Bool("pretty"))
	}

	r.writePlainHeader(movie.Title + r.badges().of(movie.Key()))
	if movie.Tagline != "" {
		r.writePlain("%s\n\n", movie.Tagline)
	}
	r.writePlain("Released: %s\n", movie.ReleaseDate)
	if movie.Runtime > 0 {
		r.writePlain("Runtime:  %d min\n", movie.Runtime)
	}
	r.writePlain("Rating:   ★ %.1f (%d votes)\n", movie.VoteAverage, movie.VoteCount)
	if len(movie.Genres) > 0 {
		names := make([]string, len(movie.Genres))
		for i, g := range movie.Genres {
			names[i] = g.Name
		}
		r.writePlain("Genres:   %s\n", strings.Join(names, ", "))
	}
	if movie.Overview != "" {
		r.writePlainln("%s", movie.Overview)
	}
	if len(trailers) > 0 {
		r.writePlainln("Trailers:")
		for _, v := range trailers {
			r.writePlain("  • %s  %s\n", v.Name, v.URL())
		}
	}
	return nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
