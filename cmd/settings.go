package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
)

type settingsOutput struct {
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	Email     string         `json:"email"`
	Genres    []models.Genre `json:"genres"`
}

// SettingsShow prints name and favourite genres from the profile document.
func (r *Runner) SettingsShow(ctx context.Context, cmd *cli.Command) error {
	id, err := r.signedIn(ctx)
	if err != nil {
		return err
	}

	first, last := models.SplitName(id.DisplayName)
	if p, err := r.profiles.Get(ctx, id.UID); err == nil {
		first, last = p.FirstName, p.LastName
	} else {
		r.logger.Warn("failed to fetch profile, showing session name", "error", err)
	}

	out := settingsOutput{
		FirstName: first,
		LastName:  last,
		Email:     id.Email,
		Genres:    models.SelectedGenres(r.store.Genres()),
	}
	if cmd.Bool("json") {
		return r.writeJSON(out, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Settings")
	r.writePlain("First name: %s\n", out.FirstName)
	r.writePlain("Last name:  %s\n", out.LastName)
	r.writePlain("Email:      %s\n", out.Email)
	r.writePlain("Genres:\n")
	for _, g := range out.Genres {
		r.writePlain("  • %s\n", g.Name)
	}
	return nil
}

// SettingsUpdate changes names and/or genres. Unset flags are left alone.
func (r *Runner) SettingsUpdate(ctx context.Context, cmd *cli.Command) error {
	var settings models.ProfileSettings
	if cmd.IsSet("first-name") {
		v := cmd.String("first-name")
		settings.FirstName = &v
	}
	if cmd.IsSet("last-name") {
		v := cmd.String("last-name")
		settings.LastName = &v
	}
	if cmd.IsSet("genres") {
		genres, err := models.ParseGenres(cmd.String("genres"))
		if err != nil {
			return err
		}
		settings.SelectedGenres = genres
	}
	if settings.FirstName == nil && settings.LastName == nil && settings.SelectedGenres == nil {
		return fmt.Errorf("%w: nothing to update", shared.ErrMissingArgument)
	}

	if _, err := r.signedIn(ctx); err != nil {
		return err
	}
	if err := r.auth.UpdateProfile(ctx, settings); err != nil {
		return err
	}
	if settings.SelectedGenres != nil {
		r.store.SetGenres(settings.SelectedGenres)
	}
	r.writePlain("✓ Settings saved\n")
	return nil
}
