package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/marquee/internal/formatter"
	"github.com/desertthunder/marquee/internal/services"
	"github.com/desertthunder/marquee/internal/tasks"
)

func (r *Runner) library(ctx context.Context) (*formatter.Library, error) {
	id, err := r.signedIn(ctx)
	if err != nil {
		return nil, err
	}
	owner := id.DisplayName
	if owner == "" {
		owner = id.Email
	}
	return &formatter.Library{
		Owner:      owner,
		Email:      id.Email,
		Purchases:  r.store.Purchases(),
		ExportedAt: time.Now().UTC(),
	}, nil
}

// LibraryList prints every purchased movie once, in purchase order.
func (r *Runner) LibraryList(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.library(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(lib, cmd.Bool("pretty"))
	}

	rows := lib.Rows()
	if len(rows) == 0 {
		r.writePlain("You haven't bought any movies yet.\n")
		return nil
	}
	r.writePlainHeader(fmt.Sprintf("%s's Library (%d)", lib.Owner, len(rows)))
	for _, row := range rows {
		when := ""
		if !row.PurchasedAt.IsZero() {
			when = row.PurchasedAt.Local().Format("2006-01-02")
		}
		r.writePlain("%8d  %-40s %-4s  %s\n", row.Movie.ID, truncate(row.Movie.Title, 40), row.Movie.Year(), when)
	}
	return nil
}

// LibraryExport writes the library in the requested formats and optionally
// uploads the files to Cloud Storage.
func (r *Runner) LibraryExport(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.library(ctx)
	if err != nil {
		return err
	}

	opts := tasks.LibraryExportOpts{
		Formats:    cmd.StringSlice("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: int(cmd.Int("workers")),
	}
	if cmd.Bool("posters") {
		opts.ImageBaseURL = r.config.Credentials.TMDB.ImageBaseURL
	}
	if cmd.Bool("upload") {
		uploader, err := r.archive(ctx)
		if err != nil {
			return err
		}
		opts.Uploader = uploader
	}

	prog := make(chan tasks.ProgressUpdate, 32)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range prog {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, err := tasks.ExportLibrary(ctx, prog, lib, opts)
	close(prog)
	wg.Wait()
	if err != nil {
		return err
	}

	m := result.Manifest
	r.writePlainln("✓ Exported %d movie(s) from %d order(s) to %s", m.Movies, m.Orders, m.Directory)
	for _, loc := range result.Uploaded {
		r.writePlain("  ↑ %s\n", loc)
	}
	if len(m.Errors) > 0 {
		r.writePlainln("%d problem(s), see %s", len(m.Errors), result.ManifestPath)
	}
	return nil
}

// archive builds the Cloud Storage uploader for --upload.
func (r *Runner) archive(ctx context.Context) (tasks.Uploader, error) {
	if r.uploader != nil {
		return r.uploader, nil
	}
	client, err := services.NewStorageClient(ctx, r.config.Credentials.Firebase)
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, client)

	uploader, err := services.NewGCSUploader(client, r.config.Storage.Bucket, r.config.Storage.Prefix)
	if err != nil {
		return nil, err
	}
	r.uploader = uploader
	return uploader, nil
}
