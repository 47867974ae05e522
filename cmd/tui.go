package main

import (
	"context"
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/marquee/internal/cart"
	"github.com/desertthunder/marquee/internal/shared"
	"github.com/desertthunder/marquee/internal/ui"
)

// TUI launches the interactive storefront.
//
// Auth events from the manager drive the session bootstrapper in the background;
// every store change is forwarded to the program so badges stay current.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	logPath := filepath.Join(filepath.Dir(r.config.Database.Path), "marquee-tui.log")
	fileLogger, closer, err := shared.NewFileLogger(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.closers = append(r.closers, closer)
	r.SetLogger(fileLogger)

	catalog, err := r.movies(ctx)
	if err != nil {
		return err
	}
	if _, err := r.bootstrap(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, unsubscribe := r.auth.Subscribe()
	defer unsubscribe()
	go r.boot.Run(ctx, events)

	model := ui.NewModel(ctx, catalog, r.store, r.auth.SignOut)
	p := tea.NewProgram(model, tea.WithContext(ctx))
	r.store.Subscribe(func(s cart.Snapshot) {
		go p.Send(ui.StoreChanged(s))
	})

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
