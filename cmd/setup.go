package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/marquee/internal/shared"
)

// SetupDatabase creates the config file when missing, then initializes the
// database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else if config, err := shared.LoadConfig(configPath); err == nil {
			r.config = config
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	if err := r.local(); err != nil {
		return err
	}

	if err := r.config.Validate(); err != nil {
		r.logger.Warn("config is incomplete", "error", err)
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)
	r.writePlain("Edit %s with your TMDB and Firebase credentials, then run 'marquee auth register'.\n", configPath)
	return nil
}

// SetupMigrations lists every migration and when it was applied.
func (r *Runner) SetupMigrations(ctx context.Context, cmd *cli.Command) error {
	if err := r.local(); err != nil {
		return err
	}

	statuses, err := shared.Migrations(r.db)
	if err != nil {
		return err
	}

	r.writePlainHeader("Migrations")
	for _, st := range statuses {
		applied := "pending"
		if st.AppliedAt != nil {
			applied = st.AppliedAt.Format("2006-01-02 15:04:05")
		}
		r.writePlain("%04d  %-28s %s\n", st.Version, st.Name, applied)
	}
	return nil
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.StringArg(name)
	if v == "" {
		return "", fmt.Errorf("%w: <%s>", shared.ErrMissingArgument, name)
	}
	return v, nil
}
