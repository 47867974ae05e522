// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

func prettyFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "pretty",
		Usage: "Pretty-print JSON output",
		Value: true,
	}
}

func pageFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "page",
		Usage: "Result page (1-based)",
		Value: 1,
	}
}

// setupCommand handles setup operations for the local database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the config file if missing, initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "migrations",
				Usage:  "Show applied and pending migrations",
				Action: r.SetupMigrations,
			},
		},
	}
}

// authCommand handles account operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage your account and session",
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "Create an account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "first-name", Usage: "First name", Required: true},
					&cli.StringFlag{Name: "last-name", Usage: "Last name", Required: true},
					&cli.StringFlag{Name: "email", Usage: "Email address", Required: true},
					&cli.StringFlag{Name: "password", Usage: "Password", Required: true, Sources: cli.EnvVars("MARQUEE_PASSWORD")},
					&cli.StringFlag{
						Name:     "genres",
						Usage:    "Comma separated genre names or ids (at least 5)",
						Required: true,
					},
				},
				Action: r.AuthRegister,
			},
			{
				Name:  "login",
				Usage: "Sign in with email and password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "Email address", Required: true},
					&cli.StringFlag{Name: "password", Usage: "Password", Required: true, Sources: cli.EnvVars("MARQUEE_PASSWORD")},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "google",
				Usage:  "Sign in with Google in the browser",
				Action: r.AuthGoogle,
			},
			{
				Name:   "logout",
				Usage:  "Sign out and clear the local cart",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show the signed-in account",
				Flags:  []cli.Flag{jsonFlag(), prettyFlag()},
				Action: r.AuthStatus,
			},
			{
				Name:  "password",
				Usage: "Change your password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "current", Usage: "Current password", Required: true},
					&cli.StringFlag{Name: "new", Usage: "New password", Required: true},
				},
				Action: r.AuthPassword,
			},
		},
	}
}

// moviesCommand handles catalog browsing
func moviesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "movies",
		Aliases: []string{"m"},
		Usage:   "Browse the movie catalog",
		Commands: []*cli.Command{
			{
				Name:   "now-playing",
				Usage:  "List movies now playing",
				Flags:  []cli.Flag{pageFlag(), jsonFlag(), prettyFlag()},
				Action: r.MoviesNowPlaying,
			},
			{
				Name:   "genres",
				Usage:  "List storefront genres",
				Flags:  []cli.Flag{jsonFlag(), prettyFlag()},
				Action: r.MoviesGenres,
			},
			{
				Name:  "genre",
				Usage: "List movies in a genre",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "genre"},
				},
				Flags:  []cli.Flag{pageFlag(), jsonFlag(), prettyFlag()},
				Action: r.MoviesGenre,
			},
			{
				Name:  "search",
				Usage: "Search movies by title",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "query"},
				},
				Flags:  []cli.Flag{pageFlag(), jsonFlag(), prettyFlag()},
				Action: r.MoviesSearch,
			},
			{
				Name:  "show",
				Usage: "Show a movie and its trailers",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{jsonFlag(), prettyFlag()},
				Action: r.MoviesShow,
			},
		},
	}
}

// cartCommand handles the shopping cart
func cartCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cart",
		Usage: "Manage your cart",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Show the cart",
				Flags: []cli.Flag{
					jsonFlag(), prettyFlag(),
					&cli.BoolFlag{Name: "csv", Usage: "Output CSV"},
				},
				Action: r.CartList,
			},
			{
				Name:  "add",
				Usage: "Add a movie to the cart",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.CartAdd,
			},
			{
				Name:    "remove",
				Aliases: []string{"rm"},
				Usage:   "Remove a movie from the cart",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.CartRemove,
			},
			{
				Name:   "clear",
				Usage:  "Empty the cart",
				Action: r.CartClear,
			},
			{
				Name:   "checkout",
				Usage:  "Buy every movie in the cart",
				Flags:  []cli.Flag{jsonFlag(), prettyFlag()},
				Action: r.CartCheckout,
			},
		},
	}
}

// libraryCommand handles purchased movies
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "library",
		Usage: "Your purchased movies",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List purchased movies",
				Flags:  []cli.Flag{jsonFlag(), prettyFlag()},
				Action: r.LibraryList,
			},
			{
				Name:  "export",
				Usage: "Export the library to files",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Formats to write: csv, markdown, txt, json (default: all)",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory",
					},
					&cli.BoolFlag{
						Name:  "posters",
						Usage: "Download posters for the markdown export",
					},
					&cli.BoolFlag{
						Name:  "upload",
						Usage: "Upload the files to the configured Cloud Storage bucket",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent format writers",
						Value: 2,
					},
				},
				Action: r.LibraryExport,
			},
		},
	}
}

// settingsCommand handles profile settings
func settingsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Profile settings",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show name and favourite genres",
				Flags:  []cli.Flag{jsonFlag(), prettyFlag()},
				Action: r.SettingsShow,
			},
			{
				Name:  "update",
				Usage: "Change name or favourite genres",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "first-name", Usage: "First name"},
					&cli.StringFlag{Name: "last-name", Usage: "Last name"},
					&cli.StringFlag{Name: "genres", Usage: "Comma separated genre names or ids (at least 5)"},
				},
				Action: r.SettingsUpdate,
			},
		},
	}
}

// catalogCommand handles direct TMDB calls
func catalogCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Direct catalog API calls",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET against the movie database API, prints the raw response",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags:  []cli.Flag{prettyFlag()},
				Action: r.CatalogGet,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive storefront",
		Action:  r.TUI,
	}
}
