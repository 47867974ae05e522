package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/marquee/internal/auth"
	"github.com/desertthunder/marquee/internal/cart"
	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/repositories"
	"github.com/desertthunder/marquee/internal/services"
	"github.com/desertthunder/marquee/internal/session"
	"github.com/desertthunder/marquee/internal/shared"
	"github.com/desertthunder/marquee/internal/tasks"
)

// movieCacheTTL bounds how long catalog details are served from sqlite.
const movieCacheTTL = 24 * time.Hour

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Dependencies not supplied through [RunnerOpts] are built from the config the
// first time a command needs them.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	db         *sql.DB
	cache      models.LocalCache
	sessions   auth.SessionStore
	catalog    services.Catalog
	raw        rawCatalog
	identity   services.Identity
	profiles   models.ProfileStore
	verifier   auth.Verifier
	federation auth.Federation
	receipts   cart.ReceiptSender
	uploader   tasks.Uploader

	dispatcher *tasks.Dispatcher
	store      *cart.Store
	boot       *session.Bootstrapper
	auth       *auth.Manager

	closers []io.Closer
}

// rawCatalog is the passthrough used by `catalog get`.
type rawCatalog interface {
	Raw(ctx context.Context, path string) (*services.RawResponse, error)
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer

	DB         *sql.DB
	Catalog    services.Catalog
	Identity   services.Identity
	Profiles   models.ProfileStore
	Verifier   auth.Verifier
	Federation auth.Federation
	Receipts   cart.ReceiptSender
	Uploader   tasks.Uploader
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		db:         opts.DB,
		catalog:    opts.Catalog,
		identity:   opts.Identity,
		profiles:   opts.Profiles,
		verifier:   opts.Verifier,
		federation: opts.Federation,
		receipts:   opts.Receipts,
		uploader:   opts.Uploader,
	}
	if raw, ok := opts.Catalog.(rawCatalog); ok {
		r.raw = raw
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, moviesCommand, cartCommand, libraryCommand, settingsCommand, catalogCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger swaps the logger, e.g. to a file while the TUI owns the terminal.
// Call it before any dependency is built.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close drains pending remote writes, then releases clients and the database.
func (r *Runner) Close() error {
	if r.dispatcher != nil {
		r.dispatcher.Close()
		if n := r.dispatcher.Failures(); n > 0 {
			r.logger.Warn("some background writes failed", "count", n)
		}
	}

	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// local opens the sqlite database holding the cache and session.
func (r *Runner) local() error {
	if r.cache != nil {
		return nil
	}
	if r.db == nil {
		db, err := shared.NewDatabase(r.config.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
		if err := shared.RunMigrations(db); err != nil {
			db.Close()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		r.db = db
		r.closers = append(r.closers, db)
	}
	r.cache = repositories.NewLocalCacheRepository(r.db)
	r.sessions = repositories.NewSessionRepository(r.db)
	return nil
}

// movies builds the TMDB catalog, resolving the api key from Secret Manager when needed.
func (r *Runner) movies(ctx context.Context) (services.Catalog, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}
	if err := r.local(); err != nil {
		return nil, err
	}

	tmdbCfg := r.config.Credentials.TMDB
	if tmdbCfg.APIKey == "" && tmdbCfg.APIKeySecret != "" {
		client, err := services.NewSecretManagerClient(ctx, r.config.Credentials.Firebase)
		if err != nil {
			return nil, err
		}
		defer client.Close()
		if err := services.ResolveTMDBKey(ctx, r.config, services.NewSecretManager(client)); err != nil {
			return nil, err
		}
		tmdbCfg = r.config.Credentials.TMDB
	}

	httpClient := &http.Client{Timeout: tmdbCfg.RequestTimeout(), Transport: r.httpClient.Transport}
	tmdb, err := services.NewTMDBService(tmdbCfg, httpClient)
	if err != nil {
		return nil, err
	}
	r.raw = tmdb
	r.catalog = services.NewCachedCatalog(tmdb, repositories.NewMovieCacheRepository(r.db, movieCacheTTL), r.logger)
	return r.catalog, nil
}

// account builds the identity, profile and cart stack shared by every signed-in command.
func (r *Runner) account(ctx context.Context) error {
	if r.auth != nil {
		return nil
	}
	if err := r.local(); err != nil {
		return err
	}
	fb := r.config.Credentials.Firebase

	if r.identity == nil {
		identity, err := services.NewFirebaseIdentity(fb, r.httpClient)
		if err != nil {
			return err
		}
		r.identity = identity
	}

	if r.profiles == nil {
		client, err := services.NewFirestoreClient(ctx, fb)
		if err != nil {
			return err
		}
		r.closers = append(r.closers, client)
		r.profiles = repositories.NewProfileRepositoryFS(client, fb.UsersCollection)
	}

	if r.verifier == nil && fb.CredentialsFile != "" {
		app, err := services.NewFirebaseApp(ctx, fb)
		if err != nil {
			return err
		}
		if v, err := services.NewTokenVerifier(ctx, app); err != nil {
			r.logger.Warn("token verification disabled", "error", err)
		} else {
			r.verifier = v
		}
	}

	if r.federation == nil && r.config.Credentials.Google.ClientID != "" {
		if flow, err := auth.NewGoogleFlow(r.config.Credentials.Google, r.config.Server, r.logger); err == nil {
			r.federation = flow
		}
	}

	if r.receipts == nil && r.config.Credentials.SendGrid.APIKey != "" {
		mailer, err := services.NewReceiptMailer(r.config.Credentials.SendGrid, "")
		if err != nil {
			return err
		}
		r.receipts = mailer
	}

	r.dispatcher = tasks.NewDispatcher(ctx, r.logger)

	var storeOpts []cart.Option
	if r.receipts != nil {
		storeOpts = append(storeOpts, cart.WithReceipts(r.receipts))
	}
	r.store = cart.NewStore(r.cache, r.profiles, r.dispatcher, r.logger, storeOpts...)
	r.boot = session.New(r.store, r.profiles, r.cache, r.dispatcher, r.logger)

	var authOpts []auth.Option
	if r.verifier != nil {
		authOpts = append(authOpts, auth.WithVerifier(r.verifier))
	}
	if r.federation != nil {
		authOpts = append(authOpts, auth.WithFederation(r.federation))
	}
	r.auth = auth.NewManager(r.identity, r.sessions, r.profiles, r.logger, authOpts...)
	return nil
}

// bootstrap restores the persisted session and loads the cart it owns.
// Without a session the guest cart is loaded and the identity is nil.
func (r *Runner) bootstrap(ctx context.Context) (*models.Identity, error) {
	if err := r.account(ctx); err != nil {
		return nil, err
	}

	id, err := r.auth.Restore(ctx)
	if errors.Is(err, shared.ErrNoSession) {
		r.boot.Guest()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	prog := r.progress()
	_, err = r.boot.SignIn(ctx, prog, *id)
	close(prog)
	if err != nil {
		return nil, err
	}
	return id, nil
}

// signedIn is bootstrap that requires an identity.
func (r *Runner) signedIn(ctx context.Context) (*models.Identity, error) {
	id, err := r.bootstrap(ctx)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, fmt.Errorf("%w: run 'marquee auth login' first", shared.ErrNotSignedIn)
	}
	return id, nil
}

// progress returns a channel whose updates are logged at debug level until it is closed.
func (r *Runner) progress() chan tasks.ProgressUpdate {
	ch := make(chan tasks.ProgressUpdate, tasks.BootstrapSteps)
	go func() {
		for update := range ch {
			r.logger.Debug(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		}
	}()
	return ch
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// Before loads the config named by --config and applies --verbose.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	r.configPath = cmd.String("config")
	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		return ctx, nil
	}
	config, err := shared.LoadConfig(r.configPath)
	if err != nil {
		return ctx, err
	}
	r.config = config
	return ctx, nil
}

// After releases everything the command opened.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	return r.Close()
}
