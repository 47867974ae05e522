package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/services"
	"github.com/desertthunder/marquee/internal/shared"
)

// expirySkew refreshes tokens slightly before the provider would reject them.
const expirySkew = time.Minute

// SessionStore persists the signed-in session between runs.
type SessionStore interface {
	Save(s models.Session) error
	Load() (*models.Session, error)
	Clear() error
}

// Verifier checks an id token and returns its uid.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (string, error)
}

// Federation obtains a Google id token from an interactive browser flow.
type Federation interface {
	IDToken(ctx context.Context) (idToken, requestURI string, err error)
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
	Genres          []int
}

func (in RegisterInput) validate() error {
	var missing []string
	for name, v := range map[string]string{
		"first name": in.FirstName,
		"last name":  in.LastName,
		"email":      in.Email,
		"password":   in.Password,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", shared.ErrMissingArgument, strings.Join(missing, ", "))
	}
	if in.Password != in.ConfirmPassword {
		return fmt.Errorf("%w: passwords don't match", shared.ErrInvalidInput)
	}
	return models.ValidateGenres(in.Genres)
}

// Manager owns the current session.
type Manager struct {
	mu          sync.Mutex
	identity    services.Identity
	sessions    SessionStore
	profiles    models.ProfileStore
	verifier    Verifier
	federation  Federation
	current     *models.Session
	subscribers map[int]chan *models.Identity
	nextSub     int
	logger      *log.Logger
	now         func() time.Time
}

// Option configures a [Manager].
type Option func(*Manager)

// WithVerifier checks restored sessions with v before trusting them.
func WithVerifier(v Verifier) Option {
	return func(m *Manager) { m.verifier = v }
}

// WithFederation enables [Manager.SignInWithGoogle].
func WithFederation(f Federation) Option {
	return func(m *Manager) { m.federation = f }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a signed-out manager.
func NewManager(identity services.Identity, sessions SessionStore, profiles models.ProfileStore, logger *log.Logger, opts ...Option) *Manager {
	m := &Manager{
		identity:    identity,
		sessions:    sessions,
		profiles:    profiles,
		subscribers: map[int]chan *models.Identity{},
		logger:      shared.WithLogger(logger, "component", "auth"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register creates the account, sets its display name and creates the profile
// document with the selected genres.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (*models.Identity, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	s, err := m.identity.SignUp(ctx, strings.TrimSpace(in.Email), in.Password)
	if err != nil {
		return nil, err
	}

	profile := models.NewUserProfile(s.Identity)
	profile.FirstName = strings.TrimSpace(in.FirstName)
	profile.LastName = strings.TrimSpace(in.LastName)
	profile.SelectedGenres = in.Genres

	s.Identity.DisplayName = profile.DisplayName()
	if err := m.identity.UpdateProfile(ctx, s.IDToken, s.Identity.DisplayName); err != nil {
		m.logger.Warn("failed to set display name", "uid", s.Identity.UID, "error", err)
	}

	if err := m.profiles.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	return m.establish(*s)
}

// SignIn signs in with email and password.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password", shared.ErrMissingArgument)
	}
	s, err := m.identity.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, err
	}
	return m.establish(*s)
}

// SignInWithGoogle runs the browser flow and exchanges the Google id token.
// A profile is not created here; the first bootstrap creates it.
func (m *Manager) SignInWithGoogle(ctx context.Context) (*models.Identity, error) {
	if m.federation == nil {
		return nil, fmt.Errorf("%w: google client is not configured", shared.ErrMissingCredentials)
	}
	idToken, requestURI, err := m.federation.IDToken(ctx)
	if err != nil {
		return nil, err
	}
	s, err := m.identity.SignInWithIdP(ctx, services.GoogleProviderID, idToken, requestURI)
	if err != nil {
		return nil, err
	}
	return m.establish(*s)
}

// SignOut forgets the session and publishes nil.
func (m *Manager) SignOut() error {
	err := m.sessions.Clear()

	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	m.publish(nil)
	return err
}

// UpdateProfile changes names and genres. Nil names are left alone; nil genres too.
func (m *Manager) UpdateProfile(ctx context.Context, settings models.ProfileSettings) error {
	s, err := m.session(ctx)
	if err != nil {
		return err
	}
	if settings.SelectedGenres != nil {
		if err := models.ValidateGenres(settings.SelectedGenres); err != nil {
			return err
		}
	}

	if settings.FirstName != nil || settings.LastName != nil {
		first, last := models.SplitName(s.Identity.DisplayName)
		if settings.FirstName != nil {
			first = strings.TrimSpace(*settings.FirstName)
		}
		if settings.LastName != nil {
			last = strings.TrimSpace(*settings.LastName)
		}
		name := strings.TrimSpace(first + " " + last)
		if err := m.identity.UpdateProfile(ctx, s.IDToken, name); err != nil {
			return err
		}
		s.Identity.DisplayName = name
		if _, err := m.establish(s); err != nil {
			return err
		}
	}

	return m.profiles.UpdateSettings(ctx, s.Identity.UID, settings)
}

// UpdatePassword re-authenticates with current before setting next.
func (m *Manager) UpdatePassword(ctx context.Context, current, next string) error {
	s, err := m.session(ctx)
	if err != nil {
		return err
	}
	if s.Identity.ProviderID == services.GoogleProviderID {
		return fmt.Errorf("%w: password is managed by Google", shared.ErrInvalidInput)
	}
	if next == "" {
		return fmt.Errorf("%w: new password", shared.ErrMissingArgument)
	}

	fresh, err := m.identity.SignIn(ctx, s.Identity.Email, current)
	if err != nil {
		return err
	}
	updated, err := m.identity.UpdatePassword(ctx, fresh.IDToken, next)
	if err != nil {
		return err
	}
	if updated.Identity.UID == "" {
		updated.Identity = fresh.Identity
	}
	_, err = m.establish(*updated)
	return err
}

// Restore loads the persisted session, verifying or refreshing its token, and
// publishes the identity. It returns [shared.ErrNoSession] when signed out.
func (m *Manager) Restore(ctx context.Context) (*models.Identity, error) {
	s, err := m.sessions.Load()
	if err != nil {
		return nil, err
	}

	if s.Expired(m.now(), expirySkew) {
		s, err = m.refresh(ctx, s)
		if err != nil {
			return nil, err
		}
	} else if m.verifier != nil {
		uid, err := m.verifier.Verify(ctx, s.IDToken)
		switch {
		case errors.Is(err, shared.ErrTokenExpired):
			if s, err = m.refresh(ctx, s); err != nil {
				return nil, err
			}
		case err != nil:
			return nil, err
		case uid != s.Identity.UID:
			return nil, fmt.Errorf("%w: token belongs to another user", shared.ErrAuthFailed)
		}
	}

	return m.establish(*s)
}

// Current returns the signed-in identity or nil.
func (m *Manager) Current() *models.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	id := m.current.Identity
	return &id
}

// Token returns a valid id token, refreshing it when it expired.
func (m *Manager) Token(ctx context.Context) (string, error) {
	s, err := m.session(ctx)
	if err != nil {
		return "", err
	}
	return s.IDToken, nil
}

// Subscribe returns a channel receiving every identity change. Slow readers only
// see the latest change. Cancel closes the channel.
func (m *Manager) Subscribe() (<-chan *models.Identity, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan *models.Identity, 1)
	m.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subscribers, id)
			close(ch)
		})
	}
}

func (m *Manager) publish(id *models.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- id
	}
}

func (m *Manager) session(ctx context.Context) (models.Session, error) {
	m.mu.Lock()
	cur := m.current
	m.mu.Unlock()

	if cur == nil {
		return models.Session{}, shared.ErrNotSignedIn
	}
	if !cur.Expired(m.now(), expirySkew) {
		return *cur, nil
	}

	s, err := m.refresh(ctx, cur)
	if err != nil {
		return models.Session{}, err
	}
	if _, err := m.establish(*s); err != nil {
		return models.Session{}, err
	}
	return *s, nil
}

// refresh swaps the refresh token for a new id token, keeping profile fields the
// token endpoint does not return.
func (m *Manager) refresh(ctx context.Context, s *models.Session) (*models.Session, error) {
	if s.RefreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}
	fresh, err := m.identity.Refresh(ctx, s.RefreshToken)
	if err != nil {
		return nil, err
	}
	if fresh.Identity.UID != "" && fresh.Identity.UID != s.Identity.UID {
		return nil, fmt.Errorf("%w: refreshed token belongs to another user", shared.ErrRefreshFailed)
	}
	merged := *s
	merged.IDToken = fresh.IDToken
	merged.ExpiresAt = fresh.ExpiresAt
	if fresh.RefreshToken != "" {
		merged.RefreshToken = fresh.RefreshToken
	}
	m.logger.Debug("refreshed id token", "uid", s.Identity.UID, "expires_at", merged.ExpiresAt)
	return &merged, nil
}

// establish stores session as current and publishes its identity when the user changed.
func (m *Manager) establish(session models.Session) (*models.Identity, error) {
	if err := m.sessions.Save(session); err != nil {
		m.logger.Warn("failed to persist session", "uid", session.Identity.UID, "error", err)
	}

	m.mu.Lock()
	changed := m.current == nil || m.current.Identity.UID != session.Identity.UID
	m.current = &session
	m.mu.Unlock()

	id := session.Identity
	if changed {
		m.logger.Info("signed in", "uid", id.UID, "provider", id.ProviderID)
		m.publish(&id)
	}
	return &id, nil
}
