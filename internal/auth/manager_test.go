package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/repositories"
	"github.com/desertthunder/marquee/internal/services"
	"github.com/desertthunder/marquee/internal/shared"
	th "github.com/desertthunder/marquee/internal/testing"
)

var (
	genres = []int{878, 53, 12, 10751, 16}
	epoch  = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

func session(uid, email string, expires time.Time) *models.Session {
	return &models.Session{
		Identity:     models.Identity{UID: uid, Email: email, ProviderID: "password"},
		IDToken:      "id-" + uid,
		RefreshToken: "refresh-" + uid,
		ExpiresAt:    expires,
	}
}

type fixture struct {
	manager  *Manager
	identity *th.MockIdentity
	sessions *repositories.SessionRepository
	profiles *th.MemoryProfiles
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	f := &fixture{
		identity: &th.MockIdentity{},
		sessions: repositories.NewSessionRepository(db),
		profiles: th.NewMemoryProfiles(),
	}
	opts = append([]Option{WithClock(func() time.Time { return epoch })}, opts...)
	f.manager = NewManager(f.identity, f.sessions, f.profiles, shared.NewLogger(io.Discard), opts...)
	return f
}

func receive(t *testing.T, ch <-chan *models.Identity) *models.Identity {
	t.Helper()
	select {
	case id := <-ch:
		return id
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for identity event")
		return nil
	}
}

func TestRegister(t *testing.T) {
	valid := RegisterInput{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
		Password: "secret1", ConfirmPassword: "secret1", Genres: genres,
	}

	t.Run("Creates Account And Profile", func(t *testing.T) {
		f := newFixture(t)
		var displayName string
		f.identity.SignUpFunc = func(email, password string) (*models.Session, error) {
			return session("u1", email, epoch.Add(time.Hour)), nil
		}
		f.identity.UpdateProfileFunc = func(idToken, name string) error {
			displayName = name
			return nil
		}
		events, cancel := f.manager.Subscribe()
		defer cancel()

		id, err := f.manager.Register(context.Background(), valid)
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if id.UID != "u1" || id.DisplayName != "Ada Lovelace" {
			t.Errorf("unexpected identity %+v", id)
		}
		if displayName != "Ada Lovelace" {
			t.Errorf("display name not sent to provider, got %q", displayName)
		}

		p := f.profiles.Profile("u1")
		if p == nil || p.FirstName != "Ada" || !slices.Equal(p.SelectedGenres, genres) {
			t.Errorf("unexpected profile %+v", p)
		}
		if ev := receive(t, events); ev == nil || ev.UID != "u1" {
			t.Errorf("expected sign-in event, got %+v", ev)
		}
		if stored, err := f.sessions.Load(); err != nil || stored.Identity.UID != "u1" {
			t.Errorf("session not persisted: %+v %v", stored, err)
		}
	})

	t.Run("Validation", func(t *testing.T) {
		tc := []struct {
			name   string
			mutate func(*RegisterInput)
			want   error
		}{
			{"missing name", func(in *RegisterInput) { in.FirstName = " " }, shared.ErrMissingArgument},
			{"password mismatch", func(in *RegisterInput) { in.ConfirmPassword = "other" }, shared.ErrInvalidInput},
			{"too few genres", func(in *RegisterInput) { in.Genres = genres[:4] }, shared.ErrTooFewGenres},
			{"unknown genre", func(in *RegisterInput) { in.Genres = append([]int{1}, genres...) }, shared.ErrInvalidArgument},
		}
		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)
				in := valid
				tt.mutate(&in)
				if _, err := f.manager.Register(context.Background(), in); !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
				if len(f.identity.Calls) != 0 {
					t.Errorf("provider should not be called, got %v", f.identity.Calls)
				}
			})
		}
	})

	t.Run("Provider Error", func(t *testing.T) {
		f := newFixture(t)
		f.identity.SignUpFunc = func(string, string) (*models.Session, error) {
			return nil, &services.AuthError{Code: services.CodeEmailInUse}
		}
		_, err := f.manager.Register(context.Background(), valid)
		if services.AuthCode(err) != services.CodeEmailInUse {
			t.Errorf("expected email-in-use, got %v", err)
		}
		if f.manager.Current() != nil {
			t.Error("should stay signed out")
		}
	})

	t.Run("Display Name Failure Is Not Fatal", func(t *testing.T) {
		f := newFixture(t)
		f.identity.SignUpFunc = func(email, _ string) (*models.Session, error) {
			return session("u1", email, epoch.Add(time.Hour)), nil
		}
		f.identity.UpdateProfileFunc = func(string, string) error { return errors.New("boom") }

		if _, err := f.manager.Register(context.Background(), valid); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	})
}

func TestSignInAndOut(t *testing.T) {
	f := newFixture(t)
	f.identity.SignInFunc = func(email, password string) (*models.Session, error) {
		if password != "right" {
			return nil, &services.AuthError{Code: services.CodeInvalidCredential}
		}
		return session("u1", email, epoch.Add(time.Hour)), nil
	}
	events, cancel := f.manager.Subscribe()
	defer cancel()

	if _, err := f.manager.SignIn(context.Background(), "", "x"); !errors.Is(err, shared.ErrMissingArgument) {
		t.Errorf("expected missing argument, got %v", err)
	}
	if _, err := f.manager.SignIn(context.Background(), "ada@example.com", "wrong"); !errors.Is(err, shared.ErrAuthFailed) {
		t.Errorf("expected auth failure, got %v", err)
	}

	id, err := f.manager.SignIn(context.Background(), "ada@example.com", "right")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if cur := f.manager.Current(); cur == nil || cur.UID != id.UID {
		t.Errorf("unexpected current %+v", cur)
	}
	if ev := receive(t, events); ev == nil || ev.UID != "u1" {
		t.Errorf("expected sign-in event, got %+v", ev)
	}

	if err := f.manager.SignOut(); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if ev := receive(t, events); ev != nil {
		t.Errorf("expected nil event, got %+v", ev)
	}
	if f.manager.Current() != nil {
		t.Error("expected signed out")
	}
	if _, err := f.sessions.Load(); !errors.Is(err, shared.ErrNoSession) {
		t.Errorf("expected session cleared, got %v", err)
	}
}

func TestSubscribeKeepsLatest(t *testing.T) {
	f := newFixture(t)
	f.identity.SignInFunc = func(email, _ string) (*models.Session, error) {
		return session(email, email, epoch.Add(time.Hour)), nil
	}
	events, cancel := f.manager.Subscribe()

	f.manager.SignIn(context.Background(), "a", "pw")
	f.manager.SignIn(context.Background(), "b", "pw")

	if ev := receive(t, events); ev == nil || ev.UID != "b" {
		t.Errorf("expected latest event for b, got %+v", ev)
	}

	cancel()
	cancel()
	if _, ok := <-events; ok {
		t.Error("expected channel closed after cancel")
	}
	f.manager.SignOut()
}

type stubVerifier struct {
	uid string
	err error
}

func (v stubVerifier) Verify(context.Context, string) (string, error) {
	return v.uid, v.err
}

func TestRestore(t *testing.T) {
	t.Run("No Session", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.manager.Restore(context.Background()); !errors.Is(err, shared.ErrNoSession) {
			t.Errorf("expected ErrNoSession, got %v", err)
		}
	})

	t.Run("Valid Token", func(t *testing.T) {
		f := newFixture(t, WithVerifier(stubVerifier{uid: "u1"}))
		f.sessions.Save(*session("u1", "ada@example.com", epoch.Add(time.Hour)))
		events, cancel := f.manager.Subscribe()
		defer cancel()

		id, err := f.manager.Restore(context.Background())
		if err != nil {
			t.Fatalf("Restore failed: %v", err)
		}
		if id.Email != "ada@example.com" {
			t.Errorf("unexpected identity %+v", id)
		}
		if ev := receive(t, events); ev == nil || ev.UID != "u1" {
			t.Errorf("expected restore event, got %+v", ev)
		}
		if slices.Contains(f.identity.Calls, "refresh") {
			t.Error("valid token should not be refreshed")
		}
	})

	t.Run("Expired Token Refreshes", func(t *testing.T) {
		f := newFixture(t)
		f.sessions.Save(*session("u1", "ada@example.com", epoch.Add(-time.Hour)))
		f.identity.RefreshFunc = func(refreshToken string) (*models.Session, error) {
			if refreshToken != "refresh-u1" {
				t.Errorf("unexpected refresh token %q", refreshToken)
			}
			return &models.Session{Identity: models.Identity{UID: "u1"}, IDToken: "new", ExpiresAt: epoch.Add(time.Hour)}, nil
		}

		id, err := f.manager.Restore(context.Background())
		if err != nil {
			t.Fatalf("Restore failed: %v", err)
		}
		if id.Email != "ada@example.com" {
			t.Errorf("refresh should keep profile fields, got %+v", id)
		}
		stored, _ := f.sessions.Load()
		if stored.IDToken != "new" || stored.RefreshToken != "refresh-u1" {
			t.Errorf("unexpected stored session %+v", stored)
		}
	})

	t.Run("Verifier Expired Refreshes", func(t *testing.T) {
		f := newFixture(t, WithVerifier(stubVerifier{err: shared.ErrTokenExpired}))
		f.sessions.Save(*session("u1", "ada@example.com", epoch.Add(time.Hour)))
		f.identity.RefreshFunc = func(string) (*models.Session, error) {
			return &models.Session{IDToken: "new", ExpiresAt: epoch.Add(time.Hour)}, nil
		}
		if _, err := f.manager.Restore(context.Background()); err != nil {
			t.Fatalf("Restore failed: %v", err)
		}
		if tok, _ := f.manager.Token(context.Background()); tok != "new" {
			t.Errorf("expected refreshed token, got %q", tok)
		}
	})

	t.Run("Verifier Rejects", func(t *testing.T) {
		f := newFixture(t, WithVerifier(stubVerifier{err: shared.ErrAuthFailed}))
		f.sessions.Save(*session("u1", "ada@example.com", epoch.Add(time.Hour)))
		if _, err := f.manager.Restore(context.Background()); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected auth failure, got %v", err)
		}
		if f.manager.Current() != nil {
			t.Error("should stay signed out")
		}
	})

	t.Run("Refresh For Another User", func(t *testing.T) {
		f := newFixture(t)
		f.sessions.Save(*session("u1", "ada@example.com", epoch.Add(-time.Hour)))
		f.identity.RefreshFunc = func(string) (*models.Session, error) {
			return &models.Session{Identity: models.Identity{UID: "u2"}, IDToken: "x"}, nil
		}
		if _, err := f.manager.Restore(context.Background()); !errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("expected ErrRefreshFailed, got %v", err)
		}
	})
}

func TestUpdateProfile(t *testing.T) {
	signedIn := func(t *testing.T) *fixture {
		f := newFixture(t)
		f.identity.SignInFunc = func(email, _ string) (*models.Session, error) {
			s := session("u1", email, epoch.Add(time.Hour))
			s.Identity.DisplayName = "Ada Lovelace"
			return s, nil
		}
		f.profiles.Put(&models.UserProfile{ID: "u1", FirstName: "Ada", LastName: "Lovelace", SelectedGenres: genres})
		if _, err := f.manager.SignIn(context.Background(), "ada@example.com", "pw"); err != nil {
			t.Fatalf("SignIn failed: %v", err)
		}
		return f
	}

	t.Run("Signed Out", func(t *testing.T) {
		f := newFixture(t)
		if err := f.manager.UpdateProfile(context.Background(), models.ProfileSettings{}); !errors.Is(err, shared.ErrNotSignedIn) {
			t.Errorf("expected ErrNotSignedIn, got %v", err)
		}
	})

	t.Run("Names", func(t *testing.T) {
		f := signedIn(t)
		var sent string
		f.identity.UpdateProfileFunc = func(_, name string) error {
			sent = name
			return nil
		}
		last := "Byron"
		if err := f.manager.UpdateProfile(context.Background(), models.ProfileSettings{LastName: &last}); err != nil {
			t.Fatalf("UpdateProfile failed: %v", err)
		}
		if sent != "Ada Byron" {
			t.Errorf("expected display name Ada Byron, got %q", sent)
		}
		if p := f.profiles.Profile("u1"); p.LastName != "Byron" || p.FirstName != "Ada" {
			t.Errorf("unexpected profile %+v", p)
		}
		if cur := f.manager.Current(); cur.DisplayName != "Ada Byron" {
			t.Errorf("current identity not updated: %+v", cur)
		}
	})

	t.Run("Genres", func(t *testing.T) {
		f := signedIn(t)
		if err := f.manager.UpdateProfile(context.Background(), models.ProfileSettings{SelectedGenres: genres[:2]}); !errors.Is(err, shared.ErrTooFewGenres) {
			t.Errorf("expected ErrTooFewGenres, got %v", err)
		}

		next := []int{28, 36, 14, 27, 35}
		if err := f.manager.UpdateProfile(context.Background(), models.ProfileSettings{SelectedGenres: next}); err != nil {
			t.Fatalf("UpdateProfile failed: %v", err)
		}
		if p := f.profiles.Profile("u1"); !slices.Equal(p.SelectedGenres, next) {
			t.Errorf("genres not saved: %v", p.SelectedGenres)
		}
		if slices.Contains(f.identity.Calls, "update_profile") {
			t.Error("genre-only update should not touch the display name")
		}
	})
}

func TestUpdatePassword(t *testing.T) {
	f := newFixture(t)
	f.identity.SignInFunc = func(email, password string) (*models.Session, error) {
		if password != "old" {
			return nil, &services.AuthError{Code: services.CodeInvalidCredential}
		}
		return session("u1", email, epoch.Add(time.Hour)), nil
	}
	var usedToken string
	f.identity.UpdatePasswordFunc = func(idToken, password string) (*models.Session, error) {
		usedToken = idToken
		s := session("u1", "ada@example.com", epoch.Add(2*time.Hour))
		s.IDToken = "after-change"
		return s, nil
	}

	if err := f.manager.UpdatePassword(context.Background(), "old", "new"); !errors.Is(err, shared.ErrNotSignedIn) {
		t.Errorf("expected ErrNotSignedIn, got %v", err)
	}
	if _, err := f.manager.SignIn(context.Background(), "ada@example.com", "old"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	if err := f.manager.UpdatePassword(context.Background(), "wrong", "new"); services.AuthCode(err) != services.CodeInvalidCredential {
		t.Errorf("expected re-authentication failure, got %v", err)
	}
	if slices.Contains(f.identity.Calls, "update_password") {
		t.Error("password must not change without re-authentication")
	}

	if err := f.manager.UpdatePassword(context.Background(), "old", "new"); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}
	if usedToken != "id-u1" {
		t.Errorf("expected fresh token from re-authentication, got %q", usedToken)
	}
	if tok, _ := f.manager.Token(context.Background()); tok != "after-change" {
		t.Errorf("expected new token, got %q", tok)
	}
}

type stubFederation struct {
	token string
	err   error
}

func (s stubFederation) IDToken(context.Context) (string, string, error) {
	return s.token, "http://localhost/callback", s.err
}

func TestSignInWithGoogle(t *testing.T) {
	t.Run("Not Configured", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.manager.SignInWithGoogle(context.Background()); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Success", func(t *testing.T) {
		f := newFixture(t, WithFederation(stubFederation{token: "google-token"}))
		f.identity.SignInWithIdPFunc = func(providerID, idToken string) (*models.Session, error) {
			if providerID != services.GoogleProviderID || idToken != "google-token" {
				t.Errorf("unexpected idp call %s %s", providerID, idToken)
			}
			s := session("g1", "ada@gmail.com", epoch.Add(time.Hour))
			s.Identity.ProviderID = services.GoogleProviderID
			return s, nil
		}
		id, err := f.manager.SignInWithGoogle(context.Background())
		if err != nil {
			t.Fatalf("SignInWithGoogle failed: %v", err)
		}
		if id.UID != "g1" {
			t.Errorf("unexpected identity %+v", id)
		}
		if err := f.manager.UpdatePassword(context.Background(), "a", "b"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("google accounts cannot change password here, got %v", err)
		}
	})

	t.Run("Popup Closed", func(t *testing.T) {
		f := newFixture(t, WithFederation(stubFederation{err: &services.AuthError{Code: services.CodePopupClosed}}))
		_, err := f.manager.SignInWithGoogle(context.Background())
		if services.AuthCode(err) != services.CodePopupClosed {
			t.Errorf("expected popup closed, got %v", err)
		}
		if slices.Contains(f.identity.Calls, "sign_in_idp") {
			t.Error("provider should not be called after abort")
		}
	})
}

func TestGoogleFlow(t *testing.T) {
	newFlow := func(t *testing.T, timeout int) *GoogleFlow {
		g, err := NewGoogleFlow(
			shared.GoogleConfig{ClientID: "client", ClientSecret: "secret"},
			shared.ServerConfig{Host: "127.0.0.1", Port: 0, CallbackWindow: timeout},
			shared.NewLogger(io.Discard),
		)
		if err != nil {
			t.Fatalf("NewGoogleFlow failed: %v", err)
		}
		return g
	}

	// follow plays the browser: it reads the redirect and state from the
	// consent URL and calls back with the given query.
	follow := func(t *testing.T, query func(state string) url.Values) func(string) error {
		return func(authURL string) error {
			u, err := url.Parse(authURL)
			if err != nil {
				t.Errorf("bad auth url: %v", err)
				return err
			}
			redirect := u.Query().Get("redirect_uri")
			state := u.Query().Get("state")
			go func() {
				resp, err := http.Get(redirect + "?" + query(state).Encode())
				if err == nil {
					resp.Body.Close()
				}
			}()
			return nil
		}
	}

	t.Run("Missing Client", func(t *testing.T) {
		_, err := NewGoogleFlow(shared.GoogleConfig{}, shared.ServerConfig{}, shared.NewLogger(io.Discard))
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Access Denied", func(t *testing.T) {
		g := newFlow(t, 5)
		g.Open = follow(t, func(state string) url.Values {
			return url.Values{"state": {state}, "error": {"access_denied"}}
		})
		_, _, err := g.IDToken(context.Background())
		if services.AuthCode(err) != services.CodePopupClosed {
			t.Errorf("expected popup closed, got %v", err)
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		g := newFlow(t, 1)
		g.Open = func(string) error { return nil }
		start := time.Now()
		_, _, err := g.IDToken(context.Background())
		if services.AuthCode(err) != services.CodePopupClosed {
			t.Errorf("expected popup closed, got %v", err)
		}
		if time.Since(start) > 5*time.Second {
			t.Error("timeout not honoured")
		}
	})

	t.Run("Code Exchange", func(t *testing.T) {
		tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"at","token_type":"Bearer","id_token":"google-id"}`))
		}))
		defer tokenServer.Close()
		g := newFlow(t, 5)
		g.config.Endpoint.TokenURL = tokenServer.URL
		g.Open = follow(t, func(state string) url.Values {
			return url.Values{"state": {state}, "code": {"auth-code"}}
		})

		idToken, requestURI, err := g.IDToken(context.Background())
		if err != nil {
			t.Fatalf("IDToken failed: %v", err)
		}
		if idToken != "google-id" {
			t.Errorf("unexpected id token %q", idToken)
		}
		if !strings.HasPrefix(requestURI, "http://127.0.0.1:") {
			t.Errorf("unexpected request uri %q", requestURI)
		}
	})
}
