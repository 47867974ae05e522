package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/desertthunder/marquee/internal/server"
	"github.com/desertthunder/marquee/internal/services"
	"github.com/desertthunder/marquee/internal/shared"
)

// GoogleFlow runs the authorization code flow against a local callback server
// and yields the Google id token.
type GoogleFlow struct {
	config  oauth2.Config
	addr    string
	timeout time.Duration
	logger  *log.Logger

	// Open shows the consent page; it defaults to [shared.OpenBrowser].
	Open func(url string) error
}

// NewGoogleFlow builds the flow from the configured OAuth client and callback server.
func NewGoogleFlow(creds shared.GoogleConfig, srv shared.ServerConfig, logger *log.Logger) (*GoogleFlow, error) {
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: google client_id", shared.ErrMissingCredentials)
	}
	redirect := creds.RedirectURI
	if redirect == "" {
		redirect = fmt.Sprintf("http://%s/callback", srv.Addr())
	}
	return &GoogleFlow{
		config: oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  redirect,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		addr:    srv.Addr(),
		timeout: srv.CallbackTimeout(),
		logger:  shared.WithLogger(logger, "component", "google"),
		Open:    shared.OpenBrowser,
	}, nil
}

// IDToken opens the consent page and waits for the callback. Closing the page,
// denying consent or letting the window lapse reports
// [services.CodePopupClosed].
func (g *GoogleFlow) IDToken(ctx context.Context) (string, string, error) {
	state := shared.GenerateID()
	router := server.NewBasicRouter()
	router.Use(server.Recover(g.logger), server.Logging(g.logger))

	srv, err := server.Listen(g.addr, router, g.logger)
	if err != nil {
		return "", "", err
	}

	config := g.config
	if isEphemeral(g.addr) {
		config.RedirectURL = fmt.Sprintf("http://%s/callback", srv.Addr())
	}
	handler := server.NewOAuthHandler(&config, state)
	router.Handler(handler)

	serverErrors := srv.Serve()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			g.logger.Warn("callback server shutdown failed", "error", err)
		}
	}()

	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOnline)

	g.logger.Info("opening browser for Google sign-in")
	if err := g.Open(authURL); err != nil {
		g.logger.Warn("could not open browser, visit the URL manually", "url", authURL, "error", err)
	}

	select {
	case result := <-handler.Result():
		if err := result.Error(); err != nil {
			if errors.Is(err, shared.ErrCallbackRejected) {
				return "", "", &services.AuthError{Code: services.CodePopupClosed, Message: err.Error()}
			}
			return "", "", err
		}
		if result.IDToken == "" {
			return "", "", fmt.Errorf("%w: google response carried no id token", shared.ErrAuthFailed)
		}
		return result.IDToken, config.RedirectURL, nil
	case err := <-serverErrors:
		return "", "", fmt.Errorf("callback server failed: %w", err)
	case <-time.After(g.timeout):
		return "", "", &services.AuthError{Code: services.CodePopupClosed, Message: "sign-in window timed out"}
	case <-ctx.Done():
		return "", "", &services.AuthError{Code: services.CodePopupClosed, Message: ctx.Err().Error()}
	}
}

func isEphemeral(addr string) bool {
	_, port, err := net.SplitHostPort(addr)
	return err == nil && port == "0"
}
