package services

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/desertthunder/marquee/internal/shared"
)

// TokenVerifier checks Firebase id tokens with the Admin SDK.
type TokenVerifier struct {
	client *firebaseauth.Client
}

// NewTokenVerifier creates a verifier from an initialized Firebase app.
func NewTokenVerifier(ctx context.Context, app *firebase.App) (*TokenVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return &TokenVerifier{client: client}, nil
}

// Verify validates idToken and returns the uid it was issued for.
func (v *TokenVerifier) Verify(ctx context.Context, idToken string) (string, error) {
	tok, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		if firebaseauth.IsIDTokenExpired(err) {
			return "", fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
		}
		return "", fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	return tok.UID, nil
}
