package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/marquee/internal/auth"
	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
)

// AuthRegister creates an account with its profile and signs in.
func (r *Runner) AuthRegister(ctx context.Context, cmd *cli.Command) error {
	genres, err := models.ParseGenres(cmd.String("genres"))
	if err != nil {
		return err
	}
	if err := r.account(ctx); err != nil {
		return err
	}
	password := cmd.String("password")
	id, err := r.auth.Register(ctx, auth.RegisterInput{
		FirstName:       cmd.String("first-name"),
		LastName:        cmd.String("last-name"),
		Email:           cmd.String("email"),
		Password:        password,
		ConfirmPassword: password,
		Genres:          genres,
	})
	if err != nil {
		return err
	}
	return r.welcome(ctx, id)
}

// AuthLogin signs in with email and password.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.account(ctx); err != nil {
		return err
	}
	id, err := r.auth.SignIn(ctx, cmd.String("email"), cmd.String("password"))
	if err != nil {
		return err
	}
	return r.welcome(ctx, id)
}

// AuthGoogle signs in through the browser.
func (r *Runner) AuthGoogle(ctx context.Context, cmd *cli.Command) error {
	if err := r.account(ctx); err != nil {
		return err
	}
	r.writePlain("Opening browser for Google sign-in...\n")
	id, err := r.auth.SignInWithGoogle(ctx)
	if err != nil {
		return err
	}
	return r.welcome(ctx, id)
}

// welcome bootstraps the new session and reports the reconciled cart.
func (r *Runner) welcome(ctx context.Context, id *models.Identity) error {
	prog := r.progress()
	c, err := r.boot.SignIn(ctx, prog, *id)
	close(prog)
	if err != nil {
		return err
	}

	name := id.DisplayName
	if name == "" {
		name = id.Email
	}
	r.writePlain("✓ Signed in as %s\n", name)
	r.writePlain("  Cart: %d movie(s)\n", c.Len())
	return nil
}

// AuthLogout signs out. Pending cart writes finish first, then the local cart and
// purchase marker are cleared.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	id, err := r.bootstrap(ctx)
	if err != nil {
		return err
	}
	if id == nil {
		r.writePlain("Not signed in.\n")
		return nil
	}

	if err := r.auth.SignOut(); err != nil {
		r.logger.Warn("failed to clear stored session", "error", err)
	}
	r.boot.SignOut(ctx)
	r.writePlain("✓ Signed out %s\n", id.Email)
	return nil
}

type statusOutput struct {
	SignedIn  bool             `json:"signedIn"`
	Identity  *models.Identity `json:"identity,omitempty"`
	CartItems int              `json:"cartItems"`
	Owned     int              `json:"owned"`
}

// AuthStatus shows who is signed in.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	id, err := r.bootstrap(ctx)
	if err != nil {
		return err
	}

	snap := r.store.Snapshot()
	out := statusOutput{
		SignedIn:  id != nil,
		Identity:  id,
		CartItems: snap.Cart.Len(),
		Owned:     len(snap.Purchases.IDs()),
	}
	if cmd.Bool("json") {
		return r.writeJSON(out, cmd.Bool("pretty"))
	}

	if id == nil {
		r.writePlain("Not signed in (guest cart: %d movie(s))\n", out.CartItems)
		return nil
	}
	r.writePlainHeader("Account")
	r.writePlain("Name:     %s\n", id.DisplayName)
	r.writePlain("Email:    %s\n", id.Email)
	r.writePlain("Provider: %s\n", id.ProviderID)
	r.writePlain("Cart:     %d movie(s)\n", out.CartItems)
	r.writePlain("Owned:    %d movie(s)\n", out.Owned)
	return nil
}

// AuthPassword changes the password after re-authenticating.
func (r *Runner) AuthPassword(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.signedIn(ctx); err != nil {
		return err
	}
	if cmd.String("current") == cmd.String("new") {
		return fmt.Errorf("%w: new password must differ", shared.ErrInvalidInput)
	}
	if err := r.auth.UpdatePassword(ctx, cmd.String("current"), cmd.String("new")); err != nil {
		return err
	}
	r.writePlain("✓ Password updated\n")
	return nil
}
