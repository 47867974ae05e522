package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/marquee/internal/formatter"
	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
)

// CartList prints the reconciled cart of the current session, or the guest cart.
func (r *Runner) CartList(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.bootstrap(ctx); err != nil {
		return err
	}
	c := r.store.Cart()

	switch {
	case cmd.Bool("csv"):
		data, err := formatter.CartToCSV(c)
		if err != nil {
			return err
		}
		_, err = r.output.Write(data)
		return err
	case cmd.Bool("json"):
		return r.writeJSON(c, cmd.Bool("pretty"))
	}

	if c.Empty() {
		r.writePlain("Your cart is empty.\n")
		return nil
	}
	r.writePlainHeader(fmt.Sprintf("Cart (%d)", c.Len()))
	for _, m := range c.Movies() {
		r.writePlain("%8d  %s (%s)\n", m.ID, m.Title, m.Year())
	}
	return nil
}

// CartAdd fetches the movie and adds it to the cart.
func (r *Runner) CartAdd(ctx context.Context, cmd *cli.Command) error {
	id, err := r.movieArg(cmd)
	if err != nil {
		return err
	}
	if _, err := r.bootstrap(ctx); err != nil {
		return err
	}

	switch {
	case r.store.IsPurchased(id):
		return fmt.Errorf("%w: %s", shared.ErrAlreadyOwned, id)
	case r.store.IsInCart(id):
		r.writePlain("Already in cart.\n")
		return nil
	}

	catalog, err := r.movies(ctx)
	if err != nil {
		return err
	}
	movie, err := catalog.Movie(ctx, id.Int())
	if err != nil {
		return err
	}
	if !r.store.Add(*movie) {
		return fmt.Errorf("%w: %s", shared.ErrInvalidMovie, id)
	}
	r.writePlain("✓ Added %s (%d in cart)\n", movie.Title, r.store.Cart().Len())
	return nil
}

// CartRemove removes a movie from the cart.
func (r *Runner) CartRemove(ctx context.Context, cmd *cli.Command) error {
	id, err := r.movieArg(cmd)
	if err != nil {
		return err
	}
	if _, err := r.bootstrap(ctx); err != nil {
		return err
	}

	m, ok := r.store.Cart().Get(id)
	if !ok || !r.store.Remove(id) {
		r.writePlain("Not in cart.\n")
		return nil
	}
	r.writePlain("✓ Removed %s (%d in cart)\n", m.Title, r.store.Cart().Len())
	return nil
}

// CartClear empties the cart.
func (r *Runner) CartClear(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.bootstrap(ctx); err != nil {
		return err
	}
	n := r.store.Cart().Len()
	r.store.Clear()
	r.writePlain("✓ Removed %d movie(s)\n", n)
	return nil
}

type checkoutOutput struct {
	OrderID     string         `json:"orderId"`
	PurchasedAt time.Time      `json:"purchasedAt"`
	Movies      []models.Movie `json:"movies"`
}

// CartCheckout buys the cart. Nothing changes locally unless the purchase is recorded remotely.
func (r *Runner) CartCheckout(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.signedIn(ctx); err != nil {
		return err
	}

	purchase, err := r.store.Checkout(ctx)
	if errors.Is(err, shared.ErrEmptyCart) {
		r.writePlain("Your cart is empty.\n")
		return nil
	}
	if err != nil {
		return err
	}

	out := checkoutOutput{Movies: purchase.Movies(), PurchasedAt: purchase.Time()}
	if purchase.Batch != nil {
		out.OrderID = purchase.Batch.OrderID
	}
	if cmd.Bool("json") {
		return r.writeJSON(out, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Order " + out.OrderID)
	for _, m := range out.Movies {
		r.writePlain("  ✓ %s (%s)\n", m.Title, m.Year())
	}
	r.writePlain("\nThanks! %d movie(s) added to your library.\n", len(out.Movies))
	return nil
}

func (r *Runner) movieArg(cmd *cli.Command) (models.MovieID, error) {
	arg, err := requireArg(cmd, "id")
	if err != nil {
		return "", err
	}
	id, err := models.ParseMovieID(arg)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return id, nil
}
