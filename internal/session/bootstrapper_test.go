package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/marquee/internal/cart"
	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
	"github.com/desertthunder/marquee/internal/tasks"
	th "github.com/desertthunder/marquee/internal/testing"
)

var (
	movieA = models.Movie{ID: 42, Title: "A"}
	movieB = models.Movie{ID: 7, Title: "B"}
	movieC = models.Movie{ID: 3, Title: "C"}
)

type fixture struct {
	boot       *Bootstrapper
	store      *cart.Store
	cache      *th.MemoryCache
	profiles   *th.MemoryProfiles
	dispatcher *tasks.Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := shared.NewLogger(&bytes.Buffer{})
	f := &fixture{
		cache:      th.NewMemoryCache(),
		profiles:   th.NewMemoryProfiles(),
		dispatcher: tasks.NewDispatcher(context.Background(), logger),
	}
	f.store = cart.NewStore(f.cache, f.profiles, f.dispatcher, logger)
	f.boot = New(f.store, f.profiles, f.cache, f.dispatcher, logger)
	return f
}

func (f *fixture) cacheCart(t *testing.T, uid string, c models.Cart) {
	t.Helper()
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	f.cache.Set(models.CartCacheKey(uid), string(data))
}

func identity(uid string) models.Identity {
	return models.Identity{UID: uid, Email: uid + "@example.com", DisplayName: "Ada Lovelace"}
}

func TestSignIn(t *testing.T) {
	t.Run("first sign-in creates the profile", func(t *testing.T) {
		f := newFixture(t)
		f.cacheCart(t, "u1", models.NewCart(movieA))

		got, err := f.boot.SignIn(context.Background(), nil, identity("u1"))
		if err != nil {
			t.Fatalf("SignIn failed: %v", err)
		}
		f.dispatcher.Wait()

		if f.profiles.CallCount("create") != 1 {
			t.Errorf("expected profile creation, got %v", f.profiles.Calls())
		}
		p := f.profiles.Profile("u1")
		if p == nil || p.FirstName != "Ada" || p.LastName != "Lovelace" {
			t.Fatalf("unexpected created profile %+v", p)
		}
		if !got.Has("42") || !p.Cart.Has("42") {
			t.Errorf("local cart should seed memory and remote, got %v / %v", got.Keys(), p.Cart.Keys())
		}
	})

	t.Run("merges with local winning and filters purchases", func(t *testing.T) {
		f := newFixture(t)
		f.profiles.Put(&models.UserProfile{
			ID:             "u1",
			SelectedGenres: []int{28, 35, 12, 16, 27},
			Cart:           models.NewCart(movieA, models.Movie{ID: 7, Title: "B remote"}),
			Purchases:      models.Purchases{models.SinglePurchase(movieA)},
		})
		f.cacheCart(t, "u1", models.NewCart(movieB, movieC))

		prog := make(chan tasks.ProgressUpdate, 10)
		got, err := f.boot.SignIn(context.Background(), prog, identity("u1"))
		if err != nil {
			t.Fatalf("SignIn failed: %v", err)
		}
		f.dispatcher.Wait()

		if keys := got.Keys(); len(keys) != 2 || keys[0] != "7" || keys[1] != "3" {
			t.Fatalf("unexpected cart %v", keys)
		}
		if m, _ := got.Get("7"); m.Title != "B" {
			t.Errorf("local entry should win, got %q", m.Title)
		}
		if len(f.store.Genres()) != 5 {
			t.Errorf("expected genres loaded, got %v", f.store.Genres())
		}
		if !f.profiles.Profile("u1").Cart.Equal(got) {
			t.Error("remote mirror should receive the reconciled cart")
		}
		cached, _ := cart.ReadCachedCart(f.cache, models.CartCacheKey("u1"))
		if !cached.Equal(got) {
			t.Error("local cache should receive the reconciled cart")
		}
		marker, _ := cart.ReadPurchasedMarker(f.cache, "u1")
		if !marker.Contains("42") {
			t.Error("expected purchased marker")
		}

		close(prog)
		var phases []tasks.Phase
		for u := range prog {
			phases = append(phases, u.Phase)
		}
		if len(phases) != tasks.BootstrapSteps || phases[len(phases)-1] != tasks.PublishCart {
			t.Errorf("unexpected progress %v", phases)
		}
	})

	t.Run("malformed cache degrades to empty", func(t *testing.T) {
		f := newFixture(t)
		f.profiles.Put(&models.UserProfile{ID: "u1", Cart: models.NewCart(movieB)})
		f.cache.Set(models.CartCacheKey("u1"), "[[[")

		got, err := f.boot.SignIn(context.Background(), nil, identity("u1"))
		if err != nil {
			t.Fatalf("SignIn failed: %v", err)
		}
		if got.Len() != 1 || !got.Has("7") {
			t.Errorf("expected remote cart only, got %v", got.Keys())
		}
	})

	t.Run("remote failure falls back to the purchased marker", func(t *testing.T) {
		f := newFixture(t)
		f.profiles.GetErr = errors.New("unavailable")
		f.cacheCart(t, "u1", models.NewCart(movieA, movieB))
		cart.WritePurchasedMarker(f.cache, "u1", models.Purchases{models.SinglePurchase(movieA)})

		got, err := f.boot.SignIn(context.Background(), nil, identity("u1"))
		if err != nil {
			t.Fatalf("SignIn failed: %v", err)
		}
		if got.Len() != 1 || !got.Has("7") {
			t.Errorf("expected purchased movie filtered, got %v", got.Keys())
		}
		if f.store.CanAdd("42") {
			t.Error("marker purchases should block re-adding")
		}
	})

	t.Run("empty uid", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.boot.SignIn(context.Background(), nil, models.Identity{}); !errors.Is(err, shared.ErrNotSignedIn) {
			t.Errorf("expected ErrNotSignedIn, got %v", err)
		}
	})
}

func TestSignOut(t *testing.T) {
	t.Run("clears local state only", func(t *testing.T) {
		f := newFixture(t)
		f.profiles.Put(&models.UserProfile{ID: "u1", Purchases: models.Purchases{models.SinglePurchase(movieC)}})
		f.boot.SignIn(context.Background(), nil, identity("u1"))
		f.store.Add(movieA)

		f.boot.SignOut(context.Background())

		if _, ok := f.cache.Peek(models.CartCacheKey("u1")); ok {
			t.Error("cached cart should be removed")
		}
		if _, ok := f.cache.Peek(models.PurchasedCacheKey("u1")); ok {
			t.Error("purchased marker should be removed")
		}
		if f.store.User() != nil || !f.store.Cart().Empty() || len(f.store.Purchases()) != 0 {
			t.Errorf("store should be reset, got %+v", f.store.Snapshot())
		}
		if p := f.profiles.Profile("u1"); !p.Cart.Has("42") || len(p.Purchases) != 1 {
			t.Errorf("remote profile should be untouched, got %+v", p)
		}
	})

	t.Run("sign-in again restores the cart", func(t *testing.T) {
		f := newFixture(t)
		f.boot.SignIn(context.Background(), nil, identity("u1"))
		f.store.Add(movieA)
		f.store.Add(movieB)

		f.boot.SignOut(context.Background())
		got, err := f.boot.SignIn(context.Background(), nil, identity("u1"))
		if err != nil {
			t.Fatalf("SignIn failed: %v", err)
		}
		if got.Len() != 2 || !got.Has("42") || !got.Has("7") {
			t.Errorf("expected restored cart, got %v", got.Keys())
		}
	})

	t.Run("failed remote write keeps the local cart", func(t *testing.T) {
		f := newFixture(t)
		f.profiles.Put(&models.UserProfile{ID: "u1"})
		f.boot.SignIn(context.Background(), nil, identity("u1"))
		f.profiles.UpdateCartErr = errors.New("unavailable")
		f.store.Add(movieA)

		f.boot.SignOut(context.Background())

		if _, ok := f.cache.Peek(models.CartCacheKey("u1")); !ok {
			t.Error("cached cart should survive a failed remote write")
		}
		if _, ok := f.cache.Peek(models.PurchasedCacheKey("u1")); ok {
			t.Error("purchased marker should be removed")
		}
		if f.store.User() != nil || !f.store.Cart().Empty() {
			t.Errorf("store should be reset, got %+v", f.store.Snapshot())
		}

		f.profiles.UpdateCartErr = nil
		got, err := f.boot.SignIn(context.Background(), nil, identity("u1"))
		if err != nil {
			t.Fatalf("SignIn failed: %v", err)
		}
		if got.Len() != 1 || !got.Has("42") {
			t.Errorf("expected cart restored from the local cache, got %v", got.Keys())
		}
	})

	t.Run("unflushed remote write keeps the local cart", func(t *testing.T) {
		f := newFixture(t)
		f.profiles.Put(&models.UserProfile{ID: "u1"})
		f.boot.SignIn(context.Background(), nil, identity("u1"))
		gate := make(chan struct{})
		defer close(gate)
		f.profiles.UpdateCartGate = gate
		f.store.Add(movieA)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		defer cancel()
		f.boot.SignOut(ctx)

		if _, ok := f.cache.Peek(models.CartCacheKey("u1")); !ok {
			t.Error("cached cart should survive an unflushed remote write")
		}
		if f.store.User() != nil {
			t.Error("store should be reset")
		}
	})

	t.Run("local cache alone seeds an empty remote", func(t *testing.T) {
		f := newFixture(t)
		f.profiles.Put(&models.UserProfile{ID: "u1"})
		f.cacheCart(t, "u1", models.NewCart(movieB))

		got, _ := f.boot.SignIn(context.Background(), nil, identity("u1"))
		if got.Len() != 1 || !got.Has("7") {
			t.Errorf("expected cached cart, got %v", got.Keys())
		}
	})
}

func TestLastEventWins(t *testing.T) {
	f := newFixture(t)
	f.profiles.Put(&models.UserProfile{ID: "u1", Cart: models.NewCart(movieA)})
	f.profiles.Put(&models.UserProfile{ID: "u2", Cart: models.NewCart(movieB)})
	f.profiles.Gate = make(chan struct{})

	first := make(chan error, 1)
	go func() {
		_, err := f.boot.SignIn(context.Background(), nil, identity("u1"))
		first <- err
	}()
	time.Sleep(10 * time.Millisecond)

	second := make(chan error, 1)
	go func() {
		second <- f.boot.Handle(context.Background(), nil, &models.Identity{UID: "u2"})
	}()
	time.Sleep(10 * time.Millisecond)
	close(f.profiles.Gate)

	if err := <-first; !errors.Is(err, shared.ErrSuperseded) {
		t.Errorf("expected first sign-in superseded, got %v", err)
	}
	if err := <-second; err != nil {
		t.Errorf("second sign-in failed: %v", err)
	}
	if u := f.store.User(); u == nil || u.UID != "u2" {
		t.Fatalf("expected u2 to win, got %v", u)
	}
	if f.store.IsInCart("42") {
		t.Error("superseded cart must not be published")
	}
}

func TestRun(t *testing.T) {
	f := newFixture(t)
	f.profiles.Put(&models.UserProfile{ID: "u1"})

	events := make(chan *models.Identity, 2)
	events <- &models.Identity{UID: "u1"}
	events <- nil
	close(events)

	if err := f.boot.Run(context.Background(), events); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if f.store.User() != nil {
		t.Error("expected signed-out state after the last event")
	}
	if f.profiles.CallCount("get") != 1 {
		t.Errorf("expected one profile fetch, got %d", f.profiles.CallCount("get"))
	}
}

func TestGuest(t *testing.T) {
	f := newFixture(t)
	f.cacheCart(t, "", models.NewCart(movieC))

	got := f.boot.Guest()
	f.dispatcher.Wait()

	if got.Len() != 1 || f.store.User() != nil {
		t.Errorf("expected guest cart, got %v", got.Keys())
	}
	if len(f.profiles.Calls()) != 0 {
		t.Error("guest session must not reach the profile store")
	}
}
