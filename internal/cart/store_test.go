package cart

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
	"github.com/desertthunder/marquee/internal/tasks"
	th "github.com/desertthunder/marquee/internal/testing"
)

var (
	movieA = models.Movie{ID: 42, Title: "A"}
	movieB = models.Movie{ID: 7, Title: "B"}
	movie9 = models.Movie{ID: 9, Title: "Nine"}
)

type fixture struct {
	store      *Store
	cache      *th.MemoryCache
	profiles   *th.MemoryProfiles
	dispatcher *tasks.Dispatcher
	logs       *bytes.Buffer
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	var logs bytes.Buffer
	logger := shared.NewLogger(&logs)
	f := &fixture{
		cache:      th.NewMemoryCache(),
		profiles:   th.NewMemoryProfiles(),
		dispatcher: tasks.NewDispatcher(context.Background(), logger),
		logs:       &logs,
	}
	f.store = NewStore(f.cache, f.profiles, f.dispatcher, logger, opts...)
	return f
}

func (f *fixture) signIn(uid string, purchases models.Purchases) {
	f.profiles.Put(&models.UserProfile{ID: uid, Email: uid + "@example.com"})
	f.store.Load(&models.Identity{UID: uid, Email: uid + "@example.com"}, models.Cart{}, purchases, []int{28})
	f.dispatcher.Wait()
}

type recordingReceipts struct {
	mu   sync.Mutex
	sent []models.Purchase
	err  error
}

func (r *recordingReceipts) SendReceipt(ctx context.Context, to models.Identity, p models.Purchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, p)
	return r.err
}

func TestStoreAdd(t *testing.T) {
	t.Run("inserts and persists", func(t *testing.T) {
		f := newFixture(t)
		f.signIn("u1", nil)

		if !f.store.Add(movieA) {
			t.Fatal("expected add to succeed")
		}
		f.dispatcher.Wait()

		if !f.store.IsInCart("42") {
			t.Error("expected movie in cart")
		}
		cached, err := ReadCachedCart(f.cache, models.CartCacheKey("u1"))
		if err != nil || !cached.Has("42") {
			t.Errorf("expected cached cart, got %v (%v)", cached.Keys(), err)
		}
		if got := f.profiles.Profile("u1").Cart; !got.Has("42") {
			t.Errorf("expected remote mirror to contain movie, got %v", got.Keys())
		}
	})

	t.Run("rejects zero id", func(t *testing.T) {
		f := newFixture(t)
		if f.store.Add(models.Movie{Title: "no id"}) {
			t.Error("expected add to fail")
		}
		if f.cache.Sets(models.CartCacheKey("")) != 0 {
			t.Error("rejected add should not persist")
		}
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		f := newFixture(t)
		f.store.Add(movieA)
		if f.store.Add(models.Movie{ID: 42, Title: "A again"}) {
			t.Error("expected duplicate add to fail")
		}
		if f.store.Cart().Len() != 1 {
			t.Errorf("expected 1 item, got %d", f.store.Cart().Len())
		}
		if m, _ := f.store.Cart().Get("42"); m.Title != "A" {
			t.Errorf("duplicate add should not overwrite, got %q", m.Title)
		}
	})

	t.Run("rejects purchased movies in either shape", func(t *testing.T) {
		f := newFixture(t)
		f.signIn("u1", models.Purchases{
			models.SinglePurchase(movieA),
			models.NewBatchPurchase("o1", models.NewCart(movieB), time.Now()),
		})

		if f.store.Add(movieA) || f.store.Add(movieB) {
			t.Error("expected purchased movies to be rejected")
		}
		if !f.store.Cart().Empty() {
			t.Error("cart should stay empty")
		}
		if f.store.CanAdd("42") || f.store.CanAdd("7") || !f.store.CanAdd("9") {
			t.Error("CanAdd disagrees with purchases")
		}
	})

	t.Run("guest cart stays local", func(t *testing.T) {
		f := newFixture(t)
		f.store.Add(movie9)
		f.dispatcher.Wait()

		if _, ok := f.cache.Peek(models.CartCacheKey("")); !ok {
			t.Error("expected guest cart in local cache")
		}
		if len(f.profiles.Calls()) != 0 {
			t.Errorf("guest cart should not reach the profile store, got %v", f.profiles.Calls())
		}
	})
}

func TestStoreRemove(t *testing.T) {
	f := newFixture(t)
	f.signIn("u1", nil)
	f.store.Add(movieA)
	f.store.Add(movieB)
	f.dispatcher.Wait()
	before := f.cache.Sets(models.CartCacheKey("u1"))

	if !f.store.Remove("42") {
		t.Fatal("expected first remove to succeed")
	}
	if f.store.Remove("42") {
		t.Error("second remove should be a no-op")
	}
	if got := f.cache.Sets(models.CartCacheKey("u1")) - before; got != 1 {
		t.Errorf("expected 1 persist, got %d", got)
	}
	f.dispatcher.Wait()

	if keys := f.profiles.Profile("u1").Cart.Keys(); len(keys) != 1 || keys[0] != "7" {
		t.Errorf("unexpected remote cart %v", keys)
	}
}

func TestStoreReplace(t *testing.T) {
	t.Run("updater on empty cart persists once", func(t *testing.T) {
		f := newFixture(t)
		f.signIn("u1", nil)
		before := f.cache.Sets(models.CartCacheKey("u1"))
		updates := f.profiles.CallCount("update_cart")

		got := f.store.Replace(func(c models.Cart) models.Cart { return c.Set(movie9) })
		f.dispatcher.Wait()

		if got.Len() != 1 || !got.Has("9") {
			t.Errorf("unexpected cart %v", got.Keys())
		}
		if n := f.cache.Sets(models.CartCacheKey("u1")) - before; n != 1 {
			t.Errorf("expected 1 local write, got %d", n)
		}
		if n := f.profiles.CallCount("update_cart") - updates; n != 1 {
			t.Errorf("expected 1 remote write, got %d", n)
		}
	})

	t.Run("value replacement drops purchased entries", func(t *testing.T) {
		f := newFixture(t)
		f.signIn("u1", models.Purchases{models.SinglePurchase(movieA)})

		got := f.store.Set(models.NewCart(movieA, movieB))
		if got.Len() != 1 || !got.Has("7") {
			t.Errorf("expected only B, got %v", got.Keys())
		}
	})
}

func TestPersistPipeline(t *testing.T) {
	t.Run("falls back to merge when profile is missing", func(t *testing.T) {
		f := newFixture(t)
		f.store.Load(&models.Identity{UID: "ghost"}, models.Cart{}, nil, nil)
		f.store.Add(movieA)
		f.dispatcher.Wait()

		if f.profiles.CallCount("merge_cart") == 0 {
			t.Error("expected merge fallback")
		}
		if p := f.profiles.Profile("ghost"); p == nil || !p.Cart.Has("42") {
			t.Error("expected merged remote cart")
		}
	})

	t.Run("other remote errors are swallowed", func(t *testing.T) {
		f := newFixture(t)
		f.signIn("u1", nil)
		f.profiles.UpdateCartErr = errors.New("unavailable")

		if !f.store.Add(movieA) {
			t.Fatal("add should succeed despite remote failure")
		}
		f.dispatcher.Wait()

		if f.profiles.CallCount("merge_cart") != 0 {
			t.Error("non not-found errors must not fall back to merge")
		}
		if !f.store.IsInCart("42") {
			t.Error("in-memory state should stay authoritative")
		}
		if f.dispatcher.Failures() == 0 {
			t.Error("expected failure to be recorded")
		}
	})

	t.Run("local cache failure keeps memory", func(t *testing.T) {
		f := newFixture(t)
		f.cache.SetErr = errors.New("disk full")
		if !f.store.Add(movieA) || !f.store.IsInCart("42") {
			t.Error("expected add to succeed in memory")
		}
	})

	t.Run("remote writes land in mutation order", func(t *testing.T) {
		f := newFixture(t)
		f.signIn("u1", nil)
		for i := int64(1); i <= 10; i++ {
			f.store.Add(models.Movie{ID: i, Title: "m"})
		}
		f.store.Remove("3")
		f.dispatcher.Wait()

		if got := f.profiles.Profile("u1").Cart; !got.Equal(f.store.Cart()) {
			t.Errorf("remote mirror %v diverged from memory %v", got.Keys(), f.store.Cart().Keys())
		}
	})
}

func TestCheckout(t *testing.T) {
	t.Run("requires a user", func(t *testing.T) {
		f := newFixture(t)
		f.store.Add(movieA)
		if _, err := f.store.Checkout(context.Background()); !errors.Is(err, shared.ErrNotSignedIn) {
			t.Errorf("expected ErrNotSignedIn, got %v", err)
		}
	})

	t.Run("empty cart leaves purchases unchanged", func(t *testing.T) {
		f := newFixture(t)
		f.signIn("u1", models.Purchases{models.SinglePurchase(movieB)})

		if _, err := f.store.Checkout(context.Background()); !errors.Is(err, shared.ErrEmptyCart) {
			t.Errorf("expected ErrEmptyCart, got %v", err)
		}
		if len(f.store.Purchases()) != 1 {
			t.Errorf("expected purchases unchanged, got %d", len(f.store.Purchases()))
		}
		if f.profiles.CallCount("record_purchase") != 0 {
			t.Error("no remote write expected")
		}
	})

	t.Run("commits after remote write", func(t *testing.T) {
		receipts := &recordingReceipts{}
		at := time.Date(2024, 5, 4, 12, 0, 0, 0, time.UTC)
		f := newFixture(t, WithReceipts(receipts), WithClock(func() time.Time { return at }))
		f.signIn("u1", nil)
		f.store.Add(movieA)
		f.store.Add(movieB)
		f.dispatcher.Wait()

		p, err := f.store.Checkout(context.Background())
		if err != nil {
			t.Fatalf("Checkout failed: %v", err)
		}
		f.dispatcher.Wait()

		if p.Batch == nil || p.Batch.Total != 2 || !p.Batch.Timestamp.Equal(at) || p.Batch.OrderID == "" {
			t.Errorf("unexpected purchase %+v", p.Batch)
		}
		if !f.store.Cart().Empty() {
			t.Error("cart should be cleared")
		}
		if !f.store.IsPurchased("42") || !f.store.IsPurchased("7") {
			t.Error("expected both movies purchased")
		}
		if _, ok := f.cache.Peek(models.CartCacheKey("u1")); ok {
			t.Error("cached cart should be removed")
		}
		marker, err := ReadPurchasedMarker(f.cache, "u1")
		if err != nil || !marker.Contains("42") || !marker.Contains("7") {
			t.Errorf("expected purchased marker, got %v (%v)", marker.IDs(), err)
		}
		remote := f.profiles.Profile("u1")
		if len(remote.Purchases) != 1 || !remote.Cart.Empty() {
			t.Errorf("unexpected remote profile %+v", remote)
		}
		if len(receipts.sent) != 1 {
			t.Errorf("expected 1 receipt, got %d", len(receipts.sent))
		}
		if f.store.Add(movieA) {
			t.Error("purchased movie should not be addable")
		}
	})

	t.Run("waits for queued cart writes before recording", func(t *testing.T) {
		f := newFixture(t)
		f.signIn("u1", nil)
		gate := make(chan struct{})
		f.profiles.UpdateCartGate = gate
		f.store.Add(movieA)

		type result struct {
			p   *models.Purchase
			err error
		}
		done := make(chan result, 1)
		go func() {
			p, err := f.store.Checkout(context.Background())
			done <- result{p, err}
		}()

		select {
		case <-done:
			t.Fatal("checkout returned while a cart write was still queued")
		case <-time.After(20 * time.Millisecond):
		}
		if f.profiles.CallCount("record_purchase") != 0 {
			t.Fatal("purchase recorded before the queued cart write")
		}

		close(gate)
		r := <-done
		if r.err != nil {
			t.Fatalf("Checkout failed: %v", r.err)
		}
		f.dispatcher.Wait()

		remote := f.profiles.Profile("u1")
		if !remote.Cart.Empty() || len(remote.Purchases) != 1 {
			t.Errorf("expected cleared remote cart and one purchase, got %+v", remote)
		}
		if !f.store.Cart().Empty() {
			t.Error("cart should be cleared")
		}
	})

	t.Run("remote failure rolls nothing forward", func(t *testing.T) {
		f := newFixture(t)
		f.signIn("u1", nil)
		f.store.Add(movieA)
		f.profiles.RecordPurchaseErr = errors.New("unavailable")

		_, err := f.store.Checkout(context.Background())
		if !errors.Is(err, shared.ErrCheckoutWrite) {
			t.Fatalf("expected ErrCheckoutWrite, got %v", err)
		}
		if len(f.store.Purchases()) != 0 {
			t.Error("purchases must stay unmutated")
		}
		if !f.store.IsInCart("42") {
			t.Error("cart must be kept")
		}
		if _, ok := f.cache.Peek(models.PurchasedCacheKey("u1")); ok {
			t.Error("marker should not be written")
		}
	})

	t.Run("receipt failure is swallowed", func(t *testing.T) {
		receipts := &recordingReceipts{err: errors.New("smtp down")}
		f := newFixture(t, WithReceipts(receipts))
		f.signIn("u1", nil)
		f.store.Add(movieA)

		if _, err := f.store.Checkout(context.Background()); err != nil {
			t.Fatalf("Checkout failed: %v", err)
		}
		f.dispatcher.Wait()
		if f.dispatcher.Failures() != 1 {
			t.Errorf("expected receipt failure to be logged, got %d", f.dispatcher.Failures())
		}
	})
}

func TestStoreLoadAndReset(t *testing.T) {
	f := newFixture(t)

	var snaps []Snapshot
	f.store.Subscribe(func(s Snapshot) { snaps = append(snaps, s) })

	got := f.store.Load(
		&models.Identity{UID: "u1"},
		models.NewCart(movieA, movieB),
		models.Purchases{models.SinglePurchase(movieA)},
		[]int{28, 35},
	)
	if got.Len() != 1 || !got.Has("7") {
		t.Errorf("expected filtered cart {7}, got %v", got.Keys())
	}
	if u := f.store.User(); u == nil || u.UID != "u1" {
		t.Errorf("unexpected user %v", u)
	}

	f.store.Reset()
	f.dispatcher.Wait()

	if f.store.User() != nil || !f.store.Cart().Empty() || len(f.store.Purchases()) != 0 || len(f.store.Genres()) != 0 {
		t.Errorf("expected empty state after reset, got %+v", f.store.Snapshot())
	}
	if len(snaps) != 2 {
		t.Errorf("expected 2 notifications, got %d", len(snaps))
	}
	if f.profiles.CallCount("update_settings") != 0 {
		t.Error("reset must not touch the remote profile")
	}
}

func TestCachedReads(t *testing.T) {
	cache := th.NewMemoryCache()

	t.Run("missing cart", func(t *testing.T) {
		c, err := ReadCachedCart(cache, "cart:nobody")
		if err != nil || !c.Empty() {
			t.Errorf("expected empty cart, got %v (%v)", c.Keys(), err)
		}
	})

	t.Run("malformed cart degrades to empty", func(t *testing.T) {
		cache.Set("cart:u1", "{not json")
		c, err := ReadCachedCart(cache, "cart:u1")
		if err != nil || !c.Empty() {
			t.Errorf("expected empty cart, got %v (%v)", c.Keys(), err)
		}
	})

	t.Run("cache error surfaces", func(t *testing.T) {
		broken := th.NewMemoryCache()
		broken.GetErr = errors.New("locked")
		if _, err := ReadCachedCart(broken, "cart:u1"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("marker round trip", func(t *testing.T) {
		ps := models.Purchases{models.NewBatchPurchase("o", models.NewCart(movieA, movieB), time.Now())}
		if err := WritePurchasedMarker(cache, "u2", ps); err != nil {
			t.Fatal(err)
		}
		got, err := ReadPurchasedMarker(cache, "u2")
		if err != nil || len(got) != 2 || !got.Contains("7") {
			t.Errorf("unexpected marker %v (%v)", got.IDs(), err)
		}
	})
}
