package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
	"github.com/desertthunder/marquee/internal/tasks"
)

// ReceiptSender delivers a purchase confirmation after a successful checkout.
type ReceiptSender interface {
	SendReceipt(ctx context.Context, to models.Identity, purchase models.Purchase) error
}

// Snapshot is a consistent copy of the store state.
type Snapshot struct {
	User      *models.Identity
	Cart      models.Cart
	Purchases models.Purchases
	Genres    []int
}

// Store is the single source of truth for the session cart.
//
// Every accepted mutation is filtered against purchases, written to the local cache
// synchronously and, when a user is signed in, upserted to the remote profile on the
// dispatcher under the user's id.
type Store struct {
	mu        sync.Mutex
	checkout  sync.Mutex
	user      *models.Identity
	cart      models.Cart
	purchases models.Purchases
	genres    []int
	listeners []func(Snapshot)

	cache      models.LocalCache
	profiles   models.ProfileStore
	dispatcher *tasks.Dispatcher
	receipts   ReceiptSender
	logger     *log.Logger
	now        func() time.Time
}

// Option configures a [Store].
type Option func(*Store)

// WithReceipts sends a receipt after every checkout.
func WithReceipts(r ReceiptSender) Option {
	return func(s *Store) { s.receipts = r }
}

// WithClock overrides the purchase timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty guest store.
func NewStore(cache models.LocalCache, profiles models.ProfileStore, dispatcher *tasks.Dispatcher, logger *log.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	s := &Store{
		cache:      cache,
		profiles:   profiles,
		dispatcher: dispatcher,
		logger:     shared.WithLogger(logger, "component", "cart"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn to receive the state after every change.
func (s *Store) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Load replaces the whole session state and runs the persist pipeline on the cart.
// A nil user loads a guest session.
func (s *Store) Load(user *models.Identity, c models.Cart, purchases models.Purchases, genres []int) models.Cart {
	s.mu.Lock()
	if user != nil {
		u := *user
		s.user = &u
	} else {
		s.user = nil
	}
	s.purchases = slices.Clone(purchases)
	s.genres = slices.Clone(genres)
	s.cart = s.persistLocked(c)
	out, snap := s.cart, s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return out
}

// Reset clears user, genres, purchases and cart in memory only.
func (s *Store) Reset() {
	s.mu.Lock()
	s.user = nil
	s.cart = models.Cart{}
	s.purchases = nil
	s.genres = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Add inserts m. It reports false, leaving the cart untouched, when m has no id,
// is already in the cart, or has been purchased.
func (s *Store) Add(m models.Movie) bool {
	s.mu.Lock()
	id := m.Key()
	if !m.Valid() || s.cart.Has(id) || s.purchases.Contains(id) {
		s.mu.Unlock()
		return false
	}
	s.cart = s.persistLocked(s.cart.Set(m))
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// Remove deletes id. It reports false when id is not in the cart.
func (s *Store) Remove(id models.MovieID) bool {
	s.mu.Lock()
	if !s.cart.Has(id) {
		s.mu.Unlock()
		return false
	}
	s.cart = s.persistLocked(s.cart.Delete(id))
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// Replace computes the next cart from the current one. Purchased entries are
// dropped before the result is accepted.
func (s *Store) Replace(update func(models.Cart) models.Cart) models.Cart {
	s.mu.Lock()
	s.cart = s.persistLocked(update(s.cart))
	out, snap := s.cart, s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return out
}

// Set replaces the cart with c.
func (s *Store) Set(c models.Cart) models.Cart {
	return s.Replace(func(models.Cart) models.Cart { return c })
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.Set(models.Cart{})
}

// SetGenres updates the in-memory genre preferences.
func (s *Store) SetGenres(genres []int) {
	s.mu.Lock()
	s.genres = slices.Clone(genres)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Store) IsInCart(id models.MovieID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Has(id)
}

func (s *Store) IsPurchased(id models.MovieID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purchases.Contains(id)
}

// CanAdd reports whether Add(movie with id) would be accepted.
func (s *Store) CanAdd(id models.MovieID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return id != "" && !s.cart.Has(id) && !s.purchases.Contains(id)
}

func (s *Store) Cart() models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart
}

func (s *Store) Purchases() models.Purchases {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.purchases)
}

func (s *Store) Genres() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.genres)
}

// User returns the signed-in identity, or nil for a guest.
func (s *Store) User() *models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Snapshot returns a copy of the whole state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Checkout records the cart as one batch purchase.
//
// Pending remote cart writes for the user are flushed, then the purchase is written
// remotely; memory, the local cache and the purchased marker change only after that
// write succeeds. Movies added while the write is in flight stay in the cart.
func (s *Store) Checkout(ctx context.Context) (*models.Purchase, error) {
	s.checkout.Lock()
	defer s.checkout.Unlock()

	s.mu.Lock()
	user, items := s.user, s.cart
	s.mu.Unlock()

	if user == nil {
		return nil, shared.ErrNotSignedIn
	}
	if items.Empty() {
		return nil, shared.ErrEmptyCart
	}

	uid := user.UID
	// Queued cart upserts for uid must land before the purchase clears the remote cart.
	if err := s.dispatcher.Flush(ctx, uid); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrCheckoutWrite, err)
	}

	purchase := models.NewBatchPurchase(shared.GenerateID(), items, s.now())
	err := s.dispatcher.Do(ctx, "checkout.record", func(ctx context.Context) error {
		return s.profiles.RecordPurchase(ctx, uid, purchase)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrCheckoutWrite, err)
	}

	s.mu.Lock()
	if s.user == nil || s.user.UID != uid {
		s.mu.Unlock()
		s.logger.Warn("session changed during checkout", "uid", uid)
		return &purchase, nil
	}
	s.purchases = append(slices.Clone(s.purchases), purchase)
	s.cart = models.FilterPurchased(s.cart, s.purchases)
	if s.cart.Empty() {
		if err := s.cache.Remove(models.CartCacheKey(uid)); err != nil {
			s.logger.Warn("failed to clear cached cart", "uid", uid, "error", err)
		}
	} else {
		s.cart = s.persistLocked(s.cart)
	}
	if err := WritePurchasedMarker(s.cache, uid, s.purchases); err != nil {
		s.logger.Warn("failed to write purchased marker", "uid", uid, "error", err)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	s.logger.Info("checkout complete", "uid", uid, "order", purchase.Batch.OrderID, "total", purchase.Batch.Total)

	if s.receipts != nil && user.Email != "" {
		to := *user
		s.dispatcher.Go(uid, "checkout.receipt", func(ctx context.Context) error {
			return s.receipts.SendReceipt(ctx, to, purchase)
		})
	}
	return &purchase, nil
}

// persistLocked filters c and mirrors it to the local cache and, for a signed-in
// user, to the remote profile. It returns the filtered cart.
func (s *Store) persistLocked(c models.Cart) models.Cart {
	c = models.FilterPurchased(c, s.purchases)

	uid := ""
	if s.user != nil {
		uid = s.user.UID
	}

	data, err := json.Marshal(c)
	if err != nil {
		s.logger.Error("failed to encode cart", "uid", uid, "error", err)
		return c
	}
	if err := s.cache.Set(models.CartCacheKey(uid), string(data)); err != nil {
		s.logger.Warn("failed to cache cart", "uid", uid, "error", err)
	}

	if uid != "" {
		s.dispatcher.Go(uid, "cart.upsert", func(ctx context.Context) error {
			return UpsertCart(ctx, s.profiles, uid, c)
		})
	}
	return c
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Cart:      s.cart,
		Purchases: slices.Clone(s.purchases),
		Genres:    slices.Clone(s.genres),
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

func (s *Store) notify(snap Snapshot) {
	s.mu.Lock()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// UpsertCart updates the remote cart mirror, creating it when the profile does not exist.
func UpsertCart(ctx context.Context, profiles models.ProfileStore, uid string, c models.Cart) error {
	err := profiles.UpdateCart(ctx, uid, c)
	if errors.Is(err, shared.ErrProfileNotFound) {
		return profiles.MergeCart(ctx, uid, c)
	}
	return err
}
