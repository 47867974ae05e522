package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/marquee/internal/cart"
	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
	"github.com/desertthunder/marquee/internal/tasks"
)

// Bootstrapper turns auth-state events into cart store state.
//
// Events are handled one at a time. Each event bumps a generation counter, and a
// sign-in that finds a newer generation before publishing is dropped with
// [shared.ErrSuperseded].
type Bootstrapper struct {
	mu         sync.Mutex
	generation atomic.Uint64
	active     string

	store      *cart.Store
	profiles   models.ProfileStore
	cache      models.LocalCache
	dispatcher *tasks.Dispatcher
	logger     *log.Logger
}

// New creates a Bootstrapper publishing into store.
func New(store *cart.Store, profiles models.ProfileStore, cache models.LocalCache, dispatcher *tasks.Dispatcher, logger *log.Logger) *Bootstrapper {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Bootstrapper{
		store:      store,
		profiles:   profiles,
		cache:      cache,
		dispatcher: dispatcher,
		logger:     shared.WithLogger(logger, "component", "session"),
	}
}

// Handle processes one auth-state event. A nil identity is a sign-out.
func (b *Bootstrapper) Handle(ctx context.Context, progress chan<- tasks.ProgressUpdate, id *models.Identity) error {
	gen := b.generation.Add(1)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.generation.Load() != gen {
		return shared.ErrSuperseded
	}
	if id == nil {
		b.signOut(ctx)
		return nil
	}
	_, err := b.signIn(ctx, progress, *id, gen)
	return err
}

// SignIn loads the session of id and publishes the reconciled cart.
func (b *Bootstrapper) SignIn(ctx context.Context, progress chan<- tasks.ProgressUpdate, id models.Identity) (models.Cart, error) {
	gen := b.generation.Add(1)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.generation.Load() != gen {
		return models.Cart{}, shared.ErrSuperseded
	}
	return b.signIn(ctx, progress, id, gen)
}

// SignOut clears the previous user's local state and resets the store.
func (b *Bootstrapper) SignOut(ctx context.Context) {
	b.generation.Add(1)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.signOut(ctx)
}

// Guest publishes the cached guest cart when nobody is signed in.
func (b *Bootstrapper) Guest() models.Cart {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, err := cart.ReadCachedCart(b.cache, models.CartCacheKey(""))
	if err != nil {
		b.logger.Warn("failed to read guest cart", "error", err)
	}
	b.active = ""
	return b.store.Load(nil, c, nil, nil)
}

// Run handles events until the channel closes or ctx is done.
func (b *Bootstrapper) Run(ctx context.Context, events <-chan *models.Identity) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id, ok := <-events:
			if !ok {
				return nil
			}
			if err := b.Handle(ctx, nil, id); err != nil && !errors.Is(err, shared.ErrSuperseded) {
				b.logger.Error("auth event failed", "error", err)
			}
		}
	}
}

func (b *Bootstrapper) signIn(ctx context.Context, progress chan<- tasks.ProgressUpdate, id models.Identity, gen uint64) (models.Cart, error) {
	uid := id.UID
	if uid == "" {
		return models.Cart{}, shared.ErrNotSignedIn
	}

	var (
		remote    models.Cart
		purchases models.Purchases
		genres    []int
		fetched   bool
	)

	tasks.SendProgress(progress, tasks.FetchProfileUpdate(uid))
	profile, err := b.profiles.Get(ctx, uid)
	switch {
	case err == nil:
		remote, purchases, genres, fetched = profile.Cart, profile.Purchases, profile.SelectedGenres, true
	case errors.Is(err, shared.ErrProfileNotFound):
		tasks.SendProgress(progress, tasks.CreateProfileUpdate(uid))
		if err := b.profiles.Create(ctx, models.NewUserProfile(id)); err != nil {
			b.logger.Warn("failed to create profile", "uid", uid, "error", err)
		}
		fetched = true
	default:
		b.logger.Warn("failed to fetch profile, using local purchases", "uid", uid, "error", err)
		purchases, err = cart.ReadPurchasedMarker(b.cache, uid)
		if err != nil {
			b.logger.Warn("failed to read purchased marker", "uid", uid, "error", err)
		}
	}

	local, err := cart.ReadCachedCart(b.cache, models.CartCacheKey(uid))
	if err != nil {
		b.logger.Warn("failed to read cached cart", "uid", uid, "error", err)
	}
	tasks.SendProgress(progress, tasks.ReadCacheUpdate(local.Len()))

	merged := models.MergeCarts(remote, local)
	tasks.SendProgress(progress, tasks.MergeCartUpdate(remote.Len(), local.Len(), merged.Len()))

	filtered := models.FilterPurchased(merged, purchases)
	tasks.SendProgress(progress, tasks.FilterPurchasedUpdate(merged.Len()-filtered.Len()))

	if b.generation.Load() != gen {
		b.logger.Debug("sign-in superseded", "uid", uid)
		return models.Cart{}, shared.ErrSuperseded
	}

	published := b.store.Load(&id, filtered, purchases, genres)
	b.active = uid
	if fetched {
		if err := cart.WritePurchasedMarker(b.cache, uid, purchases); err != nil {
			b.logger.Warn("failed to write purchased marker", "uid", uid, "error", err)
		}
	}
	tasks.SendProgress(progress, tasks.PublishCartUpdate(published))

	b.logger.Info("session loaded", "uid", uid, "cart", published.Len(), "purchases", len(purchases))
	return published, nil
}

func (b *Bootstrapper) signOut(ctx context.Context) {
	prev := b.active
	if u := b.store.User(); u != nil {
		prev = u.UID
	}

	if prev != "" {
		keys := []string{models.CartCacheKey(prev), models.PurchasedCacheKey(prev)}
		if err := b.dispatcher.Flush(ctx, prev); err != nil {
			b.logger.Warn("pending cart writes not flushed, keeping local cart", "uid", prev, "error", err)
			keys = keys[1:]
		} else if b.dispatcher.Failed(prev) {
			b.logger.Warn("last cart write failed, keeping local cart", "uid", prev)
			keys = keys[1:]
		}
		for _, key := range keys {
			if err := b.cache.Remove(key); err != nil {
				b.logger.Warn("failed to clear local state", "key", key, "error", err)
			}
		}
	}
	b.active = ""
	b.store.Reset()
	b.logger.Info("signed out", "uid", prev)
}
