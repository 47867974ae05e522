// package models defines the data model for the movie storefront
package models

import "context"

// LocalCache is the device-local key/value store holding the cart mirror and
// the purchased-movie marker. Get reports ok=false for a missing key.
type LocalCache interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// ProfileStore is the remote per-user document store.
//
// Get and UpdateCart return an error wrapping shared.ErrProfileNotFound when
// the document does not exist.
type ProfileStore interface {
	Get(ctx context.Context, uid string) (*UserProfile, error)
	Create(ctx context.Context, profile *UserProfile) error
	UpdateCart(ctx context.Context, uid string, cart Cart) error
	MergeCart(ctx context.Context, uid string, cart Cart) error
	RecordPurchase(ctx context.Context, uid string, purchase Purchase) error
	UpdateSettings(ctx context.Context, uid string, settings ProfileSettings) error
}

const guestKey = "guest"

// CartCacheKey is the local cache key of the cart mirror; uid "" is the guest cart.
func CartCacheKey(uid string) string {
	if uid == "" {
		uid = guestKey
	}
	return "cart:" + uid
}

// PurchasedCacheKey is the local cache key of the purchased-movie-id marker.
func PurchasedCacheKey(uid string) string {
	return "purchased:" + uid
}
