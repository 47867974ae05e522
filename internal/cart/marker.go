package cart

import (
	"encoding/json"
	"fmt"

	"github.com/desertthunder/marquee/internal/models"
)

// WritePurchasedMarker stores the ids of every purchased movie for uid.
func WritePurchasedMarker(cache models.LocalCache, uid string, purchases models.Purchases) error {
	ids := purchases.IDs()
	if ids == nil {
		ids = []models.MovieID{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode purchased marker: %w", err)
	}
	return cache.Set(models.PurchasedCacheKey(uid), string(data))
}

// ReadPurchasedMarker returns the purchases recorded by [WritePurchasedMarker].
// A missing or malformed marker yields no purchases.
func ReadPurchasedMarker(cache models.LocalCache, uid string) (models.Purchases, error) {
	raw, ok, err := cache.Get(models.PurchasedCacheKey(uid))
	if err != nil || !ok {
		return nil, err
	}
	var ids []models.MovieID
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, nil
	}
	return models.PurchasesFromIDs(ids), nil
}

// ReadCachedCart returns the cached cart under key. A missing or malformed entry is empty.
func ReadCachedCart(cache models.LocalCache, key string) (models.Cart, error) {
	raw, ok, err := cache.Get(key)
	if err != nil || !ok {
		return models.Cart{}, err
	}
	c, err := models.DecodeCart([]byte(raw))
	if err != nil {
		return models.Cart{}, nil
	}
	return c, nil
}
