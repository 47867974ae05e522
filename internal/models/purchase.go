package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Purchase is an append-only purchase record. Exactly one of Movie or Batch is set:
// Movie for a single-movie snapshot, Batch for a checkout of several movies.
type Purchase struct {
	Movie *Movie
	Batch *PurchaseBatch
}

// PurchaseBatch records one checkout of a whole cart. Total is the item count.
type PurchaseBatch struct {
	OrderID   string    `json:"orderId,omitempty"`
	Items     Cart      `json:"items"`
	Timestamp time.Time `json:"timestamp"`
	Total     int       `json:"total"`
}

// SinglePurchase records one movie.
func SinglePurchase(m Movie) Purchase {
	return Purchase{Movie: &m}
}

// NewBatchPurchase records items as a single order.
func NewBatchPurchase(orderID string, items Cart, at time.Time) Purchase {
	return Purchase{Batch: &PurchaseBatch{OrderID: orderID, Items: items, Timestamp: at.UTC(), Total: items.Len()}}
}

// Contains reports whether the purchase covers id, in either shape.
func (p Purchase) Contains(id MovieID) bool {
	switch {
	case p.Batch != nil:
		if p.Batch.Items.Has(id) {
			return true
		}
		for _, m := range p.Batch.Items.Movies() {
			if m.Key() == id {
				return true
			}
		}
		return false
	case p.Movie != nil:
		return p.Movie.Key() == id
	}
	return false
}

// Movies returns the movies the purchase covers.
func (p Purchase) Movies() []Movie {
	switch {
	case p.Batch != nil:
		return p.Batch.Items.Movies()
	case p.Movie != nil:
		return []Movie{*p.Movie}
	}
	return nil
}

// Time returns the batch timestamp; single snapshots carry none.
func (p Purchase) Time() time.Time {
	if p.Batch != nil {
		return p.Batch.Timestamp
	}
	return time.Time{}
}

func (p Purchase) MarshalJSON() ([]byte, error) {
	switch {
	case p.Batch != nil:
		return json.Marshal(p.Batch)
	case p.Movie != nil:
		return json.Marshal(p.Movie)
	}
	return []byte("null"), nil
}

// UnmarshalJSON recognises a batch by its "items" field; anything else is a single movie.
func (p *Purchase) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("purchase: %w", err)
	}
	if _, ok := probe["items"]; ok {
		var b PurchaseBatch
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("purchase batch: %w", err)
		}
		if b.Total == 0 {
			b.Total = b.Items.Len()
		}
		*p = Purchase{Batch: &b}
		return nil
	}

	var m Movie
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("purchase movie: %w", err)
	}
	*p = Purchase{Movie: &m}
	return nil
}

// Purchases is the ordered purchase history of a user.
type Purchases []Purchase

// Contains is the purchased predicate shared by every cart mutation path.
func (ps Purchases) Contains(id MovieID) bool {
	for _, p := range ps {
		if p.Contains(id) {
			return true
		}
	}
	return false
}

// IDs returns every purchased movie id in first-seen order.
func (ps Purchases) IDs() []MovieID {
	seen := make(map[MovieID]struct{})
	var out []MovieID
	for _, p := range ps {
		for _, m := range p.Movies() {
			k := m.Key()
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

// Movies flattens the history into distinct movies, first purchase wins.
func (ps Purchases) Movies() []Movie {
	seen := make(map[MovieID]struct{})
	var out []Movie
	for _, p := range ps {
		for _, m := range p.Movies() {
			if _, ok := seen[m.Key()]; ok {
				continue
			}
			seen[m.Key()] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// PurchasesFromIDs builds id-only single purchases, used when only the local
// purchased-movie marker is available.
func PurchasesFromIDs(ids []MovieID) Purchases {
	out := make(Purchases, 0, len(ids))
	for _, id := range ids {
		if n := id.Int(); n > 0 {
			out = append(out, SinglePurchase(Movie{ID: n}))
		}
	}
	return out
}
