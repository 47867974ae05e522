package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPurchase(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Contains single snapshot", func(t *testing.T) {
		p := SinglePurchase(movie(7, "Seven"))
		if !p.Contains("7") {
			t.Error("expected single purchase to contain 7")
		}
		if p.Contains("8") {
			t.Error("single purchase should not contain 8")
		}
	})

	t.Run("Contains batch", func(t *testing.T) {
		p := NewBatchPurchase("order-1", NewCart(movie(1, "A"), movie(2, "B")), at)
		if !p.Contains("1") || !p.Contains("2") {
			t.Error("expected batch to contain both items")
		}
		if p.Batch.Total != 2 {
			t.Errorf("expected total 2, got %d", p.Batch.Total)
		}
	})

	t.Run("Decode both shapes", func(t *testing.T) {
		data := []byte(`[
			{"id": 5, "title": "Single"},
			{"items": {"6": {"id": 6, "title": "Batched"}}, "timestamp": "2024-05-01T12:00:00Z", "total": 1}
		]`)

		var ps Purchases
		if err := json.Unmarshal(data, &ps); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(ps) != 2 {
			t.Fatalf("expected 2 purchases, got %d", len(ps))
		}
		if ps[0].Movie == nil || ps[0].Batch != nil {
			t.Error("first purchase should be a single snapshot")
		}
		if ps[1].Batch == nil {
			t.Fatal("second purchase should be a batch")
		}
		if !ps[1].Batch.Timestamp.Equal(at) {
			t.Errorf("expected timestamp %v, got %v", at, ps[1].Batch.Timestamp)
		}
		if !ps.Contains("5") || !ps.Contains("6") {
			t.Error("predicate should cover both shapes")
		}
	})

	t.Run("Batch total defaults to item count", func(t *testing.T) {
		var p Purchase
		if err := json.Unmarshal([]byte(`{"items":{"1":{"id":1},"2":{"id":2}}}`), &p); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if p.Batch.Total != 2 {
			t.Errorf("expected total 2, got %d", p.Batch.Total)
		}
	})

	t.Run("IDs deduplicates", func(t *testing.T) {
		ps := Purchases{
			SinglePurchase(movie(1, "A")),
			NewBatchPurchase("o", NewCart(movie(1, "A"), movie(2, "B")), at),
		}
		ids := ps.IDs()
		if len(ids) != 2 || ids[0] != "1" || ids[1] != "2" {
			t.Errorf("expected [1 2], got %v", ids)
		}
	})

	t.Run("PurchasesFromIDs", func(t *testing.T) {
		ps := PurchasesFromIDs([]MovieID{"3", "bad", "4"})
		if len(ps) != 2 || !ps.Contains("3") || !ps.Contains("4") {
			t.Errorf("unexpected purchases from ids: %v", ps.IDs())
		}
	})
}
