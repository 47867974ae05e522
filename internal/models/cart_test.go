package models

import (
	"encoding/json"
	"testing"
)

func movie(id int64, title string) Movie {
	return Movie{ID: id, Title: title}
}

func TestCart(t *testing.T) {
	t.Run("Set keeps insertion order", func(t *testing.T) {
		c := NewCart(movie(3, "C"), movie(1, "A"), movie(2, "B"))
		want := []MovieID{"3", "1", "2"}
		got := c.Keys()
		if len(got) != len(want) {
			t.Fatalf("expected %d keys, got %d", len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("key %d: expected %s, got %s", i, want[i], got[i])
			}
		}
	})

	t.Run("Set replaces value in place", func(t *testing.T) {
		c := NewCart(movie(1, "A"), movie(2, "B")).Set(movie(1, "A2"))
		if c.Len() != 2 {
			t.Fatalf("expected 2 entries, got %d", c.Len())
		}
		if m, _ := c.Get("1"); m.Title != "A2" {
			t.Errorf("expected replaced title A2, got %s", m.Title)
		}
		if c.Keys()[0] != "1" {
			t.Errorf("replaced key should keep its position")
		}
	})

	t.Run("Set does not modify receiver", func(t *testing.T) {
		base := NewCart(movie(1, "A"))
		_ = base.Set(movie(2, "B"))
		_ = base.Delete("1")
		if base.Len() != 1 || !base.Has("1") {
			t.Errorf("receiver was modified: %v", base.Keys())
		}
	})

	t.Run("Delete absent key is a no-op", func(t *testing.T) {
		c := NewCart(movie(1, "A"))
		if got := c.Delete("99"); !got.Equal(c) {
			t.Errorf("expected unchanged cart")
		}
	})

	t.Run("NewCart skips invalid movies", func(t *testing.T) {
		c := NewCart(movie(0, "zero"), movie(5, "five"))
		if c.Len() != 1 || !c.Has("5") {
			t.Errorf("expected only movie 5, got %v", c.Keys())
		}
	})

	t.Run("JSON round trip keeps order", func(t *testing.T) {
		c := NewCart(movie(10, "Ten"), movie(2, "Two"))
		data, err := json.Marshal(c)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		var decoded Cart
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !decoded.Equal(c) {
			t.Errorf("expected %v, got %v", c.Keys(), decoded.Keys())
		}
	})

	t.Run("Unmarshal canonicalizes keys", func(t *testing.T) {
		decoded, err := DecodeCart([]byte(`{"007":{"id":7,"title":"Bond"},"12":{"title":"No id"},"x":{"title":"junk"}}`))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !decoded.Has("7") {
			t.Errorf("expected canonical key 7, got %v", decoded.Keys())
		}
		m, ok := decoded.Get("12")
		if !ok || m.ID != 12 {
			t.Errorf("expected id filled from key, got %+v", m)
		}
		if decoded.Len() != 2 {
			t.Errorf("expected junk key dropped, got %v", decoded.Keys())
		}
	})

	t.Run("DecodeCart malformed", func(t *testing.T) {
		c, err := DecodeCart([]byte(`{"1":`))
		if err == nil {
			t.Error("expected parse error")
		}
		if !c.Empty() {
			t.Error("malformed input should yield an empty cart")
		}
	})

	t.Run("DecodeCart empty input", func(t *testing.T) {
		c, err := DecodeCart(nil)
		if err != nil || !c.Empty() {
			t.Errorf("expected empty cart without error, got %v %v", c.Keys(), err)
		}
	})
}

func TestMovieID(t *testing.T) {
	tc := []struct {
		name    string
		input   string
		want    MovieID
		wantErr bool
	}{
		{name: "plain", input: "42", want: "42"},
		{name: "padded", input: " 0042 ", want: "42"},
		{name: "zero", input: "0", wantErr: true},
		{name: "negative", input: "-3", wantErr: true},
		{name: "text", input: "abc", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMovieID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMovieID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMovieID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	t.Run("KeyOf matches Movie.Key", func(t *testing.T) {
		if KeyOf(550) != movie(550, "Fight Club").Key() {
			t.Error("KeyOf and Movie.Key disagree")
		}
	})
}
