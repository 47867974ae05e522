package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Cart is an insertion-ordered mapping of [MovieID] to [Movie].
//
// Cart values are immutable: Set and Delete return new carts and never
// modify the receiver, so a Cart can be shared across goroutines.
type Cart struct {
	order []MovieID
	items map[MovieID]Movie
}

// NewCart builds a cart from movies in order. Invalid movies are skipped.
func NewCart(movies ...Movie) Cart {
	c := Cart{}
	for _, m := range movies {
		if m.Valid() {
			c = c.Set(m)
		}
	}
	return c
}

func (c Cart) Len() int { return len(c.order) }

func (c Cart) Empty() bool { return len(c.order) == 0 }

func (c Cart) Has(id MovieID) bool {
	_, ok := c.items[id]
	return ok
}

func (c Cart) Get(id MovieID) (Movie, bool) {
	m, ok := c.items[id]
	return m, ok
}

// Set stores m under its canonical key. An existing key keeps its position.
func (c Cart) Set(m Movie) Cart {
	return c.put(m.Key(), m)
}

func (c Cart) put(id MovieID, m Movie) Cart {
	next := c.clone(1)
	if _, ok := next.items[id]; !ok {
		next.order = append(next.order, id)
	}
	next.items[id] = m
	return next
}

// Delete returns a cart without id. Deleting an absent key returns c unchanged.
func (c Cart) Delete(id MovieID) Cart {
	if !c.Has(id) {
		return c
	}
	next := Cart{order: make([]MovieID, 0, len(c.order)-1), items: make(map[MovieID]Movie, len(c.items)-1)}
	for _, k := range c.order {
		if k == id {
			continue
		}
		next.order = append(next.order, k)
		next.items[k] = c.items[k]
	}
	return next
}

// Keys returns the movie ids in insertion order.
func (c Cart) Keys() []MovieID {
	return append([]MovieID(nil), c.order...)
}

// Movies returns the cart contents in insertion order.
func (c Cart) Movies() []Movie {
	out := make([]Movie, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.items[k])
	}
	return out
}

// Equal reports whether both carts hold the same keys in the same order.
func (c Cart) Equal(other Cart) bool {
	if len(c.order) != len(other.order) {
		return false
	}
	for i, k := range c.order {
		if other.order[i] != k {
			return false
		}
	}
	return true
}

func (c Cart) clone(extra int) Cart {
	next := Cart{
		order: make([]MovieID, len(c.order), len(c.order)+extra),
		items: make(map[MovieID]Movie, len(c.items)+extra),
	}
	copy(next.order, c.order)
	for k, v := range c.items {
		next.items[k] = v
	}
	return next
}

// MarshalJSON encodes the cart as an object keyed by movie id, in insertion order.
func (c Cart) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(k))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.items[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keyed by movie id, keeping key order.
//
// Keys are normalized through the movie's own id when present so that
// payloads written with numeric-looking or padded keys land on the canonical key.
func (c *Cart) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = Cart{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("cart: expected object, got %v", tok)
	}

	next := Cart{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		rawKey, _ := keyTok.(string)

		var m Movie
		if err := dec.Decode(&m); err != nil {
			return fmt.Errorf("cart entry %q: %w", rawKey, err)
		}

		id := m.Key()
		if !m.Valid() {
			parsed, err := ParseMovieID(rawKey)
			if err != nil {
				continue
			}
			id = parsed
			m.ID = parsed.Int()
		}
		next = next.put(id, m)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*c = next
	return nil
}

// DecodeCart parses a serialized cart. Malformed input yields an empty cart and the parse error.
func DecodeCart(data []byte) (Cart, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Cart{}, nil
	}
	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return Cart{}, err
	}
	return c, nil
}
