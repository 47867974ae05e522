package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
)

// MemoryCache is an in-memory [models.LocalCache] that counts writes per key.
type MemoryCache struct {
	mu      sync.Mutex
	data    map[string]string
	sets    map[string]int
	SetErr  error
	GetErr  error
	Removed []string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: map[string]string{}, sets: map[string]int{}}
}

func (c *MemoryCache) Get(key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GetErr != nil {
		return "", false, c.GetErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *MemoryCache) Set(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SetErr != nil {
		return c.SetErr
	}
	c.data[key] = value
	c.sets[key]++
	return nil
}

func (c *MemoryCache) Remove(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.Removed = append(c.Removed, key)
	return nil
}

// Sets reports how many times key was written.
func (c *MemoryCache) Sets(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets[key]
}

// Peek returns the raw value under key.
func (c *MemoryCache) Peek(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

// ProfileCall records one write made against [MemoryProfiles].
type ProfileCall struct {
	Op  string
	UID string
	Len int
}

// MemoryProfiles is an in-memory [models.ProfileStore].
//
// Err fields inject failures per operation. Gate, when non-nil, blocks Get until
// a value is received, which lets tests interleave concurrent sign-ins.
// UpdateCartGate does the same for UpdateCart.
type MemoryProfiles struct {
	mu       sync.Mutex
	profiles map[string]*models.UserProfile
	calls    []ProfileCall

	GetErr            error
	CreateErr         error
	UpdateCartErr     error
	MergeCartErr      error
	RecordPurchaseErr error
	SettingsErr       error
	Gate              chan struct{}
	UpdateCartGate    chan struct{}
}

func NewMemoryProfiles() *MemoryProfiles {
	return &MemoryProfiles{profiles: map[string]*models.UserProfile{}}
}

// Put seeds a profile.
func (m *MemoryProfiles) Put(p *models.UserProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.profiles[p.ID] = &cp
}

// Profile returns a copy of the stored profile, or nil.
func (m *MemoryProfiles) Profile(uid string) *models.UserProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[uid]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// Calls returns the recorded operations in order.
func (m *MemoryProfiles) Calls() []ProfileCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ProfileCall(nil), m.calls...)
}

// CallCount counts recorded calls of op.
func (m *MemoryProfiles) CallCount(op string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (m *MemoryProfiles) record(op, uid string, n int) {
	m.calls = append(m.calls, ProfileCall{Op: op, UID: uid, Len: n})
}

func (m *MemoryProfiles) Get(ctx context.Context, uid string) (*models.UserProfile, error) {
	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("get", uid, 0)
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	p, ok := m.profiles[uid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrProfileNotFound, uid)
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryProfiles) Create(ctx context.Context, p *models.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("create", p.ID, p.Cart.Len())
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if _, ok := m.profiles[p.ID]; ok {
		return nil
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *MemoryProfiles) UpdateCart(ctx context.Context, uid string, cart models.Cart) error {
	if m.UpdateCartGate != nil {
		select {
		case <-m.UpdateCartGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("update_cart", uid, cart.Len())
	if m.UpdateCartErr != nil {
		return m.UpdateCartErr
	}
	p, ok := m.profiles[uid]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrProfileNotFound, uid)
	}
	p.Cart = cart
	return nil
}

func (m *MemoryProfiles) MergeCart(ctx context.Context, uid string, cart models.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("merge_cart", uid, cart.Len())
	if m.MergeCartErr != nil {
		return m.MergeCartErr
	}
	p, ok := m.profiles[uid]
	if !ok {
		p = &models.UserProfile{ID: uid}
		m.profiles[uid] = p
	}
	p.Cart = cart
	return nil
}

func (m *MemoryProfiles) RecordPurchase(ctx context.Context, uid string, purchase models.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("record_purchase", uid, len(purchase.Movies()))
	if m.RecordPurchaseErr != nil {
		return m.RecordPurchaseErr
	}
	p, ok := m.profiles[uid]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrProfileNotFound, uid)
	}
	p.Purchases = append(append(models.Purchases{}, p.Purchases...), purchase)
	p.Cart = models.Cart{}
	return nil
}

func (m *MemoryProfiles) UpdateSettings(ctx context.Context, uid string, s models.ProfileSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("update_settings", uid, len(s.SelectedGenres))
	if m.SettingsErr != nil {
		return m.SettingsErr
	}
	p, ok := m.profiles[uid]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrProfileNotFound, uid)
	}
	if s.FirstName != nil {
		p.FirstName = *s.FirstName
	}
	if s.LastName != nil {
		p.LastName = *s.LastName
	}
	if s.SelectedGenres != nil {
		p.SelectedGenres = s.SelectedGenres
	}
	return nil
}
