package models

import (
	"strings"
	"time"
)

// Identity is the signed-in user as reported by the identity provider.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	ProviderID  string `json:"providerId,omitempty"`
}

// UserProfile is the remote per-user document.
type UserProfile struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	SelectedGenres []int     `json:"selectedGenres"`
	Purchases      Purchases `json:"purchases"`
	Cart           Cart      `json:"cart"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewUserProfile returns the empty profile created on a user's first sign-in.
//
// Names are split from the identity display name when one exists.
func NewUserProfile(id Identity) *UserProfile {
	first, last := SplitName(id.DisplayName)
	return &UserProfile{
		ID:             id.UID,
		Email:          id.Email,
		FirstName:      first,
		LastName:       last,
		SelectedGenres: []int{},
		Purchases:      Purchases{},
		Cart:           Cart{},
		CreatedAt:      time.Now().UTC(),
	}
}

// DisplayName joins first and last name.
func (p UserProfile) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// ProfileSettings is a partial update to a profile. Nil fields are left alone.
type ProfileSettings struct {
	FirstName      *string
	LastName       *string
	SelectedGenres []int
}

// SplitName splits "First Last Names" on the first space.
func SplitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	first, last, _ := strings.Cut(full, " ")
	return first, strings.TrimSpace(last)
}

// Session is a signed-in identity together with its provider tokens.
type Session struct {
	Identity     Identity
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the id token is past, or within skew of, its expiry.
func (s Session) Expired(now time.Time, skew time.Duration) bool {
	return !now.Add(skew).Before(s.ExpiresAt)
}
