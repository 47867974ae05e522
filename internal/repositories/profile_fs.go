package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
)

// ProfileRepositoryFS implements [models.ProfileStore] using Firestore.
//
// Collection layout: one document per user, docId = uid, with fields
// firstName, lastName, email, selectedGenres, purchases (array), cart (map keyed by movie id),
// createdAt and updatedAt.
type ProfileRepositoryFS struct {
	Client     *firestore.Client
	Collection string
}

// NewProfileRepositoryFS creates a repository over collection (default "users").
func NewProfileRepositoryFS(client *firestore.Client, collection string) *ProfileRepositoryFS {
	if strings.TrimSpace(collection) == "" {
		collection = "users"
	}
	return &ProfileRepositoryFS{Client: client, Collection: collection}
}

func (r *ProfileRepositoryFS) doc(uid string) (*firestore.DocumentRef, error) {
	if r == nil || r.Client == nil {
		return nil, errors.New("profile_repository_fs: firestore client is nil")
	}
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, errors.New("profile_repository_fs: uid is empty")
	}
	return r.Client.Collection(r.Collection).Doc(uid), nil
}

// Get loads the profile of uid. A missing document yields [shared.ErrProfileNotFound].
func (r *ProfileRepositoryFS) Get(ctx context.Context, uid string) (*models.UserProfile, error) {
	ref, err := r.doc(uid)
	if err != nil {
		return nil, err
	}

	snap, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", shared.ErrProfileNotFound, uid)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return profileFromData(ref.ID, snap.Data()), nil
}

// Create writes a new profile document. An existing document is left as is.
func (r *ProfileRepositoryFS) Create(ctx context.Context, p *models.UserProfile) error {
	if p == nil {
		return errors.New("profile_repository_fs: profile is nil")
	}
	ref, err := r.doc(p.ID)
	if err != nil {
		return err
	}

	if _, err := ref.Create(ctx, profileDocFromModel(p)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// UpdateCart overwrites the cart mirror of an existing profile.
func (r *ProfileRepositoryFS) UpdateCart(ctx context.Context, uid string, cart models.Cart) error {
	ref, err := r.doc(uid)
	if err != nil {
		return err
	}

	_, err = ref.Update(ctx, []firestore.Update{
		{Path: "cart", Value: cartDocFromModel(cart)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%w: %s", shared.ErrProfileNotFound, uid)
		}
		return fmt.Errorf("failed to update cart: %w", err)
	}
	return nil
}

// MergeCart writes the cart field with merge semantics, creating the document if needed.
func (r *ProfileRepositoryFS) MergeCart(ctx context.Context, uid string, cart models.Cart) error {
	ref, err := r.doc(uid)
	if err != nil {
		return err
	}

	data := map[string]any{
		"cart":      cartDocFromModel(cart),
		"updatedAt": time.Now().UTC(),
	}
	if _, err := ref.Set(ctx, data, firestore.Merge([]string{"cart"}, []string{"updatedAt"})); err != nil {
		return fmt.Errorf("failed to merge cart: %w", err)
	}
	return nil
}

// RecordPurchase appends purchase to the history and clears the cart mirror in a single write.
func (r *ProfileRepositoryFS) RecordPurchase(ctx context.Context, uid string, purchase models.Purchase) error {
	ref, err := r.doc(uid)
	if err != nil {
		return err
	}

	_, err = ref.Update(ctx, []firestore.Update{
		{Path: "purchases", Value: firestore.ArrayUnion(purchaseDocFromModel(purchase))},
		{Path: "cart", Value: map[string]any{}},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%w: %s", shared.ErrProfileNotFound, uid)
		}
		return fmt.Errorf("failed to record purchase: %w", err)
	}
	return nil
}

// UpdateSettings applies the non-nil fields of settings.
func (r *ProfileRepositoryFS) UpdateSettings(ctx context.Context, uid string, settings models.ProfileSettings) error {
	ref, err := r.doc(uid)
	if err != nil {
		return err
	}

	var updates []firestore.Update
	if settings.FirstName != nil {
		updates = append(updates, firestore.Update{Path: "firstName", Value: strings.TrimSpace(*settings.FirstName)})
	}
	if settings.LastName != nil {
		updates = append(updates, firestore.Update{Path: "lastName", Value: strings.TrimSpace(*settings.LastName)})
	}
	if settings.SelectedGenres != nil {
		updates = append(updates, firestore.Update{Path: "selectedGenres", Value: settings.SelectedGenres})
	}
	if len(updates) == 0 {
		return nil
	}
	updates = append(updates, firestore.Update{Path: "updatedAt", Value: time.Now().UTC()})

	if _, err := ref.Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%w: %s", shared.ErrProfileNotFound, uid)
		}
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}

// -----------------------------------------
// Firestore DTO
// -----------------------------------------

type profileDoc struct {
	Email          string              `firestore:"email"`
	FirstName      string              `firestore:"firstName"`
	LastName       string              `firestore:"lastName"`
	SelectedGenres []int               `firestore:"selectedGenres"`
	Purchases      []any               `firestore:"purchases"`
	Cart           map[string]movieDoc `firestore:"cart"`
	CreatedAt      time.Time           `firestore:"createdAt"`
	UpdatedAt      time.Time           `firestore:"updatedAt"`
}

type movieDoc struct {
	ID               int64   `firestore:"id"`
	Title            string  `firestore:"title"`
	OriginalTitle    string  `firestore:"original_title,omitempty"`
	Overview         string  `firestore:"overview,omitempty"`
	PosterPath       *string `firestore:"poster_path"`
	ReleaseDate      string  `firestore:"release_date,omitempty"`
	Runtime          int     `firestore:"runtime,omitempty"`
	VoteAverage      float64 `firestore:"vote_average,omitempty"`
	Popularity       float64 `firestore:"popularity,omitempty"`
	OriginalLanguage string  `firestore:"original_language,omitempty"`
	GenreIDs         []int   `firestore:"genre_ids,omitempty"`
	// Position keeps cart insertion order; Firestore maps are unordered.
	Position int `firestore:"position,omitempty"`
}

type batchDoc struct {
	OrderID   string              `firestore:"orderId"`
	Items     map[string]movieDoc `firestore:"items"`
	Timestamp time.Time           `firestore:"timestamp"`
	Total     int                 `firestore:"total"`
}

func profileDocFromModel(p *models.UserProfile) profileDoc {
	now := time.Now().UTC()
	created := p.CreatedAt
	if created.IsZero() {
		created = now
	}
	genres := p.SelectedGenres
	if genres == nil {
		genres = []int{}
	}
	purchases := make([]any, 0, len(p.Purchases))
	for _, pu := range p.Purchases {
		purchases = append(purchases, purchaseDocFromModel(pu))
	}
	return profileDoc{
		Email:          p.Email,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		SelectedGenres: genres,
		Purchases:      purchases,
		Cart:           cartDocFromModel(p.Cart),
		CreatedAt:      created,
		UpdatedAt:      now,
	}
}

func movieDocFromModel(m models.Movie, position int) movieDoc {
	return movieDoc{
		ID:               m.ID,
		Title:            m.Title,
		OriginalTitle:    m.OriginalTitle,
		Overview:         m.Overview,
		PosterPath:       m.PosterPath,
		ReleaseDate:      m.ReleaseDate,
		Runtime:          m.Runtime,
		VoteAverage:      m.VoteAverage,
		Popularity:       m.Popularity,
		OriginalLanguage: m.OriginalLanguage,
		GenreIDs:         m.GenreIDs,
		Position:         position,
	}
}

func cartDocFromModel(c models.Cart) map[string]movieDoc {
	out := make(map[string]movieDoc, c.Len())
	for i, m := range c.Movies() {
		out[string(m.Key())] = movieDocFromModel(m, i)
	}
	return out
}

func purchaseDocFromModel(p models.Purchase) any {
	switch {
	case p.Batch != nil:
		return batchDoc{
			OrderID:   p.Batch.OrderID,
			Items:     cartDocFromModel(p.Batch.Items),
			Timestamp: p.Batch.Timestamp,
			Total:     p.Batch.Total,
		}
	case p.Movie != nil:
		return movieDocFromModel(*p.Movie, 0)
	}
	return map[string]any{}
}

// profileFromData parses raw document data, tolerating missing fields and numeric
// ids stored as int64, float64 or string.
func profileFromData(uid string, raw map[string]any) *models.UserProfile {
	p := &models.UserProfile{
		ID:             uid,
		SelectedGenres: []int{},
		Purchases:      models.Purchases{},
	}
	if raw == nil {
		return p
	}

	p.Email = asString(raw["email"])
	p.FirstName = asString(raw["firstName"])
	p.LastName = asString(raw["lastName"])
	if t, ok := asTime(raw["createdAt"]); ok {
		p.CreatedAt = t
	}

	if genres, ok := raw["selectedGenres"].([]any); ok {
		for _, g := range genres {
			if id := asInt64(g); id > 0 {
				p.SelectedGenres = append(p.SelectedGenres, int(id))
			}
		}
	}

	if items, ok := raw["purchases"].([]any); ok {
		for _, it := range items {
			if pu, ok := purchaseFromData(it); ok {
				p.Purchases = append(p.Purchases, pu)
			}
		}
	}

	p.Cart = cartFromData(raw["cart"])
	return p
}

// purchaseFromData recognises a batch by its "items" field; anything else is a single movie.
func purchaseFromData(v any) (models.Purchase, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return models.Purchase{}, false
	}

	if _, ok := m["items"]; ok {
		items := cartFromData(m["items"])
		b := &models.PurchaseBatch{
			OrderID: asString(m["orderId"]),
			Items:   items,
			Total:   int(asInt64(m["total"])),
		}
		if t, ok := asTime(m["timestamp"]); ok {
			b.Timestamp = t
		}
		if b.Total == 0 {
			b.Total = items.Len()
		}
		return models.Purchase{Batch: b}, true
	}

	movie, ok := movieFromData("", m)
	if !ok {
		return models.Purchase{}, false
	}
	return models.SinglePurchase(movie), true
}

func cartFromData(v any) models.Cart {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return models.Cart{}
	}

	type positioned struct {
		movie models.Movie
		pos   int64
	}
	entries := make([]positioned, 0, len(m))
	for k, item := range m {
		mm, ok := item.(map[string]any)
		if !ok {
			continue
		}
		movie, ok := movieFromData(k, mm)
		if !ok {
			continue
		}
		entries = append(entries, positioned{movie: movie, pos: asInt64(mm["position"])})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].pos != entries[j].pos {
			return entries[i].pos < entries[j].pos
		}
		return entries[i].movie.ID < entries[j].movie.ID
	})

	movies := make([]models.Movie, 0, len(entries))
	for _, e := range entries {
		movies = append(movies, e.movie)
	}
	return models.NewCart(movies...)
}

// movieFromData builds a movie from a map, falling back to key for the id.
func movieFromData(key string, m map[string]any) (models.Movie, bool) {
	id := asInt64(m["id"])
	if id <= 0 && key != "" {
		parsed, err := models.ParseMovieID(key)
		if err != nil {
			return models.Movie{}, false
		}
		id = parsed.Int()
	}
	if id <= 0 {
		return models.Movie{}, false
	}

	movie := models.Movie{
		ID:               id,
		Title:            asString(m["title"]),
		OriginalTitle:    asString(m["original_title"]),
		Overview:         asString(m["overview"]),
		ReleaseDate:      asString(m["release_date"]),
		Runtime:          int(asInt64(m["runtime"])),
		VoteAverage:      asFloat(m["vote_average"]),
		Popularity:       asFloat(m["popularity"]),
		OriginalLanguage: asString(m["original_language"]),
	}
	if poster, ok := m["poster_path"].(string); ok {
		movie.PosterPath = &poster
	}
	if genres, ok := m["genre_ids"].([]any); ok {
		for _, g := range genres {
			movie.GenreIDs = append(movie.GenreIDs, int(asInt64(g)))
		}
	}
	return movie, true
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func asInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n
	}
	return 0
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case int:
		return float64(x)
	}
	return 0
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		t, err := time.Parse(time.RFC3339, x)
		return t, err == nil
	}
	return time.Time{}, false
}
