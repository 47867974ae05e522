// Package models defines domain values and persistence interfaces for the marquee storefront.
//
// The package contains two categories of types:
//
// 1. Catalog values: read-only data fetched from the movie catalog
//   - [Movie] : catalog entry keyed by its canonical [MovieID]
//   - [CatalogPage] : one page of a list endpoint
//   - [Video] : trailers and clips
//
// 2. User state: cart and account data reconciled between device and remote store
//   - [Cart] : immutable insertion-ordered mapping of MovieID to Movie
//   - [Purchase] : append-only record, either a single movie or a batch
//   - [UserProfile] : the remote per-user document
//   - [Identity] : the signed-in user reported by the identity provider
//
// [FilterPurchased] and [MergeCarts] are the pure reconciliation rules used by the cart store
// and the session bootstrapper. [LocalCache] and [ProfileStore] describe the two stores they write to.
package models
