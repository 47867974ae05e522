// Package cart owns the in-memory cart of a session and keeps its local cache and
// remote mirrors in step with every mutation.
//
// Add, Remove and Replace accept a mutation only after dropping purchased movies.
// The filtered cart is then written to the local cache under [models.CartCacheKey]
// and queued for the remote profile with [UpsertCart].
//
// Checkout is the only operation whose remote failure reaches the caller.
package cart
