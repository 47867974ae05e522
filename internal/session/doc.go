// Package session reconciles the remote profile with the device cache on every
// auth-state change.
//
// On sign-in the remote cart mirror and the cached cart are merged with the
// cached entry winning, purchased movies are dropped and the result is loaded
// into the [cart.Store], which writes it back to both mirrors. A profile that
// does not exist yet is created. If the profile cannot be fetched at all, the
// purchased marker in the device cache stands in for the purchase history.
//
// On sign-out the previous user's cached cart and purchased marker are removed
// once queued remote writes have finished, and the store is reset. The remote
// profile is left alone.
package session
