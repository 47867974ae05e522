package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotSignedIn      = fmt.Errorf("not signed in")
	ErrTokenExpired     = fmt.Errorf("id token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")
	ErrNoSession        = fmt.Errorf("no stored session")
	ErrSuperseded       = fmt.Errorf("superseded by a newer auth event")
	ErrCallbackRejected = fmt.Errorf("oauth callback rejected")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrMovieNotFound      = fmt.Errorf("movie not found")
	ErrProfileNotFound    = fmt.Errorf("user profile not found")
	ErrCacheMiss          = fmt.Errorf("cache entry not found")

	// Cart and checkout errors
	ErrEmptyCart     = fmt.Errorf("cart is empty")
	ErrInvalidMovie  = fmt.Errorf("invalid movie")
	ErrAlreadyOwned  = fmt.Errorf("movie already purchased")
	ErrCheckoutWrite = fmt.Errorf("failed to record purchase")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
	ErrTooFewGenres    = fmt.Errorf("too few genres selected")
)
