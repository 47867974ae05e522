// Package ui implements the interactive storefront using bubbletea's Elm architecture.
//
// Views:
//  1. [GenreListView] : Now Playing and the storefront genres
//  2. [MovieListView] : One page of movies, paged with n/p; owned movies are badged
//  3. [SearchView] : Title search
//  4. [DetailView] : Movie details and trailers; a adds to the cart
//  5. [CartView] : Cart contents; d removes, x checks out
//  6. [ResultView] : The completed order
//
// The [Model] reads and mutates cart state through a [Store]. Store changes made
// elsewhere (session bootstrap, background sign-out) arrive as [StoreChanged]
// messages and refresh the badges.
package ui
