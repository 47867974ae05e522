package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/marquee/internal/cart"
	"github.com/desertthunder/marquee/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPageFetched MsgKind = iota
	MsgDetailFetched
	MsgCheckoutComplete
	MsgStoreChanged
	MsgSignedOut
)

type pageResult struct {
	title string
	page  *models.CatalogPage
	err   error
}

type detailResult struct {
	movie    *models.Movie
	trailers []models.Video
	err      error
}

type checkoutResult struct {
	purchase *models.Purchase
	err      error
}

// pageFetchedMsg is the constructor for [MsgPageFetched]
func pageFetchedMsg(title string, page *models.CatalogPage, err error) Msg {
	return Msg{kind: MsgPageFetched, data: pageResult{title, page, err}}
}

// detailFetchedMsg is the constructor for [MsgDetailFetched]
func detailFetchedMsg(movie *models.Movie, trailers []models.Video, err error) Msg {
	return Msg{kind: MsgDetailFetched, data: detailResult{movie, trailers, err}}
}

// checkoutCompleteMsg is the constructor for [MsgCheckoutComplete]
func checkoutCompleteMsg(purchase *models.Purchase, err error) Msg {
	return Msg{kind: MsgCheckoutComplete, data: checkoutResult{purchase, err}}
}

// StoreChanged wraps a cart store snapshot for [tea.Program.Send].
func StoreChanged(snap cart.Snapshot) tea.Msg {
	return Msg{kind: MsgStoreChanged, data: snap}
}

// signedOutMsg is the constructor for [MsgSignedOut]
func signedOutMsg(err error) Msg {
	return Msg{kind: MsgSignedOut, data: err}
}
