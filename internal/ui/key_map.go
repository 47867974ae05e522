package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	enter    key.Binding
	back     key.Binding
	next     key.Binding
	prev     key.Binding
	search   key.Binding
	cart     key.Binding
	add      key.Binding
	remove   key.Binding
	checkout key.Binding
	signOut  key.Binding
	restart  key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		next:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next page")),
		prev:     key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "prev page")),
		search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		cart:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cart")),
		add:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add to cart")),
		remove:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "remove")),
		checkout: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "checkout")),
		signOut:  key.NewBinding(key.WithKeys("O"), key.WithHelp("O", "sign out")),
		restart:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "browse")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.back},
		{k.next, k.prev, k.search, k.cart},
		{k.add, k.remove, k.checkout, k.signOut},
		{k.restart, k.quit},
	}
}
