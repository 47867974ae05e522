package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/marquee/internal/cart"
	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/services"
	"github.com/desertthunder/marquee/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	GenreListView ViewState = iota
	MovieListView
	SearchView
	DetailView
	CartView
	ResultView
)

type snapshot = cart.Snapshot

// Store is the cart state the TUI reads and mutates.
type Store interface {
	Snapshot() cart.Snapshot
	Add(m models.Movie) bool
	Remove(id models.MovieID) bool
	Checkout(ctx context.Context) (*models.Purchase, error)
}

// fetchFunc loads one page of the current movie source.
type fetchFunc func(ctx context.Context, page int) (*models.CatalogPage, error)

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	view    ViewState
	back    []ViewState
	catalog services.Catalog
	store   Store
	signOut func() error
	snap    snapshot
	width   int
	height  int

	genreList list.Model
	movieList list.Model
	cartList  list.Model
	search    textinput.Model

	source   fetchFunc
	title    string
	page     *models.CatalogPage
	loading  bool
	spinner  spinner.Model
	detail   *models.Movie
	trailers []models.Video
	result   *models.Purchase
	status   string
	err      error
	help     help.Model
	keys     keyMap
}

// NewModel creates a new TUI model. signOut may be nil to hide sign-out.
func NewModel(ctx context.Context, catalog services.Catalog, store Store, signOut func() error) *Model {
	search := textinput.New()
	search.Placeholder = "Search movies"
	search.CharLimit = 100

	m := &Model{
		ctx:     ctx,
		view:    GenreListView,
		catalog: catalog,
		store:   store,
		signOut: signOut,
		snap:    store.Snapshot(),
		search:  search,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title.UnsetMarginBottom())),
		help:    help.New(),
		keys:    newKeyMap(),
		width:   80,
		height:  24,
	}
	m.genreList = m.newList("Browse", genreItems(m.snap.Genres))
	m.movieList = m.newList("", nil)
	m.cartList = m.newList("Cart", nil)
	m.refreshCart()
	return m
}

func (m *Model) newList(title string, items []list.Item) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), m.width-4, m.height-8)
	l.Title = title
	l.SetShowHelp(false)
	return l
}

// Init implements [tea.Model].
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		for _, l := range []*list.Model{&m.genreList, &m.movieList, &m.cartList} {
			l.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateActive(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPageFetched:
		res := msg.data.(pageResult)
		m.loading = false
		if res.err != nil {
			m.status = styles.err.Render(res.err.Error())
			return m, nil
		}
		m.page, m.title = res.page, res.title
		m.movieList.SetItems(movieItems(res.page.Results, m.snap))
		m.movieList.Title = fmt.Sprintf("%s (page %d/%d)", res.title, res.page.Page, max(res.page.TotalPages, 1))
		m.movieList.ResetSelected()
		if m.view != MovieListView {
			m.push(MovieListView)
		}

	case MsgDetailFetched:
		res := msg.data.(detailResult)
		m.loading = false
		if res.err != nil {
			m.status = styles.err.Render(res.err.Error())
			return m, nil
		}
		m.detail, m.trailers = res.movie, res.trailers
		m.push(DetailView)

	case MsgCheckoutComplete:
		res := msg.data.(checkoutResult)
		m.loading = false
		if res.err != nil {
			m.status = styles.err.Render(checkoutMessage(res.err))
			return m, nil
		}
		m.result = res.purchase
		m.sync()
		m.back = nil
		m.view = ResultView

	case MsgStoreChanged:
		// Sends can be reordered; the store holds the latest state.
		m.sync()
		if m.snap.User == nil && m.view == ResultView {
			m.result, m.view = nil, GenreListView
		}

	case MsgSignedOut:
		if err, _ := msg.data.(error); err != nil {
			m.status = styles.err.Render(err.Error())
		} else {
			m.status = styles.ok.Render("Signed out")
		}
	}
	return m, nil
}

func checkoutMessage(err error) string {
	switch {
	case errors.Is(err, shared.ErrNotSignedIn):
		return "Sign in to check out (marquee auth login)"
	case errors.Is(err, shared.ErrEmptyCart):
		return "Your cart is empty"
	default:
		return "Checkout failed: " + err.Error()
	}
}

func (m *Model) filtering() bool {
	switch m.view {
	case GenreListView:
		return m.genreList.FilterState() == list.Filtering
	case MovieListView:
		return m.movieList.FilterState() == list.Filtering
	case CartView:
		return m.cartList.FilterState() == list.Filtering
	}
	return false
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.view == SearchView {
		return m.handleSearchKeys(msg)
	}
	if m.filtering() {
		return m.updateActive(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.pop()
		return m, nil
	case key.Matches(msg, m.keys.search):
		m.search.SetValue("")
		m.push(SearchView)
		return m, m.search.Focus()
	case key.Matches(msg, m.keys.cart) && m.view != CartView && m.view != ResultView:
		m.status = ""
		m.push(CartView)
		return m, nil
	case key.Matches(msg, m.keys.signOut) && m.signOut != nil:
		return m, m.doSignOut()
	}

	switch m.view {
	case GenreListView:
		if key.Matches(msg, m.keys.enter) {
			if it, ok := m.genreList.SelectedItem().(genreItem); ok {
				return m, m.browse(it.genre)
			}
		}
	case MovieListView:
		switch {
		case key.Matches(msg, m.keys.enter):
			if it, ok := m.movieList.SelectedItem().(movieItem); ok {
				return m, m.fetchDetail(it.movie.ID)
			}
		case key.Matches(msg, m.keys.next):
			if m.page != nil && m.page.HasNext() {
				return m, m.fetchPage(m.page.Page + 1)
			}
			return m, nil
		case key.Matches(msg, m.keys.prev):
			if m.page != nil && m.page.Page > 1 {
				return m, m.fetchPage(m.page.Page - 1)
			}
			return m, nil
		}
	case DetailView:
		if key.Matches(msg, m.keys.add) && m.detail != nil {
			m.addToCart(*m.detail)
		}
		return m, nil
	case CartView:
		switch {
		case key.Matches(msg, m.keys.remove):
			if it, ok := m.cartList.SelectedItem().(movieItem); ok {
				m.store.Remove(it.movie.Key())
				m.sync()
				m.status = styles.warn.Render("Removed " + it.movie.Title)
			}
			return m, nil
		case key.Matches(msg, m.keys.checkout):
			return m, m.checkout()
		case key.Matches(msg, m.keys.enter):
			if it, ok := m.cartList.SelectedItem().(movieItem); ok {
				return m, m.fetchDetail(it.movie.ID)
			}
		}
	case ResultView:
		if key.Matches(msg, m.keys.restart) {
			m.result, m.back, m.status = nil, nil, ""
			m.view = GenreListView
		}
		return m, nil
	}

	return m.updateActive(msg)
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.search.Blur()
		m.pop()
		return m, nil
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEnter:
		query := strings.TrimSpace(m.search.Value())
		if query == "" {
			return m, nil
		}
		m.search.Blur()
		m.view = m.back[len(m.back)-1]
		m.back = m.back[:len(m.back)-1]
		m.source = func(ctx context.Context, page int) (*models.CatalogPage, error) {
			return m.catalog.Search(ctx, query, page)
		}
		m.title = "Search: " + query
		return m, m.fetchPage(1)
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m *Model) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case GenreListView:
		m.genreList, cmd = m.genreList.Update(msg)
	case MovieListView:
		m.movieList, cmd = m.movieList.Update(msg)
	case CartView:
		m.cartList, cmd = m.cartList.Update(msg)
	case SearchView:
		m.search, cmd = m.search.Update(msg)
	}
	return m, cmd
}

func (m *Model) push(v ViewState) {
	if m.view == v {
		return
	}
	m.back = append(m.back, m.view)
	m.view = v
}

func (m *Model) pop() {
	if len(m.back) == 0 {
		return
	}
	m.view = m.back[len(m.back)-1]
	m.back = m.back[:len(m.back)-1]
	m.status = ""
}

func (m *Model) addToCart(movie models.Movie) {
	switch {
	case m.snap.Purchases.Contains(movie.Key()):
		m.status = styles.warn.Render("You already own " + movie.Title)
	case m.snap.Cart.Has(movie.Key()):
		m.status = styles.warn.Render(movie.Title + " is already in your cart")
	case m.store.Add(movie):
		m.sync()
		m.status = styles.ok.Render("Added " + movie.Title + " to cart")
	default:
		m.status = styles.err.Render("Cannot add " + movie.Title)
	}
}

func (m *Model) sync() {
	m.snap = m.store.Snapshot()
	m.refreshBadges()
}

// refreshBadges rebuilds list items after the store changed.
func (m *Model) refreshBadges() {
	if m.page != nil {
		idx := m.movieList.Index()
		m.movieList.SetItems(movieItems(m.page.Results, m.snap))
		m.movieList.Select(idx)
	}
	m.genreList.SetItems(genreItems(m.snap.Genres))
	m.refreshCart()
}

func (m *Model) refreshCart() {
	idx := m.cartList.Index()
	m.cartList.SetItems(movieItems(m.snap.Cart.Movies(), snapshot{}))
	m.cartList.Title = fmt.Sprintf("Cart (%d)", m.snap.Cart.Len())
	if n := len(m.cartList.Items()); idx >= n && n > 0 {
		idx = n - 1
	}
	m.cartList.Select(idx)
}

func (m *Model) browse(g models.Genre) tea.Cmd {
	if g.ID == 0 {
		m.source = m.catalog.NowPlaying
	} else {
		id := g.ID
		m.source = func(ctx context.Context, page int) (*models.CatalogPage, error) {
			return m.catalog.Discover(ctx, id, page)
		}
	}
	m.title = g.Name
	return m.fetchPage(1)
}

func (m *Model) fetchPage(page int) tea.Cmd {
	m.loading = true
	m.status = ""
	source, title := m.source, m.title
	return func() tea.Msg {
		p, err := source(m.ctx, page)
		return pageFetchedMsg(title, p, err)
	}
}

func (m *Model) fetchDetail(id int64) tea.Cmd {
	m.loading = true
	m.status = ""
	return func() tea.Msg {
		movie, err := m.catalog.Movie(m.ctx, id)
		if err != nil {
			return detailFetchedMsg(nil, nil, err)
		}
		trailers, _ := m.catalog.Trailers(m.ctx, id)
		return detailFetchedMsg(movie, trailers, nil)
	}
}

func (m *Model) checkout() tea.Cmd {
	if m.snap.Cart.Empty() {
		m.status = styles.warn.Render(checkoutMessage(shared.ErrEmptyCart))
		return nil
	}
	m.loading = true
	m.status = styles.help.Render("Placing order...")
	return func() tea.Msg {
		p, err := m.store.Checkout(m.ctx)
		return checkoutCompleteMsg(p, err)
	}
}

func (m *Model) doSignOut() tea.Cmd {
	signOut := m.signOut
	return func() tea.Msg {
		return signedOutMsg(signOut())
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case GenreListView:
		body = m.renderList(m.genreList, m.keys.enter, m.keys.search, m.keys.cart, m.keys.quit)
	case MovieListView:
		body = m.renderList(m.movieList, m.keys.enter, m.keys.next, m.keys.prev, m.keys.cart, m.keys.back, m.keys.quit)
	case SearchView:
		body = m.renderSearch()
	case DetailView:
		body = m.renderDetail()
	case CartView:
		body = m.renderList(m.cartList, m.keys.remove, m.keys.checkout, m.keys.back, m.keys.quit)
	case ResultView:
		body = m.renderResult()
	}

	if m.loading {
		body += "\n" + m.spinner.View() + styles.help.Render(" Loading...")
	}
	if m.status != "" {
		body += "\n" + m.status
	}
	return body
}

func (m *Model) header() string {
	who := "guest"
	if m.snap.User != nil {
		who = m.snap.User.Email
	}
	return styles.help.Render(fmt.Sprintf("%s • cart %d", who, m.snap.Cart.Len()))
}

func (m *Model) renderList(l list.Model, bindings ...key.Binding) string {
	if m.signOut != nil && m.snap.User != nil {
		bindings = append(bindings, m.keys.signOut)
	}
	return fmt.Sprintf("%s\n%s\n\n%s", m.header(), l.View(), m.help.ShortHelpView(bindings))
}

func (m *Model) renderSearch() string {
	title := styles.title.Render("Search")
	helpView := m.help.ShortHelpView([]key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "search")),
		m.keys.back,
	})
	return fmt.Sprintf("%s\n%s\n\n%s", title, m.search.View(), helpView)
}

func (m *Model) renderDetail() string {
	if m.detail == nil {
		return ""
	}
	d := m.detail

	title := d.Title
	switch {
	case m.snap.Purchases.Contains(d.Key()):
		title += " " + styles.badge.Render("OWNED")
	case m.snap.Cart.Has(d.Key()):
		title += " " + styles.warn.Render("• in cart")
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(title))
	b.WriteString("\n")
	if d.Tagline != "" {
		b.WriteString(styles.help.Render(d.Tagline) + "\n\n")
	}
	fmt.Fprintf(&b, "Released %s", d.ReleaseDate)
	if d.Runtime > 0 {
		fmt.Fprintf(&b, " • %d min", d.Runtime)
	}
	if d.VoteAverage > 0 {
		fmt.Fprintf(&b, " • ★ %.1f", d.VoteAverage)
	}
	b.WriteString("\n")
	if d.Overview != "" {
		b.WriteString("\n" + d.Overview + "\n")
	}
	if len(m.trailers) > 0 {
		b.WriteString("\n" + styles.ok.Render("Trailers") + "\n")
		for _, v := range m.trailers {
			fmt.Fprintf(&b, "  • %s  %s\n", v.Name, v.URL())
		}
	}

	bindings := []key.Binding{m.keys.back, m.keys.cart, m.keys.quit}
	if !m.snap.Purchases.Contains(d.Key()) && !m.snap.Cart.Has(d.Key()) {
		bindings = append([]key.Binding{m.keys.add}, bindings...)
	}
	return fmt.Sprintf("%s\n%s\n\n%s", m.header(), b.String(), m.help.ShortHelpView(bindings))
}

func (m *Model) renderResult() string {
	if m.result == nil {
		return styles.err.Render("No order placed") + "\n\n" + m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})
	}

	movies := m.result.Movies()
	title := styles.ok.Render("✓ Order complete!")
	var b strings.Builder
	if m.result.Batch != nil {
		fmt.Fprintf(&b, "\nOrder %s\n", m.result.Batch.OrderID)
	}
	for _, mv := range movies {
		fmt.Fprintf(&b, "  • %s (%s)\n", mv.Title, mv.Year())
	}
	fmt.Fprintf(&b, "\n%d movie(s) added to your library.", len(movies))

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s", title, b.String(), helpView)
}
