package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"herbolive/internal/app"
	"herbolive/internal/logging"
	"herbolive/internal/search"
	"herbolive/internal/types"
)

// searchDebounce is how long typing must pause before a search starts.
const searchDebounce = 250 * time.Millisecond

// Controller is the application surface the UI drives. *app.App satisfies it.
type Controller interface {
	Boot(ctx context.Context) error
	Page(ctx context.Context, n int) ([]types.Plant, error)
	Detail(ctx context.Context, p types.Plant) types.Plant
	RunSearch(query string) uint64
	EnterSearch()
	LeaveSearch()
	SearchUpdate() search.Update
	Changed() <-chan struct{}
	SetFocused(focused bool)
}

type tab int

const (
	catalogTab tab = iota
	searchTab
)

// Model is the root Bubble Tea model.
type Model struct {
	ctl      Controller
	ctx      context.Context
	styles   Styles
	pageSize int

	width  int
	height int

	tab     tab
	booting bool
	bootErr error

	spinner  spinner.Model
	input    textinput.Model
	viewport viewport.Model
	renderer *glamour.TermRenderer

	// catalog tab
	page     int
	items    []types.Plant
	loading  bool
	pageErr  error
	selected int

	// search tab
	searchSeq  int
	searchPage int
	update     search.Update

	// detail modal
	detail      *types.Plant
	detailImage int
}

// Messages

type bootDoneMsg struct{ err error }

type pageMsg struct {
	page  int
	items []types.Plant
	err   error
}

type changedMsg struct{}

type detailMsg struct{ plant types.Plant }

type searchDebounceMsg struct{ seq int }

// New creates the model. pageSize is the number of cards per page.
func New(ctx context.Context, ctl Controller, pageSize int, styles Styles) Model {
	if pageSize < 1 {
		pageSize = 6
	}
	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.Spinner))

	in := textinput.New()
	in.Placeholder = "Search by name, family or species"
	in.Prompt = "🔎 "
	in.CharLimit = 80

	return Model{
		ctl:        ctl,
		ctx:        ctx,
		styles:     styles,
		pageSize:   pageSize,
		booting:    true,
		spinner:    sp,
		input:      in,
		viewport:   viewport.New(80, 20),
		page:       1,
		searchPage: 1,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.bootCmd(), m.waitForChange())
}

func (m Model) bootCmd() tea.Cmd {
	return func() tea.Msg {
		return bootDoneMsg{err: m.ctl.Boot(m.ctx)}
	}
}

func (m Model) loadPage(n int) tea.Cmd {
	return func() tea.Msg {
		items, err := m.ctl.Page(m.ctx, n)
		return pageMsg{page: n, items: items, err: err}
	}
}

// waitForChange listens for the next application change signal.
func (m Model) waitForChange() tea.Cmd {
	ch := m.ctl.Changed()
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case <-ch:
			return changedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m Model) loadDetail(p types.Plant) tea.Cmd {
	return func() tea.Msg {
		return detailMsg{plant: m.ctl.Detail(m.ctx, p)}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width - 6
		m.viewport.Height = msg.Height - 8
		m.renderer = newRenderer(m.styles.Theme.IsDark, m.viewport.Width-2)
		m.input.Width = msg.Width - 8
		m.refreshDetail()
		return m, nil

	case tea.FocusMsg:
		m.ctl.SetFocused(true)
		return m, nil

	case tea.BlurMsg:
		m.ctl.SetFocused(false)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case bootDoneMsg:
		m.booting = false
		m.bootErr = msg.err
		m.loading = true
		return m, m.loadPage(m.page)

	case pageMsg:
		if msg.page != m.page {
			return m, nil
		}
		m.loading = false
		m.pageErr = msg.err
		if msg.err == nil {
			m.items = msg.items
		}
		m.clampSelection()
		return m, nil

	case changedMsg:
		m.update = m.ctl.SearchUpdate()
		m.clampSelection()
		cmds := []tea.Cmd{m.waitForChange()}
		if !m.booting && m.tab == catalogTab && !m.loading {
			cmds = append(cmds, m.loadPage(m.page))
		}
		return m, tea.Batch(cmds...)

	case searchDebounceMsg:
		if msg.seq != m.searchSeq || m.tab != searchTab {
			return m, nil
		}
		m.searchPage = 1
		m.selected = 0
		tok := m.ctl.RunSearch(m.input.Value())
		logging.TUIDebug("Search #%d for %q", tok, m.input.Value())
		return m, nil

	case detailMsg:
		if m.detail != nil && sameRecord(*m.detail, msg.plant) {
			p := msg.plant
			m.detail = &p
			m.refreshDetail()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func sameRecord(a, b types.Plant) bool {
	if a.ID != 0 || b.ID != 0 {
		return a.ID == b.ID
	}
	return a.DisplayName() == b.DisplayName()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.detail != nil {
		return m.handleDetailKey(msg)
	}

	switch msg.String() {
	case "tab", "shift+tab":
		return m.switchTab()
	case "up", "ctrl+k":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil
	case "down", "ctrl+j":
		if m.selected < len(m.visible())-1 {
			m.selected++
		}
		return m, nil
	case "enter":
		vis := m.visible()
		if m.selected < 0 || m.selected >= len(vis) {
			return m, nil
		}
		p := vis[m.selected]
		m.detail = &p
		m.detailImage = 0
		m.refreshDetail()
		return m, m.loadDetail(p)
	}

	if m.tab == searchTab {
		return m.handleSearchKey(msg)
	}

	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "right", "l", "pgdown":
		m.page++
		m.selected = 0
		m.loading = true
		return m, m.loadPage(m.page)
	case "left", "h", "pgup":
		if m.page > 1 {
			m.page--
			m.selected = 0
			m.loading = true
			return m, m.loadPage(m.page)
		}
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m.switchTab()
	case "pgdown":
		m.searchPage++
		m.selected = 0
		m.clampSelection()
		return m, nil
	case "pgup":
		if m.searchPage > 1 {
			m.searchPage--
			m.selected = 0
		}
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() == before {
		return m, cmd
	}
	m.searchSeq++
	seq := m.searchSeq
	debounce := tea.Tick(searchDebounce, func(time.Time) tea.Msg {
		return searchDebounceMsg{seq: seq}
	})
	return m, tea.Batch(cmd, debounce)
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "backspace":
		m.detail = nil
		return m, nil
	case "n", "right", "l":
		m.detailImage++
		m.refreshDetail()
		return m, nil
	case "p", "left", "h":
		m.detailImage--
		m.refreshDetail()
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) switchTab() (tea.Model, tea.Cmd) {
	m.selected = 0
	if m.tab == catalogTab {
		m.tab = searchTab
		m.ctl.EnterSearch()
		return m, m.input.Focus()
	}
	m.tab = catalogTab
	m.input.Blur()
	m.input.Reset()
	m.searchSeq++
	m.searchPage = 1
	m.update = search.Update{}
	m.ctl.LeaveSearch()
	m.loading = true
	return m, m.loadPage(m.page)
}

// visible returns the cards on screen in the current tab.
func (m Model) visible() []types.Plant {
	if m.tab == searchTab {
		return app.Paginate(m.update.Items, m.searchPage, m.pageSize).Items
	}
	return m.items
}

func (m *Model) clampSelection() {
	if m.tab == searchTab {
		m.searchPage = app.Paginate(m.update.Items, m.searchPage, m.pageSize).Page
	}
	n := len(m.visible())
	if m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *Model) refreshDetail() {
	if m.detail == nil {
		return
	}
	md := DetailMarkdown(*m.detail, m.detailImage)
	out := md
	if m.renderer != nil {
		if rendered, err := m.renderer.Render(md); err == nil {
			out = rendered
		}
	}
	m.viewport.SetContent(out)
}
