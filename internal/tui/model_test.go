package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herbolive/internal/search"
	"herbolive/internal/types"
)

type fakeController struct {
	mu       sync.Mutex
	pages    map[int][]types.Plant
	detail   map[int64]types.Plant
	searches []string
	entered  int
	left     int
	focused  []bool
	update   search.Update
	changed  chan struct{}
}

func newFakeController() *fakeController {
	pages := map[int][]types.Plant{}
	for n := 1; n <= 3; n++ {
		for i := 1; i <= 6; i++ {
			id := int64((n-1)*6 + i)
			pages[n] = append(pages[n], types.Plant{
				ID:             id,
				CommonName:     fmt.Sprintf("Plant %d", id),
				ScientificName: fmt.Sprintf("Herba species%d", id),
			})
		}
	}
	return &fakeController{
		pages:   pages,
		detail:  map[int64]types.Plant{},
		changed: make(chan struct{}, 1),
	}
}

func (f *fakeController) Boot(context.Context) error { return nil }

func (f *fakeController) Page(_ context.Context, n int) ([]types.Plant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return types.ClonePage(f.pages[n]), nil
}

func (f *fakeController) Detail(_ context.Context, p types.Plant) types.Plant {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.detail[p.ID]; ok {
		return d
	}
	return p
}

func (f *fakeController) RunSearch(q string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, q)
	return uint64(len(f.searches))
}

func (f *fakeController) EnterSearch() { f.mu.Lock(); f.entered++; f.mu.Unlock() }
func (f *fakeController) LeaveSearch() { f.mu.Lock(); f.left++; f.mu.Unlock() }

func (f *fakeController) SearchUpdate() search.Update {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.update
}

func (f *fakeController) Changed() <-chan struct{} { return f.changed }

func (f *fakeController) SetFocused(focused bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused = append(f.focused, focused)
}

// step applies msg and drops the returned command.
func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func booted(t *testing.T, ctl *fakeController) Model {
	t.Helper()
	m := New(context.Background(), ctl, 6, NewStyles(LightTheme()))
	m = step(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m = step(t, m, bootDoneMsg{})
	require.True(t, m.loading)
	items, err := ctl.Page(context.Background(), 1)
	require.NoError(t, err)
	return step(t, m, pageMsg{page: 1, items: items})
}

func keys(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestCatalogRendersCards(t *testing.T) {
	m := booted(t, newFakeController())
	view := m.View()
	assert.Contains(t, view, "Plant 1")
	assert.Contains(t, view, "Plant 6")
	assert.Contains(t, view, "Page 1")
	assert.NotContains(t, view, "Plant 7")
}

func TestCatalogPagingIgnoresStalePages(t *testing.T) {
	ctl := newFakeController()
	m := booted(t, ctl)

	m = step(t, m, tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, 2, m.page)
	assert.True(t, m.loading)

	// A late answer for page 1 must not replace page 2.
	m = step(t, m, pageMsg{page: 1, items: ctl.pages[1]})
	assert.True(t, m.loading)

	m = step(t, m, pageMsg{page: 2, items: ctl.pages[2]})
	assert.False(t, m.loading)
	assert.Equal(t, "Plant 7", m.items[0].CommonName)

	m = step(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	assert.Equal(t, 1, m.page)
	m = step(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	assert.Equal(t, 1, m.page, "page never goes below 1")
}

func TestSearchTabDebouncesAndRuns(t *testing.T) {
	ctl := newFakeController()
	m := booted(t, ctl)

	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, searchTab, m.tab)
	assert.Equal(t, 1, ctl.entered)

	m = step(t, m, keys("r"))
	m = step(t, m, keys("o"))
	assert.Equal(t, "ro", m.input.Value())
	assert.Equal(t, 2, m.searchSeq)

	// Only the debounce tick of the last keystroke starts a search.
	m = step(t, m, searchDebounceMsg{seq: 1})
	assert.Empty(t, ctl.searches)
	m = step(t, m, searchDebounceMsg{seq: 2})
	assert.Equal(t, []string{"ro"}, ctl.searches)

	ctl.update = search.Update{Token: 1, Query: "ro", Status: search.StatusPartial, Items: ctl.pages[1][:2]}
	m = step(t, m, changedMsg{})
	view := m.View()
	assert.Contains(t, view, "2 found so far")
	assert.Contains(t, view, "Plant 2")

	ctl.update = search.Update{Token: 1, Query: "ro", Status: search.StatusComplete}
	m = step(t, m, changedMsg{})
	assert.Contains(t, m.View(), `No results for "ro"`)
}

func TestSearchResultsPaginate(t *testing.T) {
	ctl := newFakeController()
	m := booted(t, ctl)
	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = step(t, m, keys("plant"))

	var all []types.Plant
	for n := 1; n <= 3; n++ {
		all = append(all, ctl.pages[n]...)
	}
	ctl.update = search.Update{Token: 1, Query: "plant", Status: search.StatusComplete, Items: all}
	m = step(t, m, changedMsg{})
	assert.Contains(t, m.View(), "1/3")

	m = step(t, m, tea.KeyMsg{Type: tea.KeyPgDown})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyPgDown})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyPgDown})
	assert.Equal(t, 3, m.searchPage, "clamped to the last page")
	assert.Contains(t, m.View(), "Plant 13")
}

func TestLeavingSearchCancels(t *testing.T) {
	ctl := newFakeController()
	m := booted(t, ctl)
	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = step(t, m, keys("salvia"))
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})

	assert.Equal(t, catalogTab, m.tab)
	assert.Equal(t, 1, ctl.left)
	assert.Equal(t, "", m.input.Value())

	// A pending debounce from before leaving is ignored.
	m = step(t, m, searchDebounceMsg{seq: 1})
	assert.Empty(t, ctl.searches)
}

func TestDetailModal(t *testing.T) {
	ctl := newFakeController()
	ctl.detail[2] = types.Plant{
		ID:             2,
		CommonName:     "Plant 2",
		ScientificName: "Herba species2",
		Habitat:        "Riverbanks",
		Images:         []string{"https://img.test/a.jpg", "https://img.test/b.jpg"},
	}
	m := booted(t, ctl)

	m = step(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, m.detail)
	assert.Equal(t, "Plant 2", m.detail.CommonName)

	m = step(t, m, detailMsg{plant: ctl.detail[2]})
	assert.Equal(t, "Riverbanks", m.detail.Habitat)
	assert.Contains(t, DetailMarkdown(*m.detail, m.detailImage), "| Habitat | Riverbanks |")

	m = step(t, m, keys("n"))
	assert.Equal(t, 1, m.detailImage)
	assert.Contains(t, DetailMarkdown(*m.detail, m.detailImage), "b.jpg")

	// A detail answer for another record is dropped.
	m = step(t, m, detailMsg{plant: types.Plant{ID: 99, CommonName: "Other"}})
	assert.Equal(t, int64(2), m.detail.ID)

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, m.detail)
	assert.Equal(t, catalogTab, m.tab, "esc in the modal only closes it")
}

func TestFocusTogglesPrefetch(t *testing.T) {
	ctl := newFakeController()
	m := booted(t, ctl)
	m = step(t, m, tea.BlurMsg{})
	step(t, m, tea.FocusMsg{})
	assert.Equal(t, []bool{false, true}, ctl.focused)
}

func TestDetailMarkdown(t *testing.T) {
	p := types.Plant{
		CommonName:     "Lavender",
		ScientificName: "Lavandula angustifolia",
		Family:         "Lamiaceae",
		Description:    "Aromatic | shrub\nwith purple flowers",
		PFAF:           "4",
		Pollinators:    []string{"Bees", "Butterflies"},
		ImageURL:       "https://img.test/lav.jpg",
		Source:         "csv",
		Provenance:     map[string]*types.Plant{"wiki": {Description: "x"}, "perenual": {}},
	}
	md := DetailMarkdown(p, 0)

	assert.True(t, strings.HasPrefix(md, "# Lavender\n\n*Lavandula angustifolia*"))
	assert.Contains(t, md, `| Description | Aromatic \| shrub with purple flowers |`)
	assert.Contains(t, md, "| Pollinators | Bees, Butterflies |")
	assert.Contains(t, md, "**Image 1/1:** https://img.test/lav.jpg")
	assert.Contains(t, md, "_Sources: csv, perenual, wiki_")
	assert.NotContains(t, md, "| Image |")

	common := strings.Index(md, "| Common name |")
	family := strings.Index(md, "| Family |")
	pfaf := strings.Index(md, "| PFAF |")
	assert.True(t, common < family && family < pfaf, "fields keep the detail order")

	assert.Contains(t, DetailMarkdown(p, -1), "**Image 1/1:**")
	assert.Contains(t, DetailMarkdown(types.Plant{}, 0), "No details available")
}

func TestDetectTheme(t *testing.T) {
	t.Setenv("COLORFGBG", "")
	t.Setenv("HERBOLIVE_DARK_MODE", "1")
	assert.True(t, DetectTheme().IsDark)

	t.Setenv("HERBOLIVE_DARK_MODE", "")
	assert.False(t, DetectTheme().IsDark)

	t.Setenv("COLORFGBG", "15;0")
	assert.True(t, DetectTheme().IsDark)
}
