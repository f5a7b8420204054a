package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"herbolive/internal/app"
	"herbolive/internal/search"
	"herbolive/internal/types"
)

// View implements tea.Model.
func (m Model) View() string {
	var body string
	switch {
	case m.detail != nil:
		body = m.styles.Modal.Render(m.viewport.View())
	case m.booting:
		body = fmt.Sprintf("\n  %s Loading the plant catalog...\n", m.spinner.View())
	case m.tab == searchTab:
		body = m.searchView()
	default:
		body = m.catalogView()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.headerView(), body, m.footerView())
}

func (m Model) headerView() string {
	tabs := []string{"Catalog", "Search"}
	rendered := make([]string, len(tabs))
	for i, name := range tabs {
		if tab(i) == m.tab {
			rendered[i] = m.styles.TabActive.Render(name)
		} else {
			rendered[i] = m.styles.Tab.Render(name)
		}
	}
	title := m.styles.Header.Render("HerboLive")
	return lipgloss.JoinHorizontal(lipgloss.Center, title, " ", strings.Join(rendered, " "))
}

func (m Model) footerView() string {
	var help string
	switch {
	case m.detail != nil:
		help = "n/p: image  ↑/↓: scroll  esc: close"
	case m.tab == searchTab:
		help = "type to search  ↑/↓: select  enter: details  pgup/pgdn: page  tab/esc: catalog"
	default:
		help = "←/→: page  ↑/↓: select  enter: details  tab: search  q: quit"
	}
	return m.styles.Footer.Render(help)
}

func (m Model) catalogView() string {
	var sb strings.Builder
	sb.WriteString("\n")
	if m.bootErr != nil && len(m.items) == 0 {
		sb.WriteString(m.styles.Error.Render("  Could not load any plants: " + m.bootErr.Error()))
		sb.WriteString("\n")
		return sb.String()
	}
	if m.pageErr != nil {
		sb.WriteString(m.styles.Error.Render("  Error loading page " + strconv.Itoa(m.page)))
		sb.WriteString("\n")
	}
	if m.loading && len(m.items) == 0 {
		sb.WriteString(fmt.Sprintf("  %s Loading page %d...\n", m.spinner.View(), m.page))
		return sb.String()
	}
	if len(m.items) == 0 && m.pageErr == nil {
		sb.WriteString(m.styles.Muted.Render("  No plants on this page."))
		sb.WriteString("\n")
	}
	sb.WriteString(m.cards(m.items))

	prev := m.styles.Page.Render("‹")
	if m.page <= 1 {
		prev = m.styles.Muted.Render(" ")
	}
	nav := lipgloss.JoinHorizontal(lipgloss.Center, prev, m.styles.PageCurrent.Render("Page "+strconv.Itoa(m.page)), m.styles.Page.Render("›"))
	if m.loading {
		nav += " " + m.spinner.View()
	}
	sb.WriteString(nav)
	return sb.String()
}

func (m Model) searchView() string {
	var sb strings.Builder
	sb.WriteString(m.input.View())
	sb.WriteString("\n")

	u := m.update
	switch {
	case strings.TrimSpace(m.input.Value()) == "":
		sb.WriteString(m.styles.Muted.Render("Start typing to search the catalog."))
		sb.WriteString("\n")
		return sb.String()
	case u.NoResults():
		sb.WriteString(m.styles.Warning.Render("No results for \"" + u.Query + "\"."))
		sb.WriteString("\n")
		return sb.String()
	case u.Status == search.StatusPartial:
		sb.WriteString(fmt.Sprintf("%s %d found so far, checking the server...\n", m.spinner.View(), len(u.Items)))
	case u.Status == search.StatusTimedOut:
		sb.WriteString(m.styles.Warning.Render(fmt.Sprintf("Search is taking longer than expected (%d found).", len(u.Items))))
		sb.WriteString("\n")
	case u.Status == search.StatusComplete:
		sb.WriteString(m.styles.Info.Render(fmt.Sprintf("%d results", len(u.Items))))
		sb.WriteString("\n")
	default:
		sb.WriteString(fmt.Sprintf("%s Searching...\n", m.spinner.View()))
		return sb.String()
	}

	pg := app.Paginate(u.Items, m.searchPage, m.pageSize)
	sb.WriteString(m.cards(pg.Items))
	sb.WriteString(m.navBar(pg))
	return sb.String()
}

// navBar renders the numbered page window of a result list.
func (m Model) navBar(pg app.Pagination) string {
	if pg.TotalPages <= 1 {
		return ""
	}
	parts := make([]string, 0, len(pg.Nav)+2)
	if pg.Nav[0] > 1 {
		parts = append(parts, m.styles.Page.Render("…"))
	}
	for _, n := range pg.Nav {
		if n == pg.Page {
			parts = append(parts, m.styles.PageCurrent.Render(strconv.Itoa(n)))
		} else {
			parts = append(parts, m.styles.Page.Render(strconv.Itoa(n)))
		}
	}
	if pg.Nav[len(pg.Nav)-1] < pg.TotalPages {
		parts = append(parts, m.styles.Page.Render("…"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, parts...) +
		m.styles.Muted.Render(fmt.Sprintf("  %d/%d", pg.Page, pg.TotalPages))
}

func (m Model) cardWidth() int {
	if m.width > 10 {
		return m.width - 4
	}
	return 76
}

func (m Model) cards(items []types.Plant) string {
	var sb strings.Builder
	for i, p := range items {
		sb.WriteString(m.card(p, i == m.selected))
		sb.WriteString("\n")
	}
	return sb.String()
}

// card renders one plant as a bordered card.
func (m Model) card(p types.Plant, selected bool) string {
	width := m.cardWidth()
	lines := []string{m.styles.CardTitle.Render(p.DisplayName())}

	var sub []string
	if name := p.BinomialName(); name != "" && name != p.DisplayName() {
		sub = append(sub, name)
	}
	if p.Family != "" {
		sub = append(sub, p.Family)
	}
	if len(sub) > 0 {
		lines = append(lines, m.styles.CardSubtitle.Render(strings.Join(sub, " · ")))
	}
	if d := strings.TrimSpace(p.Description); d != "" {
		lines = append(lines, truncate(oneLine(d), width-4))
	}
	if imgs := imageList(p); len(imgs) > 0 {
		lines = append(lines, m.styles.Muted.Render(fmt.Sprintf("🖼  %d image(s)", len(imgs))))
	}

	style := m.styles.Card
	if selected {
		style = m.styles.CardSelected
	}
	return style.Width(width).Render(strings.Join(lines, "\n"))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if n < 4 {
		n = 4
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
