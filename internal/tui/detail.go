package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"

	"herbolive/internal/types"
)

// detailHidden are string fields the modal shows outside the field table.
var detailHidden = map[string]bool{
	"image_url": true,
	"url":       true,
	"source":    true,
}

// DetailMarkdown renders p as the markdown body of the detail modal.
// image selects which entry of the image list is shown.
func DetailMarkdown(p types.Plant, image int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", p.DisplayName())
	if name := p.BinomialName(); name != "" && name != p.DisplayName() {
		fmt.Fprintf(&sb, "*%s*\n\n", name)
	}

	sb.WriteString("| Field | Value |\n|---|---|\n")
	rows := 0
	for i := range types.StringFields {
		f := types.StringFields[i]
		if detailHidden[f.Key] {
			continue
		}
		v := strings.TrimSpace(*f.Get(&p))
		if v == "" {
			continue
		}
		fmt.Fprintf(&sb, "| %s | %s |\n", f.Label, cell(v))
		rows++
	}
	if len(p.Pollinators) > 0 {
		fmt.Fprintf(&sb, "| Pollinators | %s |\n", cell(strings.Join(p.Pollinators, ", ")))
		rows++
	}
	if rows == 0 {
		sb.WriteString("| | No details available |\n")
	}

	images := imageList(p)
	if len(images) > 0 {
		i := wrapIndex(image, len(images))
		fmt.Fprintf(&sb, "\n**Image %d/%d:** %s\n", i+1, len(images), images[i])
	}
	if p.URL != "" {
		fmt.Fprintf(&sb, "\n[Read more](%s)\n", p.URL)
	}

	sources := make([]string, 0, len(p.Provenance)+1)
	if p.Source != "" {
		sources = append(sources, p.Source)
	}
	tags := make([]string, 0, len(p.Provenance))
	for tag := range p.Provenance {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	sources = append(sources, tags...)
	if len(sources) > 0 {
		fmt.Fprintf(&sb, "\n_Sources: %s_\n", strings.Join(sources, ", "))
	}
	return sb.String()
}

// imageList returns the record's images, falling back to ImageURL.
func imageList(p types.Plant) []string {
	var out []string
	for _, img := range p.Images {
		if strings.TrimSpace(img) != "" {
			out = append(out, img)
		}
	}
	if len(out) == 0 && strings.TrimSpace(p.ImageURL) != "" {
		out = append(out, p.ImageURL)
	}
	return out
}

func wrapIndex(i, n int) int {
	if n == 0 {
		return 0
	}
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func cell(v string) string {
	v = strings.ReplaceAll(v, "\n", " ")
	return strings.ReplaceAll(v, "|", "\\|")
}

// newRenderer builds the markdown renderer for the modal.
func newRenderer(dark bool, width int) *glamour.TermRenderer {
	style := "light"
	if dark {
		style = "dark"
	}
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}
