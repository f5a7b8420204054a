package catalog

import (
	"strings"

	"herbolive/internal/types"
)

// alternateTitleSources are the provenance records whose names also count
// as a match.
var alternateTitleSources = []string{SourceTrefle, SourcePerenual}

// NormalizeQuery trims and lowercases a free-text query.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// Matches reports whether query (already normalized) is a substring of the
// record's common name, scientific name, family, species or an alternate
// source title. An empty query matches everything.
func Matches(p types.Plant, query string) bool {
	if query == "" {
		return true
	}
	if containsFold(p.CommonName, query) ||
		containsFold(p.ScientificName, query) ||
		containsFold(p.Family, query) ||
		containsFold(p.Species, query) {
		return true
	}
	for _, tag := range alternateTitleSources {
		alt := p.Provenance[tag]
		if alt == nil {
			continue
		}
		if containsFold(alt.CommonName, query) || containsFold(alt.ScientificName, query) {
			return true
		}
	}
	return false
}

// Filter keeps the records matching query, preserving order.
func Filter(list []types.Plant, query string) []types.Plant {
	out := make([]types.Plant, 0, len(list))
	for _, p := range list {
		if Matches(p, query) {
			out = append(out, p)
		}
	}
	return out
}

func containsFold(field, query string) bool {
	return field != "" && strings.Contains(strings.ToLower(field), query)
}
