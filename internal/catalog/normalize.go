// Package catalog turns heterogeneous provider payloads into canonical plant
// records and merges records that describe the same plant.
package catalog

import (
	"strings"

	"herbolive/internal/types"
)

// Source tags understood by Normalize.
const (
	SourcePerenual  = "perenual"
	SourceTrefle    = "trefle"
	SourceWikipedia = "wikipedia"
	SourceBackend   = "db"
	SourceCSV       = "csv"
)

// Normalize maps a decoded provider record to the canonical schema.
// Perenual and Trefle payloads are read through their documented synonyms;
// any other tag is treated as already canonical and copied as-is.
// It never panics on unexpected shapes.
func Normalize(raw map[string]any, sourceTag string) types.Plant {
	if raw == nil {
		return types.Plant{}
	}

	var p types.Plant
	switch sourceTag {
	case SourcePerenual:
		p = normalizePerenual(raw)
	case SourceTrefle:
		p = normalizeTrefle(raw)
	default:
		p = types.FromMap(raw)
	}

	if p.ImageURL == "" && len(p.Images) > 0 {
		p.ImageURL = p.Images[0]
	}
	if len(p.Images) == 0 && p.ImageURL != "" {
		p.Images = []string{p.ImageURL}
	}
	return p
}

// NormalizeAll applies Normalize to every element and drops nil entries.
func NormalizeAll(raws []map[string]any, sourceTag string) []types.Plant {
	out := make([]types.Plant, 0, len(raws))
	for _, r := range raws {
		if r == nil {
			continue
		}
		out = append(out, Normalize(r, sourceTag))
	}
	return out
}

func normalizePerenual(raw map[string]any) types.Plant {
	p := types.Plant{
		ScientificName: types.FirstString(raw, "scientific_name", "scientific", "scientificName"),
		CommonName:     types.FirstString(raw, "common_name", "common", "name"),
		Description:    types.FirstString(raw, "description", "summary"),
		ImageURL: types.FirstString(raw, "image_url", "image", "images",
			"default_image.regular_url", "default_image.original_url", "default_image.thumbnail"),
		Family:    types.FirstString(raw, "family"),
		Genus:     types.FirstString(raw, "genus"),
		Species:   types.FirstString(raw, "species"),
		Habitat:   types.FirstString(raw, "habitat", "habitat_range"),
		Medicinal: types.FirstString(raw, "medicinal_uses", "medicinal", "uses"),
		PFAF:      types.FirstString(raw, "pfaf"),
		Source:    SourcePerenual,
	}
	if id, ok := types.ExtractInt64(raw["id"]); ok {
		p.ID = id
	}
	p.Images = imageList(raw["images"])
	return p
}

func normalizeTrefle(raw map[string]any) types.Plant {
	p := types.Plant{
		ScientificName: types.FirstString(raw, "scientific_name", "scientificName"),
		CommonName:     types.FirstString(raw, "common_name", "common_names"),
		Description:    types.FirstString(raw, "description", "synopsis"),
		ImageURL:       types.FirstString(raw, "image_url", "image.url", "images"),
		Family:         types.FirstString(raw, "family", "family_common_name"),
		Genus:          types.FirstString(raw, "genus"),
		Species:        types.FirstString(raw, "species"),
		Medicinal:      types.FirstString(raw, "medicinal_uses", "uses"),
		Source:         SourceTrefle,
	}
	p.Habitat = types.FirstString(raw, "habitat")
	if p.Habitat == "" {
		p.Habitat = distribution(raw["distribution"])
	}
	if id, ok := types.ExtractInt64(raw["id"]); ok {
		p.ID = id
	}
	p.Images = imageList(raw["images"])
	return p
}

// distribution flattens Trefle's distribution field, which is either a
// string, a list of zone names, or an object of {native: [...], introduced: [...]}.
func distribution(v any) string {
	if m := types.ExtractMap(v); m != nil {
		if native := types.ExtractStrings(m["native"]); len(native) > 0 {
			return strings.Join(native, ", ")
		}
		return strings.Join(types.ExtractStrings(m["introduced"]), ", ")
	}
	return strings.Join(types.ExtractStrings(v), ", ")
}

// imageList reads an images field holding URLs or objects with a url.
func imageList(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return types.ExtractStrings(v)
	}
	var out []string
	for _, e := range arr {
		if m := types.ExtractMap(e); m != nil {
			if u := types.FirstString(m, "url", "image_url", "regular_url"); u != "" {
				out = append(out, u)
			}
			continue
		}
		if s := types.ExtractString(e); s != "" {
			out = append(out, s)
		}
	}
	return out
}
