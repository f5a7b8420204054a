package catalog

import (
	"strconv"
	"strings"

	"herbolive/internal/types"
)

// mergeableFields is the allow-list of string columns FillMissing may copy.
// Source and url stay with the record that owns them.
var mergeableFields = []string{
	"description", "image_url", "medicinal", "habitat", "family", "genus",
	"species", "common_name", "scientific_name", "height", "width", "type",
	"foliage", "soils", "ph", "preferences", "tolerances", "edibility",
	"other_uses", "growth_rate", "hardiness_zones", "habitat_range", "pfaf",
	"leaf", "flower", "ripen", "reproduction",
}

// FillMissing returns a copy of target whose empty allow-listed fields are
// filled from source. Non-empty target fields are never replaced. When
// sourceTag is set, a copy of source is recorded under that provenance key.
// Neither input is mutated.
func FillMissing(target, source types.Plant, sourceTag string) types.Plant {
	out := target.Clone()

	for _, key := range mergeableFields {
		f, ok := types.LookupField(key)
		if !ok {
			continue
		}
		dst := f.Get(&out)
		src := *f.Get(&source)
		if isEmpty(*dst) && !isEmpty(src) {
			*dst = src
		}
	}

	if out.ID == 0 && source.ID != 0 {
		out.ID = source.ID
	}
	if len(out.Pollinators) == 0 && len(source.Pollinators) > 0 {
		out.Pollinators = append([]string(nil), source.Pollinators...)
	}
	if len(out.Images) == 0 {
		switch {
		case len(source.Images) > 0:
			out.Images = append([]string(nil), source.Images...)
		case source.ImageURL != "":
			out.Images = []string{source.ImageURL}
		case out.ImageURL != "":
			out.Images = []string{out.ImageURL}
		}
	}

	if sourceTag != "" {
		rec := source.Clone()
		rec.Provenance = nil
		if out.Provenance == nil {
			out.Provenance = make(map[string]*types.Plant, 1)
		}
		out.Provenance[sourceTag] = &rec
	}
	return out
}

// Dedupe collapses records sharing an identity key. The first occurrence is
// kept and later occurrences only fill its empty fields. Output follows
// first-occurrence order; records without any name are dropped.
func Dedupe(list []types.Plant) []types.Plant {
	index := make(map[string]int, len(list))
	out := make([]types.Plant, 0, len(list))
	for _, p := range list {
		key := IdentityKey(p)
		if key == "" {
			continue
		}
		if i, ok := index[key]; ok {
			out[i] = FillMissing(out[i], p, "")
			continue
		}
		index[key] = len(out)
		out = append(out, p.Clone())
	}
	return out
}

// IdentityKey derives the dedup key: scientific name, else "genus species",
// else common name; lowercased and trimmed. Empty when none is present.
func IdentityKey(p types.Plant) string {
	if s := strings.TrimSpace(p.ScientificName); s != "" {
		return strings.ToLower(s)
	}
	genus, species := strings.TrimSpace(p.Genus), strings.TrimSpace(p.Species)
	if genus != "" && species != "" {
		return strings.ToLower(genus + " " + species)
	}
	return strings.ToLower(strings.TrimSpace(p.CommonName))
}

// SecondaryKey combines id, scientific name, common name and first image.
// It separates records that share an identity key but are distinct rows.
func SecondaryKey(p types.Plant) string {
	id := ""
	if p.ID != 0 {
		id = strconv.FormatInt(p.ID, 10)
	}
	parts := []string{
		id,
		strings.TrimSpace(p.ScientificName),
		strings.TrimSpace(p.CommonName),
		strings.TrimSpace(p.FirstImage()),
	}
	return strings.ToLower(strings.Join(parts, "||"))
}

func isEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}
