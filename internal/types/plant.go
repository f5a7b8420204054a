// Package types holds the canonical plant record shared by every HerboLive
// package, plus helpers for reading loosely typed JSON payloads.
package types

import "strings"

// Plant is the canonical plant record every source is normalized into.
// Absent values are empty strings or nil slices; ID is zero when unknown.
type Plant struct {
	ID             int64    `json:"id,omitempty"`
	ScientificName string   `json:"scientific_name,omitempty"`
	CommonName     string   `json:"common_name,omitempty"`
	Description    string   `json:"description,omitempty"`
	ImageURL       string   `json:"image_url,omitempty"`
	Images         []string `json:"images,omitempty"`
	Family         string   `json:"family,omitempty"`
	Genus          string   `json:"genus,omitempty"`
	Species        string   `json:"species,omitempty"`
	Habitat        string   `json:"habitat,omitempty"`
	Medicinal      string   `json:"medicinal,omitempty"`
	PFAF           string   `json:"pfaf,omitempty"`
	Source         string   `json:"source,omitempty"`
	URL            string   `json:"url,omitempty"`

	// Detail fields carried by the CSV dataset and backend detail endpoint.
	GrowthRate     string   `json:"growth_rate,omitempty"`
	HardinessZones string   `json:"hardiness_zones,omitempty"`
	Height         string   `json:"height,omitempty"`
	Width          string   `json:"width,omitempty"`
	Type           string   `json:"type,omitempty"`
	Foliage        string   `json:"foliage,omitempty"`
	Pollinators    []string `json:"pollinators,omitempty"`
	Leaf           string   `json:"leaf,omitempty"`
	Flower         string   `json:"flower,omitempty"`
	Ripen          string   `json:"ripen,omitempty"`
	Reproduction   string   `json:"reproduction,omitempty"`
	Soils          string   `json:"soils,omitempty"`
	PH             string   `json:"ph,omitempty"`
	Preferences    string   `json:"preferences,omitempty"`
	Tolerances     string   `json:"tolerances,omitempty"`
	HabitatRange   string   `json:"habitat_range,omitempty"`
	Edibility      string   `json:"edibility,omitempty"`
	OtherUses      string   `json:"other_uses,omitempty"`

	// Provenance holds the raw records merged in from secondary sources,
	// keyed by source tag ("perenual", "trefle", "wiki", ...).
	Provenance map[string]*Plant `json:"provenance,omitempty"`
}

// Field describes one string-valued column of a Plant.
type Field struct {
	Key   string
	Label string
	Get   func(*Plant) *string
}

// StringFields lists every string column in detail-view order.
var StringFields = []Field{
	{"common_name", "Common name", func(p *Plant) *string { return &p.CommonName }},
	{"scientific_name", "Scientific name", func(p *Plant) *string { return &p.ScientificName }},
	{"family", "Family", func(p *Plant) *string { return &p.Family }},
	{"genus", "Genus", func(p *Plant) *string { return &p.Genus }},
	{"species", "Species", func(p *Plant) *string { return &p.Species }},
	{"description", "Description", func(p *Plant) *string { return &p.Description }},
	{"habitat", "Habitat", func(p *Plant) *string { return &p.Habitat }},
	{"habitat_range", "Habitat range", func(p *Plant) *string { return &p.HabitatRange }},
	{"medicinal", "Medicinal uses", func(p *Plant) *string { return &p.Medicinal }},
	{"edibility", "Edibility", func(p *Plant) *string { return &p.Edibility }},
	{"other_uses", "Other uses", func(p *Plant) *string { return &p.OtherUses }},
	{"type", "Type", func(p *Plant) *string { return &p.Type }},
	{"height", "Height", func(p *Plant) *string { return &p.Height }},
	{"width", "Width", func(p *Plant) *string { return &p.Width }},
	{"growth_rate", "Growth rate", func(p *Plant) *string { return &p.GrowthRate }},
	{"hardiness_zones", "Hardiness zones", func(p *Plant) *string { return &p.HardinessZones }},
	{"foliage", "Foliage", func(p *Plant) *string { return &p.Foliage }},
	{"leaf", "Leaf", func(p *Plant) *string { return &p.Leaf }},
	{"flower", "Flower", func(p *Plant) *string { return &p.Flower }},
	{"ripen", "Ripen", func(p *Plant) *string { return &p.Ripen }},
	{"reproduction", "Reproduction", func(p *Plant) *string { return &p.Reproduction }},
	{"soils", "Soils", func(p *Plant) *string { return &p.Soils }},
	{"ph", "pH", func(p *Plant) *string { return &p.PH }},
	{"preferences", "Preferences", func(p *Plant) *string { return &p.Preferences }},
	{"tolerances", "Tolerances", func(p *Plant) *string { return &p.Tolerances }},
	{"pfaf", "PFAF", func(p *Plant) *string { return &p.PFAF }},
	{"image_url", "Image", func(p *Plant) *string { return &p.ImageURL }},
	{"url", "Link", func(p *Plant) *string { return &p.URL }},
	{"source", "Source", func(p *Plant) *string { return &p.Source }},
}

var fieldIndex = func() map[string]Field {
	idx := make(map[string]Field, len(StringFields))
	for _, f := range StringFields {
		idx[f.Key] = f
	}
	return idx
}()

// LookupField returns the string column registered under key.
func LookupField(key string) (Field, bool) {
	f, ok := fieldIndex[key]
	return f, ok
}

// FirstImage returns the primary image, preferring the images list.
func (p *Plant) FirstImage() string {
	for _, img := range p.Images {
		if strings.TrimSpace(img) != "" {
			return img
		}
	}
	return p.ImageURL
}

// DisplayName returns the best human-readable name for the record.
func (p *Plant) DisplayName() string {
	switch {
	case strings.TrimSpace(p.CommonName) != "":
		return p.CommonName
	case strings.TrimSpace(p.ScientificName) != "":
		return p.ScientificName
	case p.Genus != "" || p.Species != "":
		return strings.TrimSpace(p.Genus + " " + p.Species)
	default:
		return "(unnamed)"
	}
}

// BinomialName returns the scientific name, or "genus species" when absent.
func (p *Plant) BinomialName() string {
	if s := strings.TrimSpace(p.ScientificName); s != "" {
		return s
	}
	return strings.TrimSpace(strings.TrimSpace(p.Genus) + " " + strings.TrimSpace(p.Species))
}

// Clone returns a deep copy.
func (p Plant) Clone() Plant {
	out := p
	if p.Images != nil {
		out.Images = append([]string(nil), p.Images...)
	}
	if p.Pollinators != nil {
		out.Pollinators = append([]string(nil), p.Pollinators...)
	}
	if p.Provenance != nil {
		out.Provenance = make(map[string]*Plant, len(p.Provenance))
		for k, v := range p.Provenance {
			if v == nil {
				continue
			}
			c := v.Clone()
			out.Provenance[k] = &c
		}
	}
	return out
}

// ClonePage deep-copies a page of records.
func ClonePage(items []Plant) []Plant {
	if items == nil {
		return nil
	}
	out := make([]Plant, len(items))
	for i := range items {
		out[i] = items[i].Clone()
	}
	return out
}

// FromMap reads a record that already uses canonical keys.
// Unknown keys are ignored.
func FromMap(raw map[string]any) Plant {
	var p Plant
	for _, f := range StringFields {
		if v, ok := raw[f.Key]; ok {
			*f.Get(&p) = ExtractString(v)
		}
	}
	if p.Medicinal == "" {
		p.Medicinal = ExtractString(raw["medicinal_uses"])
	}
	if id, ok := ExtractInt64(raw["id"]); ok {
		p.ID = id
	}
	p.Images = ExtractStrings(raw["images"])
	p.Pollinators = ExtractStrings(raw["pollinators"])
	if len(p.Images) == 0 && p.ImageURL != "" {
		p.Images = []string{p.ImageURL}
	}
	return p
}
