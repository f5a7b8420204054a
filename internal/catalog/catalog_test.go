package catalog

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herbolive/internal/types"
)

func TestNormalizePerenual(t *testing.T) {
	raw := map[string]any{
		"id":              float64(1),
		"scientific_name": []any{"Abies alba"},
		"common_name":     "European Silver Fir",
		"default_image":   map[string]any{"regular_url": "https://img/abies.jpg"},
		"uses":            "resin",
		"habitat_range":   "mountains",
	}

	got := Normalize(raw, SourcePerenual)
	want := types.Plant{
		ID:             1,
		ScientificName: "Abies alba",
		CommonName:     "European Silver Fir",
		ImageURL:       "https://img/abies.jpg",
		Images:         []string{"https://img/abies.jpg"},
		Medicinal:      "resin",
		Habitat:        "mountains",
		Source:         SourcePerenual,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize(perenual) mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizePerenualSynonyms(t *testing.T) {
	raw := map[string]any{
		"scientific": "Mentha spicata",
		"name":       "Spearmint",
		"summary":    "Aromatic herb",
		"images":     []any{"https://img/m1.jpg", "https://img/m2.jpg"},
	}

	got := Normalize(raw, SourcePerenual)
	assert.Equal(t, "Mentha spicata", got.ScientificName)
	assert.Equal(t, "Spearmint", got.CommonName)
	assert.Equal(t, "Aromatic herb", got.Description)
	assert.Equal(t, "https://img/m1.jpg", got.ImageURL)
	assert.Equal(t, []string{"https://img/m1.jpg", "https://img/m2.jpg"}, got.Images)
}

func TestNormalizeTrefle(t *testing.T) {
	raw := map[string]any{
		"id":              float64(678281),
		"scientificName":  "Quercus rotundifolia",
		"common_names":    []any{"Holm oak"},
		"synopsis":        "Evergreen oak",
		"image":           map[string]any{"url": "https://img/q.jpg"},
		"family":          "Fagaceae",
		"distribution":    map[string]any{"native": []any{"Spain", "Portugal"}},
		"pfaf":            "should be ignored",
		"unrelated_field": 12,
	}

	got := Normalize(raw, SourceTrefle)
	assert.Equal(t, int64(678281), got.ID)
	assert.Equal(t, "Quercus rotundifolia", got.ScientificName)
	assert.Equal(t, "Holm oak", got.CommonName)
	assert.Equal(t, "Evergreen oak", got.Description)
	assert.Equal(t, "https://img/q.jpg", got.ImageURL)
	assert.Equal(t, "Spain, Portugal", got.Habitat)
	assert.Empty(t, got.PFAF)
	assert.Equal(t, SourceTrefle, got.Source)
}

func TestNormalizeUnknownSourcePassesThrough(t *testing.T) {
	raw := map[string]any{
		"scientific_name": "Salvia officinalis",
		"medicinal":       "digestive",
		"source":          "db",
	}
	got := Normalize(raw, "something-else")
	assert.Equal(t, "Salvia officinalis", got.ScientificName)
	assert.Equal(t, "digestive", got.Medicinal)
	assert.Equal(t, "db", got.Source)
}

func TestNormalizeNeverPanics(t *testing.T) {
	weird := []map[string]any{
		nil,
		{"scientific_name": map[string]any{"nested": true}},
		{"images": 42.0, "default_image": "not-an-object"},
		{"distribution": []any{nil, 3.0}},
	}
	for _, raw := range weird {
		assert.NotPanics(t, func() {
			Normalize(raw, SourcePerenual)
			Normalize(raw, SourceTrefle)
			Normalize(raw, "")
		})
	}
}

func TestFillMissing(t *testing.T) {
	target := types.Plant{CommonName: "Dog rose", Description: "kept"}
	source := types.Plant{
		CommonName:  "Other",
		Description: "ignored",
		Habitat:     "hedges",
		ImageURL:    "https://img/r.jpg",
		ID:          5,
	}

	got := FillMissing(target, source, "wiki")

	assert.Equal(t, "Dog rose", got.CommonName)
	assert.Equal(t, "kept", got.Description)
	assert.Equal(t, "hedges", got.Habitat)
	assert.Equal(t, []string{"https://img/r.jpg"}, got.Images)
	assert.Equal(t, int64(5), got.ID)
	require.NotNil(t, got.Provenance["wiki"])
	assert.Equal(t, "hedges", got.Provenance["wiki"].Habitat)

	// inputs untouched
	assert.Empty(t, target.Habitat)
	assert.Nil(t, target.Provenance)
}

func TestFillMissingIdempotent(t *testing.T) {
	target := types.Plant{ScientificName: "Rosa canina"}
	source := types.Plant{
		Description: "hips",
		Images:      []string{"a", "b"},
		Pollinators: []string{"bees"},
	}

	once := FillMissing(target, source, "perenual")
	twice := FillMissing(once, source, "perenual")
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("FillMissing not idempotent (-once +twice):\n%s", diff)
	}
}

func TestDedupe(t *testing.T) {
	list := []types.Plant{
		{ScientificName: "Rosa canina", CommonName: "Dog rose"},
		{CommonName: "Lavender"},
		{ScientificName: " rosa CANINA ", CommonName: "Other", Description: "hips"},
		{Genus: "Mentha", Species: "spicata"},
		{Genus: "mentha", Species: "Spicata", Habitat: "wet soil"},
		{},
	}

	got := Dedupe(list)
	require.Len(t, got, 3)
	assert.Equal(t, "Dog rose", got[0].CommonName)
	assert.Equal(t, "hips", got[0].Description)
	assert.Equal(t, "Lavender", got[1].CommonName)
	assert.Equal(t, "wet soil", got[2].Habitat)
}

func TestDedupeFieldwiseUnion(t *testing.T) {
	a := types.Plant{ScientificName: "Thymus vulgaris", Description: "first", Family: ""}
	b := types.Plant{ScientificName: "Thymus vulgaris", Description: "second", Family: "Lamiaceae"}

	got := Dedupe([]types.Plant{a, b})
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Description)
	assert.Equal(t, "Lamiaceae", got[0].Family)
}

func TestIdentityAndSecondaryKeys(t *testing.T) {
	assert.Equal(t, "rosa canina", IdentityKey(types.Plant{ScientificName: " Rosa Canina", CommonName: "x"}))
	assert.Equal(t, "mentha spicata", IdentityKey(types.Plant{Genus: "Mentha", Species: "Spicata"}))
	assert.Equal(t, "lavender", IdentityKey(types.Plant{Genus: "Lavandula", CommonName: "Lavender"}))
	assert.Empty(t, IdentityKey(types.Plant{}))

	k1 := SecondaryKey(types.Plant{ID: 3, ScientificName: "Rosa canina", Images: []string{"I"}})
	k2 := SecondaryKey(types.Plant{ID: 4, ScientificName: "Rosa canina", Images: []string{"I"}})
	assert.Equal(t, "3||rosa canina||||i", k1)
	assert.NotEqual(t, k1, k2)
}

func TestMatches(t *testing.T) {
	p := types.Plant{
		CommonName:     "Dog rose",
		ScientificName: "Rosa canina",
		Family:         "Rosaceae",
		Provenance: map[string]*types.Plant{
			SourceTrefle: {CommonName: "Wild briar"},
		},
	}

	tests := []struct {
		query string
		want  bool
	}{
		{"rosa", true},
		{"dog", true},
		{"rosaceae", true},
		{"briar", true},
		{"mint", false},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(p, tt.query))
		})
	}

	assert.Equal(t, "rosa", NormalizeQuery("  RoSa "))
	assert.Len(t, Filter([]types.Plant{p, {CommonName: "Mint"}}, "mint"), 1)
}
