package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap(t *testing.T) {
	p := FromMap(map[string]any{
		"id":              float64(17),
		"scientific_name": "Rosa canina",
		"common_name":     "Dog rose",
		"image_url":       "https://img/rosa.jpg",
		"medicinal_uses":  "vitamin C",
		"pollinators":     []any{"bees", "flies"},
		"unknown":         "ignored",
	})

	assert.Equal(t, int64(17), p.ID)
	assert.Equal(t, "Rosa canina", p.ScientificName)
	assert.Equal(t, "vitamin C", p.Medicinal)
	assert.Equal(t, []string{"https://img/rosa.jpg"}, p.Images)
	assert.Equal(t, []string{"bees", "flies"}, p.Pollinators)
}

func TestCloneIsDeep(t *testing.T) {
	orig := Plant{
		Images:     []string{"a"},
		Provenance: map[string]*Plant{"wiki": {Description: "d"}},
	}
	c := orig.Clone()
	c.Images[0] = "b"
	c.Provenance["wiki"].Description = "changed"

	require.Equal(t, "a", orig.Images[0])
	assert.Equal(t, "d", orig.Provenance["wiki"].Description)
}

func TestNames(t *testing.T) {
	p := Plant{Genus: "Mentha", Species: "spicata"}
	assert.Equal(t, "Mentha spicata", p.BinomialName())
	assert.Equal(t, "Mentha spicata", p.DisplayName())

	p.CommonName = "Spearmint"
	assert.Equal(t, "Spearmint", p.DisplayName())

	assert.Equal(t, "(unnamed)", (&Plant{}).DisplayName())
}

func TestLookupField(t *testing.T) {
	f, ok := LookupField("habitat")
	require.True(t, ok)
	p := Plant{}
	*f.Get(&p) = "forest"
	assert.Equal(t, "forest", p.Habitat)

	_, ok = LookupField("nope")
	assert.False(t, ok)
}
