package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herbolive/internal/catalog"
)

const semicolonCSV = "\ufeffFamily;Genus;Species;CommonName;Pollinators;Soils;Image URL\r\n" +
	"Rosaceae;Rosa;canina;Dog rose;['Bees', 'Flies'];[L, M, H];https://img/rosa.jpg\r\n" +
	";;;;;;\r\n" +
	"Lamiaceae;Salvia;officinalis;Sage;Bees;L;\r\n" +
	"Unknown;;;;;;\r\n"

func TestParseCSVSemicolon(t *testing.T) {
	rows, err := ParseCSV([]byte(semicolonCSV), 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	rosa := rows[0]
	assert.Equal(t, "Dog rose", rosa.CommonName)
	assert.Equal(t, "Rosa canina", rosa.ScientificName)
	assert.Equal(t, "Rosaceae", rosa.Family)
	assert.Equal(t, []string{"Bees", "Flies"}, rosa.Pollinators)
	assert.Equal(t, "L, M, H", rosa.Soils)
	assert.Equal(t, "https://img/rosa.jpg", rosa.ImageURL)
	assert.Equal(t, []string{"https://img/rosa.jpg"}, rosa.Images)
	assert.Equal(t, catalog.SourceCSV, rosa.Source)

	sage := rows[1]
	assert.Equal(t, "Salvia officinalis", sage.ScientificName)
	assert.Equal(t, []string{"Bees"}, sage.Pollinators)
	assert.Empty(t, sage.Images)
}

func TestParseCSVComma(t *testing.T) {
	data := "scientific_name,common_name,description\n" +
		`"Mentha spicata",Spearmint,"Aromatic, perennial herb"` + "\n"
	rows, err := ParseCSV([]byte(data), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Mentha spicata", rows[0].ScientificName)
	assert.Equal(t, "Aromatic, perennial herb", rows[0].Description)
}

func TestParseCSVMaxRows(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("common_name\n")
	for i := 0; i < 80; i++ {
		sb.WriteString("Plant\n")
	}
	rows, err := ParseCSV([]byte(sb.String()), DefaultCSVMaxRows)
	require.NoError(t, err)
	assert.Len(t, rows, DefaultCSVMaxRows)
}

func TestParseCSVEmpty(t *testing.T) {
	rows, err := ParseCSV([]byte("  \n"), 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCSVSourceReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plant_data.csv")
	require.NoError(t, os.WriteFile(path, []byte("common_name\nRosa\n"), 0o644))

	src := NewCSVSource(path, 0)
	rows, err := src.All(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, os.WriteFile(path, []byte("common_name\nRosa\nSalvia\n"), 0o644))
	rows, err = src.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1, "rows are cached until Reload")

	require.NoError(t, src.Reload(context.Background()))
	rows, err = src.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCSVSourceDisabled(t *testing.T) {
	_, err := NewCSVSource("", 0).All(context.Background())
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestCSVWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plant_data.csv")
	require.NoError(t, os.WriteFile(path, []byte("common_name\nRosa\n"), 0o644))

	src := NewCSVSource(path, 0)
	_, err := src.All(context.Background())
	require.NoError(t, err)

	reloaded := make(chan int, 4)
	w, err := NewCSVWatcher(src, func(n int) {
		select {
		case reloaded <- n:
		default:
		}
	})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("common_name\nRosa\nSalvia\nMenta\n"), 0o644))

	select {
	case n := <-reloaded:
		assert.Equal(t, 3, n)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload the file")
	}
}
