package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"herbolive/internal/catalog"
	"herbolive/internal/logging"
	"herbolive/internal/types"
)

// DefaultCSVMaxRows caps the rows read from the offline dataset.
const DefaultCSVMaxRows = 52

// ParseCSV reads the offline plant dataset. The separator is ';' when the
// header line has more semicolons than commas, else ','. Headers are
// lowercased, cells shaped like [a, b] become lists, and rows with neither a
// common nor a scientific name are skipped. At most maxRows records are
// returned; maxRows <= 0 means no limit.
func ParseCSV(data []byte, maxRows int) ([]types.Plant, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	data = bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	firstLine, _, _ := bytes.Cut(data, []byte("\n"))
	sep := ','
	if semis := bytes.Count(firstLine, []byte(";")); semis > 0 && semis > bytes.Count(firstLine, []byte(",")) {
		sep = ';'
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	headers := make([]string, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.Trim(strings.TrimSpace(h), `"`))
		if h == "" {
			h = fmt.Sprintf("col%d", i)
		}
		headers[i] = h
	}

	var out []types.Plant
	for maxRows <= 0 || len(out) < maxRows {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logging.SourceWarn("Skipping malformed CSV row: %v", err)
			continue
		}
		row := make(map[string]any, len(headers))
		blank := true
		for i, h := range headers {
			cell := ""
			if i < len(rec) {
				cell = strings.TrimSpace(rec[i])
			}
			if cell != "" {
				blank = false
			}
			row[h] = csvCell(cell)
		}
		if blank {
			continue
		}
		p := csvPlant(row)
		if p.CommonName == "" && p.ScientificName == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// csvCell turns a bracketed list cell into a []any; other cells stay strings.
func csvCell(cell string) any {
	if !strings.HasPrefix(cell, "[") || !strings.HasSuffix(cell, "]") {
		return cell
	}
	var list []any
	if err := json.Unmarshal([]byte(strings.ReplaceAll(cell, "'", `"`)), &list); err == nil {
		return list
	}
	var items []any
	for _, part := range strings.Split(cell[1:len(cell)-1], ",") {
		part = strings.Trim(strings.TrimSpace(part), `"'`)
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}

func csvJoin(row map[string]any, keys ...string) string {
	for _, k := range keys {
		if vs := types.ExtractStrings(row[k]); len(vs) > 0 {
			return strings.Join(vs, ", ")
		}
	}
	return ""
}

func csvPlant(row map[string]any) types.Plant {
	p := types.Plant{
		Family:         types.FirstString(row, "family"),
		Genus:          types.FirstString(row, "genus"),
		Species:        types.FirstString(row, "species"),
		CommonName:     types.FirstString(row, "commonname", "common_name", "common", "common name"),
		ScientificName: types.FirstString(row, "scientificname", "scientific_name", "scientific"),
		GrowthRate:     types.FirstString(row, "growthrate", "growth_rate", "growth rate"),
		HardinessZones: csvJoin(row, "hardinesszones", "hardiness_zones"),
		Height:         types.FirstString(row, "height"),
		Width:          types.FirstString(row, "width"),
		Type:           types.FirstString(row, "type"),
		Foliage:        types.FirstString(row, "foliage"),
		Pollinators:    types.ExtractStrings(row["pollinators"]),
		Leaf:           types.FirstString(row, "leaf"),
		Flower:         types.FirstString(row, "flower"),
		Ripen:          types.FirstString(row, "ripen"),
		Reproduction:   types.FirstString(row, "reproduction"),
		Soils:          csvJoin(row, "soils"),
		PH:             types.FirstString(row, "p_h", "ph"),
		Preferences:    csvJoin(row, "preferences"),
		Tolerances:     csvJoin(row, "tolerances"),
		Habitat:        types.FirstString(row, "habitat"),
		HabitatRange:   types.FirstString(row, "habitatrange", "habitat_range"),
		Edibility:      types.FirstString(row, "edibility"),
		Medicinal:      types.FirstString(row, "medicinal", "medicinal_uses", "usos"),
		OtherUses:      types.FirstString(row, "otheruses", "other_uses"),
		PFAF:           types.FirstString(row, "pfaf"),
		ImageURL:       types.FirstString(row, "image url", "image_url", "image", "imagen"),
		Description:    types.FirstString(row, "description"),
		Source:         catalog.SourceCSV,
	}
	if p.ScientificName == "" {
		p.ScientificName = strings.TrimSpace(p.Genus + " " + p.Species)
	}
	if p.ImageURL != "" {
		p.Images = []string{p.ImageURL}
	}
	return p
}

// CSVSource serves the offline dataset, caching the parsed rows until Reload.
type CSVSource struct {
	path    string
	maxRows int

	mu     sync.RWMutex
	rows   []types.Plant
	loaded bool
}

// NewCSVSource creates a source reading path. An empty path disables it.
func NewCSVSource(path string, maxRows int) *CSVSource {
	if maxRows == 0 {
		maxRows = DefaultCSVMaxRows
	}
	return &CSVSource{path: path, maxRows: maxRows}
}

// Path returns the file read by the source.
func (s *CSVSource) Path() string { return s.path }

// All returns the parsed rows, reading the file on first use.
func (s *CSVSource) All(ctx context.Context) ([]types.Plant, error) {
	if s == nil || s.path == "" {
		return nil, ErrDisabled
	}
	s.mu.RLock()
	if s.loaded {
		rows := types.ClonePage(s.rows)
		s.mu.RUnlock()
		return rows, nil
	}
	s.mu.RUnlock()

	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.ClonePage(s.rows), nil
}

// Reload re-reads the file and replaces the cached rows.
func (s *CSVSource) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}
	rows, err := ParseCSV(data, s.maxRows)
	if err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.rows = rows
	s.loaded = true
	s.mu.Unlock()
	logging.Source("Loaded %d rows from %s (max %d)", len(rows), s.path, s.maxRows)
	return nil
}
