package types

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtractString(t *testing.T) {
	tests := []struct {
		name string
		arg  any
		want string
	}{
		{"string", "  hello ", "hello"},
		{"float64 integral", float64(42), "42"},
		{"float64 fraction", 3.5, "3.5"},
		{"large id", float64(1234567), "1234567"},
		{"int", 7, "7"},
		{"json number", json.Number("12"), "12"},
		{"bool", true, "true"},
		{"list", []any{"", "Rosa canina", "x"}, "Rosa canina"},
		{"object", map[string]any{"a": "b"}, ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractString(tt.arg)
			if got != tt.want {
				t.Errorf("ExtractString(%v) = %q, want %q", tt.arg, got, tt.want)
			}
		})
	}
}

func TestExtractStrings(t *testing.T) {
	tests := []struct {
		name string
		arg  any
		want []string
	}{
		{"nil", nil, nil},
		{"scalar", "a", []string{"a"}},
		{"mixed list", []any{"a", "", 3.0, nil}, []string{"a", "3"}},
		{"string slice", []string{" b ", ""}, []string{"b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ExtractStrings(tt.arg)); diff != "" {
				t.Errorf("ExtractStrings mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractInt64(t *testing.T) {
	tests := []struct {
		name   string
		arg    any
		want   int64
		wantOK bool
	}{
		{"float", float64(9), 9, true},
		{"fraction", 9.5, 0, false},
		{"string", "15", 15, true},
		{"bad string", "abc", 0, false},
		{"json number", json.Number("21"), 21, true},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractInt64(tt.arg)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ExtractInt64(%v) = (%d, %v), want (%d, %v)", tt.arg, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFirstString(t *testing.T) {
	raw := map[string]any{
		"image":         nil,
		"default_image": map[string]any{"regular_url": "https://img/r.jpg"},
	}
	if got := FirstString(raw, "image_url", "image", "default_image.regular_url"); got != "https://img/r.jpg" {
		t.Errorf("FirstString = %q", got)
	}
	if got := FirstString(raw, "missing.path"); got != "" {
		t.Errorf("FirstString on missing path = %q", got)
	}
}
