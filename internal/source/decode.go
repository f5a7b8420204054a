package source

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// listEnvelopeKeys are the wrapper fields a list response may use, in lookup order.
var listEnvelopeKeys = []string{"rows", "data", "items"}

// DecodeList decodes every list response shape the catalog APIs produce:
// a bare array, or an object wrapping the array under rows, data or items.
// Non-object array elements are skipped.
func DecodeList(body []byte) ([]map[string]any, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrShape)
	}

	var raw any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShape, err)
	}

	switch v := raw.(type) {
	case []any:
		return objects(v), nil
	case map[string]any:
		for _, k := range listEnvelopeKeys {
			if arr, ok := v[k].([]any); ok {
				return objects(arr), nil
			}
		}
		return nil, fmt.Errorf("%w: object without rows/data/items", ErrShape)
	default:
		return nil, fmt.Errorf("%w: %T", ErrShape, raw)
	}
}

// DecodeObject decodes a single-record response: the object itself, or an
// object wrapped under data.
func DecodeObject(body []byte) (map[string]any, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(body)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShape, err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrShape, raw)
	}
	if inner, ok := obj["data"].(map[string]any); ok {
		return inner, nil
	}
	return obj, nil
}

func objects(arr []any) []map[string]any {
	out := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
