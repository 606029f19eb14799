/*
normalize.go - Response shape normalization

PURPOSE:
  The upstream service returns list data in three shapes depending on
  endpoint and version: a bare JSON array, a paginated {content: [...]}
  envelope, or a single bare object. This adapter collapses all three into
  one canonical []json.RawMessage so nothing past the HTTP boundary ever
  branches on shape.
*/
package crossover

import (
	"bytes"
	"encoding/json"
)

// Normalize converts any of the known response shapes into a canonical
// element sequence. An empty array, empty envelope, empty object, or null
// all normalize to an empty (nil) sequence without error; only bodies that
// are not JSON at all return one.
func Normalize(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	// Shape 1: bare array
	if trimmed[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return nil, err
		}
		return arr, nil
	}

	// Shape 2: paginated envelope {content: [...]}
	var envelope struct {
		Content []json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	if envelope.Content != nil {
		return envelope.Content, nil
	}

	// Shape 3: single bare object — wrap it, unless it is empty
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, err
	}
	if len(obj) == 0 {
		return nil, nil
	}
	return []json.RawMessage{json.RawMessage(trimmed)}, nil
}

// decodeAll unmarshals each canonical element into T, skipping elements
// that fail to decode — one bad record never drops the rest.
func decodeAll[T any](raw []json.RawMessage) []T {
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}
