package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/jsonc"
)

var (
	ErrEmptyDocument = errors.New("profile: empty document")
	ErrParse         = errors.New("profile: document parse failed")
	ErrNotObject     = errors.New("profile: document is not an object")
)

// Document is a parsed configuration object that remembers key order.
// Duplicate keys keep their first position and their last value.
type Document struct {
	keys   []string
	values map[string]json.RawMessage
}

// ParseDocument decodes the first JSON value in raw. Comments and trailing
// commas are accepted, and anything after the top-level object is ignored.
func ParseDocument(raw []byte) (*Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyDocument
	}

	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(raw)))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrNotObject
	}

	doc := &Document{values: make(map[string]json.RawMessage)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected key token %v", ErrParse, tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrParse, key, err)
		}
		if _, seen := doc.values[key]; !seen {
			doc.keys = append(doc.keys, key)
		}
		doc.values[key] = value
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return doc, nil
}

// Keys returns top-level keys in document order.
func (d *Document) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len returns the number of distinct top-level keys.
func (d *Document) Len() int {
	return len(d.keys)
}

// stringList decodes key as an array and returns its string entries.
// Non-string entries are dropped; ok is false when the value is not an array.
func (d *Document) stringList(key string) ([]string, bool) {
	raw, found := d.values[key]
	if !found || !startsWith(raw, '[') {
		return nil, false
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// object decodes key as an object; ok is false for any other shape.
func (d *Document) object(key string) (map[string]any, bool) {
	raw, found := d.values[key]
	if !found || !startsWith(raw, '{') {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func startsWith(raw json.RawMessage, c byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == c
}
