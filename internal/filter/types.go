// Package filter turns user-defined explicit filter selections into the
// retrieval filter payload understood by the knowledge-base backend.
package filter

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Type is the value type of an explicit filter attribute.
type Type string

const (
	TypeString     Type = "STRING"
	TypeStringList Type = "STRING_LIST"
	TypeNumber     Type = "NUMBER"
	TypeBoolean    Type = "BOOLEAN"
)

// Valid reports whether t is one of the known filter types.
func (t Type) Valid() bool {
	switch t {
	case TypeString, TypeStringList, TypeNumber, TypeBoolean:
		return true
	}
	return false
}

// Option is one selectable value. A nil Value is the null sentinel.
type Option struct {
	Label string  `json:"label" yaml:"label"`
	Value *string `json:"value" yaml:"value"`
}

// RawValue returns the option value, or "" for the null sentinel.
func (o Option) RawValue() string {
	if o.Value == nil {
		return ""
	}
	return *o.Value
}

// Configuration describes one explicit filter offered to the user.
type Configuration struct {
	Key         string   `json:"key" yaml:"key"`
	Type        Type     `json:"type" yaml:"type"`
	Label       string   `json:"label,omitempty" yaml:"label"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Options     []Option `json:"options,omitempty" yaml:"options"`
}

// Selection is the user's choice for one configuration. A nil *Selection
// means the filter is unset.
type Selection struct {
	// Operator is the top-level key of the emitted filter. Empty means the
	// configuration key is used.
	Operator string   `json:"operator,omitempty"`
	Options  []Option `json:"options"`
}

// FilterAttribute is the body of a RetrievalFilter.
type FilterAttribute struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// RetrievalFilter holds exactly one top-level key.
type RetrievalFilter map[string]FilterAttribute

// HasValue reports whether at least one attribute carries a non-null value.
func (f RetrievalFilter) HasValue() bool {
	for _, attr := range f {
		if attr.Value != nil {
			return true
		}
	}
	return false
}

// Operator returns the single top-level key of the filter.
func (f RetrievalFilter) Operator() string {
	for k := range f {
		return k
	}
	return ""
}

// Attribute returns the single attribute of the filter.
func (f RetrievalFilter) Attribute() FilterAttribute {
	for _, v := range f {
		return v
	}
	return FilterAttribute{}
}

// ParseRetrievalFilter decodes a serialized filter. JSON numbers decode as
// float64 and arrays of strings as []string.
func ParseRetrievalFilter(data string) (RetrievalFilter, error) {
	var raw map[string]struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("decode retrieval filter: %w", err)
	}
	if len(raw) != 1 {
		return nil, fmt.Errorf("retrieval filter must have exactly one key, got %d", len(raw))
	}

	out := RetrievalFilter{}
	for op, attr := range raw {
		v, err := decodeValue(attr.Value)
		if err != nil {
			return nil, fmt.Errorf("decode value of %q: %w", op, err)
		}
		out[op] = FilterAttribute{Key: attr.Key, Value: v}
	}
	return out, nil
}

func decodeValue(b json.RawMessage) (any, error) {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil, nil
	}
	if strings.HasPrefix(s, "[") {
		var list []string
		if err := json.Unmarshal(b, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func strPtr(s string) *string { return &s }
