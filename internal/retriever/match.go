package retriever

import (
	"fmt"
	"strings"

	"github.com/ragkb-chat/core/internal/filter"
)

// Operators understood as the top-level key of a retrieval filter. Any other
// key is a plain attribute filter: equals for scalars, in for lists.
const (
	OpEquals              = "equals"
	OpNotEquals           = "notEquals"
	OpGreaterThan         = "greaterThan"
	OpGreaterThanOrEquals = "greaterThanOrEquals"
	OpLessThan            = "lessThan"
	OpLessThanOrEquals    = "lessThanOrEquals"
	OpIn                  = "in"
	OpNotIn               = "notIn"
	OpStartsWith          = "startsWith"
	OpListContains        = "listContains"
	OpStringContains      = "stringContains"
)

// Matches reports whether metadata satisfies every filter.
func Matches(metadata map[string]any, filters []filter.RetrievalFilter) bool {
	for _, f := range filters {
		if !matchOne(metadata, f) {
			return false
		}
	}
	return true
}

func matchOne(metadata map[string]any, f filter.RetrievalFilter) bool {
	op := f.Operator()
	attr := f.Attribute()
	if attr.Value == nil {
		return true
	}
	got, present := metadata[attr.Key]

	switch op {
	case OpEquals:
		return present && equals(got, attr.Value)
	case OpNotEquals:
		return !present || !equals(got, attr.Value)
	case OpGreaterThan, OpGreaterThanOrEquals, OpLessThan, OpLessThanOrEquals:
		return present && compare(op, got, attr.Value)
	case OpIn:
		return present && in(got, attr.Value)
	case OpNotIn:
		return !present || !in(got, attr.Value)
	case OpStartsWith:
		s, ok := got.(string)
		return ok && strings.HasPrefix(s, toString(attr.Value))
	case OpListContains:
		for _, v := range toList(got) {
			if scalarEqual(v, attr.Value) {
				return true
			}
		}
		return false
	case OpStringContains:
		needle := toString(attr.Value)
		if list, ok := asList(got); ok {
			for _, v := range list {
				if strings.Contains(toString(v), needle) {
					return true
				}
			}
			return false
		}
		s, ok := got.(string)
		return ok && strings.Contains(s, needle)
	default:
		return present && equals(got, attr.Value)
	}
}

// equals treats a list filter value as membership.
func equals(got, want any) bool {
	if _, ok := asList(want); ok {
		return in(got, want)
	}
	if list, ok := asList(got); ok {
		for _, v := range list {
			if scalarEqual(v, want) {
				return true
			}
		}
		return false
	}
	return scalarEqual(got, want)
}

// in reports whether got, or any element of a list got, is one of want.
func in(got, want any) bool {
	candidates := toList(want)
	for _, g := range toList(got) {
		for _, c := range candidates {
			if scalarEqual(g, c) {
				return true
			}
		}
	}
	return false
}

func compare(op string, got, want any) bool {
	a, ok := toFloat(got)
	if !ok {
		return false
	}
	b, ok := toFloat(want)
	if !ok {
		return false
	}
	switch op {
	case OpGreaterThan:
		return a > b
	case OpGreaterThanOrEquals:
		return a >= b
	case OpLessThan:
		return a < b
	default:
		return a <= b
	}
}

func scalarEqual(a, b any) bool {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return x == y
		}
	}
	return toString(a) == toString(b)
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func toList(v any) []any {
	if l, ok := asList(v); ok {
		return l
	}
	return []any{v}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
