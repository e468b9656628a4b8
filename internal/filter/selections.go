package filter

import (
	"fmt"
	"strings"
)

// Selections maps a configuration key to the user's selection. Keying by
// configuration key keeps selections attached to their filter when the
// configuration list is reordered.
type Selections map[string]*Selection

// Clone returns a shallow copy of s.
func (s Selections) Clone() Selections {
	out := make(Selections, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Positional returns the selections aligned with configs; the result always
// has len(configs) entries and unset filters are nil.
func (s Selections) Positional(configs []Configuration) []*Selection {
	out := make([]*Selection, len(configs))
	for i, cfg := range configs {
		out[i] = s[cfg.Key]
	}
	return out
}

// Single builds a selection of one option.
func Single(value string) *Selection {
	return &Selection{Options: []Option{{Label: value, Value: strPtr(value)}}}
}

// Multi builds a selection of several options, in order.
func Multi(values ...string) *Selection {
	opts := make([]Option, 0, len(values))
	for _, v := range values {
		opts = append(opts, Option{Label: v, Value: strPtr(v)})
	}
	return &Selection{Options: opts}
}

// Null builds a selection holding the null sentinel.
func Null() *Selection {
	return &Selection{Options: []Option{{Label: ""}}}
}

// WithOperator sets the top-level key emitted for the selection.
func (s *Selection) WithOperator(op string) *Selection {
	s.Operator = op
	return s
}

// ParseSelection resolves comma separated raw input against cfg. Tokens are
// matched against option values first, then labels; configurations without
// options accept free-form values.
func ParseSelection(cfg Configuration, operator, raw string) (*Selection, error) {
	var tokens []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("filter %q: no values given", cfg.Key)
	}
	if len(tokens) > 1 && cfg.Type != TypeStringList {
		return nil, fmt.Errorf("filter %q of type %s accepts a single value", cfg.Key, cfg.Type)
	}

	sel := &Selection{Operator: operator}
	for _, t := range tokens {
		opt, ok := matchOption(cfg.Options, t)
		if !ok {
			if len(cfg.Options) > 0 {
				return nil, fmt.Errorf("filter %q: unknown option %q", cfg.Key, t)
			}
			opt = Option{Label: t, Value: strPtr(t)}
		}
		sel.Options = append(sel.Options, opt)
	}
	return sel, nil
}

func matchOption(opts []Option, token string) (Option, bool) {
	for _, o := range opts {
		if o.Value != nil && *o.Value == token {
			return o, true
		}
	}
	for _, o := range opts {
		if strings.EqualFold(o.Label, token) {
			return o, true
		}
	}
	return Option{}, false
}
