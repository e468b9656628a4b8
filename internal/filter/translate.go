package filter

import (
	"math"
	"strconv"
	"strings"
)

// Translate converts a selection into a RetrievalFilter. A nil selection
// yields nil. Malformed numbers degrade to a null value rather than an error.
func Translate(sel *Selection, cfg Configuration) RetrievalFilter {
	if sel == nil {
		return nil
	}
	op := sel.Operator
	if op == "" {
		op = cfg.Key
	}
	return RetrievalFilter{
		op: {Key: cfg.Key, Value: coerce(sel.Options, cfg.Type)},
	}
}

func coerce(opts []Option, t Type) any {
	if t == TypeStringList || len(opts) > 1 {
		values := make([]string, 0, len(opts))
		for _, o := range opts {
			if o.Value == nil {
				continue
			}
			values = append(values, *o.Value)
		}
		return values
	}
	if len(opts) == 0 || opts[0].Value == nil {
		return nil
	}

	raw := *opts[0].Value
	switch t {
	case TypeString:
		return raw
	case TypeBoolean:
		return raw == "true"
	case TypeNumber:
		return parseNumber(raw)
	}
	return nil
}

// parseNumber follows the numeric coercion of a form field: an empty value
// is null, surrounding whitespace is ignored, blank input is 0 and 0x, 0o
// and 0b prefixes are integers. Unparseable and non-finite input is null;
// a non-finite number has no JSON form.
func parseNumber(raw string) any {
	if raw == "" {
		return nil
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return float64(0)
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return nil
			}
			return float64(n)
		}
	}
	if strings.ContainsAny(s, "_iInNxX") {
		// inf, nan, signed hex and digit separators are not numbers here
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(n, 0) {
		return nil
	}
	return n
}
