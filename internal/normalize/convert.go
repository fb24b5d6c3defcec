package normalize

import (
	"slices"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/roach88/dynaquery/internal/schema"
)

// parseFunc converts one raw literal into a field's native value.
type parseFunc func(raw string, enum []string) (any, bool)

// parsers is the closed conversion table keyed by field kind.
var parsers = map[schema.Kind]parseFunc{
	schema.KindString: func(raw string, _ []string) (any, bool) {
		return raw, true
	},
	schema.KindInt: func(raw string, _ []string) (any, bool) {
		n, err := strconv.ParseInt(raw, 10, 64)
		return n, err == nil
	},
	schema.KindFloat: func(raw string, _ []string) (any, bool) {
		f, err := strconv.ParseFloat(raw, 64)
		return f, err == nil
	},
	schema.KindBool: func(raw string, _ []string) (any, bool) {
		b, err := strconv.ParseBool(raw)
		return b, err == nil
	},
	schema.KindChar: func(raw string, _ []string) (any, bool) {
		if utf8.RuneCountInString(raw) != 1 {
			return nil, false
		}
		r, _ := utf8.DecodeRuneInString(raw)
		return r, true
	},
	schema.KindEnum: func(raw string, enum []string) (any, bool) {
		return raw, slices.Contains(enum, raw)
	},
	schema.KindTimestamp: func(raw string, _ []string) (any, bool) {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		return ts, err == nil
	},
}

// convert parses every raw value, reporting false on the first failure.
func convert(kind schema.Kind, enum []string, raws []string) ([]any, bool) {
	parse, ok := parsers[kind]
	if !ok {
		return nil, false
	}
	out := make([]any, len(raws))
	for i, raw := range raws {
		v, ok := parse(raw, enum)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
