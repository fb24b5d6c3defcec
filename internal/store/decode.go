package store

import (
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/dynaquery/internal/schema"
)

// decode converts a value scanned from SQLite into the Go type of kind:
//
//	string, enum, char: string
//	int:                int64
//	float:              float64
//	bool:               bool
//	timestamp:          time.Time in UTC
//
// NULL stays nil.
func decode(kind schema.Kind, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}

	switch kind {
	case schema.KindString, schema.KindEnum, schema.KindChar:
		switch v := raw.(type) {
		case string:
			return v, nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case float64:
			return strconv.FormatFloat(v, 'g', -1, 64), nil
		}

	case schema.KindInt:
		switch v := raw.(type) {
		case int64:
			return v, nil
		case float64:
			return int64(v), nil
		case bool:
			return int64(boolToInt(v)), nil
		case string:
			return strconv.ParseInt(v, 10, 64)
		}

	case schema.KindFloat:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		case string:
			return strconv.ParseFloat(v, 64)
		}

	case schema.KindBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		case string:
			return strconv.ParseBool(v)
		}

	case schema.KindTimestamp:
		switch v := raw.(type) {
		case time.Time:
			return v.UTC(), nil
		case string:
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return nil, err
			}
			return t.UTC(), nil
		}
	}
	return nil, fmt.Errorf("cannot read %T as %s", raw, kind)
}

// detachRaw copies driver-owned bytes so scanned values outlive the row.
func detachRaw(raw any) any {
	if b, ok := raw.([]byte); ok {
		return string(b)
	}
	return raw
}
