package store

import (
	"fmt"
	"strconv"

	"github.com/ohler55/ojg/oj"

	"github.com/roach88/relgraph/internal/ir"
)

// WriteValue converts a record value to the parameter stored in a column of
// the given logical type. json columns hold canonical JSON text.
func WriteValue(logical string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch logical {
	case ir.TypeJSON:
		b, err := ir.MarshalCanonical(v)
		if err != nil {
			return nil, fmt.Errorf("encode json column: %w", err)
		}
		return string(b), nil
	case ir.TypeID, ir.TypeInteger:
		n, ok := ir.ToID(v)
		if !ok {
			return nil, fmt.Errorf("cannot store %T (%v) in %s column", v, v, logical)
		}
		return n, nil
	case ir.TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("cannot store %T in boolean column", v)
		}
		return b, nil
	}

	switch v.(type) {
	case ir.Record, map[string]any, []any:
		return nil, fmt.Errorf("cannot store %T in %s column", v, logical)
	}
	return v, nil
}

// ReadValue normalizes a scanned column value to the Go type records carry
// for the logical type. Drivers disagree on booleans and numbers, so
// SQLite's 0/1 and MySQL's numeric strings are folded here.
func ReadValue(logical string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch logical {
	case ir.TypeID, ir.TypeInteger:
		n, ok := ir.ToID(v)
		if !ok {
			return nil, fmt.Errorf("read %s column: unexpected %T", logical, v)
		}
		return n, nil
	case ir.TypeNumber:
		return readNumber(v)
	case ir.TypeBoolean:
		return readBool(v)
	case ir.TypeJSON:
		s, ok := v.(string)
		if !ok {
			return v, nil
		}
		out, err := oj.ParseString(s)
		if err != nil {
			return nil, fmt.Errorf("read json column: %w", err)
		}
		return out, nil
	}
	return v, nil
}

func readNumber(v any) (any, error) {
	switch n := v.(type) {
	case int64, float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return int64(n), nil
	case string:
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return nil, fmt.Errorf("read number column: %w", err)
		}
		return f, nil
	}
	return nil, fmt.Errorf("read number column: unexpected %T", v)
}

func readBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case int64:
		return b != 0, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("read boolean column: %w", err)
		}
		return parsed, nil
	}
	return false, fmt.Errorf("read boolean column: unexpected %T", v)
}
