package ir

import (
	"encoding/json"
	"math"
	"strconv"
)

// Record is a map-shaped row: plain fields, nested objects for composite and
// to-one link fields, and slices of records for to-many link fields.
type Record map[string]any

// ID returns the record id when present and integral.
func (r Record) ID() (int64, bool) {
	if r == nil {
		return 0, false
	}
	return ToID(r["id"])
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Lookup walks nested objects along path and returns the value found.
func (r Record) Lookup(path ...string) (any, bool) {
	var cur any = r
	for _, seg := range path {
		obj, ok := AsRecord(cur)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Ref returns a record holding only an id, the minimal endpoint summary used
// in relation events.
func Ref(id int64) Record {
	return Record{"id": id}
}

// AsRecord converts the supported object shapes into a Record.
func AsRecord(v any) (Record, bool) {
	switch val := v.(type) {
	case Record:
		return val, true
	case map[string]any:
		return Record(val), true
	default:
		return nil, false
	}
}

// AsList converts the supported list shapes into a slice.
func AsList(v any) ([]any, bool) {
	switch val := v.(type) {
	case []any:
		return val, true
	case []Record:
		out := make([]any, len(val))
		for i, r := range val {
			out[i] = r
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(val))
		for i, r := range val {
			out[i] = Record(r)
		}
		return out, true
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// ToID converts the numeric shapes ids arrive in (int, float from JSON,
// json.Number, numeric strings) to int64.
func ToID(v any) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case float64:
		if val != math.Trunc(val) {
			return 0, false
		}
		return int64(val), true
	case json.Number:
		n, err := val.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// EventType is the kind of change a MutationEvent reports.
type EventType string

const (
	EventCreate EventType = "create"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// MutationEvent reports one record-level change.
//
// For update, Record holds the changed attributes plus id and OldRecord the
// previous values of those attributes plus id. For relation rows, Record
// always carries source and target objects with at least their ids.
// Delete events carry the full pre-delete snapshot in Record.
type MutationEvent struct {
	RecordName string    `json:"recordName"`
	Type       EventType `json:"type"`
	Record     Record    `json:"record,omitempty"`
	OldRecord  Record    `json:"oldRecord,omitempty"`
}
