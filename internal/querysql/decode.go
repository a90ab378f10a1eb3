package querysql

import (
	"fmt"

	"github.com/roach88/relgraph/internal/ir"
	"github.com/roach88/relgraph/internal/store"
)

// Decode turns one result row into a nested record. To-one links whose join
// found no row decode as nil.
func (p *Projection) Decode(row []any) (ir.Record, error) {
	if len(row) != len(p.Columns) {
		return nil, fmt.Errorf("decode %s: row has %d columns, projection %d", p.Node.Name, len(row), len(p.Columns))
	}
	rec := ir.Record{}
	for i, col := range p.Columns {
		if col.Hidden {
			continue
		}
		v, err := store.ReadValue(col.Type, row[i])
		if err != nil {
			return nil, fmt.Errorf("decode %s.%s: %w", p.Node.Name, col.Name, err)
		}
		setPath(rec, col.Path, v)
	}
	for _, slot := range p.links {
		if row[slot.id] == nil {
			setPath(rec, slot.path, nil)
		}
	}
	return rec, nil
}

// ParentID returns the id of the record a deferred fetch runs for, false
// when the parent is absent.
func (p *Projection) ParentID(row []any, d Deferred) (int64, bool) {
	if row[d.Parent] == nil {
		return 0, false
	}
	return ir.ToID(row[d.Parent])
}

// setPath stores v at path, creating intermediate records.
func setPath(rec ir.Record, path []string, v any) {
	cur := rec
	for _, seg := range path[:len(path)-1] {
		next, ok := ir.AsRecord(cur[seg])
		if !ok {
			next = ir.Record{}
			cur[seg] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = v
}
