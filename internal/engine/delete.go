package engine

import (
	"context"

	"github.com/roach88/relgraph/internal/ir"
	"github.com/roach88/relgraph/internal/queryir"
	"github.com/roach88/relgraph/internal/querysql"
	"github.com/roach88/relgraph/internal/schema"
)

// Delete removes every record matching match and returns their pre-delete
// snapshots.
//
// For each record, every relation row it takes part in is removed first,
// then the records relying on it (recursively), then the record itself.
func (s *Storage) Delete(ctx context.Context, entity string, match queryir.Expression) ([]ir.Record, []ir.MutationEvent, error) {
	o := s.begin("delete")
	n, err := s.lookup(entity)
	if err != nil {
		return nil, nil, o.finish(entity, err)
	}
	recs, err := o.deleteMatching(ctx, n, match)
	return recs, o.events, o.finish(n.Name, err)
}

func (o *op) deleteMatching(ctx context.Context, n *schema.Node, match queryir.Expression) ([]ir.Record, error) {
	if err := checkScalarIDs(n, match); err != nil {
		return nil, err
	}
	matched, err := o.s.fetch(ctx, querysql.Query{Entity: n.Name, Match: match, Attributes: snapshotAttrs(n)})
	if err != nil {
		return nil, err
	}

	seen := newVisitedSet()
	deleted := make([]ir.Record, 0, len(matched))
	for _, rec := range matched {
		id, _ := rec.ID()
		if seen.Seen(n.Name, id) {
			continue
		}
		if err := o.deleteRecord(ctx, seen, n, id, rec); err != nil {
			return nil, err
		}
		deleted = append(deleted, rec)
	}
	return deleted, nil
}

// dependent is a record that relies on one being deleted.
type dependent struct {
	node *schema.Node
	id   int64
}

// deleteRecord removes one record or relation row with its cascade. snap is
// the event record.
func (o *op) deleteRecord(ctx context.Context, seen *visitedSet, n *schema.Node, id int64, snap ir.Record) error {
	if !seen.Visit(n.Name, id) {
		return nil
	}

	var deps []dependent
	for _, end := range n.Ends {
		rel := o.s.model.Node(end.Relation)
		rows, err := o.s.fetch(ctx, querysql.Query{
			Entity:     rel.Name,
			Match:      queryir.Eq(string(end.Role)+"."+schema.IDColumn, id),
			Attributes: relationAttrs(rel),
		})
		if err != nil {
			return err
		}
		for _, row := range rows {
			rid, _ := row.ID()
			if rel.Rel.Reliance && end.Role == ir.RoleSource {
				if raw, ok := row.Lookup(string(ir.RoleTarget), schema.IDColumn); ok {
					if tid, ok := ir.ToID(raw); ok {
						deps = append(deps, dependent{node: o.s.model.Node(rel.Rel.Target), id: tid})
					}
				}
			}
			if err := o.deleteRecord(ctx, seen, rel, rid, row); err != nil {
				return err
			}
		}
	}

	for _, d := range deps {
		if seen.Seen(d.node.Name, d.id) {
			continue
		}
		dsnap, err := o.snapshot(ctx, d.node, d.id)
		if err != nil {
			return err
		}
		if dsnap == nil {
			continue
		}
		if err := o.deleteRecord(ctx, seen, d.node, d.id, dsnap); err != nil {
			return err
		}
	}

	if n.IsRelation() && n.Rel.Merged() {
		// The row belongs to the host record: clear the key and attributes.
		cols := []querysql.Assignment{{Column: n.Rel.ForeignKey(), Value: nil}}
		for _, leaf := range n.Leaves() {
			cols = append(cols, querysql.Assignment{Column: leaf.Column, Value: nil})
		}
		if err := o.update(ctx, n, cols, id); err != nil {
			return err
		}
	} else if err := o.remove(ctx, n, id); err != nil {
		return err
	}
	o.emit(n.Name, ir.EventDelete, snap, nil)
	return nil
}

// checkScalarIDs rejects id comparisons against objects or lists of objects.
func checkScalarIDs(n *schema.Node, expr queryir.Expression) error {
	switch e := expr.(type) {
	case nil:
		return nil
	case *queryir.And:
		for _, t := range e.Terms {
			if err := checkScalarIDs(n, t); err != nil {
				return err
			}
		}
	case *queryir.Or:
		for _, t := range e.Terms {
			if err := checkScalarIDs(n, t); err != nil {
				return err
			}
		}
	case *queryir.Not:
		return checkScalarIDs(n, e.Term)
	case *queryir.Atom:
		if len(e.Key) == 0 || e.Key[len(e.Key)-1] != schema.IDColumn || e.Value == nil {
			return nil
		}
		values := []any{e.Value}
		if list, ok := ir.AsList(e.Value); ok && (e.Op == queryir.OpIn || e.Op == queryir.OpBetween) {
			values = list
		}
		for _, v := range values {
			if _, ok := ir.ToID(v); !ok {
				return &MutationError{Code: ErrNonScalarID, Entity: n.Name, Field: e.Key.String(),
					Message: "id must be compared with a scalar"}
			}
		}
	}
	return nil
}
