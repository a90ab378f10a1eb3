package engine

import (
	"context"
	"fmt"

	"github.com/roach88/relgraph/internal/ir"
	"github.com/roach88/relgraph/internal/queryir"
	"github.com/roach88/relgraph/internal/querysql"
	"github.com/roach88/relgraph/internal/schema"
)

func (s *Storage) relation(name string) (*schema.Node, error) {
	n, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if !n.IsRelation() {
		return nil, &MutationError{Code: ErrUnknownEntity, Entity: name, Message: "not a relation"}
	}
	return n, nil
}

// AddRelationByID links two existing records through relation. A merged
// relation keeps one link per host record, and one per record on a "one"
// side: links in the way are removed first. Adding a link that already
// exists with no attributes is a no-op.
func (s *Storage) AddRelationByID(ctx context.Context, relation string, sourceID, targetID int64, attrs ir.Record) (ir.Record, []ir.MutationEvent, error) {
	o := s.begin("addRelation")
	rel, err := s.relation(relation)
	if err != nil {
		return nil, nil, o.finish(relation, err)
	}
	rec, err := o.addRelation(ctx, rel, sourceID, targetID, attrs)
	return rec, o.events, o.finish(rel.Name, err)
}

// RemoveRelationByName removes the relation rows matching match. The linked
// records stay.
func (s *Storage) RemoveRelationByName(ctx context.Context, relation string, match queryir.Expression) ([]ir.Record, []ir.MutationEvent, error) {
	o := s.begin("removeRelation")
	rel, err := s.relation(relation)
	if err != nil {
		return nil, nil, o.finish(relation, err)
	}
	recs, err := o.deleteMatching(ctx, rel, match)
	return recs, o.events, o.finish(rel.Name, err)
}

// FindRelationByName returns relation rows. Nil attrs select the relation
// attributes with both endpoint ids.
func (s *Storage) FindRelationByName(ctx context.Context, relation string, match queryir.Expression, viewport queryir.Viewport,
	attrs queryir.AttributeQuery) ([]ir.Record, error) {
	rel, err := s.relation(relation)
	if err != nil {
		return nil, err
	}
	if attrs == nil {
		attrs = relationAttrs(rel)
	}
	return s.fetch(ctx, querysql.Query{Entity: rel.Name, Match: match, Viewport: viewport, Attributes: attrs})
}

// UpdateRelationByName updates the attributes of the relation rows matching
// match. Endpoints cannot be changed.
func (s *Storage) UpdateRelationByName(ctx context.Context, relation string, match queryir.Expression, payload ir.Record) ([]ir.Record, []ir.MutationEvent, error) {
	o := s.begin("updateRelation")
	rel, err := s.relation(relation)
	if err != nil {
		return nil, nil, o.finish(relation, err)
	}
	recs, err := o.updateMatching(ctx, rel, match, payload)
	return recs, o.events, o.finish(rel.Name, err)
}

// createRelation resolves the source and target of payload like link values
// and adds the relation row.
func (o *op) createRelation(ctx context.Context, rel *schema.Node, payload ir.Record) (ir.Record, error) {
	props := payload.Clone()
	ids := make(map[ir.Role]int64, 2)
	for _, role := range []ir.Role{ir.RoleSource, ir.RoleTarget} {
		raw, ok := props[string(role)]
		if !ok || raw == nil {
			return nil, &MutationError{Code: ErrMissingEndpoint, Entity: rel.Name, Field: string(role), Message: "relation needs both endpoints"}
		}
		delete(props, string(role))
		f, _ := rel.Root.Child(string(role))
		ref, err := parseReference(rel, f, raw)
		if err != nil {
			return nil, err
		}
		id, _, err := o.getOrCreate(ctx, o.s.model.Node(f.Link.Other), ref)
		if err != nil {
			return nil, err
		}
		ids[role] = id
	}
	if _, ok := props[schema.IDColumn]; ok {
		return nil, &MutationError{Code: ErrUnexpectedID, Entity: rel.Name, Field: schema.IDColumn, Message: "create payload must not carry an id"}
	}
	return o.addRelation(ctx, rel, ids[ir.RoleSource], ids[ir.RoleTarget], props)
}

func (o *op) addRelation(ctx context.Context, rel *schema.Node, sourceID, targetID int64, attrs ir.Record) (ir.Record, error) {
	r := rel.Rel
	for _, end := range []struct {
		role ir.Role
		id   int64
	}{{ir.RoleSource, sourceID}, {ir.RoleTarget, targetID}} {
		ok, err := o.exists(ctx, o.s.model.Node(r.Endpoint(end.role)), end.id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &MutationError{Code: ErrMissingEndpoint, Entity: rel.Name, Field: string(end.role),
				Message: fmt.Sprintf("no %s record with id %d", o.s.model.Node(r.Endpoint(end.role)).Name, end.id)}
		}
	}

	pb, err := o.relationColumns(rel, attrs)
	if err != nil {
		return nil, err
	}

	var relID int64
	if r.Merged() {
		hostID, otherID := sourceID, targetID
		if r.Host == ir.RoleTarget {
			hostID, otherID = targetID, sourceID
		}
		snap, err := o.snapshot(ctx, rel, hostID)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			cur, _ := snap.Lookup(string(r.Host.Opposite()), schema.IDColumn)
			if id, ok := ir.ToID(cur); ok && id == otherID && len(attrs) == 0 {
				return snap, nil
			}
			if err := o.deleteRecord(ctx, newVisitedSet(), rel, hostID, snap); err != nil {
				return nil, err
			}
		}
		if err := o.claim(ctx, rel, otherID, hostID); err != nil {
			return nil, err
		}
		cols := append([]querysql.Assignment{{Column: r.ForeignKey(), Value: otherID}}, pb.assignments()...)
		if err := o.update(ctx, rel, cols, hostID); err != nil {
			return nil, err
		}
		relID = hostID
	} else {
		relID, err = o.nextID(ctx, rel)
		if err != nil {
			return nil, err
		}
		row := []querysql.Assignment{
			{Column: schema.IDColumn, Value: relID},
			{Column: r.JoinColumn(ir.RoleSource), Value: sourceID},
			{Column: r.JoinColumn(ir.RoleTarget), Value: targetID},
		}
		if err := o.insert(ctx, rel, append(row, pb.assignments()...)); err != nil {
			return nil, err
		}
	}

	rec := relationRecord(relID, sourceID, targetID, attrs)
	o.emit(rel.Name, ir.EventCreate, rec, nil)
	if err := o.runHooks(ctx, ir.EventCreate, rel, relID, pb.hooks); err != nil {
		return nil, err
	}
	return rec, nil
}

// claim removes the rows of a merged relation that link otherID to a host
// other than hostID, when the other side may hold only one link.
func (o *op) claim(ctx context.Context, rel *schema.Node, otherID, hostID int64) error {
	r := rel.Rel
	side := r.Host.Opposite()
	if r.ManyFrom(side) {
		return nil
	}
	rows, err := o.s.fetch(ctx, querysql.Query{
		Entity:     rel.Name,
		Match:      queryir.Eq(string(side)+"."+schema.IDColumn, otherID),
		Attributes: relationAttrs(rel),
	})
	if err != nil {
		return err
	}
	seen := newVisitedSet()
	for _, row := range rows {
		rid, _ := row.ID()
		if rid == hostID {
			continue
		}
		if err := o.deleteRecord(ctx, seen, rel, rid, row); err != nil {
			return err
		}
	}
	return nil
}

func (o *op) exists(ctx context.Context, n *schema.Node, id int64) (bool, error) {
	recs, err := o.s.fetch(ctx, querysql.Query{
		Entity:     n.Name,
		Match:      idMatch(id),
		Attributes: queryir.Attrs(schema.IDColumn),
		Viewport:   queryir.Viewport{Limit: 1},
	})
	return len(recs) > 0, err
}
