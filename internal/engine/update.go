package engine

import (
	"context"
	"slices"

	"github.com/roach88/relgraph/internal/ir"
	"github.com/roach88/relgraph/internal/queryir"
	"github.com/roach88/relgraph/internal/querysql"
	"github.com/roach88/relgraph/internal/schema"
)

// Update applies payload to every record matching match and returns the
// records as stored afterwards.
//
// Plain fields are diffed against the stored values; an update event carries
// only the changed attributes. A nil link value detaches the link. A link
// value replaces the current members: members given again stay linked,
// removed members are detached first, then new members are attached.
// Removing a member its owner relies on deletes the member.
func (s *Storage) Update(ctx context.Context, entity string, match queryir.Expression, payload ir.Record) ([]ir.Record, []ir.MutationEvent, error) {
	o := s.begin("update")
	n, err := s.lookup(entity)
	if err != nil {
		return nil, nil, o.finish(entity, err)
	}
	recs, err := o.updateMatching(ctx, n, match, payload)
	return recs, o.events, o.finish(n.Name, err)
}

func (o *op) updateMatching(ctx context.Context, n *schema.Node, match queryir.Expression, payload ir.Record) ([]ir.Record, error) {
	b := &rowBuilder{node: n}
	if err := b.collect(n.Root, payload, n.Order, ir.Record{}); err != nil {
		return nil, err
	}
	if n.IsRelation() && len(b.links) > 0 {
		return nil, &MutationError{Code: ErrImmutableField, Entity: n.Name, Field: b.links[0].field.PathString(),
			Message: "relation endpoints cannot be updated; remove and add the relation instead"}
	}

	attrs := snapshotAttrs(n)
	matched, err := o.s.fetch(ctx, querysql.Query{Entity: n.Name, Match: match, Attributes: attrs})
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(matched))
	for _, old := range matched {
		id, _ := old.ID()
		if raw, ok := payload[schema.IDColumn]; ok {
			if pid, ok := ir.ToID(raw); !ok || pid != id {
				return nil, &MutationError{Code: ErrImmutableField, Entity: n.Name, Field: schema.IDColumn, Message: "id cannot be changed"}
			}
		}
		if err := o.updateRow(ctx, n, id, old, b); err != nil {
			return nil, err
		}
		for _, lv := range b.links {
			if err := o.relink(ctx, n, id, lv.field, lv.value); err != nil {
				return nil, err
			}
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return o.s.fetch(ctx, querysql.Query{Entity: n.Name, Match: idsMatch(ids), Attributes: attrs})
}

// updateRow writes the changed plain values of one record.
func (o *op) updateRow(ctx context.Context, n *schema.Node, id int64, old ir.Record, b *rowBuilder) error {
	var sets []querysql.Assignment
	var changed [][]string
	rec := ir.Record{schema.IDColumn: id}
	prev := ir.Record{schema.IDColumn: id}
	for _, c := range b.cells {
		was, _ := old.Lookup(c.field.Path...)
		if sameValue(was, c.value) {
			continue
		}
		sets = append(sets, querysql.Assignment{Column: c.field.Column, Value: c.param})
		setAt(rec, c.field.Path, c.value)
		setAt(prev, c.field.Path, was)
		changed = append(changed, c.field.Path)
	}
	if len(sets) == 0 {
		return nil
	}

	if err := o.update(ctx, n, sets, id); err != nil {
		return err
	}
	if n.IsRelation() {
		for _, role := range []string{string(ir.RoleSource), string(ir.RoleTarget)} {
			rec[role] = old[role]
			prev[role] = old[role]
		}
	}
	o.emit(n.Name, ir.EventUpdate, rec, prev)

	var hooks []hookValue
	for _, h := range b.hooks {
		if slices.ContainsFunc(changed, func(p []string) bool { return hasPrefix(p, h.field.Path) }) {
			h.old, _ = old.Lookup(h.field.Path...)
			hooks = append(hooks, h)
		}
	}
	return o.runHooks(ctx, ir.EventUpdate, n, id, hooks)
}

func hasPrefix(path, prefix []string) bool {
	return len(path) >= len(prefix) && slices.Equal(path[:len(prefix)], prefix)
}

// relink replaces the members of link field f of record id with v.
func (o *op) relink(ctx context.Context, n *schema.Node, id int64, f *schema.Field, v any) error {
	l := f.Link
	rel := o.s.model.RelationOf(l)
	other := o.s.model.Node(l.Other)

	elems, err := elements(n, f, v)
	if err != nil {
		return err
	}
	current, err := o.members(ctx, f, id)
	if err != nil {
		return err
	}

	// Identify every value against the current members before touching
	// anything, so removals can run first.
	refs := make([]reference, 0, len(elems))
	keep := make(map[int64]bool, len(elems))
	for _, el := range elems {
		ref, err := parseReference(n, f, el)
		if err != nil {
			return err
		}
		if !ref.hasID {
			if mid, ok := matchMember(current, ref.payload, keep); ok {
				ref.id, ref.hasID = mid, true
			}
		}
		if ref.hasID {
			keep[ref.id] = true
		}
		refs = append(refs, ref)
	}

	linked := make(map[int64]ir.Record, len(current))
	for _, m := range current {
		mid, _ := m.ID()
		if keep[mid] {
			linked[mid] = m
			continue
		}
		if err := o.detach(ctx, l, rel, other, m); err != nil {
			return err
		}
	}

	for _, ref := range refs {
		if m, ok := linked[ref.id]; ok && ref.hasID {
			if len(ref.props) > 0 {
				if err := o.updateRelationRow(ctx, rel, m, ref.props); err != nil {
					return err
				}
			}
			continue
		}
		linkedRec, err := o.attach(ctx, n, id, f, ref)
		if err != nil {
			return err
		}
		if mid, ok := linkedRec.ID(); ok {
			linked[mid] = linkedRec
		}
	}
	return nil
}

// updateRelationRow writes changed relation attributes of a kept member.
func (o *op) updateRelationRow(ctx context.Context, rel *schema.Node, member ir.Record, props ir.Record) error {
	row, _ := ir.AsRecord(member[queryir.RelationAttrs])
	relID, ok := row.ID()
	if !ok {
		return nil
	}
	pb, err := o.relationColumns(rel, props)
	if err != nil {
		return err
	}
	return o.updateRow(ctx, rel, relID, row, pb)
}

// members returns the records currently linked to record id through f, each
// with its relation row under "&".
func (o *op) members(ctx context.Context, f *schema.Field, id int64) ([]ir.Record, error) {
	l := f.Link
	other := o.s.model.Node(l.Other)
	rel := o.s.model.RelationOf(l)
	return o.s.fetch(ctx, querysql.Query{
		Entity:     other.Name,
		Attributes: plainAttrs(other).With(queryir.RelationAttrs, relationAttrs(rel)),
		Via:        &querysql.Via{Field: f, ParentID: id},
	})
}

// matchMember finds a current member, not yet claimed, whose stored fields
// equal the values given.
func matchMember(current []ir.Record, payload ir.Record, claimed map[int64]bool) (int64, bool) {
	for _, m := range current {
		mid, _ := m.ID()
		if claimed[mid] {
			continue
		}
		if subsetOf(payload, m) {
			return mid, true
		}
	}
	return 0, false
}

// detach removes the relation row of a member. A member that relies on the
// link owner is deleted with it.
func (o *op) detach(ctx context.Context, l *schema.Link, rel, other *schema.Node, member ir.Record) error {
	seen := newVisitedSet()
	row, _ := ir.AsRecord(member[queryir.RelationAttrs])
	relID, _ := row.ID()
	if err := o.deleteRecord(ctx, seen, rel, relID, row); err != nil {
		return err
	}
	if !rel.Rel.Reliance || l.From != ir.RoleSource {
		return nil
	}
	mid, _ := member.ID()
	snap := member.Clone()
	delete(snap, queryir.RelationAttrs)
	return o.deleteRecord(ctx, seen, other, mid, snap)
}
