package engine

import (
	"context"

	"github.com/roach88/relgraph/internal/ir"
	"github.com/roach88/relgraph/internal/queryir"
	"github.com/roach88/relgraph/internal/querysql"
	"github.com/roach88/relgraph/internal/schema"
)

// Create inserts a record with its nested graph and returns it with the ids
// of every created or attached record filled in.
//
// Creating a relation node links the source and target given in payload,
// both of which are resolved like link values.
//
// Events are returned in statement order. On error the events of the
// statements already run are returned with it.
func (s *Storage) Create(ctx context.Context, entity string, payload ir.Record) (ir.Record, []ir.MutationEvent, error) {
	o := s.begin("create")
	n, err := s.lookup(entity)
	if err != nil {
		return nil, nil, o.finish(entity, err)
	}

	var rec ir.Record
	if n.IsRelation() {
		rec, err = o.createRelation(ctx, n, payload)
	} else {
		rec, err = o.create(ctx, n, payload, nil)
	}
	return rec, o.events, o.finish(n.Name, err)
}

// ownLink is a relation stored in the created row itself.
type ownLink struct {
	field *schema.Field
	rel   *schema.Node
	other int64
	props ir.Record
	hooks []hookValue
}

// create inserts one entity record. extra holds columns the caller sets,
// such as the foreign key of the record this one is created for.
func (o *op) create(ctx context.Context, n *schema.Node, payload ir.Record, extra []querysql.Assignment) (ir.Record, error) {
	if _, ok := payload[schema.IDColumn]; ok {
		return nil, &MutationError{Code: ErrUnexpectedID, Entity: n.Name, Field: schema.IDColumn, Message: "create payload must not carry an id"}
	}

	b := &rowBuilder{node: n}
	plain := ir.Record{}
	if err := b.collect(n.Root, payload, n.Order, plain); err != nil {
		return nil, err
	}
	values := b.assignments()
	result := cloneDeep(plain)
	event := cloneDeep(plain)

	// Keys stored in our row are resolved first, in field dependency order.
	var own []ownLink
	var later []linkValue
	for _, lv := range b.links {
		l := lv.field.Link
		rel := o.s.model.RelationOf(l)
		if placeOf(rel.Rel, l) != inOwnRow {
			later = append(later, lv)
			continue
		}
		if lv.value == nil {
			continue
		}
		if _, isList := ir.AsList(lv.value); isList {
			return nil, invalidValue(n.Name, lv.field.PathString(), "expected a single value, got a list")
		}
		ref, err := parseReference(n, lv.field, lv.value)
		if err != nil {
			return nil, err
		}
		otherID, linked, err := o.getOrCreate(ctx, o.s.model.Node(l.Other), ref)
		if err != nil {
			return nil, err
		}
		pb, err := o.relationColumns(rel, ref.props)
		if err != nil {
			return nil, err
		}
		if err := o.claim(ctx, rel, otherID, 0); err != nil {
			return nil, err
		}
		values = append(values, querysql.Assignment{Column: rel.Rel.ForeignKey(), Value: otherID})
		values = append(values, pb.assignments()...)
		setAt(result, lv.field.Path, present(l, linked))
		setAt(event, lv.field.Path, ir.Ref(otherID))
		own = append(own, ownLink{field: lv.field, rel: rel, other: otherID, props: ref.props, hooks: pb.hooks})
	}

	id, err := o.nextID(ctx, n)
	if err != nil {
		return nil, err
	}
	row := append([]querysql.Assignment{{Column: schema.IDColumn, Value: id}}, values...)
	row = append(row, extra...)
	if err := o.insert(ctx, n, row); err != nil {
		return nil, err
	}
	result[schema.IDColumn] = id
	event[schema.IDColumn] = id
	o.emit(n.Name, ir.EventCreate, event, nil)

	for _, ol := range own {
		src, tgt := endpoints(ol.field.Link, id, ol.other)
		o.emit(ol.rel.Name, ir.EventCreate, relationRecord(id, src, tgt, ol.props), nil)
		if err := o.runHooks(ctx, ir.EventCreate, ol.rel, id, ol.hooks); err != nil {
			return nil, err
		}
	}

	// Records holding our id, then join rows.
	for _, lv := range later {
		linked, err := o.link(ctx, n, id, lv.field, lv.value)
		if err != nil {
			return nil, err
		}
		setAt(result, lv.field.Path, linked)
	}

	if err := o.runHooks(ctx, ir.EventCreate, n, id, b.hooks); err != nil {
		return nil, err
	}
	return result, nil
}

// link attaches every value of a link field to the record id, which has no
// links on that field yet.
func (o *op) link(ctx context.Context, n *schema.Node, id int64, f *schema.Field, v any) (any, error) {
	elems, err := elements(n, f, v)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(elems))
	for _, el := range elems {
		ref, err := parseReference(n, f, el)
		if err != nil {
			return nil, err
		}
		linked, err := o.attach(ctx, n, id, f, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, present(f.Link, linked))
	}
	if f.Link.ToMany {
		return out, nil
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// attach links the referenced record to record id through f, creating the
// referenced record when needed. It returns the linked record.
func (o *op) attach(ctx context.Context, n *schema.Node, id int64, f *schema.Field, ref reference) (ir.Record, error) {
	l := f.Link
	rel := o.s.model.RelationOf(l)
	other := o.s.model.Node(l.Other)
	r := rel.Rel

	pb, err := o.relationColumns(rel, ref.props)
	if err != nil {
		return nil, err
	}

	var relID, otherID int64
	var linked ir.Record
	switch placeOf(r, l) {
	case inOtherRow:
		fk := querysql.Assignment{Column: r.ForeignKey(), Value: id}
		cols := append([]querysql.Assignment{fk}, pb.assignments()...)
		if ref.hasID {
			otherID, linked = ref.id, ref.payload
			if err := o.release(ctx, rel, otherID, id); err != nil {
				return nil, err
			}
			if err := o.update(ctx, rel, cols, otherID); err != nil {
				return nil, err
			}
		} else {
			created, err := o.create(ctx, other, ref.payload, cols)
			if err != nil {
				return nil, err
			}
			otherID, _ = created.ID()
			linked = created
		}
		relID = otherID

	case inOwnRow:
		otherID, linked, err = o.getOrCreate(ctx, other, ref)
		if err != nil {
			return nil, err
		}
		if err := o.claim(ctx, rel, otherID, id); err != nil {
			return nil, err
		}
		fk := querysql.Assignment{Column: r.ForeignKey(), Value: otherID}
		if err := o.update(ctx, rel, append([]querysql.Assignment{fk}, pb.assignments()...), id); err != nil {
			return nil, err
		}
		relID = id

	case inJoinTable:
		otherID, linked, err = o.getOrCreate(ctx, other, ref)
		if err != nil {
			return nil, err
		}
		relID, err = o.nextID(ctx, rel)
		if err != nil {
			return nil, err
		}
		row := []querysql.Assignment{
			{Column: schema.IDColumn, Value: relID},
			{Column: r.JoinColumn(l.From), Value: id},
			{Column: r.JoinColumn(l.To), Value: otherID},
		}
		if err := o.insert(ctx, rel, append(row, pb.assignments()...)); err != nil {
			return nil, err
		}
	}

	src, tgt := endpoints(l, id, otherID)
	o.emit(rel.Name, ir.EventCreate, relationRecord(relID, src, tgt, ref.props), nil)
	if err := o.runHooks(ctx, ir.EventCreate, rel, relID, pb.hooks); err != nil {
		return nil, err
	}
	return linked, nil
}

// release drops the relation row stored in host row hostID when it links to
// a record other than keep. A merged row holds one link at a time.
func (o *op) release(ctx context.Context, rel *schema.Node, hostID, keep int64) error {
	snap, err := o.snapshot(ctx, rel, hostID)
	if err != nil || snap == nil {
		return err
	}
	opposite := string(rel.Rel.Host.Opposite())
	if cur, ok := snap.Lookup(opposite, schema.IDColumn); ok {
		if id, ok := ir.ToID(cur); ok && id == keep {
			return nil
		}
	}
	return o.deleteRecord(ctx, newVisitedSet(), rel, hostID, snap)
}

// getOrCreate resolves a reference to an id: the given id, a record whose
// stored fields equal the literal values given, or a new record.
func (o *op) getOrCreate(ctx context.Context, n *schema.Node, ref reference) (int64, ir.Record, error) {
	if ref.hasID {
		return ref.id, ref.payload, nil
	}
	if m := literalMatch(n.Root, ref.payload); m != nil {
		recs, err := o.s.fetch(ctx, querysql.Query{
			Entity:     n.Name,
			Match:      m,
			Attributes: queryir.Attrs(schema.IDColumn),
			Viewport:   queryir.Viewport{Limit: 1},
		})
		if err != nil {
			return 0, nil, err
		}
		if len(recs) > 0 {
			id, _ := recs[0].ID()
			rec := ref.payload.Clone()
			rec[schema.IDColumn] = id
			return id, rec, nil
		}
	}
	created, err := o.create(ctx, n, ref.payload, nil)
	if err != nil {
		return 0, nil, err
	}
	id, _ := created.ID()
	return id, created, nil
}

// relationColumns converts relation attributes into assignments.
func (o *op) relationColumns(rel *schema.Node, props ir.Record) (*rowBuilder, error) {
	b := &rowBuilder{node: rel}
	if len(props) == 0 {
		return b, nil
	}
	if err := b.collect(rel.Root, props, rel.Order, ir.Record{}); err != nil {
		return nil, err
	}
	if len(b.links) > 0 {
		return nil, &MutationError{Code: ErrImmutableField, Entity: rel.Name, Field: b.links[0].field.PathString(),
			Message: "relation attributes cannot set endpoints or links"}
	}
	return b, nil
}
