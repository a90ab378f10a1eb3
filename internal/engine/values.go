package engine

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"

	"github.com/roach88/relgraph/internal/ir"
	"github.com/roach88/relgraph/internal/queryir"
	"github.com/roach88/relgraph/internal/querysql"
	"github.com/roach88/relgraph/internal/schema"
	"github.com/roach88/relgraph/internal/store"
)

// cell is one column value taken from a payload.
type cell struct {
	field *schema.Field
	value any
	param any
}

type linkValue struct {
	field *schema.Field
	value any
}

type hookValue struct {
	field *schema.Field
	value ir.Record
	old   any
}

// rowBuilder splits a payload into column cells, link values and composite
// values with hooks.
type rowBuilder struct {
	node  *schema.Node
	cells []cell
	links []linkValue
	hooks []hookValue
}

// collect walks payload under parent in the given field order and writes the
// normalized plain values into out. A root id is left to the caller.
func (b *rowBuilder) collect(parent *schema.Field, payload ir.Record, order []string, out ir.Record) error {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == schema.IDColumn && parent == b.node.Root {
			continue
		}
		if _, ok := parent.Child(k); !ok {
			return &MutationError{Code: ErrUnknownField, Entity: b.node.Name, Field: joinPath(parent.Path, k), Message: "unknown field"}
		}
	}

	for _, name := range order {
		v, present := payload[name]
		if !present {
			continue
		}
		f, _ := parent.Child(name)
		switch f.Kind {
		case schema.KindID:
			continue

		case schema.KindColumn:
			param, err := store.WriteValue(f.Type, v)
			if err != nil {
				return &MutationError{Code: ErrInvalidValue, Entity: b.node.Name, Field: f.PathString(), Message: "bad column value", Err: err}
			}
			b.cells = append(b.cells, cell{field: f, value: v, param: param})
			out[name] = v

		case schema.KindComposite:
			if v == nil {
				for _, leaf := range f.Leaves() {
					b.cells = append(b.cells, cell{field: leaf})
				}
				out[name] = nil
				continue
			}
			obj, err := compositeValue(b.node, f, v)
			if err != nil {
				return err
			}
			sub := ir.Record{}
			if err := b.collect(f, obj, childNames(f), sub); err != nil {
				return err
			}
			out[name] = sub
			if f.FieldType != nil {
				b.hooks = append(b.hooks, hookValue{field: f, value: sub})
			}

		case schema.KindLink:
			if f.Link == nil {
				return &MutationError{Code: ErrUnknownField, Entity: b.node.Name, Field: f.PathString(), Message: "field has no relation"}
			}
			b.links = append(b.links, linkValue{field: f, value: v})
		}
	}
	return nil
}

func (b *rowBuilder) assignments() []querysql.Assignment {
	out := make([]querysql.Assignment, len(b.cells))
	for i, c := range b.cells {
		out[i] = querysql.Assignment{Column: c.field.Column, Value: c.param}
	}
	return out
}

// compositeValue returns the object form of a composite value, running the
// field type's Prepare for non-object input.
func compositeValue(n *schema.Node, f *schema.Field, v any) (ir.Record, error) {
	if rec, ok := ir.AsRecord(v); ok {
		return rec, nil
	}
	if f.FieldType == nil {
		return nil, invalidValue(n.Name, f.PathString(), "expected an object, got %T", v)
	}
	obj, err := f.FieldType.Prepare(v)
	if errors.Is(err, schema.ErrNoPrepare) {
		return nil, invalidValue(n.Name, f.PathString(), "%s needs an object, got %T", f.Type, v)
	}
	if err != nil {
		return nil, &MutationError{Code: ErrInvalidValue, Entity: n.Name, Field: f.PathString(), Message: "prepare " + f.Type, Err: err}
	}
	return ir.Record(obj), nil
}

func childNames(f *schema.Field) []string {
	names := make([]string, len(f.Children))
	for i, c := range f.Children {
		names[i] = c.Name
	}
	return names
}

func joinPath(prefix []string, name string) string {
	return queryir.Path(append(slices.Clone(prefix), name)).String()
}

// placement says which row holds a link's relation.
type placement int

const (
	// inOwnRow: the link owner's row holds the foreign key.
	inOwnRow placement = iota
	// inOtherRow: the linked record's row holds the foreign key.
	inOtherRow
	// inJoinTable: the relation has its own table.
	inJoinTable
)

func placeOf(r *schema.Relation, l *schema.Link) placement {
	switch {
	case !r.Merged():
		return inJoinTable
	case r.Host == l.From:
		return inOwnRow
	default:
		return inOtherRow
	}
}

// endpoints orders the ids of the link owner and the linked record by role.
func endpoints(l *schema.Link, self, other int64) (source, target int64) {
	if l.From == ir.RoleSource {
		return self, other
	}
	return other, self
}

// relationRecord is the event record of a relation row.
func relationRecord(id, source, target int64, props ir.Record) ir.Record {
	rec := cloneDeep(props)
	if rec == nil {
		rec = ir.Record{}
	}
	rec[schema.IDColumn] = id
	rec[string(ir.RoleSource)] = ir.Ref(source)
	rec[string(ir.RoleTarget)] = ir.Ref(target)
	return rec
}

// plainAttrs selects the stored fields of a node: columns and composite
// leaves, no links.
func plainAttrs(n *schema.Node) queryir.AttributeQuery {
	q := queryir.AttributeQuery{}
	for _, name := range n.Order {
		f, ok := n.Root.Child(name)
		if !ok {
			continue
		}
		switch f.Kind {
		case schema.KindColumn:
			q = append(q, queryir.Attribute{Name: name})
		case schema.KindComposite:
			if sub := leafAttrs(f); len(sub) > 0 {
				q = q.With(name, sub)
			}
		}
	}
	return q
}

func leafAttrs(f *schema.Field) queryir.AttributeQuery {
	q := queryir.AttributeQuery{}
	for _, c := range f.Children {
		switch c.Kind {
		case schema.KindColumn:
			q = append(q, queryir.Attribute{Name: c.Name})
		case schema.KindComposite:
			if sub := leafAttrs(c); len(sub) > 0 {
				q = q.With(c.Name, sub)
			}
		}
	}
	return q
}

// relationAttrs selects a relation row with both endpoint ids.
func relationAttrs(rel *schema.Node) queryir.AttributeQuery {
	return plainAttrs(rel).
		With(string(ir.RoleSource), queryir.Attrs(schema.IDColumn)).
		With(string(ir.RoleTarget), queryir.Attrs(schema.IDColumn))
}

func snapshotAttrs(n *schema.Node) queryir.AttributeQuery {
	if n.IsRelation() {
		return relationAttrs(n)
	}
	return plainAttrs(n)
}

func idMatch(id int64) queryir.Expression {
	return queryir.ID(id)
}

func idsMatch(ids []int64) queryir.Expression {
	list := make([]any, len(ids))
	for i, id := range ids {
		list[i] = id
	}
	return queryir.Where(schema.IDColumn, queryir.OpIn, list)
}

// literalMatch matches every plain value given in payload. It returns nil
// when the payload holds no plain values.
func literalMatch(parent *schema.Field, payload ir.Record) queryir.Expression {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var terms []queryir.Expression
	for _, k := range keys {
		f, ok := parent.Child(k)
		if !ok {
			continue
		}
		switch f.Kind {
		case schema.KindColumn:
			terms = append(terms, &queryir.Atom{Key: queryir.Path(f.Path), Op: queryir.OpEq, Value: payload[k]})
		case schema.KindComposite:
			if rec, ok := ir.AsRecord(payload[k]); ok {
				terms = append(terms, literalMatch(f, rec))
			}
		}
	}
	return queryir.AllOf(terms...)
}

// sameValue compares two values by their canonical JSON form, so the
// int/int64/float64 shapes a value takes through drivers compare equal.
func sameValue(a, b any) bool {
	ca, errA := ir.MarshalCanonical(a)
	cb, errB := ir.MarshalCanonical(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(ca, cb)
}

// subsetOf reports whether every value in want is present and equal in have.
// Nested objects are compared the same way. It returns false when want
// holds nothing comparable.
func subsetOf(want, have ir.Record) bool {
	compared := 0
	for k, v := range want {
		hv, ok := have[k]
		if !ok {
			continue
		}
		wr, wIsRec := ir.AsRecord(v)
		hr, hIsRec := ir.AsRecord(hv)
		if wIsRec && hIsRec {
			if !subsetOf(wr, hr) {
				return false
			}
		} else if !sameValue(v, hv) {
			return false
		}
		compared++
	}
	return compared > 0
}

// setAt stores v at path, creating intermediate records.
func setAt(rec ir.Record, path []string, v any) {
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

// cloneDeep copies nested records. Lists and scalars are shared.
func cloneDeep(r ir.Record) ir.Record {
	if r == nil {
		return nil
	}
	out := make(ir.Record, len(r))
	for k, v := range r {
		if sub, ok := ir.AsRecord(v); ok {
			out[k] = cloneDeep(sub)
			continue
		}
		out[k] = v
	}
	return out
}

// reference is a parsed link value.
type reference struct {
	id      int64
	hasID   bool
	payload ir.Record
	props   ir.Record
}

// parseReference reads a link value: an object, optionally with id and "&"
// relation attributes, a bare id, or a bare value for wrapped links.
func parseReference(n *schema.Node, f *schema.Field, el any) (reference, error) {
	l := f.Link
	rec, ok := ir.AsRecord(el)
	if !ok {
		if l.Wrapped {
			return reference{payload: ir.Record{schema.ValueField: el}}, nil
		}
		if _, isList := ir.AsList(el); isList {
			return reference{}, &MutationError{Code: ErrNonScalarID, Entity: n.Name, Field: f.PathString(), Message: "expected an object or id, got a list"}
		}
		id, ok := ir.ToID(el)
		if !ok {
			return reference{}, invalidValue(n.Name, f.PathString(), "expected an object or id, got %T", el)
		}
		return reference{id: id, hasID: true, payload: ir.Ref(id)}, nil
	}

	ref := reference{payload: rec.Clone()}
	if raw, ok := rec[queryir.RelationAttrs]; ok {
		delete(ref.payload, queryir.RelationAttrs)
		if raw != nil {
			props, ok := ir.AsRecord(raw)
			if !ok {
				return reference{}, invalidValue(n.Name, f.PathString()+"."+queryir.RelationAttrs, "expected an object, got %T", raw)
			}
			ref.props = props
		}
	}
	if raw, ok := rec[schema.IDColumn]; ok {
		id, ok := ir.ToID(raw)
		if !ok {
			return reference{}, &MutationError{Code: ErrNonScalarID, Entity: n.Name, Field: f.PathString() + ".id",
				Message: fmt.Sprintf("id must be a scalar, got %T", raw)}
		}
		ref.id, ref.hasID = id, true
	}
	return ref, nil
}

// elements returns the link values of v: the list items of a to-many link,
// or the single value of a to-one link. nil yields none.
func elements(n *schema.Node, f *schema.Field, v any) ([]any, error) {
	if v == nil {
		return nil, nil
	}
	list, isList := ir.AsList(v)
	if f.Link.ToMany {
		if !isList {
			return nil, invalidValue(n.Name, f.PathString(), "expected a list, got %T", v)
		}
		return list, nil
	}
	if isList {
		return nil, invalidValue(n.Name, f.PathString(), "expected a single value, got a list")
	}
	return []any{v}, nil
}

// present returns the payload-shaped form of a linked record: the bare value
// for wrapped links.
func present(l *schema.Link, rec ir.Record) any {
	if l.Wrapped {
		return rec[schema.ValueField]
	}
	return rec
}
