package schema

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/relgraph/internal/compiler"
	"github.com/roach88/relgraph/internal/ir"
)

// Option configures Build.
type Option func(*builder)

// WithFieldTypes registers composite field types usable as property types.
func WithFieldTypes(types FieldTypes) Option {
	return func(b *builder) {
		for name, t := range types {
			b.types[name] = t
		}
	}
}

// Build compiles declarations into a Model.
func Build(decl *ir.Schema, opts ...Option) (*Model, error) {
	b := &builder{
		types: make(FieldTypes),
		model: &Model{byName: make(map[string]NodeID), byTbl: make(map[string]*Table)},
		props: make(map[NodeID][]ir.Property),
		scope: make(map[string][]ir.Property),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.model.types = b.types

	if problems := compiler.Validate(decl, b.types.Names()...); len(problems) > 0 {
		return nil, &SchemaError{
			Code:     ErrInvalidDeclaration,
			Message:  fmt.Sprintf("%d invalid declaration(s), first: %s", len(problems), problems[0].Error()),
			Problems: problems,
		}
	}

	passes := []func(*ir.Schema) error{
		b.entityPass,
		b.relationPass,
		b.linkPass,
		b.mergePass,
		b.tablePass,
	}
	for _, pass := range passes {
		if err := pass(decl); err != nil {
			return nil, err
		}
	}
	return b.model, nil
}

type builder struct {
	types FieldTypes
	model *Model
	// props keeps the declared properties of each node for dependency order.
	props map[NodeID][]ir.Property
	// scope maps a unique scope name to the shape of its shared sub-entity.
	scope map[string][]ir.Property
	// rels collects declared then synthesized relations in build order.
	rels []ir.Relation
}

func (b *builder) addNode(name string, kind NodeKind) (*Node, error) {
	if _, dup := b.model.byName[name]; dup {
		return nil, &SchemaError{Code: ErrScopeConflict, Node: name, Message: "name already used by another entity or relation"}
	}
	n := &Node{
		ID:   NodeID(len(b.model.nodes)),
		Name: name,
		Kind: kind,
		Root: &Field{Kind: KindComposite},
	}
	b.model.nodes = append(b.model.nodes, n)
	b.model.byName[name] = n.ID
	return n, nil
}

// entityPass creates a node per declared entity and walks its properties.
func (b *builder) entityPass(decl *ir.Schema) error {
	nodes := make([]*Node, len(decl.Entities))
	for i, e := range decl.Entities {
		n, err := b.addNode(e.Name, NodeEntity)
		if err != nil {
			return err
		}
		nodes[i] = n
	}
	for i, e := range decl.Entities {
		if err := b.walk(nodes[i], nodes[i].Root, e.Properties, nil); err != nil {
			return err
		}
		b.props[nodes[i].ID] = e.Properties
	}
	return nil
}

// walk adds the fields of one property level under parent.
func (b *builder) walk(n *Node, parent *Field, props []ir.Property, prefix []string) error {
	for _, p := range props {
		path := append(slices.Clone(prefix), p.Name)
		f := &Field{
			Name:         p.Name,
			Path:         path,
			Lazy:         p.Lazy,
			Dependencies: p.Dependencies,
		}

		if p.Promoted() {
			if err := b.promote(n, p, path); err != nil {
				return err
			}
			f.Kind = KindLink
			parent.add(f)
			continue
		}

		switch {
		case len(p.Fields) > 0:
			f.Kind = KindComposite
			if err := b.walk(n, f, p.Fields, path); err != nil {
				return err
			}
		case ir.ScalarTypes[p.Type]:
			f.Kind = KindColumn
			f.Type = p.Type
		case b.types[p.Type] != nil:
			ft := b.types[p.Type]
			f.Kind = KindComposite
			f.Type = p.Type
			f.FieldType = ft
			if err := b.walk(n, f, ft.Fields(), path); err != nil {
				return err
			}
		default:
			return &SchemaError{
				Code:    ErrUnknownFieldType,
				Node:    n.Name,
				Field:   strings.Join(path, "."),
				Message: fmt.Sprintf("unknown type %q", p.Type),
			}
		}
		parent.add(f)
	}
	return nil
}

// promote synthesizes the sub-entity and relation for a modified property.
func (b *builder) promote(owner *Node, p ir.Property, path []string) error {
	name := p.UniqueScope
	if name == "" {
		name = owner.Name + "_" + strings.Join(path, "_")
	}

	shape := p.Fields
	wrapped := len(shape) == 0
	if wrapped {
		shape = []ir.Property{{Name: ValueField, Type: p.Type}}
	}

	shared := false
	if p.UniqueScope != "" {
		if prev, ok := b.scope[name]; ok {
			if !reflect.DeepEqual(prev, shape) {
				return &SchemaError{
					Code:    ErrScopeConflict,
					Node:    owner.Name,
					Field:   strings.Join(path, "."),
					Message: fmt.Sprintf("unique scope %q already holds a different shape", name),
				}
			}
			shared = true
		}
		b.scope[name] = shape
	}

	if !shared {
		sub, err := b.addNode(name, NodeEntity)
		if err != nil {
			return err
		}
		sub.Synthesized = true
		sub.Wrapped = wrapped
		if err := b.walk(sub, sub.Root, shape, nil); err != nil {
			return err
		}
		b.props[sub.ID] = shape
	}

	b.rels = append(b.rels, ir.Relation{
		Name:           owner.Name + "_" + strings.Join(path, "_") + "_link",
		Source:         owner.Name,
		SourceProperty: strings.Join(path, "."),
		Target:         name,
		Type:           ir.DeriveCardinality(p.Collection, p.Unique),
		Reliance:       !p.Unique,
	})
	return nil
}

// relationPass creates relation nodes. Relation properties may be promoted
// themselves, which appends more relations while iterating.
func (b *builder) relationPass(decl *ir.Schema) error {
	synthesized := b.rels
	b.rels = append(slices.Clone(decl.Relations), synthesized...)
	declared := len(decl.Relations)

	for i := 0; i < len(b.rels); i++ {
		d := b.rels[i]
		name := d.RelationName()

		n, err := b.addNode(name, NodeRelation)
		if err != nil {
			return err
		}

		src, ok := b.model.byName[d.Source]
		if !ok {
			return &SchemaError{Code: ErrUnknownEntity, Node: name, Field: "source", Message: fmt.Sprintf("unknown entity %q", d.Source)}
		}
		tgt, ok := b.model.byName[d.Target]
		if !ok {
			return &SchemaError{Code: ErrUnknownEntity, Node: name, Field: "target", Message: fmt.Sprintf("unknown entity %q", d.Target)}
		}
		if d.Symmetric() && d.Type != ir.ManyToMany {
			return &SchemaError{Code: ErrSymmetricRelation, Node: name, Message: fmt.Sprintf("symmetric relation must be n:n, got %s", d.Type)}
		}

		n.Synthesized = i >= declared
		n.Rel = &Relation{
			Name:        name,
			Type:        d.Type,
			Source:      src,
			Target:      tgt,
			Reliance:    d.Reliance,
			Symmetric:   d.Symmetric(),
			Synthesized: i >= declared,
			SourcePath:  splitPath(d.SourceProperty),
			TargetPath:  splitPath(d.TargetProperty),
			columns:     make(map[ir.Role]string, 2),
		}
		if n.Rel.Symmetric {
			n.Rel.TargetPath = nil
		}
		n.Rel.host(d.Merge)

		n.Root.add(&Field{Name: IDColumn, Path: []string{IDColumn}, Kind: KindID, Type: ir.TypeID})
		n.Root.add(&Field{Name: string(ir.RoleSource), Path: []string{string(ir.RoleSource)}, Kind: KindLink})
		n.Root.add(&Field{Name: string(ir.RoleTarget), Path: []string{string(ir.RoleTarget)}, Kind: KindLink})
		if err := b.walk(n, n.Root, d.Properties, nil); err != nil {
			return err
		}
		b.props[n.ID] = d.Properties

		b.model.nodes[src].Ends = append(b.model.nodes[src].Ends, End{Relation: n.ID, Role: ir.RoleSource})
		b.model.nodes[tgt].Ends = append(b.model.nodes[tgt].Ends, End{Relation: n.ID, Role: ir.RoleTarget})
	}
	return nil
}

func splitPath(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, ".")
}

// linkPass attaches links to relation endpoint fields and computes field
// order for every node.
func (b *builder) linkPass(*ir.Schema) error {
	for _, n := range b.model.nodes {
		if !n.IsRelation() {
			continue
		}
		r := n.Rel
		for _, role := range []ir.Role{ir.RoleSource, ir.RoleTarget} {
			f, _ := n.Root.Child(string(role))
			f.Link = &Link{Relation: n.ID, To: role, Other: r.Endpoint(role)}
		}

		wrapped := r.Synthesized && b.model.nodes[r.Target].Wrapped
		if err := b.attach(r.Source, r.SourcePath, &Link{
			Relation:  n.ID,
			From:      ir.RoleSource,
			To:        ir.RoleTarget,
			Other:     r.Target,
			ToMany:    r.ManyFrom(ir.RoleSource),
			Symmetric: r.Symmetric,
			Wrapped:   wrapped,
		}); err != nil {
			return err
		}
		if r.TargetPath != nil {
			if err := b.attach(r.Target, r.TargetPath, &Link{
				Relation: n.ID,
				From:     ir.RoleTarget,
				To:       ir.RoleSource,
				Other:    r.Source,
				ToMany:   r.ManyFrom(ir.RoleTarget),
			}); err != nil {
				return err
			}
		}
	}

	for _, n := range b.model.nodes {
		order, err := compiler.DependencyOrder(b.props[n.ID])
		if err != nil {
			return &SchemaError{Code: ErrDependencyCycle, Node: n.Name, Message: err.Error()}
		}
		for _, c := range n.Root.Children {
			if !slices.Contains(order, c.Name) {
				order = append(order, c.Name)
			}
		}
		n.Order = order
	}
	return nil
}

// attach places a link on the field at path, creating the field when the
// relation declares it.
func (b *builder) attach(id NodeID, path []string, link *Link) error {
	n := b.model.nodes[id]
	parent := n.Root
	for i, seg := range path[:len(path)-1] {
		next, ok := parent.Child(seg)
		if !ok || next.Kind != KindComposite {
			return unknownField(n.Name, strings.Join(path[:i+1], "."))
		}
		parent = next
	}

	name := path[len(path)-1]
	f, ok := parent.Child(name)
	if !ok {
		parent.add(&Field{Name: name, Path: slices.Clone(path), Kind: KindLink, Link: link})
		return nil
	}
	if f.Kind != KindLink || f.Link != nil {
		return &SchemaError{
			Code:    ErrColumnCollision,
			Node:    n.Name,
			Field:   strings.Join(path, "."),
			Message: "field is claimed by a column and a relation",
		}
	}
	f.Link = link
	return nil
}

// host picks the role whose table stores the relation row.
func (r *Relation) host(hint ir.MergeHint) {
	switch {
	case r.Type == ir.ManyToMany || hint == ir.MergeNone:
		r.Host = ""
	case r.Type == ir.OneToMany:
		r.Host = ir.RoleTarget
	case r.Type == ir.ManyToOne:
		r.Host = ir.RoleSource
	case hint == ir.MergeSource:
		r.Host = ir.RoleSource
	default:
		r.Host = ir.RoleTarget
	}
}

// mergePass assigns every relation node its table and join columns.
func (b *builder) mergePass(*ir.Schema) error {
	for _, n := range b.model.nodes {
		if !n.IsRelation() {
			n.Table = n.Name
			continue
		}
		r := n.Rel
		if !r.Merged() {
			n.Table = n.Name
			r.columns[ir.RoleSource] = string(ir.RoleSource)
			r.columns[ir.RoleTarget] = string(ir.RoleTarget)
			continue
		}
		n.Table = b.model.nodes[r.Endpoint(r.Host)].Table
		r.columns[r.Host] = IDColumn
		r.columns[r.Host.Opposite()] = n.Name + "." + string(r.Host.Opposite())
	}
	return nil
}

// tablePass materializes tables and assigns every leaf its column.
func (b *builder) tablePass(*ir.Schema) error {
	for _, n := range b.model.nodes {
		if n.IsRelation() {
			continue
		}
		t := b.table(n.Table)
		if err := t.add(&Column{Name: IDColumn, Type: ir.TypeID, Owner: n.Name + ".id", Key: true}); err != nil {
			return err
		}
		for _, leaf := range n.Leaves() {
			leaf.Column = leaf.PathString()
			if err := t.add(&Column{Name: leaf.Column, Type: leaf.Type, Owner: n.Name + "." + leaf.PathString()}); err != nil {
				return err
			}
		}
	}

	for _, n := range b.model.nodes {
		if !n.IsRelation() {
			continue
		}
		r := n.Rel
		idField, _ := n.Root.Child(IDColumn)
		idField.Column = IDColumn
		for _, role := range []ir.Role{ir.RoleSource, ir.RoleTarget} {
			f, _ := n.Root.Child(string(role))
			f.Column = r.JoinColumn(role)
		}

		t := b.table(n.Table)
		prefix := ""
		if r.Merged() {
			prefix = n.Name + "."
			if err := t.add(&Column{Name: r.ForeignKey(), Type: ir.TypeID, Owner: n.Name, Index: true}); err != nil {
				return err
			}
		} else {
			for _, c := range []*Column{
				{Name: IDColumn, Type: ir.TypeID, Owner: n.Name + ".id", Key: true},
				{Name: string(ir.RoleSource), Type: ir.TypeID, Owner: n.Name + ".source", Index: true},
				{Name: string(ir.RoleTarget), Type: ir.TypeID, Owner: n.Name + ".target", Index: true},
			} {
				if err := t.add(c); err != nil {
					return err
				}
			}
		}
		for _, leaf := range n.Leaves() {
			leaf.Column = prefix + leaf.PathString()
			if err := t.add(&Column{Name: leaf.Column, Type: leaf.Type, Owner: n.Name + "." + leaf.PathString()}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) table(name string) *Table {
	if t, ok := b.model.byTbl[name]; ok {
		return t
	}
	t := &Table{Name: name}
	b.model.byTbl[name] = t
	b.model.tables = append(b.model.tables, t)
	return t
}
