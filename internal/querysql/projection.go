package querysql

import (
	"slices"

	"github.com/roach88/relgraph/internal/ir"
	"github.com/roach88/relgraph/internal/queryir"
	"github.com/roach88/relgraph/internal/schema"
)

// Column is one selected column.
type Column struct {
	Alias  string
	Name   string
	// Path is where the value lands in the decoded record.
	Path []string
	Type string
	// Hidden columns are selected for joins or ordering but not decoded.
	Hidden bool
}

// Deferred is a to-many link fetched by a follow-up query per parent row.
type Deferred struct {
	// Path is where the list lands in the decoded record.
	Path []string
	// Parent is the index of the parent record's id column.
	Parent int
	Owner  *schema.Node
	Field  *schema.Field
	Sub    *queryir.SubQuery
}

// Link returns the link the fetch follows.
func (d Deferred) Link() *schema.Link {
	return d.Field.Link
}

// linkSlot records where a to-one link's record sits so a NULL join can be
// decoded as a nil record.
type linkSlot struct {
	path []string
	id   int
}

// Projection is a compiled attribute query.
type Projection struct {
	Node     *schema.Node
	Alias    string
	Columns  []Column
	Joins    []Join
	Deferred []Deferred

	links []linkSlot
}

// CompileProjection compiles an attribute query rooted at entity. A nil
// query selects "*".
func (p *Planner) CompileProjection(entity string, attrs queryir.AttributeQuery) (*Projection, error) {
	n, err := p.lookup(entity)
	if err != nil {
		return nil, err
	}
	c := p.newCtx()
	proj := &Projection{Node: n, Alias: n.Name}
	if err := c.project(proj, scope{node: n, alias: n.Name}, attrs); err != nil {
		return nil, err
	}
	proj.Joins = c.joins.joins()
	return proj, nil
}

// scope is the position a projection level is compiled at.
type scope struct {
	node  *schema.Node
	alias string
	// path is the record path of the level.
	path []string
	// relAlias and relNode locate the relation row the level was reached
	// through, for "&".
	relAlias string
	relNode  *schema.Node
}

func (s scope) at(rel []string) []string {
	return append(slices.Clone(s.path), rel...)
}

func (proj *Projection) add(col Column) int {
	proj.Columns = append(proj.Columns, col)
	return len(proj.Columns) - 1
}

// project selects the id of the level and then every requested attribute.
func (c *compileCtx) project(proj *Projection, s scope, attrs queryir.AttributeQuery) error {
	idx := proj.add(Column{Alias: s.alias, Name: schema.IDColumn, Path: s.at([]string{schema.IDColumn}), Type: ir.TypeID})
	if attrs == nil {
		attrs = queryir.Attrs(queryir.All)
	}

	for _, a := range attrs {
		switch a.Name {
		case schema.IDColumn:
			continue
		case queryir.All:
			if err := c.projectAll(proj, s, idx); err != nil {
				return err
			}
			continue
		case queryir.RelationAttrs:
			if s.relNode == nil {
				return &CompileError{Code: ErrUnresolvableAlias, Entity: s.node.Name, Path: queryir.RelationAttrs,
					Message: "relation attributes are only selectable under a link"}
			}
			var sub queryir.AttributeQuery
			if a.Sub != nil {
				sub = a.Sub.Attributes
			}
			inner := scope{node: s.relNode, alias: s.relAlias, path: s.at([]string{queryir.RelationAttrs})}
			if err := c.project(proj, inner, sub); err != nil {
				return err
			}
			continue
		}

		path, err := queryir.ParsePath(a.Name)
		if err != nil {
			return &CompileError{Code: ErrUnknownField, Entity: s.node.Name, Path: a.Name, Message: "malformed attribute", Err: err}
		}
		f, err := s.node.Field(path...)
		if err != nil {
			return &CompileError{Code: ErrUnknownField, Entity: s.node.Name, Path: a.Name, Message: "unknown field"}
		}
		if err := c.projectField(proj, s, idx, f, a.Sub); err != nil {
			return err
		}
	}
	return nil
}

// projectAll selects every non-lazy plain field: columns, composite leaves
// and wrapped promoted values.
func (c *compileCtx) projectAll(proj *Projection, s scope, idx int) error {
	for _, name := range s.node.Order {
		f, ok := s.node.Root.Child(name)
		if !ok {
			continue
		}
		switch f.Kind {
		case schema.KindID:
		case schema.KindColumn, schema.KindComposite:
			if err := c.projectField(proj, s, idx, f, nil); err != nil {
				return err
			}
		case schema.KindLink:
			if f.Link != nil && f.Link.Wrapped && !f.Lazy {
				if err := c.projectField(proj, s, idx, f, nil); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (c *compileCtx) projectField(proj *Projection, s scope, idx int, f *schema.Field, sub *queryir.SubQuery) error {
	switch f.Kind {
	case schema.KindID:
		return nil

	case schema.KindColumn:
		proj.add(Column{Alias: s.alias, Name: f.Column, Path: s.at(f.Path), Type: f.Type})
		return nil

	case schema.KindComposite:
		if sub == nil || len(sub.Attributes) == 0 {
			for _, l := range f.Leaves() {
				proj.add(Column{Alias: s.alias, Name: l.Column, Path: s.at(l.Path), Type: l.Type})
			}
			for _, l := range f.Links() {
				if l.Link.Wrapped && !l.Lazy {
					if err := c.projectField(proj, s, idx, l, nil); err != nil {
						return err
					}
				}
			}
			return nil
		}
		for _, a := range sub.Attributes {
			child, ok := f.Child(a.Name)
			if !ok {
				return &CompileError{Code: ErrUnknownField, Entity: s.node.Name, Path: f.PathString() + "." + a.Name, Message: "unknown field"}
			}
			if err := c.projectField(proj, s, idx, child, a.Sub); err != nil {
				return err
			}
		}
		return nil
	}

	l := f.Link
	if l == nil {
		return &CompileError{Code: ErrUnknownField, Entity: s.node.Name, Path: f.PathString(), Message: "field has no relation"}
	}
	if l.ToMany {
		proj.Deferred = append(proj.Deferred, Deferred{
			Path:   s.at(f.Path),
			Parent: idx,
			Owner:  s.node,
			Field:  f,
			Sub:    sub,
		})
		return nil
	}
	if sub != nil && sub.Match != nil {
		return &CompileError{Code: ErrUnresolvableAlias, Entity: s.node.Name, Path: f.PathString(),
			Message: "match is only supported on to-many links"}
	}

	next := s.alias + "." + f.PathString()
	relAlias := c.hop(s.alias, l, next, JoinLeft)
	other := c.model.Node(l.Other)
	target := s.at(f.Path)

	if l.Wrapped {
		id := proj.add(Column{Alias: next, Name: schema.IDColumn, Path: target, Type: ir.TypeID, Hidden: true})
		v, _ := other.Root.Child(schema.ValueField)
		proj.add(Column{Alias: next, Name: v.Column, Path: target, Type: v.Type})
		proj.links = append(proj.links, linkSlot{path: target, id: id})
		return nil
	}

	inner := scope{node: other, alias: next, path: target}
	if relAlias != "" {
		inner.relAlias = relAlias
		inner.relNode = c.model.RelationOf(l)
	}
	var attrs queryir.AttributeQuery
	if sub != nil {
		attrs = sub.Attributes
	}
	first := len(proj.Columns)
	if err := c.project(proj, inner, attrs); err != nil {
		return err
	}
	proj.links = append(proj.links, linkSlot{path: target, id: first})
	return nil
}
