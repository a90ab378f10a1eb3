package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/relgraph/internal/ir"
	"github.com/roach88/relgraph/internal/queryir"
	"github.com/roach88/relgraph/internal/schema"
	"github.com/roach88/relgraph/internal/store"
)

// Planner compiles queries against one model for one dialect. It holds no
// per-query state and is safe for concurrent use.
type Planner struct {
	model   *schema.Model
	dialect store.Dialect
}

// NewPlanner creates a planner.
func NewPlanner(model *schema.Model, dialect store.Dialect) *Planner {
	return &Planner{model: model, dialect: dialect}
}

// Model returns the model the planner compiles against.
func (p *Planner) Model() *schema.Model {
	return p.model
}

// Dialect returns the dialect SQL is rendered for.
func (p *Planner) Dialect() store.Dialect {
	return p.dialect
}

func (p *Planner) lookup(entity string) (*schema.Node, error) {
	n, err := p.model.Lookup(entity)
	if err != nil {
		return nil, &CompileError{Code: ErrUnknownEntity, Entity: entity, Message: "unknown entity or relation"}
	}
	return n, nil
}

// JoinKind is INNER or LEFT.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
)

func (k JoinKind) String() string {
	if k == JoinLeft {
		return "LEFT JOIN"
	}
	return "INNER JOIN"
}

// Join is one rendered join. On references aliases only and carries no
// parameters.
type Join struct {
	Kind  JoinKind
	Table string
	Alias string
	On    string
}

// joinSet deduplicates joins by table, alias and ON clause.
type joinSet struct {
	list  []*Join
	index map[string]*Join
}

func (s *joinSet) add(kind JoinKind, table, alias, on string) {
	key := table + "\x00" + alias + "\x00" + on
	if j, ok := s.index[key]; ok {
		if kind == JoinInner {
			j.Kind = JoinInner
		}
		return
	}
	if s.index == nil {
		s.index = make(map[string]*Join)
	}
	j := &Join{Kind: kind, Table: table, Alias: alias, On: on}
	s.index[key] = j
	s.list = append(s.list, j)
}

func (s *joinSet) joins() []Join {
	out := make([]Join, len(s.list))
	for i, j := range s.list {
		out[i] = *j
	}
	return out
}

// binder collects parameters and numbers their placeholders.
type binder struct {
	dialect store.Dialect
	params  []any
}

func (b *binder) bind(v any) string {
	b.params = append(b.params, v)
	return b.dialect.Placeholder(len(b.params))
}

// compileCtx is the state of compiling one statement.
type compileCtx struct {
	model   *schema.Model
	dialect store.Dialect
	joins   joinSet
	binder  binder
	// fanOut is set when a match crossed a to-many link.
	fanOut bool
}

func (p *Planner) newCtx() *compileCtx {
	return &compileCtx{
		model:   p.model,
		dialect: p.dialect,
		binder:  binder{dialect: p.dialect},
	}
}

// col renders alias.column.
func (c *compileCtx) col(alias, column string) string {
	return c.dialect.Quote(alias) + "." + c.dialect.Quote(column)
}

// hop joins the node a link leads to under alias to. It returns the alias
// the relation row is readable under, or "" for endpoint links.
func (c *compileCtx) hop(from string, l *schema.Link, to string, kind JoinKind) string {
	rel := c.model.RelationOf(l)
	r := rel.Rel
	other := c.model.Node(l.Other)

	if l.Endpoint() {
		c.joins.add(kind, other.Table, to,
			fmt.Sprintf("%s = %s", c.col(to, schema.IDColumn), c.col(from, r.JoinColumn(l.To))))
		return ""
	}

	src, tgt := string(ir.RoleSource), string(ir.RoleTarget)
	switch {
	case r.Symmetric:
		ra := to + queryir.RelationAttrs
		c.joins.add(kind, rel.Table, ra, fmt.Sprintf("(%s = %s OR %s = %s)",
			c.col(ra, src), c.col(from, schema.IDColumn),
			c.col(ra, tgt), c.col(from, schema.IDColumn)))
		c.joins.add(kind, other.Table, to, fmt.Sprintf("((%s = %s AND %s = %s) OR (%s = %s AND %s = %s))",
			c.col(to, schema.IDColumn), c.col(ra, tgt), c.col(ra, src), c.col(from, schema.IDColumn),
			c.col(to, schema.IDColumn), c.col(ra, src), c.col(ra, tgt), c.col(from, schema.IDColumn)))
		return ra
	case !r.Merged():
		ra := to + queryir.RelationAttrs
		c.joins.add(kind, rel.Table, ra,
			fmt.Sprintf("%s = %s", c.col(ra, r.JoinColumn(l.From)), c.col(from, schema.IDColumn)))
		c.joins.add(kind, other.Table, to,
			fmt.Sprintf("%s = %s", c.col(to, schema.IDColumn), c.col(ra, r.JoinColumn(l.To))))
		return ra
	case r.Host == l.To:
		c.joins.add(kind, other.Table, to,
			fmt.Sprintf("%s = %s", c.col(to, r.JoinColumn(l.From)), c.col(from, schema.IDColumn)))
		return to
	default:
		c.joins.add(kind, other.Table, to,
			fmt.Sprintf("%s = %s", c.col(to, schema.IDColumn), c.col(from, r.JoinColumn(l.To))))
		return from
	}
}

// leaf is a resolved column reference.
type leaf struct {
	alias  string
	column string
	typ    string
	// composite is set when the path ends at a composite field.
	composite *schema.Field
	// link is set when the path ends at a non-wrapped link; column is then
	// the linked record's id.
	link *schema.Field
}

// resolveOpts controls how resolve treats links.
type resolveOpts struct {
	kind JoinKind
	// toOneOnly rejects to-many hops, as ordering requires.
	toOneOnly bool
}

// resolve walks a path from the node at alias, joining every link it
// crosses.
func (c *compileCtx) resolve(n *schema.Node, alias string, path queryir.Path, opts resolveOpts) (leaf, error) {
	cur := n.Root
	node := n
	relAlias := ""
	var relNode *schema.Node

	fail := func(code, msg string, upto int) (leaf, error) {
		return leaf{}, &CompileError{Code: code, Entity: n.Name, Path: strings.Join(path[:upto], "."), Message: msg}
	}

	for i := 0; i < len(path); i++ {
		seg := path[i]
		last := i == len(path)-1

		if seg == queryir.RelationAttrs {
			if relNode == nil || cur != node.Root {
				return fail(ErrUnresolvableAlias, "relation attributes are only reachable right after a link", i+1)
			}
			node, alias, cur = relNode, relAlias, relNode.Root
			relNode, relAlias = nil, ""
			if last {
				return fail(ErrUnresolvableAlias, "path ends at relation attributes", i+1)
			}
			continue
		}

		f, ok := cur.Child(seg)
		if !ok {
			if seg == schema.IDColumn && cur == node.Root {
				if !last {
					return fail(ErrUnknownField, "id has no fields", i+2)
				}
				return leaf{alias: alias, column: schema.IDColumn, typ: ir.TypeID}, nil
			}
			return fail(ErrUnknownField, "unknown field", i+1)
		}
		relNode, relAlias = nil, ""

		switch f.Kind {
		case schema.KindID, schema.KindColumn:
			if !last {
				return fail(ErrUnknownField, f.Name+" has no fields", i+2)
			}
			typ := f.Type
			if f.Kind == schema.KindID {
				typ = ir.TypeID
			}
			return leaf{alias: alias, column: f.Column, typ: typ}, nil

		case schema.KindComposite:
			if last {
				return leaf{alias: alias, composite: f}, nil
			}
			cur = f

		case schema.KindLink:
			l := f.Link
			rest := path[i+1:]
			if l.Endpoint() && (len(rest) == 0 || (len(rest) == 1 && rest[0] == schema.IDColumn)) {
				// The endpoint id is stored on the relation row.
				return leaf{alias: alias, column: f.Column, typ: ir.TypeID}, nil
			}
			if l.ToMany {
				if opts.toOneOnly {
					return fail(ErrUnresolvableAlias, "cannot address a to-many link here", i+1)
				}
				c.fanOut = true
			}

			next := alias + "." + f.PathString()
			relAlias = c.hop(alias, l, next, opts.kind)
			relNode = nil
			if relAlias != "" {
				relNode = c.model.RelationOf(l)
			}
			node = c.model.Node(l.Other)
			alias, cur = next, node.Root

			if last {
				if l.Wrapped {
					v, _ := node.Root.Child(schema.ValueField)
					return leaf{alias: alias, column: v.Column, typ: v.Type}, nil
				}
				return leaf{alias: alias, column: schema.IDColumn, typ: ir.TypeID, link: f}, nil
			}
		}
	}
	return fail(ErrUnknownField, "empty path", 0)
}
