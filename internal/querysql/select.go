package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/relgraph/internal/ir"
	"github.com/roach88/relgraph/internal/queryir"
	"github.com/roach88/relgraph/internal/schema"
)

// Query describes one SELECT.
type Query struct {
	Entity     string
	Match      queryir.Expression
	Attributes queryir.AttributeQuery
	Viewport   queryir.Viewport
	OrderBy    queryir.OrderBy
	// Via restricts rows to those linked to one parent record.
	Via *Via
}

// Via names the parent a deferred fetch runs for. Rows are the records on
// the far side of Field's link from the parent.
type Via struct {
	Field    *schema.Field
	ParentID int64
}

// Statement is rendered SQL with its parameters.
type Statement struct {
	SQL        string
	Params     []any
	Projection *Projection
}

// Select compiles a query into one SELECT statement.
func (p *Planner) Select(q Query) (*Statement, error) {
	n, err := p.lookup(q.Entity)
	if err != nil {
		return nil, err
	}
	c := p.newCtx()
	root := scope{node: n, alias: n.Name}

	var where []string
	if q.Via != nil {
		cond, err := c.via(&root, q.Via)
		if err != nil {
			return nil, err
		}
		where = append(where, cond)
	}
	if n.IsRelation() && n.Rel.Merged() {
		// A merged relation's rows are the host rows whose key is set.
		where = append(where, c.col(root.alias, n.Rel.ForeignKey())+" IS NOT NULL")
	}

	proj := &Projection{Node: n, Alias: root.alias}
	if err := c.project(proj, root, q.Attributes); err != nil {
		return nil, err
	}

	if q.Match != nil {
		cond, err := c.match(n, root.alias, q.Match, true)
		if err != nil {
			return nil, err
		}
		where = append(where, cond)
	}

	var order []string
	for _, o := range q.OrderBy {
		lf, err := c.resolve(n, root.alias, o.Key, resolveOpts{kind: JoinLeft, toOneOnly: true})
		if err != nil {
			return nil, err
		}
		if lf.composite != nil {
			return nil, &CompileError{Code: ErrUnresolvableAlias, Entity: n.Name, Path: o.Key.String(), Message: "cannot order by a composite"}
		}
		proj.add(Column{Alias: lf.alias, Name: lf.column, Type: lf.typ, Hidden: true})
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		order = append(order, c.col(lf.alias, lf.column)+" "+dir)
	}
	order = append(order, c.col(root.alias, schema.IDColumn)+" ASC")
	proj.Joins = c.joins.joins()

	var b strings.Builder
	b.WriteString("SELECT ")
	if c.fanOut {
		b.WriteString("DISTINCT ")
	}
	for i, col := range proj.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.col(col.Alias, col.Name))
	}
	fmt.Fprintf(&b, " FROM %s AS %s", c.dialect.Quote(n.Table), c.dialect.Quote(root.alias))
	for _, j := range proj.Joins {
		fmt.Fprintf(&b, " %s %s AS %s ON %s", j.Kind, c.dialect.Quote(j.Table), c.dialect.Quote(j.Alias), j.On)
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(order, ", "))
	if limit := c.dialect.Limit(q.Viewport.Limit, q.Viewport.Offset); limit != "" {
		b.WriteString(" ")
		b.WriteString(limit)
	}

	return &Statement{SQL: b.String(), Params: c.binder.params, Projection: proj}, nil
}

// via joins the relation row linking the root to the parent and returns the
// condition selecting the parent's rows. The root scope learns the
// relation row's alias so "&" resolves.
func (c *compileCtx) via(root *scope, v *Via) (string, error) {
	l := v.Field.Link
	if l == nil || l.Endpoint() {
		return "", &CompileError{Code: ErrUnresolvableAlias, Entity: root.node.Name, Path: v.Field.PathString(),
			Message: "follow-up fetches need an entity link"}
	}
	if l.Other != root.node.ID {
		return "", &CompileError{Code: ErrUnresolvableAlias, Entity: root.node.Name, Path: v.Field.PathString(),
			Message: "link does not lead to the query root"}
	}

	rel := c.model.RelationOf(l)
	r := rel.Rel
	id := c.col(root.alias, schema.IDColumn)
	root.relNode = rel

	switch {
	case r.Symmetric:
		ra := root.alias + queryir.RelationAttrs
		src, tgt := c.col(ra, string(ir.RoleSource)), c.col(ra, string(ir.RoleTarget))
		c.joins.add(JoinInner, rel.Table, ra, fmt.Sprintf("(%s = %s OR %s = %s)", src, id, tgt, id))
		root.relAlias = ra
		p1 := c.binder.bind(v.ParentID)
		p2 := c.binder.bind(v.ParentID)
		return fmt.Sprintf("((%s = %s AND %s = %s) OR (%s = %s AND %s = %s))",
			src, p1, tgt, id, tgt, p2, src, id), nil
	case r.Merged() && r.Host == l.To:
		root.relAlias = root.alias
		return fmt.Sprintf("%s = %s", c.col(root.alias, r.JoinColumn(l.From)), c.binder.bind(v.ParentID)), nil
	default:
		ra := root.alias + queryir.RelationAttrs
		c.joins.add(JoinInner, rel.Table, ra, fmt.Sprintf("%s = %s", c.col(ra, r.JoinColumn(l.To)), id))
		root.relAlias = ra
		return fmt.Sprintf("%s = %s", c.col(ra, r.JoinColumn(l.From)), c.binder.bind(v.ParentID)), nil
	}
}
