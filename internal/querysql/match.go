package querysql

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/relgraph/internal/ir"
	"github.com/roach88/relgraph/internal/queryir"
	"github.com/roach88/relgraph/internal/schema"
	"github.com/roach88/relgraph/internal/store"
)

// Filter is a compiled match expression.
type Filter struct {
	Where  string
	Params []any
	Joins  []Join
	// FanOut is set when the filter joined a to-many link, so selects must
	// be DISTINCT.
	FanOut bool
}

// CompileMatch compiles a match expression rooted at entity. A nil
// expression compiles to an always-true filter.
func (p *Planner) CompileMatch(entity string, expr queryir.Expression) (*Filter, error) {
	n, err := p.lookup(entity)
	if err != nil {
		return nil, err
	}
	c := p.newCtx()
	where, err := c.match(n, n.Name, expr, true)
	if err != nil {
		return nil, err
	}
	return &Filter{Where: where, Params: c.binder.params, Joins: c.joins.joins(), FanOut: c.fanOut}, nil
}

const alwaysTrue = "1 = 1"

// match renders expr. inner is true while every enclosing operator is AND,
// which lets link hops use INNER joins.
func (c *compileCtx) match(n *schema.Node, alias string, expr queryir.Expression, inner bool) (string, error) {
	switch e := expr.(type) {
	case nil:
		return alwaysTrue, nil
	case *queryir.And:
		return c.combine(n, alias, e.Terms, " AND ", inner)
	case *queryir.Or:
		return c.combine(n, alias, e.Terms, " OR ", false)
	case *queryir.Not:
		term, err := c.match(n, alias, e.Term, false)
		if err != nil {
			return "", err
		}
		return "NOT (" + term + ")", nil
	case *queryir.Atom:
		return c.atom(n, alias, e, inner)
	default:
		return "", fmt.Errorf("unsupported match expression %T", expr)
	}
}

func (c *compileCtx) combine(n *schema.Node, alias string, terms []queryir.Expression, sep string, inner bool) (string, error) {
	if len(terms) == 0 {
		if sep == " OR " {
			return "1 = 0", nil
		}
		return alwaysTrue, nil
	}
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		s, err := c.match(n, alias, t, inner)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (c *compileCtx) atom(n *schema.Node, alias string, a *queryir.Atom, inner bool) (string, error) {
	kind := JoinInner
	if !inner || a.Value == nil {
		kind = JoinLeft
	}
	lf, err := c.resolve(n, alias, a.Key, resolveOpts{kind: kind})
	if err != nil {
		return "", err
	}

	if lf.composite != nil {
		return c.compositeAtom(n, alias, a, lf.composite, inner)
	}
	if lf.link != nil {
		if obj, ok := ir.AsRecord(a.Value); ok {
			return c.expand(n, alias, a, obj, inner)
		}
	}
	return c.compare(n, a, lf)
}

// compositeAtom matches the leaves of a composite. Registered types convert
// the operand with their Prepare hook first. Sub-fields missing from the
// operand are not filtered on. A nil operand checks every leaf for null.
func (c *compileCtx) compositeAtom(n *schema.Node, alias string, a *queryir.Atom, f *schema.Field, inner bool) (string, error) {
	var obj map[string]any
	if f.FieldType != nil && a.Value != nil {
		prepared, err := f.FieldType.Prepare(a.Value)
		switch {
		case err == nil:
			obj = prepared
		case !errors.Is(err, schema.ErrNoPrepare):
			return "", &CompileError{Code: ErrPrepareFailed, Entity: n.Name, Path: a.Key.String(), Message: "prepare failed", Err: err}
		}
	}
	if obj == nil && a.Value == nil {
		obj = make(map[string]any, len(f.Children))
		for _, child := range f.Children {
			obj[child.Name] = nil
		}
	}
	if obj == nil {
		rec, ok := ir.AsRecord(a.Value)
		if !ok {
			return "", &CompileError{Code: ErrCompositeValue, Entity: n.Name, Path: a.Key.String(),
				Message: fmt.Sprintf("composite field needs an object value, got %T", a.Value)}
		}
		obj = rec
	}

	present := make(map[string]any, len(obj))
	for _, child := range f.Children {
		if v, ok := obj[child.Name]; ok {
			present[child.Name] = v
		}
	}
	return c.expand(n, alias, a, present, inner)
}

// expand rewrites a match on an object operand into one atom per key. For
// != the conjunction of equalities is negated.
func (c *compileCtx) expand(n *schema.Node, alias string, a *queryir.Atom, obj map[string]any, inner bool) (string, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	op := a.Op
	negate := op == queryir.OpNe
	if negate {
		op = queryir.OpEq
		inner = false
	}

	terms := make([]queryir.Expression, 0, len(keys))
	for _, k := range keys {
		key := append(slices.Clone(a.Key), k)
		terms = append(terms, &queryir.Atom{Key: key, Op: op, Value: obj[k]})
	}
	if len(terms) == 0 {
		return alwaysTrue, nil
	}
	s, err := c.combine(n, alias, terms, " AND ", inner)
	if err != nil {
		return "", err
	}
	if negate {
		return "NOT (" + s + ")", nil
	}
	return s, nil
}

// compare renders a comparison of one column.
func (c *compileCtx) compare(n *schema.Node, a *queryir.Atom, lf leaf) (string, error) {
	column := c.col(lf.alias, lf.column)
	invalid := func(msg string, err error) (string, error) {
		return "", &CompileError{Code: ErrInvalidOperand, Entity: n.Name, Path: a.Key.String(), Message: msg, Err: err}
	}

	if a.Value == nil {
		switch a.Op {
		case queryir.OpEq:
			return column + " IS NULL", nil
		case queryir.OpNe:
			return column + " IS NOT NULL", nil
		default:
			return invalid(fmt.Sprintf("operator %s needs a value", a.Op), nil)
		}
	}

	switch a.Op {
	case queryir.OpIn:
		list, ok := ir.AsList(a.Value)
		if !ok {
			return invalid(fmt.Sprintf("in needs a list, got %T", a.Value), nil)
		}
		if len(list) == 0 {
			return "1 = 0", nil
		}
		marks := make([]string, len(list))
		for i, v := range list {
			param, err := store.WriteValue(lf.typ, v)
			if err != nil {
				return invalid("bad list element", err)
			}
			marks[i] = c.binder.bind(param)
		}
		return fmt.Sprintf("%s IN (%s)", column, strings.Join(marks, ", ")), nil

	case queryir.OpBetween:
		list, ok := ir.AsList(a.Value)
		if !ok || len(list) != 2 {
			return invalid("between needs a [low, high] pair", nil)
		}
		lo, err := store.WriteValue(lf.typ, list[0])
		if err != nil {
			return invalid("bad lower bound", err)
		}
		hi, err := store.WriteValue(lf.typ, list[1])
		if err != nil {
			return invalid("bad upper bound", err)
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", column, c.binder.bind(lo), c.binder.bind(hi)), nil
	}

	param, err := store.WriteValue(lf.typ, a.Value)
	if err != nil {
		return invalid("operand does not fit column", err)
	}
	mark := c.binder.bind(param)

	if lowerer, ok := c.dialect.(store.MatchLowerer); ok {
		if sql, ok := lowerer.LowerMatch(column, string(a.Op), mark); ok {
			return sql, nil
		}
	}

	switch a.Op {
	case queryir.OpEq, queryir.OpLt, queryir.OpLe, queryir.OpGt, queryir.OpGe:
		return fmt.Sprintf("%s %s %s", column, a.Op, mark), nil
	case queryir.OpNe:
		return fmt.Sprintf("%s <> %s", column, mark), nil
	case queryir.OpLike:
		return fmt.Sprintf("%s LIKE %s", column, mark), nil
	default:
		return invalid(fmt.Sprintf("unknown operator %q", a.Op), nil)
	}
}
