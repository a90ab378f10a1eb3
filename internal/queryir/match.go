package queryir

import (
	"fmt"
	"sort"

	"github.com/roach88/relgraph/internal/ir"
)

// Operator is a comparison operator of an Atom.
type Operator string

const (
	OpEq      Operator = "="
	OpNe      Operator = "!="
	OpLt      Operator = "<"
	OpLe      Operator = "<="
	OpGt      Operator = ">"
	OpGe      Operator = ">="
	OpLike    Operator = "like"
	OpIn      Operator = "in"
	OpBetween Operator = "between"
)

// ValidOperators defines the operators the planner lowers.
var ValidOperators = map[Operator]bool{
	OpEq: true, OpNe: true, OpLt: true, OpLe: true, OpGt: true, OpGe: true,
	OpLike: true, OpIn: true, OpBetween: true,
}

// Expression is a match-expression tree node.
//
// This is a sealed interface - only types in this package implement it.
type Expression interface {
	expressionNode()
}

// Atom compares the field at Key with Value. A nil Value with OpEq or OpNe
// tests for NULL.
type Atom struct {
	Key   Path
	Op    Operator
	Value any
}

func (*Atom) expressionNode() {}

// And holds when every term holds.
type And struct {
	Terms []Expression
}

func (*And) expressionNode() {}

// Or holds when any term holds.
type Or struct {
	Terms []Expression
}

func (*Or) expressionNode() {}

// Not negates its term.
type Not struct {
	Term Expression
}

func (*Not) expressionNode() {}

// Where builds an atom from a dotted key. It panics on a malformed key.
func Where(key string, op Operator, value any) *Atom {
	return &Atom{Key: MustPath(key), Op: op, Value: value}
}

// Eq builds an equality atom.
func Eq(key string, value any) *Atom {
	return Where(key, OpEq, value)
}

// ID matches a record by id.
func ID(id int64) *Atom {
	return Eq("id", id)
}

// AllOf combines expressions with AND, dropping nil terms. A single term is
// returned as is.
func AllOf(exprs ...Expression) Expression {
	return combine(exprs, func(t []Expression) Expression { return &And{Terms: t} })
}

// AnyOf combines expressions with OR, dropping nil terms.
func AnyOf(exprs ...Expression) Expression {
	return combine(exprs, func(t []Expression) Expression { return &Or{Terms: t} })
}

// Negate wraps an expression in NOT.
func Negate(expr Expression) Expression {
	return &Not{Term: expr}
}

func combine(exprs []Expression, wrap func([]Expression) Expression) Expression {
	var terms []Expression
	for _, e := range exprs {
		if e != nil {
			terms = append(terms, e)
		}
	}
	switch len(terms) {
	case 0:
		return nil
	case 1:
		return terms[0]
	default:
		return wrap(terms)
	}
}

// ParseMatch decodes a match expression from generic JSON or YAML values.
// A nil input yields a nil expression.
//
// Accepted forms:
//
//	{"key": "a.b", "value": ["=", 1]}
//	{"and": [...]}, {"or": [...]}, {"not": {...}}
//	{"name": "a1", "age": 11}   (equality shorthand, ANDed in key order)
func ParseMatch(v any) (Expression, error) {
	if v == nil {
		return nil, nil
	}
	obj, ok := asObject(v)
	if !ok {
		return nil, &ParseError{Where: "match", Message: fmt.Sprintf("expected an object, got %T", v)}
	}

	if key, hasKey := obj["key"]; hasKey && len(obj) == 2 {
		if value, hasValue := obj["value"]; hasValue {
			return parseAtom(key, value)
		}
	}

	if len(obj) == 1 {
		for k, val := range obj {
			switch k {
			case "and", "or":
				list, ok := val.([]any)
				if !ok {
					return nil, &ParseError{Where: k, Message: "expected a list of expressions"}
				}
				terms := make([]Expression, 0, len(list))
				for i, item := range list {
					term, err := ParseMatch(item)
					if err != nil {
						return nil, fmt.Errorf("%s[%d]: %w", k, i, err)
					}
					terms = append(terms, term)
				}
				if k == "and" {
					return &And{Terms: terms}, nil
				}
				return &Or{Terms: terms}, nil
			case "not":
				term, err := ParseMatch(val)
				if err != nil {
					return nil, fmt.Errorf("not: %w", err)
				}
				return &Not{Term: term}, nil
			}
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	terms := make([]Expression, 0, len(keys))
	for _, k := range keys {
		p, err := ParsePath(k)
		if err != nil {
			return nil, err
		}
		terms = append(terms, &Atom{Key: p, Op: OpEq, Value: obj[k]})
	}
	return AllOf(terms...), nil
}

func parseAtom(key, value any) (*Atom, error) {
	k, ok := key.(string)
	if !ok {
		return nil, &ParseError{Where: "key", Message: fmt.Sprintf("expected a string, got %T", key)}
	}
	p, err := ParsePath(k)
	if err != nil {
		return nil, err
	}

	pair, ok := value.([]any)
	if !ok || len(pair) != 2 {
		return nil, &ParseError{Where: k, Message: "value must be [operator, operand]"}
	}
	op, ok := pair[0].(string)
	if !ok || !ValidOperators[Operator(op)] {
		return nil, &ParseError{Where: k, Message: fmt.Sprintf("unknown operator %v", pair[0])}
	}
	return &Atom{Key: p, Op: Operator(op), Value: pair[1]}, nil
}

// asObject normalizes the object shapes of encoding/json and yaml.v3.
func asObject(v any) (map[string]any, bool) {
	switch val := v.(type) {
	case map[string]any:
		return val, true
	case ir.Record:
		return val, true
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = item
		}
		return out, true
	default:
		return nil, false
	}
}
