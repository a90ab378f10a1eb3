package queryir

import (
	"fmt"
)

// Attribute names with special meaning in an attribute query.
const (
	// All selects every non-lazy plain field of the node.
	All = "*"
	// RelationAttrs selects the attributes of the relation row a link hop
	// went through.
	RelationAttrs = "&"
)

// AttributeQuery is a projection tree.
type AttributeQuery []Attribute

// Attribute selects one field. Sub is set when the field is a link or
// composite whose own fields are chosen explicitly.
type Attribute struct {
	Name string
	Sub  *SubQuery
}

// SubQuery is the nested query of a link or composite attribute.
type SubQuery struct {
	Attributes AttributeQuery
	// Match filters the linked records of a to-many link.
	Match Expression
}

// Attrs builds an attribute query from names.
func Attrs(names ...string) AttributeQuery {
	q := make(AttributeQuery, len(names))
	for i, n := range names {
		q[i] = Attribute{Name: n}
	}
	return q
}

// With appends a nested attribute.
func (q AttributeQuery) With(name string, sub AttributeQuery) AttributeQuery {
	return append(q, Attribute{Name: name, Sub: &SubQuery{Attributes: sub}})
}

// Has reports whether the query names the attribute at the top level.
func (q AttributeQuery) Has(name string) bool {
	for _, a := range q {
		if a.Name == name {
			return true
		}
	}
	return false
}

// ParseAttributes decodes an attribute query from generic JSON or YAML
// values. Elements are names or [name, {"attributeQuery": [...], "match": ...}]
// pairs. A nil input yields nil.
func ParseAttributes(v any) (AttributeQuery, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok {
		return Attrs(s), nil
	}
	list, ok := asList(v)
	if !ok {
		return nil, &ParseError{Where: "attributeQuery", Message: fmt.Sprintf("expected a list, got %T", v)}
	}

	q := make(AttributeQuery, 0, len(list))
	for i, item := range list {
		switch val := item.(type) {
		case string:
			q = append(q, Attribute{Name: val})
		case []any:
			attr, err := parseNested(val)
			if err != nil {
				return nil, fmt.Errorf("attributeQuery[%d]: %w", i, err)
			}
			q = append(q, attr)
		default:
			return nil, &ParseError{Where: fmt.Sprintf("attributeQuery[%d]", i), Message: fmt.Sprintf("unexpected %T", item)}
		}
	}
	return q, nil
}

func parseNested(pair []any) (Attribute, error) {
	if len(pair) != 2 {
		return Attribute{}, &ParseError{Where: "attribute", Message: "nested attribute must be [name, {attributeQuery: [...]}]"}
	}
	name, ok := pair[0].(string)
	if !ok {
		return Attribute{}, &ParseError{Where: "attribute", Message: fmt.Sprintf("name must be a string, got %T", pair[0])}
	}
	opts, ok := asObject(pair[1])
	if !ok {
		return Attribute{}, &ParseError{Where: name, Message: "nested options must be an object"}
	}

	sub := &SubQuery{}
	var err error
	if sub.Attributes, err = ParseAttributes(opts["attributeQuery"]); err != nil {
		return Attribute{}, fmt.Errorf("%s: %w", name, err)
	}
	if sub.Match, err = ParseMatch(opts["match"]); err != nil {
		return Attribute{}, fmt.Errorf("%s: %w", name, err)
	}
	return Attribute{Name: name, Sub: sub}, nil
}

func asList(v any) ([]any, bool) {
	switch val := v.(type) {
	case []any:
		return val, true
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}
