package queryir

import (
	"fmt"
	"strings"
)

// Viewport limits a find to a window of rows. Zero Limit means no limit.
type Viewport struct {
	Limit  int
	Offset int
}

// Order sorts by one field.
type Order struct {
	Key  Path
	Desc bool
}

// OrderBy is an ordered list of sort keys.
type OrderBy []Order

// Asc builds an ascending sort key.
func Asc(key string) Order { return Order{Key: MustPath(key)} }

// Desc builds a descending sort key.
func Desc(key string) Order { return Order{Key: MustPath(key), Desc: true} }

// ParseOrderBy decodes orderings written as "name", "-age", or
// {"key": "age", "direction": "desc"}, alone or in a list.
func ParseOrderBy(v any) (OrderBy, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := asList(v)
	if !ok {
		list = []any{v}
	}

	out := make(OrderBy, 0, len(list))
	for i, item := range list {
		o, err := parseOrder(item)
		if err != nil {
			return nil, fmt.Errorf("orderBy[%d]: %w", i, err)
		}
		out = append(out, o)
	}
	return out, nil
}

func parseOrder(v any) (Order, error) {
	if s, ok := v.(string); ok {
		desc := strings.HasPrefix(s, "-")
		p, err := ParsePath(strings.TrimPrefix(s, "-"))
		return Order{Key: p, Desc: desc}, err
	}
	obj, ok := asObject(v)
	if !ok {
		return Order{}, &ParseError{Where: "orderBy", Message: fmt.Sprintf("unexpected %T", v)}
	}
	key, _ := obj["key"].(string)
	p, err := ParsePath(key)
	if err != nil {
		return Order{}, err
	}
	dir, _ := obj["direction"].(string)
	switch strings.ToLower(dir) {
	case "", "asc":
		return Order{Key: p}, nil
	case "desc":
		return Order{Key: p, Desc: true}, nil
	default:
		return Order{}, &ParseError{Where: key, Message: fmt.Sprintf("unknown direction %q", dir)}
	}
}
