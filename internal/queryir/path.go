package queryir

import (
	"fmt"
	"strings"
)

// Path is a field path split into segments. Segments are resolved against
// the schema model by the planner; this package only checks their syntax.
type Path []string

// ParsePath splits a dotted key into a Path. Empty segments are rejected.
func ParsePath(key string) (Path, error) {
	if key == "" {
		return nil, &ParseError{Where: "key", Message: "empty field path"}
	}
	segs := strings.Split(key, ".")
	for _, s := range segs {
		if s == "" {
			return nil, &ParseError{Where: key, Message: "empty segment in field path"}
		}
	}
	return Path(segs), nil
}

// MustPath is ParsePath for literals in code and tests.
func MustPath(key string) Path {
	p, err := ParsePath(key)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the dotted form.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Head returns the first segment and the remainder.
func (p Path) Head() (string, Path) {
	if len(p) == 0 {
		return "", nil
	}
	return p[0], p[1:]
}

// ParseError reports a malformed match expression, attribute query or
// ordering.
type ParseError struct {
	Where   string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Where, e.Message)
}
