package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/relgraph/internal/compiler"
)

// Schema error codes (E200-E299)
const (
	ErrInvalidDeclaration = "E200" // declarations failed validation
	ErrUnknownEntity      = "E201" // entity or relation name not in the model
	ErrUnknownField       = "E202" // field path does not resolve
	ErrColumnCollision    = "E203" // two fields claim one column of a table
	ErrSymmetricRelation  = "E204" // symmetric relation is not n:n
	ErrDependencyCycle    = "E205" // property dependencies form a cycle
	ErrScopeConflict      = "E206" // unique scope shared by different shapes
	ErrUnknownFieldType   = "E207" // property type is neither scalar nor registered
)

// SchemaError is a fatal model compilation or lookup error.
type SchemaError struct {
	Code    string
	Node    string
	Field   string
	Message string

	// Problems holds every validation error when Code is ErrInvalidDeclaration.
	Problems []compiler.ValidationError
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", e.Code)
	switch {
	case e.Node != "" && e.Field != "":
		fmt.Fprintf(&b, "%s.%s: ", e.Node, e.Field)
	case e.Node != "":
		fmt.Fprintf(&b, "%s: ", e.Node)
	}
	b.WriteString(e.Message)
	return b.String()
}

// IsSchemaError returns true if err is or wraps a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsUnknownField returns true if err reports an unresolvable field path.
func IsUnknownField(err error) bool {
	var se *SchemaError
	if errors.As(err, &se) {
		return se.Code == ErrUnknownField
	}
	return false
}

func unknownField(node, field string) *SchemaError {
	return &SchemaError{
		Code:    ErrUnknownField,
		Node:    node,
		Field:   field,
		Message: "unknown field",
	}
}
