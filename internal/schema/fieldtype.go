package schema

import (
	"context"
	"errors"
	"sort"

	"github.com/roach88/relgraph/internal/ir"
)

// ErrNoPrepare is returned by Prepare when a field type has no conversion
// from user-level values. Callers then require an object value.
var ErrNoPrepare = errors.New("field type has no prepare hook")

// CompositeFieldType is a named composite property type whose sub-fields and
// behavior are supplied by the application.
type CompositeFieldType interface {
	// Name is the type name used in property declarations.
	Name() string

	// Fields declares the stored sub-fields.
	Fields() []ir.Property

	// Prepare converts a user-level value into the stored sub-field shape.
	// Sub-fields absent from the result are not filtered on.
	Prepare(value any) (map[string]any, error)

	// OnCreate runs after a record holding a value of this type is created.
	OnCreate(ctx context.Context, call HookCall) (any, error)

	// OnUpdate runs after a value of this type changed on an update.
	OnUpdate(ctx context.Context, call HookCall) (any, error)
}

// HookCall describes the value a composite hook is invoked for.
type HookCall struct {
	Node  string
	Path  []string
	ID    int64
	Value any
	Old   any
}

// BaseFieldType implements the optional parts of CompositeFieldType as
// no-ops. Embed it and override what the type needs.
type BaseFieldType struct{}

// Prepare reports ErrNoPrepare.
func (BaseFieldType) Prepare(any) (map[string]any, error) { return nil, ErrNoPrepare }

// OnCreate does nothing.
func (BaseFieldType) OnCreate(context.Context, HookCall) (any, error) { return nil, nil }

// OnUpdate does nothing.
func (BaseFieldType) OnUpdate(context.Context, HookCall) (any, error) { return nil, nil }

// FieldTypes maps a type name to its implementation.
type FieldTypes map[string]CompositeFieldType

// NewFieldTypes registers the given types by name.
func NewFieldTypes(types ...CompositeFieldType) FieldTypes {
	reg := make(FieldTypes, len(types))
	for _, t := range types {
		reg[t.Name()] = t
	}
	return reg
}

// Names returns the registered type names in sorted order.
func (r FieldTypes) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
