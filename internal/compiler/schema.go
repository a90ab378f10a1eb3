package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/relgraph/internal/ir"
)

// CompileSchema parses the top-level entity and relation structs of a CUE
// value into declarations.
//
// The CUE value is the package root, e.g.:
//
//	entity: User: properties: {
//		name: "string"
//		tags: {type: "string", collection: true}
//	}
//	relation: teams: {
//		source: "User", sourceProperty: "teams"
//		target: "Team", targetProperty: "members"
//		type: "n:n"
//	}
func CompileSchema(v cue.Value) (*ir.Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := &ir.Schema{}

	entities := v.LookupPath(cue.ParsePath("entity"))
	if entities.Exists() {
		iter, err := entities.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			entity, err := CompileEntity(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			schema.Entities = append(schema.Entities, *entity)
		}
	}

	relations := v.LookupPath(cue.ParsePath("relation"))
	if relations.Exists() {
		iter, err := relations.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			rel, err := CompileRelation(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			schema.Relations = append(schema.Relations, *rel)
		}
	}

	if len(schema.Entities) == 0 {
		return nil, &CompileError{
			Field:   "entity",
			Message: "at least one entity is required",
			Pos:     v.Pos(),
		}
	}

	return schema, nil
}

// CompileEntity parses one entity declaration.
func CompileEntity(name string, v cue.Value) (*ir.Entity, error) {
	props, err := parseProperties(v.LookupPath(cue.ParsePath("properties")), "entity."+name)
	if err != nil {
		return nil, err
	}
	return &ir.Entity{Name: name, Properties: props}, nil
}

// CompileRelation parses one relation declaration. The label becomes the
// relation name.
func CompileRelation(name string, v cue.Value) (*ir.Relation, error) {
	field := "relation." + name
	rel := &ir.Relation{Name: name}

	var err error
	if rel.Source, err = requiredString(v, "source", field); err != nil {
		return nil, err
	}
	if rel.SourceProperty, err = requiredString(v, "sourceProperty", field); err != nil {
		return nil, err
	}
	if rel.Target, err = requiredString(v, "target", field); err != nil {
		return nil, err
	}
	if rel.TargetProperty, err = optionalString(v, "targetProperty"); err != nil {
		return nil, err
	}

	typ, err := requiredString(v, "type", field)
	if err != nil {
		return nil, err
	}
	rel.Type = ir.Cardinality(typ)
	if !ir.ValidCardinalities[rel.Type] {
		return nil, &CompileError{
			Field:   field + ".type",
			Message: fmt.Sprintf("invalid relation type %q, must be one of 1:1, 1:n, n:1, n:n", typ),
			Pos:     v.LookupPath(cue.ParsePath("type")).Pos(),
		}
	}

	merge, err := optionalString(v, "merge")
	if err != nil {
		return nil, err
	}
	rel.Merge = ir.MergeHint(merge)

	if rel.Reliance, err = optionalBool(v, "reliance"); err != nil {
		return nil, err
	}

	rel.Properties, err = parseProperties(v.LookupPath(cue.ParsePath("properties")), field)
	if err != nil {
		return nil, err
	}

	return rel, nil
}

// parseProperties reads a struct of property declarations in source order.
// A property is either a bare type string or a struct with type, fields and
// modifiers.
func parseProperties(v cue.Value, field string) ([]ir.Property, error) {
	if !v.Exists() {
		return nil, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var props []ir.Property
	for iter.Next() {
		prop, err := parseProperty(iter.Label(), iter.Value(), field+"."+iter.Label())
		if err != nil {
			return nil, err
		}
		props = append(props, prop)
	}
	return props, nil
}

func parseProperty(name string, v cue.Value, field string) (ir.Property, error) {
	prop := ir.Property{Name: name}

	// Shorthand: name: "string"
	if typ, err := v.String(); err == nil {
		prop.Type = typ
		return prop, nil
	}

	if v.IncompleteKind() != cue.StructKind {
		return prop, &CompileError{
			Field:   field,
			Message: "property must be a type name or a struct",
			Pos:     v.Pos(),
		}
	}

	var err error
	if prop.Type, err = optionalString(v, "type"); err != nil {
		return prop, err
	}
	if prop.Fields, err = parseProperties(v.LookupPath(cue.ParsePath("fields")), field); err != nil {
		return prop, err
	}
	if prop.Type == "" && len(prop.Fields) == 0 {
		return prop, &CompileError{
			Field:   field + ".type",
			Message: "property needs a type or fields",
			Pos:     v.Pos(),
		}
	}
	if prop.Collection, err = optionalBool(v, "collection"); err != nil {
		return prop, err
	}
	if prop.Unique, err = optionalBool(v, "unique"); err != nil {
		return prop, err
	}
	if prop.UniqueScope, err = optionalString(v, "uniqueScope"); err != nil {
		return prop, err
	}
	if prop.UniqueScope != "" {
		prop.Unique = true
	}
	if prop.Lazy, err = optionalBool(v, "lazy"); err != nil {
		return prop, err
	}

	deps := v.LookupPath(cue.ParsePath("dependencies"))
	if deps.Exists() {
		list, err := deps.List()
		if err != nil {
			return prop, formatCUEError(err)
		}
		for list.Next() {
			dep, err := list.Value().String()
			if err != nil {
				return prop, formatCUEError(err)
			}
			prop.Dependencies = append(prop.Dependencies, dep)
		}
	}

	return prop, nil
}

func requiredString(v cue.Value, name, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return "", &CompileError{
			Field:   field + "." + name,
			Message: name + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, name string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, name string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
