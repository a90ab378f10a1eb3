package ir

import (
	"fmt"
	"strings"
)

// Schema is the complete set of declarations a model is compiled from.
type Schema struct {
	Entities  []Entity   `json:"entities" yaml:"entities"`
	Relations []Relation `json:"relations,omitempty" yaml:"relations,omitempty"`
}

// Entity is a named record type.
type Entity struct {
	Name       string     `json:"name" yaml:"name"`
	Properties []Property `json:"properties" yaml:"properties"`
}

// Property describes one field of an entity or relation.
//
// Type is a scalar type name ("string", "number", "integer", "boolean", "json")
// or the name of a registered composite field type. Fields, when present,
// declares an inline composite shape.
type Property struct {
	Name         string     `json:"name" yaml:"name"`
	Type         string     `json:"type" yaml:"type"`
	Fields       []Property `json:"fields,omitempty" yaml:"fields,omitempty"`
	Collection   bool       `json:"collection,omitempty" yaml:"collection,omitempty"`
	Unique       bool       `json:"unique,omitempty" yaml:"unique,omitempty"`
	UniqueScope  string     `json:"unique_scope,omitempty" yaml:"unique_scope,omitempty"`
	Lazy         bool       `json:"lazy,omitempty" yaml:"lazy,omitempty"`
	Dependencies []string   `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Promoted reports whether the property is stored in a synthesized sub-entity.
func (p Property) Promoted() bool {
	return p.Collection || p.Unique || p.Lazy
}

// Scalar type names understood by every dialect.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeJSON    = "json"
	TypeID      = "id"
)

// ScalarTypes lists the built-in scalar type names.
var ScalarTypes = map[string]bool{
	TypeString:  true,
	TypeNumber:  true,
	TypeInteger: true,
	TypeBoolean: true,
	TypeJSON:    true,
}

// Cardinality is a relation type written as <source side>:<target side>.
type Cardinality string

const (
	OneToOne   Cardinality = "1:1"
	OneToMany  Cardinality = "1:n"
	ManyToOne  Cardinality = "n:1"
	ManyToMany Cardinality = "n:n"
)

// ValidCardinalities defines allowed relation types.
var ValidCardinalities = map[Cardinality]bool{
	OneToOne:   true,
	OneToMany:  true,
	ManyToOne:  true,
	ManyToMany: true,
}

// DeriveCardinality maps the modifiers of a promoted property to the type of
// the relation linking the owner to its synthesized sub-entity.
func DeriveCardinality(collection, unique bool) Cardinality {
	switch {
	case collection && unique:
		return ManyToMany
	case collection:
		return OneToMany
	case unique:
		return ManyToOne
	default:
		return OneToOne
	}
}

// ManyFrom reports whether traversing the relation from the given role can
// reach more than one record on the opposite side.
func (c Cardinality) ManyFrom(role Role) bool {
	src, tgt, _ := strings.Cut(string(c), ":")
	if role == RoleSource {
		return tgt == "n"
	}
	return src == "n"
}

// Role names one endpoint of a relation.
type Role string

const (
	RoleSource Role = "source"
	RoleTarget Role = "target"
)

// Opposite returns the other endpoint.
func (r Role) Opposite() Role {
	if r == RoleSource {
		return RoleTarget
	}
	return RoleSource
}

// MergeHint selects where a non n:n relation stores its foreign key.
type MergeHint string

const (
	MergeAuto   MergeHint = ""
	MergeSource MergeHint = "source"
	MergeTarget MergeHint = "target"
	MergeNone   MergeHint = "none"
)

// ValidMergeHints defines allowed merge hints.
var ValidMergeHints = map[MergeHint]bool{
	MergeAuto:   true,
	MergeSource: true,
	MergeTarget: true,
	MergeNone:   true,
}

// Relation connects a source entity field to a target entity field.
//
// Reliance marks the target records as existentially dependent on their
// source: deleting the source deletes the targets.
type Relation struct {
	Name           string      `json:"name" yaml:"name"`
	Source         string      `json:"source" yaml:"source"`
	SourceProperty string      `json:"source_property" yaml:"source_property"`
	Target         string      `json:"target" yaml:"target"`
	TargetProperty string      `json:"target_property,omitempty" yaml:"target_property,omitempty"`
	Type           Cardinality `json:"type" yaml:"type"`
	Properties     []Property  `json:"properties,omitempty" yaml:"properties,omitempty"`
	Reliance       bool        `json:"reliance,omitempty" yaml:"reliance,omitempty"`
	Merge          MergeHint   `json:"merge,omitempty" yaml:"merge,omitempty"`
}

// Symmetric reports whether both endpoints are the same entity field, as in
// a friends relation. Either endpoint of a row can be the querying side.
func (r Relation) Symmetric() bool {
	return r.Source == r.Target && r.SourceProperty != "" && r.SourceProperty == r.TargetProperty
}

// RelationName returns the declared name, or a name derived from both
// endpoints when none was given.
func (r Relation) RelationName() string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("%s_%s_%s_%s", r.Source, r.SourceProperty, r.TargetProperty, r.Target)
}

// Endpoint returns the entity and property at the given role.
func (r Relation) Endpoint(role Role) (entity, property string) {
	if role == RoleSource {
		return r.Source, r.SourceProperty
	}
	return r.Target, r.TargetProperty
}
