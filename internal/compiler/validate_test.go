package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/relgraph/internal/ir"
)

func validSchema() *ir.Schema {
	return &ir.Schema{
		Entities: []ir.Entity{
			{Name: "User", Properties: []ir.Property{
				{Name: "name", Type: ir.TypeString},
				{Name: "address", Fields: []ir.Property{{Name: "city", Type: ir.TypeString}}},
			}},
			{Name: "Team", Properties: []ir.Property{{Name: "name", Type: ir.TypeString}}},
		},
		Relations: []ir.Relation{{
			Source: "User", SourceProperty: "teams",
			Target: "Team", TargetProperty: "members",
			Type: ir.ManyToMany,
		}},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValidSchema(t *testing.T) {
	assert.Empty(t, Validate(validSchema()))
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *ir.Schema)
		code   string
	}{
		{"empty entity name", func(s *ir.Schema) { s.Entities[0].Name = "" }, ErrEmptyName},
		{"duplicate entity", func(s *ir.Schema) { s.Entities[1].Name = "User" }, ErrDuplicateName},
		{"dotted name", func(s *ir.Schema) { s.Entities[0].Properties[0].Name = "a.b" }, ErrInvalidName},
		{"reserved id", func(s *ir.Schema) { s.Entities[0].Properties[0].Name = "id" }, ErrInvalidName},
		{"duplicate property", func(s *ir.Schema) {
			s.Entities[1].Properties = append(s.Entities[1].Properties, ir.Property{Name: "name", Type: "string"})
		}, ErrDuplicateName},
		{"unknown type", func(s *ir.Schema) { s.Entities[0].Properties[0].Type = "float" }, ErrInvalidFieldType},
		{"unknown dependency", func(s *ir.Schema) {
			s.Entities[0].Properties[0].Dependencies = []string{"nope"}
		}, ErrUnknownDependency},
		{"unknown endpoint", func(s *ir.Schema) { s.Relations[0].Target = "Group" }, ErrUnknownEntity},
		{"bad cardinality", func(s *ir.Schema) { s.Relations[0].Type = "x:y" }, ErrInvalidCardinality},
		{"merge on n:n", func(s *ir.Schema) { s.Relations[0].Merge = ir.MergeSource }, ErrInvalidMergeHint},
		{"bad merge", func(s *ir.Schema) { s.Relations[0].Merge = "left" }, ErrInvalidMergeHint},
		{"symmetric 1:n", func(s *ir.Schema) {
			s.Relations = append(s.Relations, ir.Relation{
				Source: "User", SourceProperty: "friends", Target: "User", TargetProperty: "friends", Type: ir.OneToMany,
			})
		}, ErrSymmetricType},
		{"endpoint conflict", func(s *ir.Schema) { s.Relations[0].SourceProperty = "name" }, ErrPropertyConflict},
		{"endpoint under scalar", func(s *ir.Schema) { s.Relations[0].SourceProperty = "name.teams" }, ErrPropertyConflict},
		{"missing source property", func(s *ir.Schema) { s.Relations[0].SourceProperty = "" }, ErrMissingEndpoint},
		{"reserved relation property", func(s *ir.Schema) {
			s.Relations[0].Properties = []ir.Property{{Name: "source", Type: "string"}}
		}, ErrReservedRelationKey},
		{"relation named like entity", func(s *ir.Schema) { s.Relations[0].Name = "Team" }, ErrDuplicateName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSchema()
			tt.mutate(s)
			errs := Validate(s)
			assert.Contains(t, codes(errs), tt.code, "%v", errs)
		})
	}
}

func TestValidateNestedEndpoint(t *testing.T) {
	s := validSchema()
	s.Relations[0].SourceProperty = "address.teams"
	assert.Empty(t, Validate(s))
}

func TestValidateRegisteredFieldType(t *testing.T) {
	s := validSchema()
	s.Entities[0].Properties[0].Type = "money"

	assert.Contains(t, codes(Validate(s)), ErrInvalidFieldType)
	assert.Empty(t, Validate(s, "money"))
}

func TestValidateCollectsAllErrors(t *testing.T) {
	s := validSchema()
	s.Entities[0].Properties[0].Type = "float"
	s.Relations[0].Type = "bad"

	errs := Validate(s)
	assert.GreaterOrEqual(t, len(errs), 2)
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "entities[0].name", Message: "entity name is required", Code: ErrEmptyName}
	assert.Equal(t, "[E101] entities[0].name: entity name is required", err.Error())
}
