package compiler

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relgraph/internal/ir"
)

func TestCompileSchemaBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: User: properties: {
			name: "string"
			age: {type: "integer"}
			tags: {type: "string", collection: true}
			address: {fields: {
				city: "string"
				zip: "string"
			}}
		}

		entity: Team: properties: {
			name: "string"
		}

		relation: teams: {
			source: "User"
			sourceProperty: "teams"
			target: "Team"
			targetProperty: "members"
			type: "n:n"
			properties: {role: "string"}
		}
	`)
	require.NoError(t, v.Err())

	schema, err := CompileSchema(v)
	require.NoError(t, err)

	require.Len(t, schema.Entities, 2)
	user := schema.Entities[0]
	assert.Equal(t, "User", user.Name)
	require.Len(t, user.Properties, 4)
	assert.Equal(t, ir.Property{Name: "name", Type: "string"}, user.Properties[0])
	assert.Equal(t, "integer", user.Properties[1].Type)
	assert.True(t, user.Properties[2].Collection)
	require.Len(t, user.Properties[3].Fields, 2)
	assert.Equal(t, "city", user.Properties[3].Fields[0].Name)

	require.Len(t, schema.Relations, 1)
	rel := schema.Relations[0]
	assert.Equal(t, "teams", rel.Name)
	assert.Equal(t, ir.ManyToMany, rel.Type)
	assert.Equal(t, "members", rel.TargetProperty)
	require.Len(t, rel.Properties, 1)
	assert.Equal(t, "role", rel.Properties[0].Name)
}

func TestCompileSchemaModifiers(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: Account: properties: {
			email: {type: "string", uniqueScope: "Email"}
			bio: {type: "string", lazy: true}
			score: {type: "number", dependencies: ["email"]}
		}
	`)
	require.NoError(t, v.Err())

	schema, err := CompileSchema(v)
	require.NoError(t, err)

	props := schema.Entities[0].Properties
	assert.True(t, props[0].Unique, "uniqueScope implies unique")
	assert.Equal(t, "Email", props[0].UniqueScope)
	assert.True(t, props[1].Lazy)
	assert.Equal(t, []string{"email"}, props[2].Dependencies)
}

func TestCompileSchemaRelationOptions(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: User: properties: name: "string"
		entity: Item: properties: name: "string"
		relation: item: {
			source: "User"
			sourceProperty: "item"
			target: "Item"
			targetProperty: "owner"
			type: "1:1"
			reliance: true
			merge: "source"
		}
	`)
	require.NoError(t, v.Err())

	schema, err := CompileSchema(v)
	require.NoError(t, err)

	rel := schema.Relations[0]
	assert.True(t, rel.Reliance)
	assert.Equal(t, ir.MergeSource, rel.Merge)
	assert.Equal(t, ir.OneToOne, rel.Type)
}

func TestCompileSchemaErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		contains string
	}{
		{
			name:     "no entities",
			src:      `relation: {}`,
			contains: "at least one entity",
		},
		{
			name: "missing source",
			src: `
				entity: User: properties: name: "string"
				relation: r: {sourceProperty: "x", target: "User", type: "1:1"}
			`,
			contains: "source is required",
		},
		{
			name: "bad cardinality",
			src: `
				entity: User: properties: name: "string"
				relation: r: {source: "User", sourceProperty: "x", target: "User", type: "many"}
			`,
			contains: "invalid relation type",
		},
		{
			name:     "property without type",
			src:      `entity: User: properties: name: {lazy: true}`,
			contains: "needs a type or fields",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := cuecontext.New()
			v := ctx.CompileString(tt.src)
			require.NoError(t, v.Err())

			_, err := CompileSchema(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestCompileErrorFormatting(t *testing.T) {
	err := &CompileError{Field: "entity", Message: "bad"}
	assert.Equal(t, "entity: bad", err.Error())
}
