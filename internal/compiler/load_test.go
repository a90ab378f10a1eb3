package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relgraph/internal/ir"
)

const yamlSchema = `
entities:
  - name: User
    properties:
      - name: name
        type: string
      - name: age
        type: integer
  - name: Team
    properties:
      - name: name
        type: string
relations:
  - source: User
    source_property: teams
    target: Team
    target_property: members
    type: "n:n"
`

func TestParseYAML(t *testing.T) {
	schema, err := ParseYAML([]byte(yamlSchema))
	require.NoError(t, err)

	require.Len(t, schema.Entities, 2)
	require.Len(t, schema.Relations, 1)
	assert.Equal(t, "User_teams_members_Team", schema.Relations[0].Name)
	assert.Equal(t, ir.ManyToMany, schema.Relations[0].Type)
}

func TestParseYAMLRejectsUnknownKeys(t *testing.T) {
	_, err := ParseYAML([]byte("entities:\n  - name: User\n    colour: red\n"))
	require.Error(t, err)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeLoadFailed, loadErr.Code)
}

func TestLoadSchemaYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlSchema), 0o644))

	schema, err := LoadSchema(path)
	require.NoError(t, err)
	assert.Len(t, schema.Entities, 2)
}

func TestLoadSchemaCUEDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.cue"), []byte(`package schema

entity: User: properties: name: "string"
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "team.cue"), []byte(`package schema

entity: Team: properties: name: "string"

relation: teams: {
	source:         "User"
	sourceProperty: "teams"
	target:         "Team"
	targetProperty: "members"
	type:           "n:n"
}
`), 0o644))

	schema, err := LoadSchema(dir)
	require.NoError(t, err)
	assert.Len(t, schema.Entities, 2)
	assert.Len(t, schema.Relations, 1)
}

func TestLoadSchemaErrors(t *testing.T) {
	_, err := LoadSchema(filepath.Join(t.TempDir(), "missing"))
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)

	_, err = LoadSchema(t.TempDir())
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeNoFiles, loadErr.Code)

	txt := filepath.Join(t.TempDir(), "schema.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))
	_, err = LoadSchema(txt)
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeLoadFailed, loadErr.Code)
}
