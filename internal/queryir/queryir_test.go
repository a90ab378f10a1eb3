package queryir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func decodeJSON(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestParsePath(t *testing.T) {
	p, err := ParsePath("teams.members.name")
	require.NoError(t, err)
	assert.Equal(t, Path{"teams", "members", "name"}, p)
	assert.Equal(t, "teams.members.name", p.String())

	head, rest := p.Head()
	assert.Equal(t, "teams", head)
	assert.Equal(t, Path{"members", "name"}, rest)

	for _, bad := range []string{"", "a..b", ".a", "a."} {
		_, err := ParsePath(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseMatchAtom(t *testing.T) {
	expr, err := ParseMatch(decodeJSON(t, `{"key": "teams.name", "value": ["like", "t%"]}`))
	require.NoError(t, err)

	atom, ok := expr.(*Atom)
	require.True(t, ok)
	assert.Equal(t, Path{"teams", "name"}, atom.Key)
	assert.Equal(t, OpLike, atom.Op)
	assert.Equal(t, "t%", atom.Value)
}

func TestParseMatchTree(t *testing.T) {
	expr, err := ParseMatch(decodeJSON(t, `{"or": [
		{"key": "name", "value": ["=", "a1"]},
		{"and": [
			{"key": "age", "value": [">", 10]},
			{"not": {"key": "email", "value": ["=", null]}}
		]}
	]}`))
	require.NoError(t, err)

	or, ok := expr.(*Or)
	require.True(t, ok)
	require.Len(t, or.Terms, 2)
	and, ok := or.Terms[1].(*And)
	require.True(t, ok)
	not, ok := and.Terms[1].(*Not)
	require.True(t, ok)
	assert.Nil(t, not.Term.(*Atom).Value)
}

func TestParseMatchShorthand(t *testing.T) {
	var v any
	require.NoError(t, yaml.Unmarshal([]byte("name: a1\nage: 11\n"), &v))

	expr, err := ParseMatch(v)
	require.NoError(t, err)

	and, ok := expr.(*And)
	require.True(t, ok)
	require.Len(t, and.Terms, 2)
	assert.Equal(t, Path{"age"}, and.Terms[0].(*Atom).Key, "keys are sorted")
	assert.Equal(t, 11, and.Terms[0].(*Atom).Value)

	single, err := ParseMatch(map[string]any{"id": 3})
	require.NoError(t, err)
	assert.Equal(t, &Atom{Key: Path{"id"}, Op: OpEq, Value: 3}, single)
}

func TestParseMatchErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not an object", `[1, 2]`},
		{"bad operator", `{"key": "a", "value": ["~", 1]}`},
		{"value not a pair", `{"key": "a", "value": 1}`},
		{"and not a list", `{"and": {"key": "a", "value": ["=", 1]}}`},
		{"bad nested", `{"and": [{"key": "", "value": ["=", 1]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMatch(decodeJSON(t, tt.in))
			assert.Error(t, err)
		})
	}
}

func TestCombinators(t *testing.T) {
	assert.Nil(t, AllOf())
	assert.Nil(t, AllOf(nil, nil))

	a := Eq("name", "a1")
	assert.Same(t, a, AllOf(nil, a))

	both := AllOf(a, ID(1))
	and, ok := both.(*And)
	require.True(t, ok)
	assert.Len(t, and.Terms, 2)

	_, ok = AnyOf(a, ID(2)).(*Or)
	assert.True(t, ok)
	_, ok = Negate(a).(*Not)
	assert.True(t, ok)
}

func TestParseAttributes(t *testing.T) {
	q, err := ParseAttributes(decodeJSON(t, `["name", ["teams", {"attributeQuery": ["name", "&"], "match": {"key": "name", "value": ["=", "t1"]}}]]`))
	require.NoError(t, err)

	require.Len(t, q, 2)
	assert.Equal(t, "name", q[0].Name)
	assert.Nil(t, q[0].Sub)
	assert.Equal(t, "teams", q[1].Name)
	require.NotNil(t, q[1].Sub)
	assert.Equal(t, Attrs("name", RelationAttrs), q[1].Sub.Attributes)
	assert.NotNil(t, q[1].Sub.Match)

	assert.True(t, q.Has("teams"))
	assert.False(t, q.Has("age"))
}

func TestParseAttributesErrors(t *testing.T) {
	for _, in := range []string{`{"a": 1}`, `[1]`, `[["teams"]]`, `[["teams", 1]]`, `[[1, {}]]`} {
		_, err := ParseAttributes(decodeJSON(t, in))
		assert.Error(t, err, in)
	}
}

func TestAttributeBuilders(t *testing.T) {
	q := Attrs("name").With("teams", Attrs("name"))
	assert.Equal(t, AttributeQuery{
		{Name: "name"},
		{Name: "teams", Sub: &SubQuery{Attributes: AttributeQuery{{Name: "name"}}}},
	}, q)
}

func TestParseOrderBy(t *testing.T) {
	o, err := ParseOrderBy(decodeJSON(t, `["name", "-age", {"key": "address.city", "direction": "DESC"}]`))
	require.NoError(t, err)
	assert.Equal(t, OrderBy{Asc("name"), Desc("age"), Desc("address.city")}, o)

	single, err := ParseOrderBy("name")
	require.NoError(t, err)
	assert.Equal(t, OrderBy{Asc("name")}, single)

	_, err = ParseOrderBy(decodeJSON(t, `[{"key": "a", "direction": "up"}]`))
	assert.Error(t, err)
}
