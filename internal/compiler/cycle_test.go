package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relgraph/internal/ir"
)

func props(deps map[string][]string, order ...string) []ir.Property {
	out := make([]ir.Property, len(order))
	for i, name := range order {
		out[i] = ir.Property{Name: name, Type: ir.TypeString, Dependencies: deps[name]}
	}
	return out
}

func TestDependencyCyclesNone(t *testing.T) {
	p := props(map[string][]string{"b": {"a"}, "c": {"b"}}, "a", "b", "c")
	assert.Empty(t, DependencyCycles(p))
}

func TestDependencyCyclesSelfLoop(t *testing.T) {
	p := props(map[string][]string{"a": {"a"}}, "a")
	assert.Equal(t, [][]string{{"a", "a"}}, DependencyCycles(p))
}

func TestDependencyCyclesTwoNodes(t *testing.T) {
	p := props(map[string][]string{"a": {"b"}, "b": {"a"}}, "a", "b", "c")
	cycles := DependencyCycles(p)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "b", "a"}, cycles[0])
}

func TestDependencyOrder(t *testing.T) {
	tests := []struct {
		name  string
		deps  map[string][]string
		order []string
		want  []string
	}{
		{"declaration order kept", nil, []string{"a", "b", "c"}, []string{"a", "b", "c"}},
		{"dependency first", map[string][]string{"a": {"c"}}, []string{"a", "b", "c"}, []string{"c", "a", "b"}},
		{"chain", map[string][]string{"a": {"b"}, "b": {"c"}}, []string{"a", "b", "c"}, []string{"c", "b", "a"}},
		{"unknown ignored", map[string][]string{"a": {"zzz"}}, []string{"a"}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DependencyOrder(props(tt.deps, tt.order...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDependencyOrderCycle(t *testing.T) {
	_, err := DependencyOrder(props(map[string][]string{"a": {"b"}, "b": {"a"}}, "a", "b"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a -> b -> a")
}
