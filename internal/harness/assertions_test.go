package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relgraph/internal/ir"
)

func trace(keys ...string) []TraceEvent {
	out := make([]TraceEvent, len(keys))
	for i, k := range keys {
		var typ, name string
		for j := 0; j < len(k); j++ {
			if k[j] == ' ' {
				typ, name = k[:j], k[j+1:]
				break
			}
		}
		out[i] = TraceEvent{Step: 0, Op: typ, Type: ir.EventType(typ), RecordName: name}
	}
	return out
}

func TestAssertEventOrder(t *testing.T) {
	tr := trace("create User", "create Team", "create teams", "create Team", "create teams")

	tests := []struct {
		name   string
		events []string
		ok     bool
	}{
		{"consecutive", []string{"create User", "create Team"}, true},
		{"with gaps", []string{"create User", "create teams", "create teams"}, true},
		{"wrong order", []string{"create teams", "create User"}, false},
		{"missing", []string{"delete User"}, false},
		{"too many", []string{"create teams", "create teams", "create teams"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertEventOrder(tr, Assertion{Type: AssertEventOrder, Events: tt.events})
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ae *AssertionError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, AssertEventOrder, ae.Type)
			assert.Contains(t, ae.Error(), "Full trace:")
		})
	}
}

func TestAssertEventCount(t *testing.T) {
	tr := trace("create User", "create teams", "create teams")
	two, zero := 2, 0

	assert.NoError(t, assertEventCount(tr, Assertion{Event: "create teams", Count: &two}))
	assert.NoError(t, assertEventCount(tr, Assertion{Event: "delete User", Count: &zero}))

	err := assertEventCount(tr, Assertion{Event: "create User", Count: &two})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: 2 occurrences of create User")
	assert.Contains(t, err.Error(), "Actual: 1 occurrences")
}

func TestCheckPaths(t *testing.T) {
	doc := map[string]any{
		"records": []any{
			ir.Record{"id": int64(1), "name": "a1", "teams": []any{ir.Record{"id": int64(1)}, ir.Record{"id": int64(2)}}},
		},
	}

	assert.Empty(t, checkPaths(doc, map[string]any{
		"$.records[0].name":       "a1",
		"$.records[0].id":         1,
		"$.records[0].teams[*].id": []any{1, 2},
	}))

	failures := checkPaths(doc, map[string]any{
		"$.records[0].name": "b1",
		"$.records[1].name": "a1",
		"$.records[":        "x",
	})
	require.Len(t, failures, 3)
	assert.Contains(t, failures[0], "path $.records[")
	assert.Contains(t, failures[1], "expected b1, got a1")
	assert.Contains(t, failures[2], "no match")
}
