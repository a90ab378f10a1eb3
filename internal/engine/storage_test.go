package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relgraph/internal/ir"
	"github.com/roach88/relgraph/internal/queryir"
	"github.com/roach88/relgraph/internal/querysql"
	"github.com/roach88/relgraph/internal/store"
	"github.com/roach88/relgraph/internal/testutil"
)

// newStorage returns a Storage over a fresh SQLite database with the sample
// schema created. The recorder is reset after setup.
func newStorage(t *testing.T, opts ...Option) (*Storage, *testutil.Recorder) {
	t.Helper()
	rec := testutil.NewRecorder(testutil.OpenStore(t))
	base := []Option{
		WithLogger(testutil.DiscardLogger()),
		WithTokenGenerator(testutil.NewFixedTokenGenerator("")),
	}
	s := New(testutil.Model(t), rec, append(base, opts...)...)
	require.NoError(t, s.Setup(context.Background()))
	rec.Reset()
	return s, rec
}

// eventKinds renders events as "type recordName".
func eventKinds(events []ir.MutationEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = string(ev.Type) + " " + ev.RecordName
	}
	return out
}

// assertEndpoints checks that every relation event carries source and target
// ids.
func assertEndpoints(t *testing.T, s *Storage, events []ir.MutationEvent) {
	t.Helper()
	for _, ev := range events {
		n, err := s.Model().Lookup(ev.RecordName)
		require.NoError(t, err)
		if !n.IsRelation() {
			continue
		}
		for _, role := range []string{"source", "target"} {
			raw, ok := ev.Record.Lookup(role, "id")
			require.True(t, ok, "%s %s event lacks %s.id: %v", ev.Type, ev.RecordName, role, ev.Record)
			_, ok = ir.ToID(raw)
			assert.True(t, ok, "%s %s event %s.id is not an id: %v", ev.Type, ev.RecordName, role, raw)
		}
	}
}

func mustCreate(t *testing.T, s *Storage, entity string, payload ir.Record) ir.Record {
	t.Helper()
	rec, events, err := s.Create(context.Background(), entity, payload)
	require.NoError(t, err)
	assertEndpoints(t, s, events)
	return rec
}

func idOf(t *testing.T, rec ir.Record) int64 {
	t.Helper()
	id, ok := rec.ID()
	require.True(t, ok, "record has no id: %v", rec)
	return id
}

func TestStorage_Setup(t *testing.T) {
	db := testutil.OpenStore(t)
	rec := testutil.NewRecorder(db)
	s := New(testutil.Model(t), rec, WithLogger(testutil.DiscardLogger()))

	require.NoError(t, s.Setup(context.Background()))
	kinds := rec.Kinds()
	require.NotEmpty(t, kinds)
	for _, k := range kinds {
		assert.Equal(t, "scheme", k[:len("scheme")])
	}

	// Setup is idempotent.
	require.NoError(t, s.Setup(context.Background()))
}

func TestStorage_FindRoundTrip(t *testing.T) {
	s, _ := newStorage(t)
	ctx := context.Background()

	created := mustCreate(t, s, "User", ir.Record{
		"name":    "a1",
		"age":     11,
		"address": ir.Record{"city": "Oslo", "zip": "0150"},
		"tags":    []any{"x", "y"},
		"email":   "a1@example.com",
	})
	id := idOf(t, created)

	got, err := s.FindOne(ctx, "User", queryir.ID(id), nil)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, id, got["id"])
	assert.Equal(t, "a1", got["name"])
	assert.Equal(t, int64(11), got["age"])
	assert.Equal(t, ir.Record{"city": "Oslo", "zip": "0150"}, got["address"])
	assert.Equal(t, []any{"x", "y"}, got["tags"])
	assert.Equal(t, "a1@example.com", got["email"])
	assert.NotContains(t, got, "bio", "lazy fields are not part of *")
}

func TestStorage_FindNestedAttributes(t *testing.T) {
	s, _ := newStorage(t)
	ctx := context.Background()

	boss := mustCreate(t, s, "User", ir.Record{"name": "boss"})
	mustCreate(t, s, "User", ir.Record{
		"name":   "a1",
		"leader": ir.Record{"id": idOf(t, boss)},
		"teams": []any{
			ir.Record{"name": "t1", "&": ir.Record{"role": "lead"}},
			ir.Record{"name": "t2"},
		},
	})

	recs, err := s.Find(ctx, "User", queryir.Eq("name", "a1"), queryir.Viewport{},
		queryir.Attrs("name").
			With("leader", queryir.Attrs("name")).
			With("teams", queryir.Attrs("name").With("&", queryir.Attrs("role"))),
		nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	got := recs[0]
	assert.Equal(t, "boss", got["leader"].(ir.Record)["name"])
	teams := got["teams"].([]any)
	require.Len(t, teams, 2)
	assert.Equal(t, "t1", teams[0].(ir.Record)["name"])
	assert.Equal(t, "lead", teams[0].(ir.Record)["&"].(ir.Record)["role"])
	assert.Nil(t, teams[1].(ir.Record)["&"].(ir.Record)["role"])
}

func TestStorage_FindByLinkedField(t *testing.T) {
	s, _ := newStorage(t)
	ctx := context.Background()

	mustCreate(t, s, "User", ir.Record{"name": "a1", "teams": []any{ir.Record{"name": "red"}, ir.Record{"name": "blue"}}})
	mustCreate(t, s, "User", ir.Record{"name": "a2", "teams": []any{ir.Record{"name": "red"}}})
	mustCreate(t, s, "User", ir.Record{"name": "a3"})

	tests := []struct {
		name  string
		match queryir.Expression
		want  []string
	}{
		{"to-many link", queryir.Eq("teams.name", "red"), []string{"a1", "a2"}},
		{"to-many link single", queryir.Eq("teams.name", "blue"), []string{"a1"}},
		{"or across link", queryir.AnyOf(queryir.Eq("teams.name", "blue"), queryir.Eq("name", "a3")), []string{"a1", "a3"}},
		{"negated", queryir.Negate(queryir.Eq("name", "a1")), []string{"a2", "a3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := s.Find(ctx, "User", tt.match, queryir.Viewport{}, queryir.Attrs("name"), nil)
			require.NoError(t, err)
			var names []string
			for _, r := range recs {
				names = append(names, r["name"].(string))
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestStorage_FindViewportAndOrder(t *testing.T) {
	s, _ := newStorage(t)
	ctx := context.Background()
	for i, name := range []string{"c", "a", "d", "b"} {
		mustCreate(t, s, "User", ir.Record{"name": name, "age": i})
	}

	recs, err := s.Find(ctx, "User", nil, queryir.Viewport{Limit: 2, Offset: 1}, queryir.Attrs("name"),
		queryir.OrderBy{queryir.Asc("name")})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "b", recs[0]["name"])
	assert.Equal(t, "c", recs[1]["name"])
}

func TestStorage_FindOneAbsent(t *testing.T) {
	s, _ := newStorage(t)
	got, err := s.FindOne(context.Background(), "User", queryir.ID(42), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStorage_UnknownEntity(t *testing.T) {
	s, _ := newStorage(t)
	ctx := context.Background()

	_, _, err := s.Create(ctx, "Nope", ir.Record{})
	require.Error(t, err)
	assert.True(t, IsMutationError(err))

	_, err = s.Find(ctx, "Nope", nil, queryir.Viewport{}, nil, nil)
	require.Error(t, err)
	assert.True(t, querysql.IsQueryError(err))
}

func TestStorage_WithExecutorTransaction(t *testing.T) {
	db := testutil.OpenStore(t)
	s := New(testutil.Model(t), db, WithLogger(testutil.DiscardLogger()))
	ctx := context.Background()
	require.NoError(t, s.Setup(ctx))

	boom := errors.New("boom")
	err := db.WithTx(ctx, func(ex store.Executor) error {
		_, _, err := s.WithExecutor(ex).Create(ctx, "User", ir.Record{"name": "ghost"})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = db.WithTx(ctx, func(ex store.Executor) error {
		_, _, err := s.WithExecutor(ex).Create(ctx, "User", ir.Record{"name": "kept"})
		return err
	})
	require.NoError(t, err)

	recs, err := s.Find(ctx, "User", nil, queryir.Viewport{}, queryir.Attrs("name"), nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "kept", recs[0]["name"])
}

func TestStorage_HookSink(t *testing.T) {
	var results []HookResult
	s, _ := newStorage(t, WithHookSink(func(r HookResult) { results = append(results, r) }))

	mustCreate(t, s, "Item", ir.Record{"label": "pen", "price": "2.5 EUR"})
	require.Len(t, results, 1)
	assert.Equal(t, ir.EventCreate, results[0].Event)
	assert.Equal(t, "Item", results[0].Call.Node)
	assert.Equal(t, []string{"price"}, results[0].Call.Path)
	assert.Equal(t, "create Item#1.price", results[0].Result)
}
