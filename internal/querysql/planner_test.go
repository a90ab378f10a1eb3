package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relgraph/internal/ir"
	"github.com/roach88/relgraph/internal/queryir"
	"github.com/roach88/relgraph/internal/schema"
	"github.com/roach88/relgraph/internal/store"
	"github.com/roach88/relgraph/internal/testutil"
)

func newPlanner(t *testing.T) *Planner {
	t.Helper()
	return NewPlanner(testutil.Model(t), store.SQLite{})
}

func field(t *testing.T, p *Planner, entity string, path ...string) *schema.Field {
	t.Helper()
	n, err := p.Model().Lookup(entity)
	require.NoError(t, err)
	f, err := n.Field(path...)
	require.NoError(t, err)
	return f
}

func TestSelect_Plain(t *testing.T) {
	p := newPlanner(t)
	stmt, err := p.Select(Query{
		Entity:     "User",
		Attributes: queryir.Attrs("name", "age"),
		Match:      queryir.Eq("name", "a1"),
	})
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT "User"."id", "User"."name", "User"."age" FROM "User" AS "User" WHERE "User"."name" = ? ORDER BY "User"."id" ASC`,
		stmt.SQL)
	assert.Equal(t, []any{"a1"}, stmt.Params)
	assert.NotContains(t, stmt.SQL, "a1", "values must be parameterized")
}

func TestSelect_ViewportAndOrder(t *testing.T) {
	p := newPlanner(t)
	stmt, err := p.Select(Query{
		Entity:     "User",
		Attributes: queryir.Attrs("name"),
		OrderBy:    queryir.OrderBy{queryir.Desc("age")},
		Viewport:   queryir.Viewport{Limit: 10, Offset: 20},
	})
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT "User"."id", "User"."name", "User"."age" FROM "User" AS "User" ORDER BY "User"."age" DESC, "User"."id" ASC LIMIT 10 OFFSET 20`,
		stmt.SQL)
	last := stmt.Projection.Columns[len(stmt.Projection.Columns)-1]
	assert.True(t, last.Hidden, "order columns are not decoded")
}

func TestSelect_OrderAcrossToManyFails(t *testing.T) {
	p := newPlanner(t)
	_, err := p.Select(Query{Entity: "User", OrderBy: queryir.OrderBy{queryir.Asc("teams.name")}})
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrUnresolvableAlias, ce.Code)
}

func TestProjection_ToOneLinks(t *testing.T) {
	tests := []struct {
		name   string
		entity string
		attrs  queryir.AttributeQuery
		join   string
	}{
		{
			name:   "target hosts the key",
			entity: "User",
			attrs:  queryir.Attrs("name").With("profile", queryir.Attrs("title")),
			join:   `LEFT JOIN "Profile" AS "User.profile" ON "User.profile"."profile.source" = "User"."id"`,
		},
		{
			name:   "own table hosts the key",
			entity: "Profile",
			attrs:  queryir.Attrs("title").With("owner", queryir.Attrs("name")),
			join:   `LEFT JOIN "User" AS "Profile.owner" ON "Profile.owner"."id" = "Profile"."profile.source"`,
		},
		{
			name:   "n:1 to self",
			entity: "User",
			attrs:  queryir.Attrs("name").With("leader", queryir.Attrs("name")),
			join:   `LEFT JOIN "User" AS "User.leader" ON "User.leader"."id" = "User"."leader.target"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPlanner(t)
			proj, err := p.CompileProjection(tt.entity, tt.attrs)
			require.NoError(t, err)
			require.Len(t, proj.Joins, 1)
			j := proj.Joins[0]
			assert.Equal(t, tt.join, j.Kind.String()+` "`+j.Table+`" AS "`+j.Alias+`" ON `+j.On)
			assert.Empty(t, proj.Deferred)
		})
	}
}

func TestProjection_AllSelectsPlainFields(t *testing.T) {
	p := newPlanner(t)
	proj, err := p.CompileProjection("User", nil)
	require.NoError(t, err)

	var visible []string
	for _, c := range proj.Columns {
		if !c.Hidden {
			visible = append(visible, c.Alias+"."+c.Name)
		}
	}
	assert.Equal(t, []string{
		"User.id",
		"User.name",
		"User.age",
		"User.email.value",
		"User.address.city",
		"User.address.zip",
	}, visible)

	require.Len(t, proj.Deferred, 1, "tags is fetched per row, bio is lazy")
	d := proj.Deferred[0]
	assert.Equal(t, []string{"tags"}, d.Path)
	assert.Equal(t, 0, d.Parent)
	assert.True(t, d.Link().Wrapped)
}

func TestProjection_ToManyIsDeferred(t *testing.T) {
	p := newPlanner(t)
	proj, err := p.CompileProjection("User",
		queryir.Attrs("name").With("teams", queryir.Attrs("name")).With("profile", queryir.Attrs("title").With("owner", queryir.Attrs("name"))))
	require.NoError(t, err)

	require.Len(t, proj.Deferred, 1)
	assert.Equal(t, []string{"teams"}, proj.Deferred[0].Path)
	for _, j := range proj.Joins {
		assert.NotEqual(t, "teams", j.Table, "to-many links must not be joined")
	}
	assert.Len(t, proj.Joins, 2, "profile and profile.owner")
	assert.Equal(t, "User.profile.owner", proj.Joins[1].Alias)
}

func TestProjection_Errors(t *testing.T) {
	p := newPlanner(t)

	_, err := p.CompileProjection("User", queryir.Attrs("nope"))
	assert.True(t, IsUnknownField(err))

	_, err = p.CompileProjection("Nobody", nil)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrUnknownEntity, ce.Code)

	_, err = p.CompileProjection("User", queryir.Attrs("&"))
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrUnresolvableAlias, ce.Code)
}

func TestMatch_ToManyHopIsInnerAndDistinct(t *testing.T) {
	p := newPlanner(t)
	stmt, err := p.Select(Query{Entity: "User", Attributes: queryir.Attrs("name"), Match: queryir.Eq("teams.name", "t1")})
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT DISTINCT "User"."id", "User"."name" FROM "User" AS "User"`+
			` INNER JOIN "teams" AS "User.teams&" ON "User.teams&"."source" = "User"."id"`+
			` INNER JOIN "Team" AS "User.teams" ON "User.teams"."id" = "User.teams&"."target"`+
			` WHERE "User.teams"."name" = ? ORDER BY "User"."id" ASC`,
		stmt.SQL)
}

func TestMatch_RelationAttributes(t *testing.T) {
	p := newPlanner(t)
	f, err := p.CompileMatch("User", queryir.Eq("teams.&.role", "lead"))
	require.NoError(t, err)
	assert.Equal(t, `"User.teams&"."role" = ?`, f.Where)
	assert.True(t, f.FanOut)
	assert.Len(t, f.Joins, 2)
}

func TestMatch_JoinKinds(t *testing.T) {
	tests := []struct {
		name string
		expr queryir.Expression
		kind JoinKind
	}{
		{"and", queryir.AllOf(queryir.Eq("profile.title", "x"), queryir.Eq("name", "a")), JoinInner},
		{"or", queryir.AnyOf(queryir.Eq("profile.title", "x"), queryir.Eq("name", "a")), JoinLeft},
		{"not", queryir.Negate(queryir.Eq("profile.title", "x")), JoinLeft},
		{"null check", queryir.Eq("profile.title", nil), JoinLeft},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := newPlanner(t).CompileMatch("User", tt.expr)
			require.NoError(t, err)
			require.Len(t, f.Joins, 1)
			assert.Equal(t, tt.kind, f.Joins[0].Kind)
			assert.False(t, f.FanOut)
		})
	}
}

func TestSelect_JoinDedupInnerWins(t *testing.T) {
	p := newPlanner(t)
	stmt, err := p.Select(Query{
		Entity:     "User",
		Attributes: queryir.Attrs("name").With("profile", queryir.Attrs("title")),
		Match:      queryir.Eq("profile.title", "x"),
	})
	require.NoError(t, err)

	require.Len(t, stmt.Projection.Joins, 1)
	assert.Equal(t, JoinInner, stmt.Projection.Joins[0].Kind)
	assert.NotContains(t, stmt.SQL, "LEFT JOIN")
}

func TestMatch_Operators(t *testing.T) {
	tests := []struct {
		name   string
		expr   queryir.Expression
		where  string
		params []any
	}{
		{"ne", queryir.Where("name", queryir.OpNe, "a"), `"User"."name" <> ?`, []any{"a"}},
		{"lt", queryir.Where("age", queryir.OpLt, 3), `"User"."age" < ?`, []any{int64(3)}},
		{"like", queryir.Where("name", queryir.OpLike, "a%"), `"User"."name" LIKE ?`, []any{"a%"}},
		{"in", queryir.Where("age", queryir.OpIn, []any{1, 2}), `"User"."age" IN (?, ?)`, []any{int64(1), int64(2)}},
		{"empty in", queryir.Where("age", queryir.OpIn, []any{}), `1 = 0`, nil},
		{"between", queryir.Where("age", queryir.OpBetween, []any{1, 9}), `"User"."age" BETWEEN ? AND ?`, []any{int64(1), int64(9)}},
		{"is null", queryir.Eq("name", nil), `"User"."name" IS NULL`, nil},
		{"is not null", queryir.Where("name", queryir.OpNe, nil), `"User"."name" IS NOT NULL`, nil},
		{"id", queryir.ID(7), `"User"."id" = ?`, []any{int64(7)}},
		{"or", queryir.AnyOf(queryir.Eq("name", "a"), queryir.Eq("name", "b")), `("User"."name" = ? OR "User"."name" = ?)`, []any{"a", "b"}},
		{"not", queryir.Negate(queryir.Eq("name", "a")), `NOT ("User"."name" = ?)`, []any{"a"}},
		{"composite object", queryir.Eq("address", map[string]any{"city": "c"}), `"User"."address.city" = ?`, []any{"c"}},
		{"nested key", queryir.Eq("address.zip", "z"), `"User"."address.zip" = ?`, []any{"z"}},
		{"composite null", queryir.Eq("address", nil), `("User"."address.city" IS NULL AND "User"."address.zip" IS NULL)`, nil},
		{"composite not null", queryir.Where("address", queryir.OpNe, nil), `NOT (("User"."address.city" IS NULL AND "User"."address.zip" IS NULL))`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := newPlanner(t).CompileMatch("User", tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.where, f.Where)
			assert.Equal(t, tt.params, f.Params)
		})
	}
}

func TestMatch_WrappedPromotedValue(t *testing.T) {
	p := newPlanner(t)
	f, err := p.CompileMatch("User", queryir.Eq("tags", "go"))
	require.NoError(t, err)
	assert.Equal(t, `"User.tags"."value" = ?`, f.Where)
	assert.True(t, f.FanOut)
	require.Len(t, f.Joins, 1)
	assert.Equal(t, `"User.tags"."User_tags_link.source" = "User"."id"`, f.Joins[0].On)
}

func TestMatch_LinkByObject(t *testing.T) {
	p := newPlanner(t)
	f, err := p.CompileMatch("User", queryir.Eq("profile", ir.Record{"id": 3}))
	require.NoError(t, err)
	assert.Equal(t, `"User.profile"."id" = ?`, f.Where)
	assert.Equal(t, []any{int64(3)}, f.Params)

	f, err = p.CompileMatch("User", queryir.Eq("profile", 3))
	require.NoError(t, err)
	assert.Equal(t, `"User.profile"."id" = ?`, f.Where)
}

func TestMatch_PrepareHook(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		where  string
		params []any
	}{
		{"prepared", "12.5 EUR", `("Item"."price.amount" = ? AND "Item"."price.currency" = ?)`, []any{12.5, "EUR"}},
		{"missing sub-field dropped", "EUR", `"Item"."price.currency" = ?`, []any{"EUR"}},
		{"object without prepare", map[string]any{"amount": 3}, `"Item"."price.amount" = ?`, []any{3}},
		{"empty object", map[string]any{}, `1 = 1`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := newPlanner(t).CompileMatch("Item", queryir.Eq("price", tt.value))
			require.NoError(t, err)
			assert.Equal(t, tt.where, f.Where)
			assert.Equal(t, tt.params, f.Params)
		})
	}
}

func TestMatch_CompositeNeedsObject(t *testing.T) {
	p := newPlanner(t)
	var ce *CompileError

	_, err := p.CompileMatch("Item", queryir.Eq("price", 5))
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCompositeValue, ce.Code)

	_, err = p.CompileMatch("User", queryir.Eq("address", "x"))
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCompositeValue, ce.Code)

	_, err = p.CompileMatch("Item", queryir.Eq("price", "ten EUR"))
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrPrepareFailed, ce.Code)
}

func TestMatch_Errors(t *testing.T) {
	tests := []struct {
		name string
		expr queryir.Expression
		code string
	}{
		{"unknown field", queryir.Eq("nope", 1), ErrUnknownField},
		{"unknown nested", queryir.Eq("teams.nope", 1), ErrUnknownField},
		{"below a column", queryir.Eq("name.x", 1), ErrUnknownField},
		{"relation attrs without link", queryir.Eq("&.role", 1), ErrUnresolvableAlias},
		{"between needs pair", queryir.Where("age", queryir.OpBetween, []any{1}), ErrInvalidOperand},
		{"in needs list", queryir.Where("age", queryir.OpIn, 1), ErrInvalidOperand},
		{"bad integer", queryir.Eq("age", "old"), ErrInvalidOperand},
		{"nil comparison", queryir.Where("age", queryir.OpLt, nil), ErrInvalidOperand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newPlanner(t).CompileMatch("User", tt.expr)
			require.Error(t, err)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.code, ce.Code)
			assert.True(t, IsQueryError(err))
		})
	}
}

func TestSelect_SymmetricFetch(t *testing.T) {
	p := newPlanner(t)
	stmt, err := p.Select(Query{
		Entity:     "User",
		Attributes: queryir.Attrs("name"),
		Via:        &Via{Field: field(t, p, "User", "friends"), ParentID: 1},
	})
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT "User"."id", "User"."name" FROM "User" AS "User"`+
			` INNER JOIN "friends" AS "User&" ON ("User&"."source" = "User"."id" OR "User&"."target" = "User"."id")`+
			` WHERE (("User&"."source" = ? AND "User&"."target" = "User"."id") OR ("User&"."target" = ? AND "User&"."source" = "User"."id"))`+
			` ORDER BY "User"."id" ASC`,
		stmt.SQL)
	assert.Equal(t, []any{int64(1), int64(1)}, stmt.Params)
}

func TestSelect_FetchWithRelationAttributes(t *testing.T) {
	p := newPlanner(t)
	stmt, err := p.Select(Query{
		Entity:     "Team",
		Attributes: queryir.Attrs("name").With("&", queryir.Attrs("role")),
		Via:        &Via{Field: field(t, p, "User", "teams"), ParentID: 4},
	})
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT "Team"."id", "Team"."name", "Team&"."id", "Team&"."role" FROM "Team" AS "Team"`+
			` INNER JOIN "teams" AS "Team&" ON "Team&"."target" = "Team"."id"`+
			` WHERE "Team&"."source" = ? ORDER BY "Team"."id" ASC`,
		stmt.SQL)

	rec, err := stmt.Projection.Decode([]any{int64(2), "t1", int64(9), "lead"})
	require.NoError(t, err)
	assert.Equal(t, ir.Record{"id": int64(2), "name": "t1", "&": ir.Record{"id": int64(9), "role": "lead"}}, rec)
}

func TestSelect_FetchMergedCollection(t *testing.T) {
	p := newPlanner(t)
	stmt, err := p.Select(Query{
		Entity: "User_tags",
		Via:    &Via{Field: field(t, p, "User", "tags"), ParentID: 1},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "User_tags"."id", "User_tags"."value" FROM "User_tags" AS "User_tags" WHERE "User_tags"."User_tags_link.source" = ? ORDER BY "User_tags"."id" ASC`,
		stmt.SQL)
}

func TestSelect_FetchRejectsWrongRoot(t *testing.T) {
	p := newPlanner(t)
	_, err := p.Select(Query{Entity: "User", Via: &Via{Field: field(t, p, "User", "teams"), ParentID: 1}})
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrUnresolvableAlias, ce.Code)
}

func TestSelect_MergedRelationRoot(t *testing.T) {
	p := newPlanner(t)
	stmt, err := p.Select(Query{Entity: "profile", Match: queryir.Eq("source.id", 1)})
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "profile"."id" FROM "Profile" AS "profile" WHERE "profile"."profile.source" IS NOT NULL AND "profile"."profile.source" = ? ORDER BY "profile"."id" ASC`,
		stmt.SQL)

	stmt, err = p.Select(Query{Entity: "teams", Attributes: queryir.Attrs("role").With("target", queryir.Attrs("name"))})
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "teams"."id", "teams"."role", "teams.target"."id", "teams.target"."name" FROM "teams" AS "teams"`+
			` LEFT JOIN "Team" AS "teams.target" ON "teams.target"."id" = "teams"."target" ORDER BY "teams"."id" ASC`,
		stmt.SQL)
}

func TestDecode_NullLinkIsNil(t *testing.T) {
	p := newPlanner(t)
	proj, err := p.CompileProjection("User",
		queryir.Attrs("name").With("profile", queryir.Attrs("title")).With("email", nil))
	require.NoError(t, err)

	rec, err := proj.Decode([]any{int64(1), "a1", nil, nil, nil, nil})
	require.NoError(t, err)
	assert.Equal(t, ir.Record{"id": int64(1), "name": "a1", "profile": nil, "email": nil}, rec)

	rec, err = proj.Decode([]any{int64(1), "a1", int64(5), "boss", int64(2), "a@x"})
	require.NoError(t, err)
	assert.Equal(t, ir.Record{
		"id":      int64(1),
		"name":    "a1",
		"profile": ir.Record{"id": int64(5), "title": "boss"},
		"email":   "a@x",
	}, rec)

	_, err = proj.Decode([]any{int64(1)})
	assert.Error(t, err)
}

func TestPostgresRendering(t *testing.T) {
	p := NewPlanner(testutil.Model(t), store.Postgres{})
	stmt, err := p.Select(Query{
		Entity:     "User",
		Attributes: queryir.Attrs("name"),
		Match:      queryir.AllOf(queryir.Where("name", queryir.OpLike, "a%"), queryir.Where("age", queryir.OpGt, 3)),
		Viewport:   queryir.Viewport{Offset: 5},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "User"."id", "User"."name" FROM "User" AS "User" WHERE ("User"."name" ILIKE $1 AND "User"."age" > $2) ORDER BY "User"."id" ASC LIMIT ALL OFFSET 5`,
		stmt.SQL)
}

func TestWriteStatements(t *testing.T) {
	p := NewPlanner(testutil.Model(t), store.Postgres{})

	ins := p.Insert("User", []Assignment{{"id", int64(1)}, {"name", "a1"}})
	assert.Equal(t, `INSERT INTO "User" ("id", "name") VALUES ($1, $2)`, ins.SQL)
	assert.Equal(t, []any{int64(1), "a1"}, ins.Params)

	upd := p.UpdateByID("User", []Assignment{{"name", "b"}, {"age", nil}}, 1)
	assert.Equal(t, `UPDATE "User" SET "name" = $1, "age" = $2 WHERE "id" = $3`, upd.SQL)
	assert.Equal(t, []any{"b", nil, int64(1)}, upd.Params)

	del := p.DeleteByID("User", 1)
	assert.Equal(t, `DELETE FROM "User" WHERE "id" = $1`, del.SQL)
}
