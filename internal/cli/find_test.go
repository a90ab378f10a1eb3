package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relgraph/internal/engine"
	"github.com/roach88/relgraph/internal/ir"
	"github.com/roach88/relgraph/internal/store"
	"github.com/roach88/relgraph/internal/testutil"
)

// seededDB runs setup on a fresh SQLite file and creates two users.
func seededDB(t *testing.T) string {
	t.Helper()
	t.Setenv("RELGRAPH_DRIVER", "")
	t.Setenv("RELGRAPH_DSN", "")
	dsn := filepath.Join(t.TempDir(), "app.db")

	out, err := execute(t, "setup", "testdata/schema.yaml", "--dsn", dsn)
	require.NoError(t, err)
	require.Contains(t, out, "✓ Created 4 table(s) with sqlite3")

	model, err := loadModel("testdata/schema.yaml")
	require.NoError(t, err)
	db, err := store.Open(store.Config{DSN: dsn}, store.WithLogger(testutil.DiscardLogger()))
	require.NoError(t, err)
	defer db.Close()

	s := engine.New(model, db, engine.WithLogger(testutil.DiscardLogger()))
	ctx := context.Background()
	_, _, err = s.Create(ctx, "User", ir.Record{"name": "a1", "tags": []any{"x"}, "teams": []any{map[string]any{"name": "t1"}}})
	require.NoError(t, err)
	_, _, err = s.Create(ctx, "User", ir.Record{"name": "a2"})
	require.NoError(t, err)
	return dsn
}

func TestSetup(t *testing.T) {
	t.Setenv("RELGRAPH_DSN", "")
	dsn := filepath.Join(t.TempDir(), "app.db")

	out, err := execute(t, "--format", "json", "setup", "testdata/schema.yaml", "--dsn", dsn)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":{"driver":"sqlite3","tables":["User","Team","User_tags","teams"]}}`, out)

	// Tables already exist.
	_, err = execute(t, "setup", "testdata/schema.yaml", "--dsn", dsn)
	require.NoError(t, err)
}

func TestSetup_Errors(t *testing.T) {
	t.Setenv("RELGRAPH_DSN", "")

	_, err := execute(t, "setup", "testdata/schema.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "dsn is required")

	_, err = execute(t, "setup", "testdata/schema.yaml", "--driver", "oracle", "--dsn", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")

	out, err := execute(t, "setup", "testdata/invalid.yaml", "--dsn", filepath.Join(t.TempDir(), "x.db"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E200")
}

func TestConnOptions_EnvFallback(t *testing.T) {
	t.Setenv("RELGRAPH_DRIVER", "postgres")
	t.Setenv("RELGRAPH_DSN", "host=db dbname=app")

	assert.Equal(t, store.Config{Driver: "postgres", DSN: "host=db dbname=app"}, (&ConnOptions{}).Config())
	assert.Equal(t, store.Config{Driver: "sqlite", DSN: "app.db"}, (&ConnOptions{Driver: "sqlite", DSN: "app.db"}).Config())
}

func TestFind(t *testing.T) {
	dsn := seededDB(t)

	out, err := execute(t, "find", "testdata/schema.yaml", "User", "--dsn", dsn,
		"--match", "{name: a1}", "--attrs", "[name, tags, [teams, {attributeQuery: [name]}]]")
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"name":"a1","tags":["x"],"teams":[{"id":1,"name":"t1"}]}`+"\n", out)

	out, err = execute(t, "find", "testdata/schema.yaml", "User", "--dsn", dsn, "--attrs", "[name]", "--order", "[-name]")
	require.NoError(t, err)
	assert.Equal(t, []string{`{"id":2,"name":"a2"}`, `{"id":1,"name":"a1"}`}, strings.Split(strings.TrimSpace(out), "\n"))

	out, err = execute(t, "find", "testdata/schema.yaml", "User", "--dsn", dsn, "--attrs", "[name]", "--order", "name", "--limit", "1", "--offset", "1")
	require.NoError(t, err)
	assert.Equal(t, `{"id":2,"name":"a2"}`+"\n", out)
}

func TestFind_OneAndRelation(t *testing.T) {
	dsn := seededDB(t)

	out, err := execute(t, "find", "testdata/schema.yaml", "User", "--dsn", dsn, "--one",
		"--match", `{"key": "teams.name", "value": ["=", "t1"]}`, "--attrs", `["name"]`)
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"name":"a1"}`+"\n", out)

	out, err = execute(t, "find", "testdata/schema.yaml", "User", "--dsn", dsn, "--one", "--match", "{name: zz}")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = execute(t, "--format", "json", "find", "testdata/schema.yaml", "teams", "--relation", "--dsn", dsn)
	require.NoError(t, err)
	var resp struct {
		Data FindResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "teams", resp.Data.Entity)
	require.Equal(t, 1, resp.Data.Count)
	assert.Equal(t, map[string]any{"id": float64(1)}, resp.Data.Records[0]["source"])
	assert.Equal(t, map[string]any{"id": float64(1)}, resp.Data.Records[0]["target"])
}

func TestFind_Errors(t *testing.T) {
	dsn := seededDB(t)

	tests := []struct {
		name     string
		args     []string
		exitCode int
		contains string
	}{
		{"malformed match", []string{"--match", "{name: [unclosed"}, ExitCommandError, "--match"},
		{"match not an object", []string{"--match", "[1, 2]"}, ExitCommandError, "--match"},
		{"unknown field", []string{"--match", "{nickname: x}"}, ExitFailure, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"find", "testdata/schema.yaml", "User", "--dsn", dsn}, tt.args...)
			_, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}

	out, err := execute(t, "--format", "json", "find", "testdata/schema.yaml", "Nope", "--dsn", dsn)
	require.Error(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E300", resp.Error.Code)
}
