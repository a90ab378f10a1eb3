package testutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/relgraph/internal/store"
)

// OpenStore opens a fresh SQLite database under t.TempDir(). Statement logs
// are discarded.
func OpenStore(t testing.TB) *store.DB {
	t.Helper()
	db, err := store.Open(
		store.Config{Driver: store.DriverSQLite3, DSN: filepath.Join(t.TempDir(), "test.db")},
		store.WithLogger(DiscardLogger()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Statement is one call seen by a Recorder.
type Statement struct {
	Seq  int64
	Kind string
	Name string
	SQL  string
}

// Recorder wraps an executor and records every call in order. Sequence
// numbers start at 1 and are monotonic across Reset.
//
// Thread-safety: all methods are safe for concurrent use.
type Recorder struct {
	store.Executor

	mu    sync.Mutex
	seq   int64
	stmts []Statement
}

// NewRecorder wraps ex.
func NewRecorder(ex store.Executor) *Recorder {
	return &Recorder{Executor: ex}
}

func (r *Recorder) record(kind, name, sql string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.stmts = append(r.stmts, Statement{Seq: r.seq, Kind: kind, Name: name, SQL: sql})
}

// Statements returns the recorded calls.
func (r *Recorder) Statements() []Statement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Statement(nil), r.stmts...)
}

// Kinds returns "kind name" for every recorded call.
func (r *Recorder) Kinds() []string {
	stmts := r.Statements()
	out := make([]string, len(stmts))
	for i, s := range stmts {
		out[i] = s.Kind + " " + s.Name
	}
	return out
}

// Reset drops the recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stmts = nil
}

func (r *Recorder) Query(ctx context.Context, sql string, params []any, name string) ([][]any, error) {
	r.record("query", name, sql)
	return r.Executor.Query(ctx, sql, params, name)
}

func (r *Recorder) Insert(ctx context.Context, sql string, params []any, name string) (int64, error) {
	r.record("insert", name, sql)
	return r.Executor.Insert(ctx, sql, params, name)
}

func (r *Recorder) Update(ctx context.Context, sql string, params []any, name string) (int64, error) {
	r.record("update", name, sql)
	return r.Executor.Update(ctx, sql, params, name)
}

func (r *Recorder) Delete(ctx context.Context, sql string, params []any, name string) (int64, error) {
	r.record("delete", name, sql)
	return r.Executor.Delete(ctx, sql, params, name)
}

func (r *Recorder) Scheme(ctx context.Context, sql string, name string) error {
	r.record("scheme", name, sql)
	return r.Executor.Scheme(ctx, sql, name)
}
