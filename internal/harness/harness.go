package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/relgraph/internal/compiler"
	"github.com/roach88/relgraph/internal/engine"
	"github.com/roach88/relgraph/internal/ir"
	"github.com/roach88/relgraph/internal/queryir"
	"github.com/roach88/relgraph/internal/querysql"
	"github.com/roach88/relgraph/internal/schema"
	"github.com/roach88/relgraph/internal/store"
	"github.com/roach88/relgraph/internal/testutil"
)

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	store  store.Config
	types  schema.FieldTypes
	logger *slog.Logger
}

// WithStoreConfig runs against the given database instead of a private
// in-memory SQLite one. The database must be empty.
func WithStoreConfig(cfg store.Config) Option {
	return func(c *runConfig) {
		c.store = cfg
	}
}

// WithFieldTypes registers composite field types for the scenario schema.
func WithFieldTypes(types schema.FieldTypes) Option {
	return func(c *runConfig) {
		c.types = types
	}
}

// WithLogger sets the logger for statements and mutations. Logs are
// discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// Harness runs the steps of one scenario against one Storage.
type Harness struct {
	storage *engine.Storage
	result  *Result
}

// Run executes a scenario and returns the result. A scenario that fails its
// expectations returns a non-passing Result and a nil error; the error is
// reserved for scenarios that cannot run at all.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{
		store:  store.Config{Driver: store.DriverSQLite3, DSN: ":memory:"},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	decl, err := compiler.LoadSchema(scenario.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	model, err := schema.Build(decl, schema.WithFieldTypes(cfg.types))
	if err != nil {
		return nil, fmt.Errorf("failed to build schema: %w", err)
	}

	db, err := store.Open(cfg.store, store.WithLogger(cfg.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	result := NewResult()
	s := engine.New(model, db,
		engine.WithLogger(cfg.logger),
		engine.WithTokenGenerator(testutil.NewFixedTokenGenerator(scenario.Token)),
		engine.WithHookSink(func(r engine.HookResult) { result.Hooks = append(result.Hooks, r) }),
	)

	ctx := context.Background()
	if err := s.Setup(ctx); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	h := &Harness{storage: s, result: result}
	for i, step := range scenario.Steps {
		h.runStep(ctx, i, step)
	}

	for _, msg := range EvaluateAssertions(ctx, s, result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// runStep executes one step and checks its expect clause.
func (h *Harness) runStep(ctx context.Context, i int, step Step) {
	label := fmt.Sprintf("step %d (%s %s)", i, step.Op, step.Entity)
	records, events, err := h.execute(ctx, step)
	h.result.AddEvents(i, step.Op, events)

	expect := step.Expect
	if expect == nil {
		expect = &Expect{}
	}

	if expect.Error != "" {
		if err == nil {
			h.result.AddError(fmt.Sprintf("%s: expected error %s, got success", label, expect.Error))
			return
		}
		if code := errorCode(err); code != expect.Error {
			h.result.AddError(fmt.Sprintf("%s: expected error %s, got %s (%v)", label, expect.Error, code, err))
		}
		return
	}
	if err != nil {
		h.result.AddError(fmt.Sprintf("%s: %v", label, err))
		return
	}

	if expect.Events != nil {
		want := make([]string, len(expect.Events))
		for j, e := range expect.Events {
			want[j] = e.String()
		}
		got := make([]string, len(events))
		for j, ev := range events {
			got[j] = string(ev.Type) + " " + ev.RecordName
		}
		if strings.Join(want, ", ") != strings.Join(got, ", ") {
			h.result.AddError(fmt.Sprintf("%s: expected events [%s], got [%s]",
				label, strings.Join(want, ", "), strings.Join(got, ", ")))
		}
	}

	if expect.Count != nil && len(records) != *expect.Count {
		h.result.AddError(fmt.Sprintf("%s: expected %d record(s), got %d", label, *expect.Count, len(records)))
	}

	if len(expect.Paths) > 0 {
		doc := map[string]any{"records": toList(records), "events": events}
		for _, msg := range checkPaths(doc, expect.Paths) {
			h.result.AddError(fmt.Sprintf("%s: %s", label, msg))
		}
	}
}

// execute performs the storage call of a step. Single-record results are
// returned as a one-element list.
func (h *Harness) execute(ctx context.Context, step Step) ([]ir.Record, []ir.MutationEvent, error) {
	match, err := queryir.ParseMatch(step.Match)
	if err != nil {
		return nil, nil, fmt.Errorf("match: %w", err)
	}
	attrs, err := queryir.ParseAttributes(step.Attributes)
	if err != nil {
		return nil, nil, fmt.Errorf("attributes: %w", err)
	}
	orderBy, err := queryir.ParseOrderBy(step.OrderBy)
	if err != nil {
		return nil, nil, fmt.Errorf("orderBy: %w", err)
	}
	viewport := queryir.Viewport{Limit: step.Limit, Offset: step.Offset}
	payload := ir.Record(step.Payload)

	s := h.storage
	switch step.Op {
	case OpCreate:
		rec, events, err := s.Create(ctx, step.Entity, payload)
		return single(rec), events, err
	case OpUpdate:
		return s.Update(ctx, step.Entity, match, payload)
	case OpDelete:
		return s.Delete(ctx, step.Entity, match)
	case OpFind:
		recs, err := s.Find(ctx, step.Entity, match, viewport, attrs, orderBy)
		return recs, nil, err
	case OpFindOne:
		rec, err := s.FindOne(ctx, step.Entity, match, attrs)
		return single(rec), nil, err
	case OpAddRelation:
		rec, events, err := s.AddRelationByID(ctx, step.Entity, step.Source, step.Target, payload)
		return single(rec), events, err
	case OpRemoveRelation:
		return s.RemoveRelationByName(ctx, step.Entity, match)
	case OpUpdateRelation:
		return s.UpdateRelationByName(ctx, step.Entity, match, payload)
	case OpFindRelation:
		recs, err := s.FindRelationByName(ctx, step.Entity, match, viewport, attrs)
		return recs, nil, err
	}
	return nil, nil, fmt.Errorf("unknown op %q", step.Op)
}

func single(rec ir.Record) []ir.Record {
	if rec == nil {
		return nil
	}
	return []ir.Record{rec}
}

func toList(recs []ir.Record) []any {
	out := make([]any, len(recs))
	for i, r := range recs {
		out[i] = r
	}
	return out
}

// errorCode returns the code of a typed error, or "" for other errors.
func errorCode(err error) string {
	var me *engine.MutationError
	if errors.As(err, &me) {
		return me.Code
	}
	var ce *querysql.CompileError
	if errors.As(err, &ce) {
		return ce.Code
	}
	var se *schema.SchemaError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
