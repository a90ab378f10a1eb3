package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/relgraph/internal/ir"
	"github.com/roach88/relgraph/internal/queryir"
	"github.com/roach88/relgraph/internal/querysql"
	"github.com/roach88/relgraph/internal/schema"
	"github.com/roach88/relgraph/internal/store"
)

// Storage runs finds and mutations for one compiled model against one
// executor.
type Storage struct {
	model         *schema.Model
	ex            store.Executor
	planner       *querysql.Planner
	tokens        TokenGenerator
	logger        *slog.Logger
	hooks         HookSink
	maxStatements int
}

// Option configures optional Storage parameters.
type Option func(*Storage)

// WithTokenGenerator sets the generator of operation tokens.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(s *Storage) {
		s.tokens = g
	}
}

// WithLogger sets the logger mutation calls are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(s *Storage) {
		s.logger = l
	}
}

// WithHookSink receives the result of every composite field type hook.
func WithHookSink(sink HookSink) Option {
	return func(s *Storage) {
		s.hooks = sink
	}
}

// WithMaxStatements bounds the write statements of one call. Zero disables
// the bound.
func WithMaxStatements(n int) Option {
	return func(s *Storage) {
		s.maxStatements = n
	}
}

// HookResult is the outcome of one OnCreate or OnUpdate call.
type HookResult struct {
	Event  ir.EventType
	Call   schema.HookCall
	Result any
}

// HookSink consumes hook results. Hook results are reported separately from
// mutation events.
type HookSink func(HookResult)

// New creates a Storage for model on ex.
func New(model *schema.Model, ex store.Executor, opts ...Option) *Storage {
	s := &Storage{
		model:         model,
		ex:            ex,
		planner:       querysql.NewPlanner(model, ex.Dialect()),
		tokens:        UUIDv7Generator{},
		logger:        slog.Default(),
		maxStatements: DefaultMaxStatements,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithExecutor returns a copy of s bound to ex, typically the transaction
// executor handed out by store.DB.WithTx.
func (s *Storage) WithExecutor(ex store.Executor) *Storage {
	cp := *s
	cp.ex = ex
	cp.planner = querysql.NewPlanner(s.model, ex.Dialect())
	return &cp
}

// Model returns the compiled model.
func (s *Storage) Model() *schema.Model {
	return s.model
}

// Planner returns the query planner bound to the executor's dialect.
func (s *Storage) Planner() *querysql.Planner {
	return s.planner
}

// Setup creates every table of the model. Statements are idempotent.
func (s *Storage) Setup(ctx context.Context) error {
	stmts := s.model.DDL(s.ex.Dialect())
	for i, stmt := range stmts {
		if err := s.ex.Scheme(ctx, stmt, fmt.Sprintf("setup#%d", i)); err != nil {
			return fmt.Errorf("setup: %w", err)
		}
	}
	s.logger.Info("schema ready", "tables", len(s.model.Tables()), "statements", len(stmts))
	return nil
}

func (s *Storage) lookup(name string) (*schema.Node, error) {
	n, err := s.model.Lookup(name)
	if err != nil {
		return nil, &MutationError{Code: ErrUnknownEntity, Entity: name, Message: "unknown entity or relation", Err: err}
	}
	return n, nil
}

// Find returns the records of entity matching match. A nil match selects
// every record; nil attrs select "*". To-many links are filled by one
// follow-up query per parent record.
func (s *Storage) Find(ctx context.Context, entity string, match queryir.Expression, viewport queryir.Viewport,
	attrs queryir.AttributeQuery, orderBy queryir.OrderBy) ([]ir.Record, error) {
	return s.fetch(ctx, querysql.Query{
		Entity:     entity,
		Match:      match,
		Attributes: attrs,
		Viewport:   viewport,
		OrderBy:    orderBy,
	})
}

// FindOne returns the first matching record, or nil when none matches.
func (s *Storage) FindOne(ctx context.Context, entity string, match queryir.Expression, attrs queryir.AttributeQuery) (ir.Record, error) {
	recs, err := s.fetch(ctx, querysql.Query{
		Entity:     entity,
		Match:      match,
		Attributes: attrs,
		Viewport:   queryir.Viewport{Limit: 1},
	})
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

// fetch runs one compiled query and resolves its deferred collections.
func (s *Storage) fetch(ctx context.Context, q querysql.Query) ([]ir.Record, error) {
	stmt, err := s.planner.Select(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.ex.Query(ctx, stmt.SQL, stmt.Params, q.Entity)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", q.Entity, err)
	}

	proj := stmt.Projection
	out := make([]ir.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := proj.Decode(row)
		if err != nil {
			return nil, err
		}
		for _, d := range proj.Deferred {
			parent, ok := proj.ParentID(row, d)
			if !ok {
				continue
			}
			list, err := s.fetchDeferred(ctx, d, parent)
			if err != nil {
				return nil, err
			}
			setAt(rec, d.Path, list)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Storage) fetchDeferred(ctx context.Context, d querysql.Deferred, parent int64) ([]any, error) {
	l := d.Link()
	other := s.model.Node(l.Other)
	q := querysql.Query{
		Entity: other.Name,
		Via:    &querysql.Via{Field: d.Field, ParentID: parent},
	}
	if d.Sub != nil {
		q.Attributes = d.Sub.Attributes
		q.Match = d.Sub.Match
	}
	recs, err := s.fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	unwrap := l.Wrapped && !q.Attributes.Has(queryir.RelationAttrs)
	list := make([]any, len(recs))
	for i, r := range recs {
		if unwrap {
			list[i] = r[schema.ValueField]
		} else {
			list[i] = r
		}
	}
	return list, nil
}
