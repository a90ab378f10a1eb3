package engine

import (
	"context"
	"fmt"

	"github.com/roach88/relgraph/internal/ir"
	"github.com/roach88/relgraph/internal/querysql"
	"github.com/roach88/relgraph/internal/schema"
)

// op is the state of one public mutation call.
type op struct {
	s      *Storage
	kind   string
	token  string
	events []ir.MutationEvent
	quota  *QuotaEnforcer
}

func (s *Storage) begin(kind string) *op {
	return &op{
		s:     s,
		kind:  kind,
		token: s.tokens.Generate(),
		quota: NewQuotaEnforcer(s.maxStatements),
	}
}

// finish logs the call outcome and passes err through.
func (o *op) finish(entity string, err error) error {
	if err != nil {
		o.s.logger.Error("mutation failed",
			"op", o.token,
			"kind", o.kind,
			"entity", entity,
			"events", len(o.events),
			"error", err)
		return err
	}
	o.s.logger.Info("mutation",
		"op", o.token,
		"kind", o.kind,
		"entity", entity,
		"events", len(o.events),
		"statements", o.quota.Current())
	return nil
}

func (o *op) emit(name string, typ ir.EventType, rec, old ir.Record) {
	o.events = append(o.events, ir.MutationEvent{RecordName: name, Type: typ, Record: rec, OldRecord: old})
}

func (o *op) nextID(ctx context.Context, n *schema.Node) (int64, error) {
	id, err := o.s.ex.GetAutoID(ctx, n.Name)
	if err != nil {
		return 0, fmt.Errorf("allocate %s id: %w", n.Name, err)
	}
	return id, nil
}

func (o *op) insert(ctx context.Context, n *schema.Node, values []querysql.Assignment) error {
	if err := o.quota.Check(n.Name); err != nil {
		return err
	}
	stmt := o.s.planner.Insert(n.Table, values)
	if _, err := o.s.ex.Insert(ctx, stmt.SQL, stmt.Params, n.Name); err != nil {
		return fmt.Errorf("create %s: %w", n.Name, err)
	}
	return nil
}

func (o *op) update(ctx context.Context, n *schema.Node, values []querysql.Assignment, id int64) error {
	if err := o.quota.Check(n.Name); err != nil {
		return err
	}
	stmt := o.s.planner.UpdateByID(n.Table, values, id)
	if _, err := o.s.ex.Update(ctx, stmt.SQL, stmt.Params, n.Name); err != nil {
		return fmt.Errorf("update %s#%d: %w", n.Name, id, err)
	}
	return nil
}

func (o *op) remove(ctx context.Context, n *schema.Node, id int64) error {
	if err := o.quota.Check(n.Name); err != nil {
		return err
	}
	stmt := o.s.planner.DeleteByID(n.Table, id)
	if _, err := o.s.ex.Delete(ctx, stmt.SQL, stmt.Params, n.Name); err != nil {
		return fmt.Errorf("delete %s#%d: %w", n.Name, id, err)
	}
	return nil
}

// snapshot reads the stored fields of one record, or nil when it is gone.
// Relation snapshots carry both endpoints.
func (o *op) snapshot(ctx context.Context, n *schema.Node, id int64) (ir.Record, error) {
	recs, err := o.s.fetch(ctx, querysql.Query{
		Entity:     n.Name,
		Match:      idMatch(id),
		Attributes: snapshotAttrs(n),
	})
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

// runHooks calls the composite hooks collected for one record.
func (o *op) runHooks(ctx context.Context, event ir.EventType, n *schema.Node, id int64, hooks []hookValue) error {
	for _, h := range hooks {
		call := schema.HookCall{Node: n.Name, Path: h.field.Path, ID: id, Value: h.value, Old: h.old}
		var (
			res any
			err error
		)
		if event == ir.EventCreate {
			res, err = h.field.FieldType.OnCreate(ctx, call)
		} else {
			res, err = h.field.FieldType.OnUpdate(ctx, call)
		}
		if err != nil {
			return &MutationError{Code: ErrHookFailed, Entity: n.Name, Field: h.field.PathString(),
				Message: fmt.Sprintf("%s hook of %s", event, h.field.Type), Err: err}
		}
		if o.s.hooks != nil {
			o.s.hooks(HookResult{Event: event, Call: call, Result: res})
		}
	}
	return nil
}
