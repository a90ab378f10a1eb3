package store

import "context"

// Executor is the boundary every statement the planner and engine build
// goes through. name labels the statement in logs.
//
// Insert, Update and Delete return the number of affected rows. Ids are
// assigned by the caller through GetAutoID before the insert.
type Executor interface {
	Query(ctx context.Context, query string, params []any, name string) ([][]any, error)
	Insert(ctx context.Context, query string, params []any, name string) (int64, error)
	Update(ctx context.Context, query string, params []any, name string) (int64, error)
	Delete(ctx context.Context, query string, params []any, name string) (int64, error)
	Scheme(ctx context.Context, query string, name string) error
	GetAutoID(ctx context.Context, recordName string) (int64, error)
	Dialect() Dialect
}
