package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/relgraph/internal/engine"
	"github.com/roach88/relgraph/internal/ir"
	"github.com/roach88/relgraph/internal/queryir"
	"github.com/roach88/relgraph/internal/schema"
	"github.com/roach88/relgraph/internal/store"
)

// FindOptions holds flags for the find command.
type FindOptions struct {
	*RootOptions
	Conn ConnOptions

	Match    string // match expression, JSON or YAML
	Attrs    string // attribute query, JSON or YAML
	OrderBy  string // order list, JSON or YAML
	Limit    int
	Offset   int
	One      bool // findOne
	Relation bool // query relation rows by relation name
}

// FindResult is the JSON payload of the find command.
type FindResult struct {
	Entity  string      `json:"entity"`
	Count   int         `json:"count"`
	Records []ir.Record `json:"records"`
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find <schema> <entity>",
		Short: "Query records as nested documents",
		Long: `Query an entity, or a relation with --relation, and print the
matching records. Records print as canonical JSON, one per line.

--match, --attrs and --order accept JSON or YAML.

Examples:
  relgraph find ./schema User --dsn app.db --match '{name: a1}'
  relgraph find ./schema User --dsn app.db --match '{key: teams.name, value: ["=", t2]}' --attrs '[name, [teams, {attributeQuery: [name]}]]'
  relgraph find ./schema teams --relation --dsn app.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().AddFlagSet(connFlagSet(&opts.Conn))
	cmd.Flags().StringVar(&opts.Match, "match", "", "match expression")
	cmd.Flags().StringVar(&opts.Attrs, "attrs", "", "attribute query (default: all non-lazy fields)")
	cmd.Flags().StringVar(&opts.OrderBy, "order", "", "order list, e.g. '[-age, name]'")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of records")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "records to skip")
	cmd.Flags().BoolVar(&opts.One, "one", false, "return the first match only")
	cmd.Flags().BoolVar(&opts.Relation, "relation", false, "query relation rows")

	return cmd
}

// query is the decoded form of the find flags.
type query struct {
	match    queryir.Expression
	attrs    queryir.AttributeQuery
	orderBy  queryir.OrderBy
	viewport queryir.Viewport
}

func (o *FindOptions) query() (query, error) {
	var q query
	raw, err := decodeFlag("match", o.Match)
	if err != nil {
		return q, err
	}
	if q.match, err = queryir.ParseMatch(raw); err != nil {
		return q, fmt.Errorf("--match: %w", err)
	}
	if raw, err = decodeFlag("attrs", o.Attrs); err != nil {
		return q, err
	}
	if q.attrs, err = queryir.ParseAttributes(raw); err != nil {
		return q, fmt.Errorf("--attrs: %w", err)
	}
	if raw, err = decodeFlag("order", o.OrderBy); err != nil {
		return q, err
	}
	if q.orderBy, err = queryir.ParseOrderBy(raw); err != nil {
		return q, fmt.Errorf("--order: %w", err)
	}
	q.viewport = queryir.Viewport{Limit: o.Limit, Offset: o.Offset}
	return q, nil
}

// decodeFlag parses a JSON or YAML flag value. Empty means nil.
func decodeFlag(name, value string) (any, error) {
	if value == "" {
		return nil, nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(value), &v); err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return v, nil
}

func runFind(opts *FindOptions, path, entity string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout())

	q, err := opts.query()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid query flags", err)
	}

	model, err := loadModel(path)
	if err != nil {
		if schema.IsSchemaError(err) {
			return f.Fail(ExitFailure, err)
		}
		return f.Fail(ExitCommandError, err)
	}

	cfg := opts.Conn.Config()
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid connection", err)
	}
	db, err := store.Open(cfg, store.WithLogger(opts.logger()))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer db.Close()

	s := engine.New(model, db, engine.WithLogger(opts.logger()))
	ctx := context.Background()

	var records []ir.Record
	switch {
	case opts.Relation:
		records, err = s.FindRelationByName(ctx, entity, q.match, q.viewport, q.attrs)
	case opts.One:
		var rec ir.Record
		rec, err = s.FindOne(ctx, entity, q.match, q.attrs)
		if rec != nil {
			records = []ir.Record{rec}
		}
	default:
		records, err = s.Find(ctx, entity, q.match, q.viewport, q.attrs, q.orderBy)
	}
	if err != nil {
		return f.Fail(ExitFailure, err)
	}
	if records == nil {
		records = []ir.Record{}
	}

	if f.JSON() {
		return f.Success(FindResult{Entity: entity, Count: len(records), Records: records})
	}
	for _, rec := range records {
		line, err := ir.MarshalCanonical(rec)
		if err != nil {
			return err
		}
		fmt.Fprintln(f.Writer, string(line))
	}
	return nil
}
