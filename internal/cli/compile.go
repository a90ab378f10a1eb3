package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/relgraph/internal/ir"
	"github.com/roach88/relgraph/internal/schema"
	"github.com/roach88/relgraph/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Dialect string // driver name whose dialect renders the DDL
	DDL     bool   // print CREATE TABLE statements instead of the layout
	Output  string // write the DDL to this file
}

// CompilationResult is the JSON form of a compiled model.
type CompilationResult struct {
	SchemaVersion string      `json:"schemaVersion"`
	Tables        []TableInfo `json:"tables"`
	Nodes         []NodeInfo  `json:"nodes"`
	DDL           []string    `json:"ddl,omitempty"`
}

// TableInfo describes one physical table.
type TableInfo struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
}

// ColumnInfo describes one physical column.
type ColumnInfo struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Owner string `json:"owner"`
	Key   bool   `json:"key,omitempty"`
	Index bool   `json:"index,omitempty"`
}

// NodeInfo describes one entity or relation node.
type NodeInfo struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Table       string `json:"table"`
	Synthesized bool   `json:"synthesized,omitempty"`
	Type        string `json:"type,omitempty"`
	Merged      bool   `json:"merged,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <schema>",
		Short: "Compile declarations to a table layout",
		Long: `Compile entity and relation declarations and print the resulting
tables and nodes, or the DDL for a dialect.

<schema> is a directory of CUE files, a .cue file, or a YAML file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dialect, "dialect", store.DriverSQLite3, "dialect for DDL (sqlite3|sqlite|postgres|mysql)")
	cmd.Flags().BoolVar(&opts.DDL, "ddl", false, "print DDL statements")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write DDL to file")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout())
	log := opts.logger()

	dialect, err := store.DialectFor(opts.Dialect)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --dialect", err)
	}

	model, err := loadModel(path)
	if err != nil {
		if schema.IsSchemaError(err) {
			return f.Fail(ExitFailure, err)
		}
		return f.Fail(ExitCommandError, err)
	}
	log.Debug("compiled schema", "path", path, "nodes", len(model.Nodes()), "tables", len(model.Tables()))

	ddl := model.DDL(dialect)
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(joinDDL(ddl)), 0644); err != nil {
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
		log.Info("wrote DDL", "file", opts.Output, "statements", len(ddl))
	}

	if f.JSON() {
		result := describeModel(model)
		if opts.DDL {
			result.DDL = ddl
		}
		return f.Success(result)
	}

	w := cmd.OutOrStdout()
	if opts.DDL {
		fmt.Fprint(w, joinDDL(ddl))
		return nil
	}
	fmt.Fprint(w, model.Describe())
	return nil
}

func joinDDL(stmts []string) string {
	if len(stmts) == 0 {
		return ""
	}
	return strings.Join(stmts, ";\n") + ";\n"
}

func describeModel(m *schema.Model) CompilationResult {
	result := CompilationResult{SchemaVersion: ir.SchemaVersion}
	for _, t := range m.Tables() {
		info := TableInfo{Name: t.Name, Columns: make([]ColumnInfo, len(t.Columns))}
		for i, c := range t.Columns {
			info.Columns[i] = ColumnInfo{Name: c.Name, Type: c.Type, Owner: c.Owner, Key: c.Key, Index: c.Index}
		}
		result.Tables = append(result.Tables, info)
	}
	for _, n := range m.Nodes() {
		info := NodeInfo{Name: n.Name, Kind: "entity", Table: n.Table, Synthesized: n.Synthesized}
		if n.IsRelation() {
			info.Kind = "relation"
			info.Type = string(n.Rel.Type)
			info.Merged = n.Rel.Merged()
		}
		result.Nodes = append(result.Nodes, info)
	}
	return result
}
