package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relgraph/internal/engine"
	"github.com/roach88/relgraph/internal/schema"
	"github.com/roach88/relgraph/internal/store"
)

// SetupOptions holds flags for the setup command.
type SetupOptions struct {
	*RootOptions
	Conn ConnOptions
}

// SetupResult lists the tables created.
type SetupResult struct {
	Driver string   `json:"driver"`
	Tables []string `json:"tables"`
}

// NewSetupCommand creates the setup command.
func NewSetupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "setup <schema>",
		Short: "Create the tables of a schema",
		Long: `Compile declarations and create their tables and indexes in the
database. Existing tables are left alone.

Examples:
  relgraph setup ./schema --dsn app.db
  RELGRAPH_DRIVER=postgres RELGRAPH_DSN="host=localhost dbname=app" relgraph setup ./schema`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(opts, args[0], cmd)
		},
	}
	cmd.Flags().AddFlagSet(connFlagSet(&opts.Conn))
	return cmd
}

func runSetup(opts *SetupOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout())

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
	if err := s.Setup(context.Background()); err != nil {
		return WrapExitError(ExitCommandError, "failed to create tables", err)
	}

	result := SetupResult{Driver: db.Driver()}
	for _, t := range model.Tables() {
		result.Tables = append(result.Tables, t.Name)
	}
	if f.JSON() {
		return f.Success(result)
	}
	fmt.Fprintf(f.Writer, "✓ Created %d table(s) with %s\n", len(result.Tables), result.Driver)
	for _, name := range result.Tables {
		fmt.Fprintf(f.Writer, "  %s\n", name)
	}
	return nil
}
