package cli

import (
	"github.com/spf13/pflag"

	"github.com/roach88/relgraph/internal/compiler"
	"github.com/roach88/relgraph/internal/schema"
	"github.com/roach88/relgraph/internal/store"
)

// ConnOptions holds the database connection flags shared by setup and find.
type ConnOptions struct {
	Driver string
	DSN    string
}

// connFlagSet returns the --driver and --dsn flags bound to opts.
func connFlagSet(opts *ConnOptions) *pflag.FlagSet {
	fs := pflag.NewFlagSet("connection", pflag.ContinueOnError)
	fs.StringVar(&opts.Driver, "driver", "", "database driver (sqlite3|sqlite|postgres|mysql), default $RELGRAPH_DRIVER or sqlite3")
	fs.StringVar(&opts.DSN, "dsn", "", "data source name, default $RELGRAPH_DSN")
	return fs
}

// Config merges the flags over the environment.
func (o *ConnOptions) Config() store.Config {
	cfg := store.LoadConfigFromEnv()
	if o.Driver != "" {
		cfg.Driver = o.Driver
	}
	if o.DSN != "" {
		cfg.DSN = o.DSN
	}
	return cfg
}

// loadModel loads declarations from path and compiles them.
func loadModel(path string) (*schema.Model, error) {
	decl, err := compiler.LoadSchema(path)
	if err != nil {
		return nil, err
	}
	return schema.Build(decl)
}
