// Command relgraph compiles entity and relation declarations onto SQL tables
// and queries them as nested records.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/relgraph/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
