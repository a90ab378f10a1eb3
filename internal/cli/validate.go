package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relgraph/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema>",
		Short: "Check declarations without compiling tables",
		Long: `Load declarations and report every validation problem at once:
names, property types, relation cardinalities, merge hints and
property dependency cycles.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout())

	decl, err := compiler.LoadSchema(path)
	if err != nil {
		return f.Fail(ExitCommandError, err)
	}
	opts.logger().Debug("loaded declarations", "path", path,
		"entities", len(decl.Entities), "relations", len(decl.Relations))

	problems := compiler.Validate(decl)
	if len(problems) == 0 {
		if f.JSON() {
			return f.Success(ValidationResult{Valid: true})
		}
		fmt.Fprintln(f.Writer, "✓ Schema is valid")
		return nil
	}

	if f.JSON() {
		if err := f.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: problems},
			Error:  &CLIError{Code: problems[0].Code, Message: problems[0].Message},
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(f.Writer, "✗ Validation failed")
		fmt.Fprintln(f.Writer)
		for _, p := range problems {
			fmt.Fprintf(f.Writer, "  %s %s: %s\n", p.Code, p.Field, p.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(problems)))
}
