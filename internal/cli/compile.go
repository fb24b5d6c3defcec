package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dynaquery/internal/engine"
	"github.com/roach88/dynaquery/internal/service"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Page engine.PageRequest
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <request-file>",
		Short: "Show the SQL a request compiles to",
		Long: `Normalize and compile a request without running it.

Prints the content statement for the requested page and the count
statement, each with its bound parameters. Use "-" to read the request
from stdin.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}
	pageFlags(cmd.Flags(), &opts.Page)

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	req, err := readRequest(cmd, path)
	if err != nil {
		return formatter.Fail(err)
	}
	e, err := openEnv(cmd, opts.RootOptions)
	if err != nil {
		return formatter.Fail(err)
	}
	defer e.Close()

	ex, err := e.service.Explain(req, opts.Page)
	if err != nil {
		return formatter.Fail(err)
	}

	if formatter.Format == "json" {
		return formatter.Success(ex)
	}
	writeExplanation(formatter, ex)
	return nil
}

func writeExplanation(f *OutputFormatter, ex *service.Explanation) {
	fmt.Fprintf(f.Writer, "View:    %s\n", ex.TargetView)
	fmt.Fprintf(f.Writer, "Shape:   %s\n", ex.Shape)
	if len(ex.Columns) > 0 {
		fmt.Fprintf(f.Writer, "Columns: %v\n", ex.Columns)
	}
	fmt.Fprintln(f.Writer)
	fmt.Fprintln(f.Writer, "Content:")
	fmt.Fprintf(f.Writer, "  %s\n  args: %v\n\n", ex.Content.SQL, ex.Content.Args)
	fmt.Fprintln(f.Writer, "Count:")
	fmt.Fprintf(f.Writer, "  %s\n  args: %v\n", ex.Count.SQL, ex.Count.Args)
}
