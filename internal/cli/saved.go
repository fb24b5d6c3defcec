package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/dynaquery/internal/engine"
	"github.com/roach88/dynaquery/internal/service"
)

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	*RootOptions
	Name    string
	Default bool
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save <request-file>",
		Short: "Validate a request and save it under a name",
		Long: `Validate a request against the registered views and store it.

With --default the saved query becomes the only default one.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVarP(&opts.Name, "name", "n", "", fmt.Sprintf("saved query name (at most %d characters)", service.MaxNameLength))
	cmd.Flags().BoolVar(&opts.Default, "default", false, "make this the default saved query")

	return cmd
}

func runSave(opts *SaveOptions, path string, cmd *cobra.Command) error {
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

	ref, err := e.service.SaveQuery(cmd.Context(), req, opts.Name, opts.Default)
	if err != nil {
		return formatter.Fail(err)
	}

	if formatter.Format == "json" {
		return formatter.Success(ref)
	}
	fmt.Fprintf(formatter.Writer, "✓ Saved query %d (%s)", ref.ID, ref.Name)
	if ref.IsDefault {
		fmt.Fprint(formatter.Writer, " as default")
	}
	fmt.Fprintln(formatter.Writer)
	return nil
}

// NewSavedCommand creates the saved command and its subcommands.
func NewSavedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Manage saved queries",
	}
	cmd.AddCommand(newSavedListCommand(rootOpts))
	cmd.AddCommand(newSavedRunCommand(rootOpts))
	cmd.AddCommand(newSavedDefaultCommand(rootOpts))
	return cmd
}

func newSavedListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List saved queries",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			e, err := openEnv(cmd, opts)
			if err != nil {
				return formatter.Fail(err)
			}
			defer e.Close()

			refs, err := e.service.ListReferences(cmd.Context())
			if err != nil {
				return formatter.Fail(err)
			}
			if formatter.Format == "json" {
				return formatter.Success(refs)
			}
			if len(refs) == 0 {
				fmt.Fprintln(formatter.Writer, "No saved queries")
				return nil
			}
			for _, ref := range refs {
				marker := " "
				if ref.IsDefault {
					marker = "*"
				}
				fmt.Fprintf(formatter.Writer, "%s %4d  %s\n", marker, ref.ID, ref.Name)
			}
			return nil
		},
	}
}

func newSavedRunCommand(opts *RootOptions) *cobra.Command {
	var page engine.PageRequest
	cmd := &cobra.Command{
		Use:           "run <id>",
		Short:         "Run a saved query",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			id, err := parseID(args[0])
			if err != nil {
				return formatter.Fail(err)
			}
			e, err := openEnv(cmd, opts)
			if err != nil {
				return formatter.Fail(err)
			}
			defer e.Close()

			p, err := e.service.QuerySaved(cmd.Context(), id, page)
			if err != nil {
				return formatter.Fail(err)
			}
			return writePage(formatter, p)
		},
	}
	pageFlags(cmd.Flags(), &page)
	return cmd
}

func newSavedDefaultCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "default <id>",
		Short:         "Make a saved query the default one",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			id, err := parseID(args[0])
			if err != nil {
				return formatter.Fail(err)
			}
			e, err := openEnv(cmd, opts)
			if err != nil {
				return formatter.Fail(err)
			}
			defer e.Close()

			if err := e.service.SetDefault(cmd.Context(), id); err != nil {
				return formatter.Fail(err)
			}
			if formatter.Format == "json" {
				return formatter.Success(map[string]int64{"id": id})
			}
			fmt.Fprintf(formatter.Writer, "✓ Saved query %d is now the default\n", id)
			return nil
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, fmt.Sprintf("invalid saved query id %q", s), err)
	}
	return id, nil
}
