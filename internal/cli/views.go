package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dynaquery/internal/schema"
)

// ViewSummary describes a registered view.
type ViewSummary struct {
	Name   string         `json:"name"`
	Table  string         `json:"table"`
	Key    string         `json:"key"`
	Fields []FieldSummary `json:"fields"`
}

// FieldSummary describes one addressable field path.
type FieldSummary struct {
	Path   string `json:"path"`
	Kind   string `json:"kind"`
	Column string `json:"column"`
	Table  string `json:"table"`
}

// NewViewsCommand creates the views command.
func NewViewsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "views",
		Short: "List registered views and their field paths",
		Long: `Load the CUE view declarations and list every view with its
addressable field paths. The database is not opened.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runViews(rootOpts, cmd)
		},
	}
}

func runViews(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	registry, err := schema.LoadDir(opts.Views)
	if err != nil {
		return formatter.Fail(WrapExitError(ExitCommandError, fmt.Sprintf("loading views from %s", opts.Views), err))
	}

	var summaries []ViewSummary
	for _, name := range registry.Names() {
		v, err := registry.View(name)
		if err != nil {
			return formatter.Fail(err)
		}
		summaries = append(summaries, summarize(v))
	}
	formatter.VerboseLog("Loaded %d view(s) from %s", len(summaries), opts.Views)

	if formatter.Format == "json" {
		return formatter.Success(summaries)
	}

	for _, s := range summaries {
		fmt.Fprintf(formatter.Writer, "%s (%s, key %s)\n", s.Name, s.Table, s.Key)
		for _, f := range s.Fields {
			fmt.Fprintf(formatter.Writer, "  %-24s %-10s %s.%s\n", f.Path, f.Kind, f.Table, f.Column)
		}
	}
	return nil
}

func summarize(v *schema.View) ViewSummary {
	s := ViewSummary{Name: v.Name, Table: v.Table, Key: v.Key}
	for _, path := range v.FieldPaths() {
		f, _ := v.Field(path)
		table := v.Table
		if f.Relation != nil {
			table = f.Relation.Table
		}
		s.Fields = append(s.Fields, FieldSummary{
			Path:   f.Path,
			Kind:   f.Kind.String(),
			Column: f.Column,
			Table:  table,
		})
	}
	return s
}
