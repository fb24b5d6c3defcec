package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dynaquery/internal/engine"
	"github.com/roach88/dynaquery/internal/record"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	One  bool
	Page engine.PageRequest
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <request-file>",
		Short: "Run a request",
		Long: `Run a JSON or YAML request and print the matching records.

Without --size every matching record is returned. With --one only the
first match is printed. Use "-" to read the request from stdin.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}
	cmd.Flags().BoolVar(&opts.One, "one", false, "return only the first match")
	pageFlags(cmd.Flags(), &opts.Page)

	return cmd
}

func runQuery(opts *QueryOptions, path string, cmd *cobra.Command) error {
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

	ctx := cmd.Context()
	if opts.One {
		rec, ok, err := e.service.QueryOne(ctx, req)
		if err != nil {
			return formatter.Fail(err)
		}
		if formatter.Format == "json" {
			if !ok {
				return formatter.Success(nil)
			}
			return formatter.Success(rec)
		}
		if !ok {
			fmt.Fprintln(formatter.Writer, "No match")
			return nil
		}
		return writeRecords(formatter, []*record.Record{rec})
	}

	page, err := e.service.QueryAll(ctx, req, opts.Page)
	if err != nil {
		return formatter.Fail(err)
	}
	return writePage(formatter, page)
}

// writePage prints a page: the whole envelope as JSON, or one record per
// line followed by a summary as text.
func writePage(f *OutputFormatter, page *engine.Page) error {
	if f.Format == "json" {
		return f.Success(page)
	}
	if err := writeRecords(f, page.Content); err != nil {
		return err
	}
	if page.Size > 0 {
		fmt.Fprintf(f.Writer, "Page %d (size %d): %d of %d record(s)\n", page.Number, page.Size, len(page.Content), page.Total)
	} else {
		fmt.Fprintf(f.Writer, "%d record(s)\n", page.Total)
	}
	return nil
}

func writeRecords(f *OutputFormatter, recs []*record.Record) error {
	for _, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return f.Fail(fmt.Errorf("encoding record: %w", err))
		}
		fmt.Fprintln(f.Writer, string(data))
	}
	return nil
}
