package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/dynaquery/internal/engine"
	"github.com/roach88/dynaquery/internal/request"
	"github.com/roach88/dynaquery/internal/schema"
	"github.com/roach88/dynaquery/internal/service"
	"github.com/roach88/dynaquery/internal/store"
)

// env is what a command needs to run queries.
type env struct {
	service *service.Service
	store   *store.Store
	logger  log.Logger
}

func (e *env) Close() error {
	return e.store.Close()
}

// openEnv loads the views and opens the database named by opts.
// Failures are command errors.
func openEnv(cmd *cobra.Command, opts *RootOptions) (*env, error) {
	logger := NewLogger(cmd.ErrOrStderr(), opts.LogFormat, opts.LogLevel, opts.Verbose)

	registry, err := schema.LoadDir(opts.Views)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("loading views from %s", opts.Views), err)
	}

	st, err := store.Open(opts.DB, store.WithLogger(logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("opening database %s", opts.DB), err)
	}

	return &env{
		service: service.New(registry, st, service.WithLogger(logger)),
		store:   st,
		logger:  logger,
	}, nil
}

// readRequest decodes a JSON or YAML request from path, or stdin when
// path is "-".
func readRequest(cmd *cobra.Command, path string) (*request.Request, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("reading request %s", path), err)
	}

	req, err := request.Decode(data)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("parsing request %s", path), err)
	}
	return req, nil
}

// pageFlags registers --page and --size.
func pageFlags(fs *pflag.FlagSet, page *engine.PageRequest) {
	fs.IntVar(&page.Number, "page", 0, "zero-based page number")
	fs.IntVar(&page.Size, "size", 0, "page size (0 returns every row)")
}
