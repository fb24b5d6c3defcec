// Command dynaquery runs declarative queries over registered views.
package main

import (
	"context"
	"os"

	"github.com/roach88/dynaquery/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
