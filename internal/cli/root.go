package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootOptions holds global flags for all commands.
//
// Every value except Verbose can also come from a DYNAQUERY_* environment
// variable or from the config file. Flags win over the environment, which
// wins over the file.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	DB        string // SQLite database path
	Views     string // directory of CUE view declarations
	Addr      string // HTTP listen address
	LogLevel  string
	LogFormat string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// EnvPrefix prefixes the environment variables read for configuration.
const EnvPrefix = "DYNAQUERY"

// NewRootCommand creates the root command for the dynaquery CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dynaquery",
		Short: "DynaQuery - declarative queries over registered views",
		Long: `Run structured queries against views declared in CUE.

Requests are JSON or YAML documents naming a target view, projections,
a filter tree, a grouping and orderings. They can be run directly, saved
under a name, or served over HTTP.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(cmd); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (YAML)")
	flags.String("db", "dynaquery.db", "SQLite database path")
	flags.String("views", "views", "directory of CUE view declarations")
	flags.String("addr", ":8080", "HTTP listen address")
	flags.String("log-level", "info", "log level (debug|info|warn|error)")
	flags.String("log-format", "logfmt", "log format (logfmt|json)")

	cmd.AddCommand(NewViewsCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewSaveCommand(opts))
	cmd.AddCommand(NewSavedCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// load resolves the configuration keys through viper and validates them.
func (opts *RootOptions) load(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return WrapExitError(ExitCommandError, "binding flags", err)
	}
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("reading config %s", opts.ConfigFile), err)
		}
	}

	opts.Format = v.GetString("format")
	opts.DB = v.GetString("db")
	opts.Views = v.GetString("views")
	opts.Addr = v.GetString("addr")
	opts.LogLevel = v.GetString("log-level")
	opts.LogFormat = v.GetString("log-format")

	if !slices.Contains(ValidFormats, opts.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
	}
	if !slices.Contains(validLogLevels, opts.LogLevel) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid log level %q: must be one of %v", opts.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, opts.LogFormat) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid log format %q: must be one of %v", opts.LogFormat, validLogFormats))
	}
	return nil
}

// formatter builds the output formatter for cmd.
func (opts *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}
