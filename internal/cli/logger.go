package cli

import (
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"logfmt", "json"}
)

// NewLogger builds the process logger. Verbose lowers the level to debug.
func NewLogger(w io.Writer, format, lvl string, verbose bool) log.Logger {
	var logger log.Logger
	if format == "json" {
		logger = log.NewJSONLogger(log.NewSyncWriter(w))
	} else {
		logger = log.NewLogfmtLogger(log.NewSyncWriter(w))
	}
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	if verbose {
		lvl = "debug"
	}
	return level.NewFilter(logger, levelOption(lvl))
}

func levelOption(lvl string) level.Option {
	switch lvl {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	}
	return level.AllowInfo()
}
