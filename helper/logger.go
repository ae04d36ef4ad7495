package helper

import (
	"os"

	"github.com/phuslu/log"
)

var Log log.Logger = log.Logger{
	Level: log.InfoLevel,
	Writer: &log.ConsoleWriter{
		Writer:      os.Stderr,
		ColorOutput: log.IsTerminal(os.Stderr.Fd()),
	},
}

// SetupLogger switches the level and, for format "json", the writer of Log.
func SetupLogger(level, format string) {
	Log.Level = log.ParseLevel(level)

	if format == "json" {
		Log.Writer = &log.IOWriter{Writer: os.Stderr}
	}
}
