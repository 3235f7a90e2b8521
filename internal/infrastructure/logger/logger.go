package logger

import (
	"io"
	"log"
	"os"

	"github.com/hashicorp/go-hclog"
)

var (
	Info  *log.Logger
	Error *log.Logger
	Debug *log.Logger
	Warn  *log.Logger

	root hclog.Logger
)

type Options struct {
	Level  string
	JSON   bool
	Output io.Writer
}

func init() {
	Configure(Options{Level: "info"})
}

// Configure rebuilds the package loggers. It is meant to be called once from
// main before any goroutine starts logging.
func Configure(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	level := hclog.LevelFromString(opts.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	root = hclog.New(&hclog.LoggerOptions{
		Name:       "scenefetch",
		Level:      level,
		Output:     out,
		JSONFormat: opts.JSON,
		TimeFormat: "2006-01-02T15:04:05.000Z0700",
	})

	Info = root.StandardLogger(&hclog.StandardLoggerOptions{ForceLevel: hclog.Info})
	Error = root.StandardLogger(&hclog.StandardLoggerOptions{ForceLevel: hclog.Error})
	Debug = root.StandardLogger(&hclog.StandardLoggerOptions{ForceLevel: hclog.Debug})
	Warn = root.StandardLogger(&hclog.StandardLoggerOptions{ForceLevel: hclog.Warn})
}

// Named returns a structured sub-logger for a component.
func Named(name string) hclog.Logger {
	return root.Named(name)
}
