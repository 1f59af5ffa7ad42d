package logger

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// NewSlogLogger returns a standalone JSON logger writing to writer.
// A nil writer means stderr and a nil timezone means UTC. It is meant for
// tests and for components used outside a CentralLogger.
func NewSlogLogger(writer io.Writer, level LogLevel, timezone *time.Location) Logger {
	if writer == nil {
		writer = os.Stderr
	}
	if timezone == nil {
		timezone = time.UTC
	}

	lvl := parseLogLevel(string(level))
	cl := &CentralLogger{
		config:       &LoggingConfig{DefaultLevel: string(level)},
		timezone:     timezone,
		baseHandler:  newJSONHandler(writer, lvl, timezone),
		moduleLevels: map[string]slog.Level{},
	}
	return cl.Module("")
}

// NewDiscardLogger returns a logger that drops everything.
func NewDiscardLogger() Logger {
	return NewSlogLogger(io.Discard, LogLevelError, time.UTC)
}
