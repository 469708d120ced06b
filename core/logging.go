package core

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. format "json" writes structured
// lines; anything else uses the console writer. Output goes to stderr so
// stdout stays free for task log lines.
func NewLogger(level, format, component string) zerolog.Logger {
	return NewLoggerWithWriter(os.Stderr, level, format, component)
}

// NewLoggerWithWriter is NewLogger with an explicit destination.
func NewLoggerWithWriter(w io.Writer, level, format, component string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	out := w
	if !strings.EqualFold(format, "json") {
		out = zerolog.ConsoleWriter{Out: w, NoColor: true}
	}

	return zerolog.New(out).
		Level(lvl).
		With().Timestamp().Str("component", component).Logger()
}
