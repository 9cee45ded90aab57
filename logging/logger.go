// Package logging builds the zerolog logger used for diagnostics. User facing
// output goes to stdout through the CLI; everything here writes to stderr.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Public constants (alphabetical)

const (
	// FormatConsole renders human readable lines.
	FormatConsole = "console"

	// FormatJSON renders one JSON object per line.
	FormatJSON = "json"
)

// Public types (alphabetical)

// Config holds logging configuration.
type Config struct {
	Level      zerolog.Level
	Format     string
	TimeFormat string
}

// Public functions (alphabetical)

// DefaultConfig returns the defaults: info level, console format.
func DefaultConfig() Config {
	return Config{
		Level:      zerolog.InfoLevel,
		Format:     FormatConsole,
		TimeFormat: time.RFC3339,
	}
}

// New creates a logger writing to w, or to stderr when w is nil.
func New(cfg Config, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}

	output := w
	if cfg.Format != FormatJSON {
		output = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: cfg.TimeFormat,
		}
	}

	return zerolog.New(output).
		Level(cfg.Level).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps trace, debug, info, warn, error and disabled to zerolog
// levels.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
}
