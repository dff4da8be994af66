// Package cli holds the logging and capture setup shared by the pwb
// commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/powerbridge/pwb-go/pkg/log"
)

// NewLogger creates a slog logger writing to w. level is one of debug,
// info, warn or error; format is text or json.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format: %s (must be text or json)", format)
	}
}

// Capture is the protocol event sink of a command.
type Capture struct {
	log.Logger
	file *log.FileLogger
}

// OpenCapture returns the protocol logger of a command. Events go to the
// capture file at path when it is set, and are mirrored to logger at
// debug level.
func OpenCapture(path string, logger *slog.Logger) (*Capture, error) {
	var loggers []log.Logger
	c := &Capture{}
	if path != "" {
		f, err := log.NewFileLogger(path)
		if err != nil {
			return nil, err
		}
		c.file = f
		loggers = append(loggers, f)
	}
	if logger != nil && logger.Enabled(context.Background(), slog.LevelDebug) {
		loggers = append(loggers, log.NewSlogAdapter(logger))
	}

	switch len(loggers) {
	case 0:
		c.Logger = log.NoopLogger{}
	case 1:
		c.Logger = loggers[0]
	default:
		c.Logger = log.NewMultiLogger(loggers...)
	}
	return c, nil
}

// Close closes the capture file.
func (c *Capture) Close() error {
	if c.file == nil {
		return nil
	}
	if n := c.file.Dropped(); n > 0 {
		c.file.Close()
		return fmt.Errorf("capture: %d events failed to encode", n)
	}
	return c.file.Close()
}
