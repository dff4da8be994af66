package update

import (
	"log/slog"
	"time"

	"github.com/powerbridge/pwb-go/pkg/log"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

// Defaults of an Updater.
const (
	DefaultPollInterval  = 100 * time.Millisecond
	DefaultStatusTimeout = 10 * time.Second
)

// Config holds the updater configuration.
type Config struct {
	// Mode is the verification done by the bridge before the update.
	Mode wire.UpdateMode

	// PollInterval is the delay between two status reads.
	PollInterval time.Duration

	// StatusTimeout is how long the status may stay unchanged before the
	// bridge is considered unresponsive.
	StatusTimeout time.Duration

	// Progress is called on every phase change and after every data
	// frame (optional).
	Progress ProgressFunc

	// Logger receives debug output (optional).
	Logger *slog.Logger

	// Events receives update progress and state events (optional).
	Events log.Logger
}

func defaultConfig() Config {
	return Config{
		Mode:          wire.UpdateVerifyAddrNum,
		PollInterval:  DefaultPollInterval,
		StatusTimeout: DefaultStatusTimeout,
	}
}

// Option configures an Updater.
type Option func(*Config)

// WithMode sets the verification mode written before the start.
func WithMode(m wire.UpdateMode) Option {
	return func(c *Config) { c.Mode = m }
}

// WithPollInterval sets the delay between status reads.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.PollInterval = d
		}
	}
}

// WithStatusTimeout sets how long the status may stay unchanged.
func WithStatusTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.StatusTimeout = d
		}
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Config) { c.Progress = fn }
}

// WithLogger sets the debug logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithEvents sets the protocol event logger.
func WithEvents(l log.Logger) Option {
	return func(c *Config) { c.Events = l }
}
