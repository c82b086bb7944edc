// Package logging provides leveled, structured logging for the isn
// stack, built on charmbracelet/log rather than a hand-rolled
// stdlib-log wrapper.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	charm "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// Logger wraps a charm log logger with the level/Config shape the
// rest of this module expects.
type Logger struct {
	logger *charm.Logger
	level  LogLevel
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// LogLevel represents the available log levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) toCharm() charm.Level {
	switch l {
	case LevelDebug:
		return charm.DebugLevel
	case LevelWarn:
		return charm.WarnLevel
	case LevelError:
		return charm.ErrorLevel
	default:
		return charm.InfoLevel
	}
}

// Config holds logging configuration. Format selects "text" (the
// default, human-readable) or "json" (one object per line, for
// piping into a log aggregator).
type Config struct {
	Level   LogLevel
	Output  io.Writer
	Prefix  string
	Format  string
	NoColor bool
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Output: os.Stderr,
		Format: "text",
	}
}

// NewLogger creates a new Logger.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	formatter := charm.TextFormatter
	if config.Format == "json" {
		formatter = charm.JSONFormatter
	}
	cl := charm.NewWithOptions(output, charm.Options{
		ReportTimestamp: true,
		Level:           config.Level.toCharm(),
		Prefix:          config.Prefix,
		Formatter:       formatter,
	})
	// charm already suppresses ANSI color on a non-TTY Output (e.g. the
	// *bytes.Buffer tests write to); NoColor only matters when Output
	// is a terminal the caller wants plain anyway.
	if config.NoColor {
		cl.SetColorProfile(termenv.Ascii)
	}
	return &Logger{logger: cl, level: config.Level}
}

// Default returns the process-wide default logger, creating it on
// first use.
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault replaces the process-wide default logger.
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

// With returns a child Logger that attaches key/value pairs to every
// subsequent entry, the same role a per-layer prefix filled before.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...), level: l.level}
}

// WithLayer attaches the emitting layer's name to every subsequent
// entry.
func (l *Logger) WithLayer(name string) *Logger {
	return l.With("layer", name)
}

// WithPort attaches a transport port number.
func (l *Logger) WithPort(port int) *Logger {
	return l.With("port", port)
}

// WithProtocol attaches a dispatcher protocol identifier, logged in
// hex since that is how frame headers and the protocol table in the
// wire format are written.
func (l *Logger) WithProtocol(id byte) *Logger {
	return l.With("protocol", fmt.Sprintf("0x%02x", id))
}

// WithError attaches an error value.
func (l *Logger) WithError(err error) *Logger {
	return l.With("error", err)
}

func (l *Logger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// Printf-style logging, kept for call sites ported from the
// stdlib-log-flavored original.
func (l *Logger) Debugf(format string, args ...any) { l.logger.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logger.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logger.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logger.Errorf(format, args...) }

// Printf logs at info level, matching the original's compatibility
// shim for call sites written against a plain *log.Logger.
func (l *Logger) Printf(format string, args ...any) { l.Infof(format, args...) }

// Global convenience functions operating on Default().

func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
