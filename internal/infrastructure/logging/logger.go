package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/config"
)

// ServiceName is attached to every log entry.
const ServiceName = "daligear"

// Logger is a slog.Logger carrying the daemon's standard attributes
// (service and version). It satisfies the Logger interfaces declared by the
// mqtt, paramstore and dali packages.
//
// Thread Safety: safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds the daemon logger from the logging config section.
//
// Parameters:
//   - cfg: level (debug|info|warn|error), format (json|text), output (stdout|stderr)
//   - version: build version recorded on every entry
//
// Returns:
//   - *Logger: unknown values fall back to info, json and stdout
func New(cfg config.LoggingConfig, version string) *Logger {
	return NewWithWriter(destination(cfg.Output), cfg, version)
}

// NewWithWriter is New with an explicit destination; cfg.Output is ignored.
// The simulate command uses it to keep logs off the result stream.
func NewWithWriter(w io.Writer, cfg config.LoggingConfig, version string) *Logger {
	h := handler(w, cfg.Format, &slog.HandlerOptions{Level: parseLevel(cfg.Level)})
	return &Logger{Logger: slog.New(h.WithAttrs([]slog.Attr{
		slog.String("service", ServiceName),
		slog.String("version", version),
	}))}
}

func destination(output string) io.Writer {
	if strings.EqualFold(output, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

func handler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// With returns a child logger with extra attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// ForGear tags entries with the emitting component and the gear they
// concern, e.g. logger.ForGear("paramstore", "kitchen").
func (l *Logger) ForGear(component, gearID string) *Logger {
	return l.With("component", component, "gear_id", gearID)
}

// Default is the bootstrap logger used until the config file has been read:
// JSON at info level on stdout.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}
