package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string

	// Format is json or text.
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer

	AddSource bool
}

// DefaultConfig returns JSON logging at info level to stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: os.Stderr}
}

// level is shared by every logger built with New so that SetLevel takes
// effect process-wide, including on loggers already handed out.
var level = new(slog.LevelVar)

// New builds a logger from cfg and sets the shared level.
//
// Records pass through the redaction in redact.go, and records logged with
// a context carrying a request ID get a request_id attribute.
func New(cfg Config) (*slog.Logger, error) {
	lvl, ok := parseLevel(cfg.Level)
	if !ok {
		return nil, fmt.Errorf("logger: unknown level %q", cfg.Level)
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return redactSensitive(a)
		},
	}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		h = slog.NewJSONHandler(out, opts)
	case "text", "console":
		h = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("logger: unknown format %q", cfg.Format)
	}

	level.Set(lvl)
	return slog.New(&contextHandler{Handler: h}), nil
}

// SetLevel changes the shared level. Unknown names are ignored.
func SetLevel(name string) {
	if lvl, ok := parseLevel(name); ok {
		level.Set(lvl)
	}
}

// GetLevel returns the shared level's name.
func GetLevel() string {
	switch l := level.Level(); {
	case l <= slog.LevelDebug:
		return "debug"
	case l <= slog.LevelInfo:
		return "info"
	case l <= slog.LevelWarn:
		return "warn"
	default:
		return "error"
	}
}

// ValidLevel reports whether name is a known level. The empty string
// selects info and is valid.
func ValidLevel(name string) bool {
	_, ok := parseLevel(name)
	return ok
}

func parseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
