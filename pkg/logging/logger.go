// Package logging builds the hclog loggers shared by the daemon and the
// conversion tool.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	// EnvLogLevel overrides the configured log level.
	EnvLogLevel = "EINKFRAME_LOG_LEVEL"
	// EnvJSONLog switches output to JSON when set to "1".
	EnvJSONLog = "EINKFRAME_JSON_LOG"

	defaultLevel = "info"
	linePrefix   = "🖼️  "
)

// NewLogger creates a new hclog logger with standard settings
func NewLogger(name string, level string, output io.Writer) hclog.Logger {
	if output == nil {
		output = os.Stderr
	}

	// "json:debug" selects JSON output inline, the same as EINKFRAME_JSON_LOG=1.
	jsonFormat := os.Getenv(EnvJSONLog) == "1"
	if rest, ok := strings.CutPrefix(level, "json"); ok {
		jsonFormat = true
		level = strings.TrimPrefix(rest, ":")
	}
	if level == "" {
		level = defaultLevel
	}

	if !jsonFormat {
		output = NewPrefixWriter(linePrefix, output)
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(level),
		JSONFormat: jsonFormat,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z",
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// ResolveLevel picks the effective level: an explicit flag wins, then the
// environment, then the config file, then "info".
func ResolveLevel(flagLevel, configLevel string) string {
	if flagLevel != "" {
		return flagLevel
	}
	if env := os.Getenv(EnvLogLevel); env != "" {
		return env
	}
	if configLevel != "" {
		return configLevel
	}
	return defaultLevel
}

// OpenOutput returns the writer for log output. An empty path means stderr.
// The returned close function is always safe to call.
func OpenOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stderr, func() error { return nil }, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, file.Close, nil
}

// OrNull returns logger, or a discarding logger when logger is nil.
func OrNull(logger hclog.Logger) hclog.Logger {
	if logger == nil {
		return hclog.NewNullLogger()
	}
	return logger
}
