// Package logging configures the process-wide zerolog logger from the
// logging section of the config file.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/talkline/chat-app/internal/config"
)

// Level maps the config file's level names (Python logging vocabulary, kept
// for config compatibility) onto zerolog levels.
func Level(name string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARNING", "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "CRITICAL", "FATAL":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// New builds a logger writing human-readable lines to stdout and, when
// enabled, JSON lines to the configured log file.
func New(cfg config.LoggingConfig) (zerolog.Logger, error) {
	console := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
	}

	var out io.Writer = console
	if cfg.LogToFile {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("logging: failed to open log file %s: %w", cfg.LogFile, err)
		}
		out = zerolog.MultiLevelWriter(console, f)
	}

	level := Level(cfg.Level)
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()
	return logger, nil
}
