package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/phrazzld/bpm-api/internal/config"
)

// ParseLevel converts a configured level name into a slog.Level.
// Unknown names are reported as an error and map to info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error", "fatal":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// Setup initializes the application's logger from cfg, writes to stdout,
// and installs the result as the slog default.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	return SetupWithWriter(cfg, os.Stdout)
}

// SetupWithWriter is Setup with an explicit destination.
//
// The "json" format produces one JSON object per record. The "console" format
// renders records through charmbracelet/log for interactive use.
func SetupWithWriter(cfg config.ServerConfig, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		// Keep running at info and say so through a temporary stderr logger.
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Warn(
			"invalid log level configured, using default level",
			"configured_level", cfg.LogLevel,
			"default_level", "info")
	}

	var l *slog.Logger
	switch cfg.LogFormat {
	case "console":
		l = NewConsole(w, level)
	case "json", "":
		l = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}

	slog.SetDefault(l)
	return l, nil
}

// NewConsole returns a slog.Logger that renders through charmbracelet/log.
func NewConsole(w io.Writer, level slog.Level) *slog.Logger {
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Level:           charmlog.Level(level),
	})
	return slog.New(handler)
}
