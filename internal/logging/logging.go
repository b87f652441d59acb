package logging

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New creates a zerolog logger writing to stderr and the log file
func New() zerolog.Logger {
	return NewWithLevel("info")
}

// NewWithLevel is New with an explicit level ("debug", "info", ...).
// Unknown levels fall back to info. stdout is never written to, it belongs
// to the command protocol.
func NewWithLevel(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	var out io.Writer = console

	if logFile, err := openLogFile(LogPath()); err == nil {
		// Multi-writer: console + file
		out = zerolog.MultiLevelWriter(console, logFile)
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Caller().Logger()
	if err != nil {
		logger.Warn().Err(err).Str("level", level).Msg("Unknown log level, using info")
	}
	return logger
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

// LogPath returns platform-specific log file path
func LogPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Logs"
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.local/state"
		}
	}

	return filepath.Join(base, "voiceflow", "voiceflow.log")
}
