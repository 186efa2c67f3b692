package cli

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gpusieve/internal/common/fsutil"
)

// newLogger builds the console logger used by every command.
func newLogger(level string, out io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	w := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// openLogOutput returns the file at path for appending, or fallback when path is empty.
func openLogOutput(path string, fallback io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return fallback, func() error { return nil }, nil
	}
	if err := fsutil.EnsureParentDir(path); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
