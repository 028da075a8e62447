package common

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the JSON slog logger used by the binaries. debug lowers the level.
func NewLogger(w io.Writer, debug bool) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
