// Package logging builds the structured logger shared by the CLI, the store and the syncer.
package logging

import (
	"io"
	"log/slog"
)

// New returns a text logger writing to w. Info and above are emitted by default,
// debug output is enabled with verbose.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: verbose,
	})
	return slog.New(handler)
}

// Discard returns a logger that drops everything, used by tests
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
