package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
)

// LogFileName is the log file written inside the configured log directory.
const LogFileName = "engine.log"

// NewLogger creates a structured logger writing to w at the configured level.
// format selects the JSON or text handler; FormatAuto picks text when w is a
// terminal.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	return slog.New(newHandler(w, level, format))
}

// OpenLogger builds the process logger: w (normally stderr) always, plus
// <logDir>/engine.log in JSON when logDir is set. A log file that cannot be
// opened is reported on w and skipped. The returned function closes the file.
func OpenLogger(w io.Writer, level slog.Level, format, logDir string) (*slog.Logger, func() error) {
	handler := newHandler(w, level, format)
	closeFn := func() error { return nil }

	if logDir != "" {
		file, err := openLogFile(logDir)
		if err != nil {
			fmt.Fprintf(w, "failed to init file logging at %s: %v\n", logDir, err)
		} else {
			fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
			handler = &fanoutHandler{handlers: []slog.Handler{handler, fileHandler}}
			closeFn = file.Close
		}
	}

	return slog.New(handler), closeFn
}

func openLogFile(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, LogFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func newHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatText || (format == FormatAuto && isTerminal(w)) {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// fanoutHandler duplicates every record to all of its handlers.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}
