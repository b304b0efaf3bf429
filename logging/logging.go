// Package logging builds the structured logger shared by the session, the presenter and the CLI
//
// The terminal belongs to the presenter while a session runs, so loggers normally write to a
// file or io.Discard. Loggers travel through context.Context between command layers.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// TimeFormat renders timestamps as HH:MM:SS.cc
const TimeFormat = "15:04:05.00"

// New creates a timestamped logger writing to w at the given level
func New(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      TimeFormat,
		Level:           level,
	})
}

// Discard returns a logger that drops everything
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// ParseLevel maps a level name to a log level; empty means info
func ParseLevel(s string) (log.Level, error) {
	if strings.TrimSpace(s) == "" {
		return log.InfoLevel, nil
	}
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("log level %q: %w", s, err)
	}
	return lvl, nil
}

// OpenFile opens path for appending and returns a logger on it with a close func
// An empty path yields a discarding logger
func OpenFile(path string, level log.Level) (*log.Logger, func() error, error) {
	if path == "" {
		return Discard(), func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return New(f, level), f.Close, nil
}

// NewSessionID returns a fresh identifier for log correlation
func NewSessionID() string {
	return uuid.NewString()
}

// ForSession returns a child logger tagged with the session id
func ForSession(l *log.Logger, id string) *log.Logger {
	return l.With("session", shortID(id))
}

// shortID keeps the first uuid group, enough to tell sessions apart in one log
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

type ctxKey int

const loggerKey ctxKey = 0

// WithLogger returns a context carrying l
func WithLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger in ctx, or log.Default when none is attached
func FromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
