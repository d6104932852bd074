// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"slices"
	"sync"
	"testing"
)

// NewTestLogger returns a debug logger that writes through t.Log, so output
// only shows for failing tests or under -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	logger, _ := NewRecordingLogger(t)
	return logger
}

// NewRecordingLogger is NewTestLogger plus a record of every message logged,
// for tests that assert on what a component reported.
func NewRecordingLogger(t testing.TB) (*slog.Logger, *LogRecorder) {
	t.Helper()
	rec := &LogRecorder{}
	h := slog.NewTextHandler(tbWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(&recordingHandler{Handler: h, rec: rec}), rec
}

// LogRecorder collects log messages with their levels.
type LogRecorder struct {
	mu      sync.Mutex
	entries []LogEntry
}

// LogEntry is a single recorded message.
type LogEntry struct {
	Level   slog.Level
	Message string
}

// Messages returns the recorded messages at or above level, oldest first.
func (r *LogRecorder) Messages(level slog.Level) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		if e.Level >= level {
			out = append(out, e.Message)
		}
	}
	return out
}

// Has reports whether message was logged at any level.
func (r *LogRecorder) Has(message string) bool {
	return slices.Contains(r.Messages(slog.LevelDebug), message)
}

type recordingHandler struct {
	slog.Handler
	rec *LogRecorder
}

func (h *recordingHandler) Handle(ctx context.Context, r slog.Record) error {
	h.rec.mu.Lock()
	h.rec.entries = append(h.rec.entries, LogEntry{Level: r.Level, Message: r.Message})
	h.rec.mu.Unlock()
	return h.Handler.Handle(ctx, r)
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recordingHandler{Handler: h.Handler.WithAttrs(attrs), rec: h.rec}
}

func (h *recordingHandler) WithGroup(name string) slog.Handler {
	return &recordingHandler{Handler: h.Handler.WithGroup(name), rec: h.rec}
}

// tbWriter sends each handler write to t.Log without its trailing newline.
type tbWriter struct{ t testing.TB }

func (w tbWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}
