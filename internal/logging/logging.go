// Package logging builds the slog loggers of the command line tools. Its
// handler redacts attributes that may carry key material.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

const redactedValue = "[REDACTED]"

// fingerprintPrefix is the number of hex characters kept of a fingerprint.
const fingerprintPrefix = 16

var sensitiveKeyParts = []string{"secret", "seed", "key", "password", "passphrase", "plaintext"}

// RedactingHandler wraps another handler and scrubs sensitive attributes
// before they reach it.
type RedactingHandler struct {
	next slog.Handler
}

// WrapHandler returns next wrapped in a RedactingHandler.
func WrapHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return &RedactingHandler{next: next}
}

// New returns a text logger writing to w. Debug records are only emitted
// when verbose is set.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(WrapHandler(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(RedactAttr(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, RedactAttr(attr))
	}
	return &RedactingHandler{next: h.next.WithAttrs(out)}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name)}
}

// RedactAttr scrubs a single attribute. Groups are scrubbed recursively.
func RedactAttr(attr slog.Attr) slog.Attr {
	key := strings.ToLower(strings.TrimSpace(attr.Key))

	switch {
	case strings.Contains(key, "fingerprint"):
		return slog.String(attr.Key, shorten(attr.Value.Resolve().String()))
	case isSensitiveKey(key):
		return slog.String(attr.Key, redactedValue)
	case attr.Value.Kind() == slog.KindGroup:
		group := attr.Value.Group()
		out := make([]any, 0, len(group))
		for _, a := range group {
			out = append(out, RedactAttr(a))
		}
		return slog.Group(attr.Key, out...)
	}
	return attr
}

func isSensitiveKey(key string) bool {
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

func shorten(s string) string {
	if len(s) <= fingerprintPrefix {
		return s
	}
	return s[:fingerprintPrefix] + "..."
}
