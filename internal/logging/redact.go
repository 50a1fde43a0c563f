package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// Mask replaces the value of any credential-bearing attribute
const Mask = "***REDACTED***"

var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "csrf", "cookie", "credential",
}

// RedactHandler wraps an slog.Handler and masks attributes whose key
// names a credential before they reach the underlying handler.
type RedactHandler struct {
	handler slog.Handler
}

// NewRedactHandler wraps handler
func NewRedactHandler(handler slog.Handler) *RedactHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &RedactHandler{handler: handler}
}

func (h *RedactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *RedactHandler) Handle(ctx context.Context, r slog.Record) error {
	redacted := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		redacted.AddAttrs(redact(a))
		return true
	})
	return h.handler.Handle(ctx, redacted)
}

func (h *RedactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redact(a)
	}
	return &RedactHandler{handler: h.handler.WithAttrs(redacted)}
}

func (h *RedactHandler) WithGroup(name string) slog.Handler {
	return &RedactHandler{handler: h.handler.WithGroup(name)}
}

func redact(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		redacted := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			redacted[i] = redact(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	}

	key := strings.ToLower(a.Key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(key, keyword) {
			return slog.String(a.Key, Mask)
		}
	}
	return a
}

// NewLogger returns a text logger on w that redacts credentials. Verbose
// lowers the level to debug.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(NewRedactHandler(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}
