package orchestrator

import (
	"context"
	"log/slog"
)

// promoteHandler raises debug records to info so a caller asking for a
// verbose call sees the trace without lowering the global log level.
type promoteHandler struct {
	inner slog.Handler
}

func (h promoteHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, max(level, slog.LevelInfo))
}

func (h promoteHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < slog.LevelInfo {
		r.Level = slog.LevelInfo
	}

	return h.inner.Handle(ctx, r)
}

func (h promoteHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return promoteHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h promoteHandler) WithGroup(name string) slog.Handler {
	return promoteHandler{inner: h.inner.WithGroup(name)}
}
