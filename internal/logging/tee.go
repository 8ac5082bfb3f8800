package logging

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler writes each record to every target whose level admits it.
type teeHandler struct {
	targets []slog.Handler
}

func newTeeHandler(targets ...slog.Handler) slog.Handler {
	var kept []slog.Handler
	for _, target := range targets {
		if target != nil {
			kept = append(kept, target)
		}
	}
	switch len(kept) {
	case 0:
		return NoopHandler{}
	case 1:
		return kept[0]
	}
	return &teeHandler{targets: kept}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return len(h.accepting(ctx, level)) > 0
}

// Handle returns every target failure joined; one failing sink does not
// starve the others.
func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	accepting := h.accepting(ctx, record.Level)
	var errs []error
	for i, target := range accepting {
		rec := record
		if i < len(accepting)-1 {
			rec = record.Clone()
		}
		if err := target.Handle(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(target slog.Handler) slog.Handler { return target.WithAttrs(attrs) })
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(target slog.Handler) slog.Handler { return target.WithGroup(name) })
}

func (h *teeHandler) accepting(ctx context.Context, level slog.Level) []slog.Handler {
	var out []slog.Handler
	for _, target := range h.targets {
		if target.Enabled(ctx, level) {
			out = append(out, target)
		}
	}
	return out
}

func (h *teeHandler) derive(fn func(slog.Handler) slog.Handler) slog.Handler {
	next := make([]slog.Handler, len(h.targets))
	for i, target := range h.targets {
		next[i] = fn(target)
	}
	return &teeHandler{targets: next}
}

// TeeLogger returns a logger that writes to base and to each extra handler,
// such as the daemon's debug log file.
func TeeLogger(base *slog.Logger, extra ...slog.Handler) *slog.Logger {
	if base != nil {
		extra = append([]slog.Handler{base.Handler()}, extra...)
	}
	return slog.New(newTeeHandler(extra...))
}
