package logging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// fanout passes every record to each handler that accepts its level.
type fanout []slog.Handler

// NewMultiHandler combines handlers into one. Nil handlers are skipped.
func NewMultiHandler(handlers ...slog.Handler) slog.Handler {
	out := make(fanout, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(f, func(h slog.Handler) bool {
		return h.Enabled(ctx, level)
	})
}

// Handle keeps going when a handler fails and returns the joined errors.
func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(fn func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}

// ContextProvider returns attributes computed at log time, such as the
// processes currently running.
type ContextProvider func() []slog.Attr

type dynamic struct {
	next     slog.Handler
	provider ContextProvider
}

// NewContextHandler appends the provider's attributes to every record.
func NewContextHandler(next slog.Handler, provider ContextProvider) slog.Handler {
	return dynamic{next: next, provider: provider}
}

func (d dynamic) Enabled(ctx context.Context, level slog.Level) bool {
	return d.next.Enabled(ctx, level)
}

func (d dynamic) Handle(ctx context.Context, r slog.Record) error {
	if d.provider != nil {
		if attrs := d.provider(); len(attrs) > 0 {
			r = r.Clone()
			r.AddAttrs(attrs...)
		}
	}
	return d.next.Handle(ctx, r)
}

func (d dynamic) WithAttrs(attrs []slog.Attr) slog.Handler {
	return dynamic{next: d.next.WithAttrs(attrs), provider: d.provider}
}

func (d dynamic) WithGroup(name string) slog.Handler {
	if name == "" {
		return d
	}
	return dynamic{next: d.next.WithGroup(name), provider: d.provider}
}
