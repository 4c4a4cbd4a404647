// Package observability implements the ambient logging and metrics stack
// every mwpersist subcommand shares: a slog handler that injects page/
// revision context into structured log records, and the Prometheus RED
// metrics exposed on an optional --metrics-addr listener.
package observability

import (
	"context"
	"log/slog"
	"os"
)

type contextKey int

const (
	pageTitleKey contextKey = iota
	revisionIDKey
)

// WithPage returns a context carrying the page title for PageHandler to
// attach to every log record emitted while processing that page.
func WithPage(ctx context.Context, title string) context.Context {
	return context.WithValue(ctx, pageTitleKey, title)
}

// WithRevision returns a context carrying the revision id for PageHandler
// to attach to every log record emitted while processing that revision.
func WithRevision(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, revisionIDKey, id)
}

// PageHandler is an slog.Handler that injects the page title and revision
// id carried on the record's context, mirroring the teacher's
// TracingHandler decorator but keyed on this pipeline's own identifiers
// (page/revision) instead of OpenTelemetry trace/span ids -- there is no
// distributed trace to propagate in a single-process line-delimited
// pipeline, so the decorator attaches the domain context that matters here.
type PageHandler struct {
	inner slog.Handler
}

// NewPageHandler wraps inner, injecting page_title and revision_id.
func NewPageHandler(inner slog.Handler) *PageHandler {
	return &PageHandler{inner: inner}
}

// Enabled delegates to the inner handler.
func (h *PageHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds page/revision attributes from ctx, then delegates.
func (h *PageHandler) Handle(ctx context.Context, record slog.Record) error {
	if title, ok := ctx.Value(pageTitleKey).(string); ok {
		record.AddAttrs(slog.String("page_title", title))
	}

	if id, ok := ctx.Value(revisionIDKey).(int64); ok {
		record.AddAttrs(slog.Int64("revision_id", id))
	}

	return h.inner.Handle(ctx, record) //nolint:wrapcheck
}

// WithAttrs returns a new PageHandler with additional attributes on the
// inner handler.
func (h *PageHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &PageHandler{inner: h.inner.WithAttrs(attrs)}
}

// WithGroup returns a new PageHandler with a group prefix on the inner
// handler.
func (h *PageHandler) WithGroup(name string) slog.Handler {
	return &PageHandler{inner: h.inner.WithGroup(name)}
}

// NewLogger builds the default structured logger: JSON to stderr, wrapped
// in PageHandler, at slog.LevelDebug when verbose is set and
// slog.LevelInfo otherwise (spec §1).
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	jsonHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	return slog.New(NewPageHandler(jsonHandler))
}
