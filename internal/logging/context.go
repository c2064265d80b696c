package logging

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// FromContext returns the request logger installed by the request middleware.
// Code running outside a request gets the default logger marked as a fallback
// so stray lines are easy to find.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, _ := ctx.Value(loggerKey{}).(*slog.Logger); logger != nil {
		return logger
	}
	return slog.Default().With(slog.String("logger", "fallback"))
}

func AddToContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Every line logged further down the request carries attrs
func AddMetaToContext(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	handler := FromContext(ctx).Handler().WithAttrs(attrs)
	return AddToContext(ctx, slog.New(handler))
}
