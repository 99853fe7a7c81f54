package observability

import (
	"context"
	"io"
	"log/slog"

	"github.com/nlqgate/nlqgate/internal/config"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// NewLogger builds the service logger. Values logged under the "error" key
// pass through Redact, so driver errors carrying a DSN never reach the sink.
func NewLogger(cfg config.Config, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	opts := &slog.HandlerOptions{
		Level:       cfg.Observability.LogLevel,
		AddSource:   cfg.Profile == config.ProfileDev,
		ReplaceAttr: redactErrorAttr,
	}
	var handler slog.Handler
	if cfg.Observability.LogJSON {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}
	return slog.New(handler).With(
		slog.String("service", cfg.Service.Name),
		slog.String("profile", string(cfg.Profile)),
	)
}

func redactErrorAttr(_ []string, attr slog.Attr) slog.Attr {
	if attr.Key != "error" {
		return attr
	}
	switch value := attr.Value.Any().(type) {
	case error:
		return slog.String(attr.Key, Redact(value.Error()))
	case string:
		return slog.String(attr.Key, Redact(value))
	default:
		return attr
	}
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	value, ok := ctx.Value(traceIDKey).(string)
	if !ok {
		return ""
	}
	return value
}
