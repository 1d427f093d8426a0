package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Logger is the process-wide structured logger. It discards output until InitLogger runs.
var Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// InitLogger points Logger at stdout and installs it as the slog default
func InitLogger(serviceName, level string) *slog.Logger {
	Logger = NewLogger(os.Stdout, serviceName, level)
	slog.SetDefault(Logger)
	return Logger
}

// NewLogger returns a JSON logger tagged with the service name. Records
// logged with a context that carries a valid span get trace_id and span_id.
// level is a slog level name ("debug", "info", "warn"/"warning", "error");
// anything unrecognised means info.
func NewLogger(w io.Writer, serviceName, level string) *slog.Logger {
	handler := spanHandler{
		Handler: slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}),
	}
	return slog.New(handler).With(slog.String("service", serviceName))
}

func parseLevel(level string) slog.Level {
	level = strings.TrimSpace(level)
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

type spanHandler struct {
	slog.Handler
}

func (h spanHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, record)
}

func (h spanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return spanHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h spanHandler) WithGroup(name string) slog.Handler {
	return spanHandler{Handler: h.Handler.WithGroup(name)}
}
