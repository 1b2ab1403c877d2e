package observability

import (
	"context"

	"prompt-dispatcher/internal/common/logger"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// LogExporter writes each finished span as one structured log line.
type LogExporter struct {
	log logger.Logger
}

func NewLogExporter(log logger.Logger) *LogExporter {
	return &LogExporter{log: log}
}

func (e *LogExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		fields := map[string]interface{}{
			"span":       span.Name(),
			"traceId":    span.SpanContext().TraceID().String(),
			"spanId":     span.SpanContext().SpanID().String(),
			"durationMs": span.EndTime().Sub(span.StartTime()).Milliseconds(),
			"status":     span.Status().Code.String(),
		}
		if desc := span.Status().Description; desc != "" {
			fields["statusDescription"] = desc
		}
		for _, kv := range span.Attributes() {
			fields[string(kv.Key)] = kv.Value.Emit()
		}
		e.log.Debug("span finished", fields)
	}
	return nil
}

func (e *LogExporter) Shutdown(context.Context) error { return nil }
