package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the HoloHire tracer.
const tracerName = "github.com/karanmishra2003/HoloHire"

// InterviewIDKey is the span attribute naming the interview a span works on.
const InterviewIDKey = attribute.Key("holohire.interview.id")

type interviewIDKey struct{}

// WithInterviewID tags ctx with the interview being handled. Spans from
// [StartSpan] and loggers from [Logger] derived from ctx carry the ID.
func WithInterviewID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, interviewIDKey{}, id)
}

// InterviewID returns the interview ID set by [WithInterviewID], or "".
func InterviewID(ctx context.Context) string {
	id, _ := ctx.Value(interviewIDKey{}).(string)
	return id
}

// Tracer returns the package-level [trace.Tracer] for HoloHire. It uses the
// globally registered [trace.TracerProvider].
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a new span, tagged with the interview ID from ctx when
// there is one. The caller must call span.End() when done.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if id := InterviewID(ctx); id != "" {
		opts = append(opts, trace.WithAttributes(InterviewIDKey.String(id)))
	}
	return Tracer().Start(ctx, name, opts...)
}

// CorrelationID extracts the trace ID from the OTel span context in ctx.
// Returns the empty string when no active span with a valid trace ID exists.
// The trace ID doubles as the correlation identifier.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default [slog.Logger] with trace_id and span_id from the
// span in ctx, plus interview_id when ctx carries one.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if id := InterviewID(ctx); id != "" {
		l = l.With(slog.String("interview_id", id))
	}
	return l
}
