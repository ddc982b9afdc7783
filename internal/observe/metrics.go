// Package observe provides application-wide observability primitives for
// HoloHire: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all HoloHire metrics.
const meterName = "github.com/karanmishra2003/HoloHire"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// LLMDuration tracks LLM completion latency (scoring, question generation).
	LLMDuration metric.Float64Histogram

	// S2SConnectDuration tracks how long establishing a voice session takes.
	S2SConnectDuration metric.Float64Histogram

	// PersistDuration tracks session result writes.
	PersistDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// SessionOutcomes counts finished live sessions. Use with attribute:
	//   attribute.String("outcome", ...)
	SessionOutcomes metric.Int64Counter

	// AnswersRecorded counts committed answer records by outcome.
	AnswersRecorded metric.Int64Counter

	// QuestionAdvances counts question index changes. Use with attribute:
	//   attribute.String("trigger", ...)
	QuestionAdvances metric.Int64Counter

	// VoiceCommands counts recognised candidate commands by command.
	VoiceCommands metric.Int64Counter

	// AttentionSamples counts gaze samples by classification.
	AttentionSamples metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// PersistFailures counts session results that could not be written.
	PersistFailures metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live interview sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds).
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.LLMDuration, err = m.Float64Histogram("holohire.llm.duration",
		metric.WithDescription("Latency of LLM completions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.S2SConnectDuration, err = m.Float64Histogram("holohire.s2s.connect.duration",
		metric.WithDescription("Time to establish a real-time voice session."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PersistDuration, err = m.Float64Histogram("holohire.session.persist.duration",
		metric.WithDescription("Latency of writing a finished session's answers."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("holohire.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.SessionOutcomes, err = m.Int64Counter("holohire.session.outcomes",
		metric.WithDescription("Finished live interview sessions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.AnswersRecorded, err = m.Int64Counter("holohire.answers.recorded",
		metric.WithDescription("Committed answer records by outcome."),
	); err != nil {
		return nil, err
	}
	if met.QuestionAdvances, err = m.Int64Counter("holohire.question.advances",
		metric.WithDescription("Question index changes by trigger."),
	); err != nil {
		return nil, err
	}
	if met.VoiceCommands, err = m.Int64Counter("holohire.voice.commands",
		metric.WithDescription("Recognised candidate voice commands."),
	); err != nil {
		return nil, err
	}
	if met.AttentionSamples, err = m.Int64Counter("holohire.attention.samples",
		metric.WithDescription("Gaze samples by classification."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("holohire.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.PersistFailures, err = m.Int64Counter("holohire.session.persist.failures",
		metric.WithDescription("Session results that could not be persisted."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("holohire.active_sessions",
		metric.WithDescription("Number of live interview sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("holohire.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a provider request counter increment with the
// standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordSessionOutcome counts a finished session.
func (m *Metrics) RecordSessionOutcome(ctx context.Context, outcome string) {
	m.SessionOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordAnswer counts a committed answer record.
func (m *Metrics) RecordAnswer(ctx context.Context, outcome string) {
	m.AnswersRecorded.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordAdvance counts a question index change.
func (m *Metrics) RecordAdvance(ctx context.Context, trigger string) {
	m.QuestionAdvances.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
}

// RecordVoiceCommand counts a recognised voice command.
func (m *Metrics) RecordVoiceCommand(ctx context.Context, command string) {
	m.VoiceCommands.Add(ctx, 1, metric.WithAttributes(attribute.String("command", command)))
}

// RecordAttention counts a classified gaze sample.
func (m *Metrics) RecordAttention(ctx context.Context, state string) {
	m.AttentionSamples.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}
