// Package observe provides application-wide observability primitives for
// Vaani: OpenTelemetry metrics, tracing, session and trace aware logging,
// and the HTTP instrumentation that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so the HTTP front end can
// serve /metrics. A package-level [DefaultMetrics] instance is provided for
// convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Vaani metrics.
const meterName = "github.com/MrWong99/vaani"

// Turn outcomes recorded by [Metrics.RecordTurn].
const (
	OutcomeReply = "reply"
	OutcomeCache = "cache"
	OutcomeExit  = "exit"
	OutcomeError = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms per turn stage ---

	// STTDuration tracks transcription latency.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks completion latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks synthesis latency.
	TTSDuration metric.Float64Histogram

	// TurnDuration tracks a whole turn from input to synthesised reply.
	TurnDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider calls. Attributes: provider, kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider failures. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// CacheLookups counts response cache lookups. Attribute: result (hit|miss).
	CacheLookups metric.Int64Counter

	// LanguageResolutions counts resolved turn languages. Attributes: source, language.
	LanguageResolutions metric.Int64Counter

	// Turns counts finished turns. Attribute: outcome.
	Turns metric.Int64Counter

	// CircuitTransitions counts circuit breaker state changes. Attributes: circuit, state.
	CircuitTransitions metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live conversation states.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP ---

	// HTTPRequestDuration tracks HTTP request processing time. Attributes: method, route, status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// cloud speech and completion round trips.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histograms := []struct {
		dst         *metric.Float64Histogram
		name, descr string
	}{
		{&met.STTDuration, "vaani.stt.duration", "Latency of speech transcription."},
		{&met.LLMDuration, "vaani.llm.duration", "Latency of reply completion."},
		{&met.TTSDuration, "vaani.tts.duration", "Latency of speech synthesis."},
		{&met.TurnDuration, "vaani.turn.duration", "Latency of a full conversational turn."},
	}
	for _, h := range histograms {
		if *h.dst, err = m.Float64Histogram(h.name,
			metric.WithDescription(h.descr),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		); err != nil {
			return nil, err
		}
	}

	counters := []struct {
		dst         *metric.Int64Counter
		name, descr string
	}{
		{&met.ProviderRequests, "vaani.provider.requests", "Total provider requests by provider, kind, and status."},
		{&met.ProviderErrors, "vaani.provider.errors", "Total provider errors by provider and kind."},
		{&met.CacheLookups, "vaani.cache.lookups", "Response cache lookups by result."},
		{&met.LanguageResolutions, "vaani.language.resolutions", "Resolved turn languages by source."},
		{&met.Turns, "vaani.turns", "Finished turns by outcome."},
		{&met.CircuitTransitions, "vaani.circuit.transitions", "Circuit breaker state changes by circuit and new state."},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.descr)); err != nil {
			return nil, err
		}
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("vaani.active_sessions",
		metric.WithDescription("Number of live conversation states."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("vaani.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
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
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails, which should not happen with the global provider.
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records one provider call with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records one provider failure.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordCacheLookup records a response cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordLanguageResolution records which rule chose the turn language.
func (m *Metrics) RecordLanguageResolution(ctx context.Context, source, language string) {
	m.LanguageResolutions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("language", language),
		),
	)
}

// RecordTurn records a finished turn with one of the Outcome constants.
func (m *Metrics) RecordTurn(ctx context.Context, outcome string) {
	m.Turns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordCircuitTransition records a circuit breaker moving into state.
func (m *Metrics) RecordCircuitTransition(ctx context.Context, circuit, state string) {
	m.CircuitTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("circuit", circuit),
			attribute.String("state", state),
		),
	)
}
