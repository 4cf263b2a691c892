package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Provider kinds of a turn stage.
const (
	KindSTT = "stt"
	KindLLM = "llm"
	KindTTS = "tts"
)

// Stage measures a single provider call inside a turn: its latency
// histogram, the request and error counters, and a child span.
type Stage struct {
	metrics  *Metrics
	span     trace.Span
	latency  metric.Float64Histogram
	kind     string
	provider string
	start    time.Time
}

// StartStage opens a span named "turn.<kind>" and starts the clock. The
// returned context carries the span and should be passed to the provider.
func (m *Metrics) StartStage(ctx context.Context, kind, provider string) (context.Context, *Stage) {
	ctx, span := StartSpan(ctx, "turn."+kind, trace.WithAttributes(
		attribute.String("provider", provider),
	))
	s := &Stage{
		metrics:  m,
		span:     span,
		kind:     kind,
		provider: provider,
		start:    time.Now(),
	}
	switch kind {
	case KindSTT:
		s.latency = m.STTDuration
	case KindLLM:
		s.latency = m.LLMDuration
	case KindTTS:
		s.latency = m.TTSDuration
	}
	return ctx, s
}

// End records the outcome of the call and ends its span. A non-nil err
// counts as a provider error and is logged at warn level.
func (s *Stage) End(ctx context.Context, err error) {
	defer s.span.End()
	if s.latency != nil {
		s.latency.Record(ctx, time.Since(s.start).Seconds())
	}
	if err == nil {
		s.metrics.RecordProviderRequest(ctx, s.provider, s.kind, "ok")
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
	s.metrics.RecordProviderRequest(ctx, s.provider, s.kind, "error")
	s.metrics.RecordProviderError(ctx, s.provider, s.kind)
	Logger(ctx).Warn("provider call failed", "provider", s.provider, "kind", s.kind, "err", err)
}
