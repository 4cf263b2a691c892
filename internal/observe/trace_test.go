package observe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// useTracer installs a synchronous in-memory tracer provider as the global
// provider for the duration of the test.
func useTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// captureLog redirects the default logger into a buffer.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestSessionID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"unset", context.Background(), ""},
		{"set", WithSession(context.Background(), "kiosk-7"), "kiosk-7"},
		{"empty id leaves ctx alone", WithSession(context.Background(), ""), ""},
		{"innermost wins", WithSession(WithSession(context.Background(), "a"), "b"), "b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SessionID(tt.ctx); got != tt.want {
				t.Errorf("SessionID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCorrelationID(t *testing.T) {
	useTracer(t)

	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID without span = %q, want empty", got)
	}

	ctx, span := StartSpan(context.Background(), "turn")
	defer span.End()
	cid := CorrelationID(ctx)
	if len(cid) != 32 || strings.Trim(cid, "0123456789abcdef") != "" {
		t.Errorf("CorrelationID = %q, want 32 hex characters", cid)
	}
}

func TestLogger_Attributes(t *testing.T) {
	useTracer(t)
	buf := captureLog(t)

	Logger(context.Background()).Info("bare")
	ctx, span := StartSpan(WithSession(context.Background(), "kiosk-7"), "turn")
	Logger(ctx).Info("enriched")
	span.End()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("logged %d lines, want 2:\n%s", len(lines), buf)
	}
	if strings.Contains(lines[0], "session=") || strings.Contains(lines[0], "trace_id=") {
		t.Errorf("bare line has context attributes: %s", lines[0])
	}
	for _, want := range []string{"session=kiosk-7", "trace_id=", "span_id="} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("enriched line missing %q: %s", want, lines[1])
		}
	}
}

func TestStartStage_Success(t *testing.T) {
	exp := useTracer(t)
	m, reader := newTestMetrics(t)

	ctx, stage := m.StartStage(context.Background(), KindLLM, "openai")
	stage.End(ctx, nil)

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "turn.llm" {
		t.Fatalf("spans = %+v, want one turn.llm span", spans)
	}
	if spans[0].Status.Code == codes.Error {
		t.Error("successful stage span has error status")
	}

	rm := collect(t, reader)
	if got := sumOf(t, rm, "vaani.provider.requests", Attr("status", "ok")); got != 1 {
		t.Errorf("ok requests = %d, want 1", got)
	}
	if findMetric(rm, "vaani.llm.duration") == nil {
		t.Error("llm latency not recorded")
	}
}

func TestStartStage_Failure(t *testing.T) {
	exp := useTracer(t)
	buf := captureLog(t)
	m, reader := newTestMetrics(t)

	ctx, stage := m.StartStage(WithSession(context.Background(), "s1"), KindTTS, "google")
	stage.End(ctx, errors.New("quota exceeded"))

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error || spans[0].Status.Description != "quota exceeded" {
		t.Errorf("span status = %+v", spans[0].Status)
	}

	rm := collect(t, reader)
	if got := sumOf(t, rm, "vaani.provider.errors", Attr("provider", "google")); got != 1 {
		t.Errorf("provider errors = %d, want 1", got)
	}
	if got := sumOf(t, rm, "vaani.provider.requests", Attr("status", "error")); got != 1 {
		t.Errorf("error requests = %d, want 1", got)
	}
	if findMetric(rm, "vaani.tts.duration") == nil {
		t.Error("tts latency not recorded")
	}

	logged := buf.String()
	for _, want := range []string{"provider call failed", "provider=google", "kind=tts", "session=s1"} {
		if !strings.Contains(logged, want) {
			t.Errorf("log missing %q: %s", want, logged)
		}
	}
}
