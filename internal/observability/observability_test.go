package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel/trace"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestClassifyDBErr(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&pgconn.PgError{Code: "23505"}, "unique_violation"},
		{fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40001"}), "serialization_failure"},
		{&pgconn.PgError{Code: "42P01"}, "pg_42P01"},
		{errors.New("context deadline exceeded"), "timeout"},
		{errors.New("failed to connect to host"), "connection"},
		{errors.New("boom"), "unknown"},
	}

	for _, tt := range tests {
		if got := classifyDBErr(tt.err); got != tt.want {
			t.Fatalf("classifyDBErr(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestObserveDB_NoRowsIsNotAnError(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	err := p.ObserveDB("tasks.get", func() error { return pgx.ErrNoRows })
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("ObserveDB must return fn's error unchanged")
	}

	_ = p.ObserveDB("tasks.get", func() error { return errors.New("boom") })

	if n := counterValue(t, p.DbErrorsTotal.WithLabelValues("tasks.get", "unknown")); n != 1 {
		t.Fatalf("errors_total = %v, want 1", n)
	}
	if n := counterValue(t, p.DbErrorsTotal.WithLabelValues("tasks.get", "no_rows")); n != 0 {
		t.Fatalf("no_rows must not be counted as an error, got %v", n)
	}
}

func TestAuthOutcomeNilSafe(t *testing.T) {
	var p *Prom
	p.AuthOutcome("login", "ok")

	p = NewProm(prometheus.NewRegistry())
	p.AuthOutcome("login", "invalid_credentials")

	if n := counterValue(t, p.AuthOutcomes.WithLabelValues("login", "invalid_credentials")); n != 1 {
		t.Fatalf("outcomes_total = %v, want 1", n)
	}
}

func TestLoggerAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger("prod", &buf)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	log.DebugContext(ctx, "hidden at info level")
	log.InfoContext(ctx, "hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected exactly one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["trace_id"] != traceID.String() || rec["span_id"] != spanID.String() {
		t.Fatalf("missing trace correlation: %v", rec)
	}
}

func TestInitTracerDisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "taskhub-test", "")
	if err != nil {
		t.Fatalf("InitTracer() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
}

func TestLoggerKeepsTraceIDsThroughWith(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger("prod", &buf).With("component", "tasks").WithGroup("req")

	traceID, _ := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	spanID, _ := trace.SpanIDFromHex("b7ad6b7169203331")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	log.InfoContext(ctx, "listed", "count", 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode record %q: %v", buf.String(), err)
	}
	if rec["component"] != "tasks" {
		t.Fatalf("lost parent attrs: %v", rec)
	}

	group, _ := rec["req"].(map[string]any)
	if group["trace_id"] != traceID.String() || group["trace_sampled"] != false {
		t.Fatalf("missing trace correlation inside group: %v", rec)
	}
}
