package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/davidahmann/tally"

var (
	metricsOnce       sync.Once
	metricsRegistered bool
	decisionCounter   metric.Int64Counter
	reasoningDuration metric.Float64Histogram
)

func initMetrics() {
	meter := otel.Meter(meterName)
	var err error
	decisionCounter, err = meter.Int64Counter(
		"tally.decisions",
		metric.WithDescription("Envelopes produced, by decision, reason code and path"),
	)
	if err != nil {
		return
	}
	reasoningDuration, err = meter.Float64Histogram(
		"tally.reasoning.duration",
		metric.WithDescription("Wall time of one reasoning invocation"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}
	metricsRegistered = true
}

// RecordDecision counts one produced envelope.
func RecordDecision(ctx context.Context, decision, reasonCode, path string) {
	metricsOnce.Do(initMetrics)
	if !metricsRegistered {
		return
	}
	decisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("decision", decision),
		attribute.String("reason_code", reasonCode),
		attribute.String("path", path),
	))
}

// RecordReasoning records the duration of one reasoning invocation. outcome
// is "live" or the failure cause.
func RecordReasoning(ctx context.Context, provider, outcome string, elapsed time.Duration) {
	metricsOnce.Do(initMetrics)
	if !metricsRegistered {
		return
	}
	reasoningDuration.Record(ctx, float64(elapsed.Microseconds())/1000.0, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}
