package worker

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/trackfit/autobone/internal/worker"

type metrics struct {
	startedCount  metric.Int64Counter
	finishedCount metric.Int64Counter
	duration      metric.Float64Histogram
	epochs        metric.Int64Counter
}

// newMetrics uses the global OTel meter (no-op if not configured).
func newMetrics() (*metrics, error) {
	m := otel.Meter(instrumentationName)
	out := &metrics{}

	var err error
	out.startedCount, err = m.Int64Counter(
		"autobone.process.started",
		metric.WithDescription("Operations started"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating started counter: %w", err)
	}

	out.finishedCount, err = m.Int64Counter(
		"autobone.process.finished",
		metric.WithDescription("Operations finished, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating finished counter: %w", err)
	}

	out.duration, err = m.Float64Histogram(
		"autobone.process.duration",
		metric.WithDescription("Operation run time"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	out.epochs, err = m.Int64Counter(
		"autobone.engine.epochs",
		metric.WithDescription("Optimization epochs completed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating epoch counter: %w", err)
	}
	return out, nil
}

func processAttr(pt ProcessType) attribute.KeyValue {
	return attribute.String("process", pt.String())
}

func (m *metrics) started(ctx context.Context, pt ProcessType) {
	m.startedCount.Add(ctx, 1, metric.WithAttributes(processAttr(pt)))
}

func (m *metrics) finished(ctx context.Context, pt ProcessType, success bool, d time.Duration) {
	attrs := metric.WithAttributes(processAttr(pt), attribute.Bool("success", success))
	m.finishedCount.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
}

func (m *metrics) epoch(ctx context.Context) {
	m.epochs.Add(ctx, 1)
}
