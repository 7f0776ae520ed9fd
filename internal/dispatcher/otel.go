package dispatcher

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/trackfit/autobone/internal/dispatcher"

type instruments struct {
	handled  metric.Int64Counter
	duration metric.Float64Histogram
}

func newInstruments() (*instruments, error) {
	m := otel.Meter(instrumentationName)

	handled, err := m.Int64Counter(
		"dispatcher.commands.handled",
		metric.WithDescription("Commands handled, by command and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating handled counter: %w", err)
	}

	duration, err := m.Float64Histogram(
		"dispatcher.command.duration",
		metric.WithDescription("Time spent in command handlers"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return &instruments{handled: handled, duration: duration}, nil
}

func (i *instruments) record(ctx context.Context, command string, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("command", command),
		attribute.Bool("success", err == nil),
	)
	i.handled.Add(ctx, 1, attrs)
	i.duration.Record(ctx, elapsed.Seconds(), attrs)
}
