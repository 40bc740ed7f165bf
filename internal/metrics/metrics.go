// Package metrics defines the OpenTelemetry instruments devdeck records.
// Instruments come from the global meter provider, which is a no-op until an
// SDK provider is installed by the embedding process.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of all devdeck instruments.
const MeterName = "github.com/thebtf/devdeck"

// Instruments groups the counters and histograms of the service.
// A nil *Instruments records nothing.
type Instruments struct {
	commands        metric.Int64Counter
	commandDuration metric.Float64Histogram
	broadcasts      metric.Int64Counter
	dropped         metric.Int64Counter
	clients         metric.Int64UpDownCounter
}

// New creates the instruments on meter.
func New(meter metric.Meter) (*Instruments, error) {
	commands, err := meter.Int64Counter("devdeck.terminal.commands",
		metric.WithDescription("Commands executed, by outcome"))
	if err != nil {
		return nil, err
	}
	commandDuration, err := meter.Float64Histogram("devdeck.terminal.command.duration",
		metric.WithDescription("Wall-clock time of command executions"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	broadcasts, err := meter.Int64Counter("devdeck.realtime.deliveries",
		metric.WithDescription("Messages handed to real-time clients"))
	if err != nil {
		return nil, err
	}
	dropped, err := meter.Int64Counter("devdeck.realtime.dropped",
		metric.WithDescription("Messages dropped because a client was not ready"))
	if err != nil {
		return nil, err
	}
	clients, err := meter.Int64UpDownCounter("devdeck.realtime.clients",
		metric.WithDescription("Open real-time connections"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		commands:        commands,
		commandDuration: commandDuration,
		broadcasts:      broadcasts,
		dropped:         dropped,
		clients:         clients,
	}, nil
}

// Default creates the instruments on the global meter provider.
func Default() (*Instruments, error) {
	return New(otel.Meter(MeterName))
}

// RecordCommand records one finished command.
func (i *Instruments) RecordCommand(ctx context.Context, exitCode int, d time.Duration) {
	if i == nil {
		return
	}
	outcome := "success"
	if exitCode != 0 {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	i.commands.Add(ctx, 1, attrs)
	i.commandDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordBroadcast records the fan-out of one event.
func (i *Instruments) RecordBroadcast(ctx context.Context, eventType string, delivered, dropped int) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("event", eventType))
	i.broadcasts.Add(ctx, int64(delivered), attrs)
	if dropped > 0 {
		i.dropped.Add(ctx, int64(dropped), attrs)
	}
}

// ClientConnected records an opened connection.
func (i *Instruments) ClientConnected(ctx context.Context, transport string) {
	if i == nil {
		return
	}
	i.clients.Add(ctx, 1, metric.WithAttributes(attribute.String("transport", transport)))
}

// ClientDisconnected records a closed connection.
func (i *Instruments) ClientDisconnected(ctx context.Context, transport string) {
	if i == nil {
		return
	}
	i.clients.Add(ctx, -1, metric.WithAttributes(attribute.String("transport", transport)))
}
