package stream

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName identifies this package's metrics and spans to
// whatever OTLP backend internal/pkg/telemetry.Init registered.
const instrumentationName = "github.com/tierwatch/tierwatch/internal/stream"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)

	decodedCounter, _      = meter.Int64Counter("tierwatch.instructions.decoded")
	notificationCounter, _ = meter.Int64Counter("tierwatch.notifications.dispatched")
)

// recordDecoded increments the per-program/instruction decode counter.
func recordDecoded(ctx context.Context, programAlias, instructionName string) {
	decodedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("program", programAlias),
		attribute.String("instruction", instructionName),
	))
}

// recordNotification increments the per-destination/outcome dispatch
// counter.
func recordNotification(ctx context.Context, destination string, ok bool) {
	notificationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("destination", destination),
		attribute.Bool("ok", ok),
	))
}

// startTransactionSpan opens a span covering one transaction's full
// instruction walk, tagged with the transaction signature.
func startTransactionSpan(ctx context.Context, signature string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "stream.process_transaction", trace.WithAttributes(
		attribute.String("tx", signature),
	))
}
