package conn

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metrics holds the metric instruments for connection operations.
type metrics struct {
	// Capability call latency histogram
	operationDuration metric.Float64Histogram

	// Live connection handles
	connectionCount metric.Int64UpDownCounter
}

// newMetrics creates and registers metric instruments.
func newMetrics(meter metric.Meter) (*metrics, error) {
	m := &metrics{}
	var err error

	m.operationDuration, err = meter.Float64Histogram(
		"db.client.operation.duration",
		metric.WithDescription("Duration of database client operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.001, 0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 10,
		),
	)
	if err != nil {
		return nil, err
	}

	m.connectionCount, err = meter.Int64UpDownCounter(
		"db.client.connection.count",
		metric.WithDescription("Number of established connection handles"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// recordOperationDuration records the duration of a capability call.
func (m *metrics) recordOperationDuration(
	ctx context.Context,
	duration time.Duration,
	operation string,
	attrs []attribute.KeyValue,
	err error,
) {
	if m == nil || m.operationDuration == nil {
		return
	}

	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+2)
	allAttrs = append(allAttrs, attrs...)

	if operation != "" {
		allAttrs = append(allAttrs, attribute.String("db.operation", operation))
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	allAttrs = append(allAttrs, attribute.String("status", status))

	m.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(allAttrs...))
}

// addConnections adjusts the live connection count.
func (m *metrics) addConnections(ctx context.Context, delta int64, attrs []attribute.KeyValue) {
	if m == nil || m.connectionCount == nil {
		return
	}
	m.connectionCount.Add(ctx, delta, metric.WithAttributes(attrs...))
}
