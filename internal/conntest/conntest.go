// Package conntest holds helpers shared by the backend tests: a span
// recorder, a metric reader and sqlmock sessions that can be opened
// through the regular establish path.
package conntest

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kroma-labs/sentinel-conn/conn"
)

// MockDriverName is the database/sql driver sqlmock registers.
const MockDriverName = "sqlmock"

// Telemetry records spans and metrics in memory.
type Telemetry struct {
	Exporter *tracetest.InMemoryExporter
	Reader   *sdkmetric.ManualReader
	Options  []conn.Option
}

// NewTelemetry returns in-memory tracer and meter providers and the options
// that install them.
func NewTelemetry(t *testing.T) *Telemetry {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
		_ = mp.Shutdown(t.Context())
	})

	return &Telemetry{
		Exporter: exporter,
		Reader:   reader,
		Options: []conn.Option{
			conn.WithTracerProvider(tp),
			conn.WithMeterProvider(mp),
		},
	}
}

// Spans returns the ended spans in the order they ended.
func (tel *Telemetry) Spans() tracetest.SpanStubs {
	return tel.Exporter.GetSpans()
}

// SpanNames returns the names of the ended spans.
func (tel *Telemetry) SpanNames() []string {
	spans := tel.Exporter.GetSpans()
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name)
	}
	return names
}

// FindSpan returns the last ended span named name.
func (tel *Telemetry) FindSpan(t *testing.T, name string) tracetest.SpanStub {
	t.Helper()

	spans := tel.Exporter.GetSpans()
	for i := len(spans) - 1; i >= 0; i-- {
		if spans[i].Name == name {
			return spans[i]
		}
	}
	require.Failf(t, "span not found", "no span named %q in %v", name, tel.SpanNames())
	return tracetest.SpanStub{}
}

// Attrs indexes span attributes by key.
func Attrs(s tracetest.SpanStub) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(s.Attributes))
	for _, kv := range s.Attributes {
		m[kv.Key] = kv.Value
	}
	return m
}

// NewMock registers a sqlmock session under a fresh DSN. Opening that DSN
// with the "sqlmock" driver returns the mocked session, so the code under
// test can open it on its own. Queries are matched exactly.
//
// Expectations are checked when the test ends.
func NewMock(t *testing.T) (string, sqlmock.Sqlmock) {
	t.Helper()

	dsn := "sqlmock_" + uuid.NewString()
	_, mock, err := sqlmock.NewWithDSN(dsn, sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
	})

	return dsn, mock
}
