package conn

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	// This identifies the library in traces and metrics.
	scope = "github.com/kroma-labs/sentinel-conn"
)

// config holds the configuration for an instrumented connection.
type config struct {
	// TracerProvider is the tracer provider to use.
	// If not set, uses the global provider via otel.GetTracerProvider().
	TracerProvider trace.TracerProvider

	// MeterProvider is the meter provider to use.
	// If not set, uses the global provider via otel.GetMeterProvider().
	MeterProvider metric.MeterProvider

	// Tracer is the tracer instance created from TracerProvider.
	Tracer trace.Tracer

	// Meter is the meter instance created from MeterProvider.
	Meter metric.Meter

	// Metrics holds the metric instruments.
	Metrics *metrics

	// DriverName is the database/sql driver the native connection is opened with.
	// Backends preset their default ("pgx", "mysql", "sqlite").
	DriverName string

	// InstanceName identifies a specific connection target, such as
	// "primary" or "replica". Added as the "db.instance" attribute.
	InstanceName string

	// RecordStatement adds "db.statement" and "db.operation" to spans.
	// Off by default: spans carry only the connection fields.
	RecordStatement bool

	// QuerySanitizer sanitizes SQL before it is recorded.
	// Only used when RecordStatement is set.
	QuerySanitizer func(query string) string

	// Logger receives debug events about the connection lifecycle.
	Logger zerolog.Logger
}

// newConfig creates a new config with defaults and applies options.
func newConfig(opts ...Option) *config {
	cfg := &config{
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),
		Logger:         zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	cfg.Tracer = cfg.TracerProvider.Tracer(scope)
	cfg.Meter = cfg.MeterProvider.Meter(scope)

	// Initialize metrics (ignore errors, will just be nil if fails)
	cfg.Metrics, _ = newMetrics(cfg.Meter)

	return cfg
}

// Option configures an instrumented connection.
type Option func(*config)

// WithTracerProvider sets a custom tracer provider.
// If not called, the global provider from otel.GetTracerProvider() is used.
//
// Example:
//
//	tp := sdktrace.NewTracerProvider(...)
//	c, _ := postgres.Establish(ctx, dsn,
//	    conn.WithTracerProvider(tp),
//	)
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.TracerProvider = tp
	}
}

// WithMeterProvider sets a custom meter provider.
// If not called, the global provider from otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *config) {
		cfg.MeterProvider = mp
	}
}

// WithDriverName overrides the registered database/sql driver used to open
// the native connection. The connection string is passed to it unmodified.
//
// Example:
//
//	// Use lib/pq instead of pgx
//	c, _ := postgres.Establish(ctx, dsn, conn.WithDriverName("postgres"))
func WithDriverName(name string) Option {
	return func(cfg *config) {
		cfg.DriverName = name
	}
}

// WithInstanceName sets an identifier for this connection target.
// This is added as the "db.instance" attribute on all spans.
//
// Example:
//
//	replica, _ := postgres.Establish(ctx, replicaDSN,
//	    conn.WithInstanceName("replica"),
//	)
func WithInstanceName(name string) Option {
	return func(cfg *config) {
		cfg.InstanceName = name
	}
}

// WithStatement records the SQL text ("db.statement") and its operation
// ("db.operation") on spans. Combine with WithQuerySanitizer when queries
// may contain literal values.
func WithStatement() Option {
	return func(cfg *config) {
		cfg.RecordStatement = true
	}
}

// WithQuerySanitizer sets the function applied to SQL before it is recorded.
//
// Example:
//
//	c, _ := sqlite.Establish(ctx, "app.db",
//	    conn.WithStatement(),
//	    conn.WithQuerySanitizer(conn.DefaultQuerySanitizer),
//	)
func WithQuerySanitizer(fn func(string) string) Option {
	return func(cfg *config) {
		cfg.QuerySanitizer = fn
	}
}

// WithLogger sets the logger for connection lifecycle events.
// Events are emitted at debug level. Defaults to a disabled logger.
//
// Example:
//
//	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
//	c, _ := mysql.Establish(ctx, dsn, conn.WithLogger(logger))
func WithLogger(l zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.Logger = l
	}
}
