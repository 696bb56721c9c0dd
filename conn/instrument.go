package conn

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Span names, one per capability.
const (
	OpEstablish             = "establish"
	OpBatchExecute          = "batch_execute"
	OpExecuteReturningCount = "execute_returning_count"
	OpLoad                  = "load"
	OpTransaction           = "transaction"
	OpTransactionState      = "transaction_state"
)

// ErrorTypeFunc maps a driver error to a backend-specific error.type value,
// such as a SQLSTATE code. It returns "" when the error is not recognized.
type ErrorTypeFunc func(err error) string

// Instrument brackets capability calls of one connection with spans and
// metrics. It holds the static fields (db.system, db.instance) and, once
// resolved, the connection identity.
//
// An Instrument belongs to one connection handle and is not safe for
// concurrent use.
type Instrument struct {
	cfg       *config
	system    string
	identity  *Identity
	errorType ErrorTypeFunc
	logger    zerolog.Logger
	open      bool
}

// NewInstrument creates the instrumentation for one connection of the given
// db.system. errorType may be nil.
func NewInstrument(system string, errorType ErrorTypeFunc, opts ...Option) *Instrument {
	cfg := newConfig(opts...)
	return &Instrument{
		cfg:       cfg,
		system:    system,
		errorType: errorType,
		logger: cfg.Logger.With().
			Str("db.system", system).
			Str("conn_id", uuid.NewString()).
			Logger(),
	}
}

// WithIdentity returns a copy of the instrument whose spans also carry id.
func (in *Instrument) WithIdentity(id Identity) *Instrument {
	cp := *in
	cp.identity = &id
	cp.logger = in.logger.With().Str("db.name", id.Name).Logger()
	return &cp
}

// Identity returns the identity attached with WithIdentity.
func (in *Instrument) Identity() (Identity, bool) {
	if in.identity == nil {
		return Identity{}, false
	}
	return *in.identity, true
}

// System returns the db.system value.
func (in *Instrument) System() string {
	return in.system
}

// DriverName returns the database/sql driver to open the native connection with.
func (in *Instrument) DriverName() string {
	return in.cfg.DriverName
}

// Logger returns the connection logger, tagged with db.system and conn_id.
func (in *Instrument) Logger() *zerolog.Logger {
	return &in.logger
}

// TrackOpen counts the connection as established.
func (in *Instrument) TrackOpen(ctx context.Context) {
	if in.open {
		return
	}
	in.open = true
	in.cfg.Metrics.addConnections(ctx, 1, in.baseAttributes())
}

// TrackClose counts the connection as closed. Repeated calls are no-ops.
func (in *Instrument) TrackClose(ctx context.Context) {
	if !in.open {
		return
	}
	in.open = false
	in.cfg.Metrics.addConnections(ctx, -1, in.baseAttributes())
}

// baseAttributes returns the static attributes for metrics.
func (in *Instrument) baseAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if in.system != "" {
		attrs = append(attrs, semconv.DBSystemKey.String(in.system))
	}
	if in.cfg.InstanceName != "" {
		attrs = append(attrs, dbInstanceKey.String(in.cfg.InstanceName))
	}
	return attrs
}

// spanAttributes returns the attributes a span starts with.
func (in *Instrument) spanAttributes(query string) []attribute.KeyValue {
	attrs := in.baseAttributes()
	if in.identity != nil {
		attrs = append(attrs, in.identity.Attributes()...)
	}

	if in.cfg.RecordStatement && query != "" {
		sanitized := query
		if in.cfg.QuerySanitizer != nil {
			sanitized = in.cfg.QuerySanitizer(query)
		}
		attrs = append(attrs, semconv.DBStatementKey.String(sanitized))
		if op := extractOperation(query); op != "" {
			attrs = append(attrs, semconv.DBOperationKey.String(op))
		}
	}

	return attrs
}

// Span is an open capability span.
type Span struct {
	in    *Instrument
	ctx   context.Context
	span  trace.Span
	op    string
	start time.Time
}

// Start opens a client span for op. The query, if any, is recorded only
// when statement recording is enabled. The returned context carries the
// span so that nested calls become children.
func (in *Instrument) Start(ctx context.Context, op, query string) (context.Context, *Span) {
	ctx, span := in.cfg.Tracer.Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(in.spanAttributes(query)...),
	)
	return ctx, &Span{
		in:    in,
		ctx:   ctx,
		span:  span,
		op:    op,
		start: time.Now(),
	}
}

// SetIdentity adds the identity attributes to a span that was started
// before the identity was known.
func (s *Span) SetIdentity(id Identity) {
	s.span.SetAttributes(id.Attributes()...)
}

// End records err (if any) on the span, records the call duration and
// closes the span. err itself is not altered.
func (s *Span) End(err error) {
	s.in.cfg.Metrics.recordOperationDuration(
		s.ctx,
		time.Since(s.start),
		s.op,
		s.in.baseAttributes(),
		err,
	)

	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
		s.span.SetAttributes(errorTypeKey.String(s.in.classify(err)))
	}
	s.span.End()
}

// endOnPanic closes the span if the wrapped call panicked, then re-panics.
func (s *Span) endOnPanic() {
	if p := recover(); p != nil {
		s.End(fmt.Errorf("panic: %v", p))
		panic(p)
	}
}

// classify prefers the backend's classification over the generic one,
// except for configuration failures.
func (in *Instrument) classify(err error) string {
	if IsConfigurationError(err) {
		return ErrorTypeConfiguration
	}
	if in.errorType != nil {
		if t := in.errorType(err); t != "" {
			return t
		}
	}
	return classifyError(err)
}

// Call runs fn inside a span named op and returns its results unchanged.
func Call[T any](
	ctx context.Context,
	in *Instrument,
	op, query string,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	return CallWithSpan(ctx, in, op, query, func(ctx context.Context, _ *Span) (T, error) {
		return fn(ctx)
	})
}

// CallWithSpan is Call for callers that enrich the span while fn runs,
// such as adding identity attributes resolved during establish. fn must
// not end the span.
func CallWithSpan[T any](
	ctx context.Context,
	in *Instrument,
	op, query string,
	fn func(ctx context.Context, span *Span) (T, error),
) (T, error) {
	ctx, span := in.Start(ctx, op, query)
	defer span.endOnPanic()
	v, err := fn(ctx, span)
	span.End(err)
	return v, err
}

// Exec is Call for operations that only return an error.
func Exec(ctx context.Context, in *Instrument, op, query string, fn func(ctx context.Context) error) error {
	ctx, span := in.Start(ctx, op, query)
	defer span.endOnPanic()
	err := fn(ctx)
	span.End(err)
	return err
}
