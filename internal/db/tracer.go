package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aliuyar1234/nr01desk/internal/metrics"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// queryTracer times every query into db_query_duration_seconds and wraps it
// in a client span.
type queryTracer struct{}

type queryStartKey struct{}

type queryStart struct {
	operation string
	at        time.Time
	span      trace.Span
}

func (queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op := sqlOperation(data.SQL)
	ctx, span := otel.Tracer("nr01desk/db").Start(ctx, "db."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation.name", op),
		),
	)
	return context.WithValue(ctx, queryStartKey{}, queryStart{operation: op, at: time.Now(), span: span})
}

func (queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	metrics.DBQueryDuration.WithLabelValues(start.operation).Observe(time.Since(start.at).Seconds())

	if data.Err != nil && !errors.Is(data.Err, pgx.ErrNoRows) {
		metrics.RecordError("database", "error")
		start.span.RecordError(data.Err)
		start.span.SetStatus(codes.Error, data.Err.Error())
	}
	start.span.End()
}

// sqlOperation names a statement by its leading keyword, e.g. "select".
func sqlOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "other"
	}
	switch op := strings.ToLower(fields[0]); op {
	case "select", "insert", "update", "delete", "with", "begin", "commit", "rollback":
		return op
	default:
		return "other"
	}
}
