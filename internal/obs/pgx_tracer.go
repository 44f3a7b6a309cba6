package obs

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type pgxQueryKey struct{}

type pgxQuery struct {
	span  trace.Span
	sql   string
	start time.Time
}

// PGXTracer implements pgx.QueryTracer. Every statement gets a span; statements slower
// than SlowThreshold are also logged and counted.
type PGXTracer struct {
	Logger        *zerolog.Logger
	Metrics       *QuoteMetrics
	SlowThreshold time.Duration
}

// TraceQueryStart starts a span for the SQL statement.
func (t PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	ctx, span := otel.Tracer("db.pgx").Start(ctx, "pgx.query", trace.WithSpanKind(trace.SpanKindClient))
	sql := truncateSQL(data.SQL)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.statement", sql),
	)
	if fields := strings.Fields(data.SQL); len(fields) > 0 {
		span.SetAttributes(attribute.String("db.operation", strings.ToUpper(fields[0])))
	}
	return context.WithValue(ctx, pgxQueryKey{}, pgxQuery{span: span, sql: sql, start: time.Now()})
}

// TraceQueryEnd ends the span and records any error.
func (t PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	q, ok := ctx.Value(pgxQueryKey{}).(pgxQuery)
	if !ok {
		return
	}
	if data.Err != nil {
		q.span.RecordError(data.Err)
		q.span.SetStatus(codes.Error, data.Err.Error())
	}
	q.span.End()

	elapsed := time.Since(q.start)
	if t.SlowThreshold <= 0 || elapsed < t.SlowThreshold {
		return
	}
	if t.Metrics != nil {
		t.Metrics.SlowQueries.Inc()
	}
	if t.Logger != nil {
		t.Logger.Warn().
			Str("sql", q.sql).
			Int64("duration_ms", elapsed.Milliseconds()).
			Msg("slow query")
	}
}

func truncateSQL(sql string) string {
	trimmed := strings.TrimSpace(sql)
	if len(trimmed) > 300 {
		return trimmed[:300] + "..."
	}
	return trimmed
}
