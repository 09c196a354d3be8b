package queue

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// queueTracer is the OTel tracer for per-pass spans. It uses the global
// provider, which is a no-op until the embedder calls
// otel.SetTracerProvider - the engine never forces a telemetry transport on
// its host, matching internal/hooks/hooks_otel.go's approach in the teacher
// repo.
var queueTracer = otel.Tracer("github.com/kestrelq/rowqueue/queue")

// queueMetrics holds the OTel instruments shared by every Queue instance.
// Registered once at init against the global delegating meter provider, so
// they automatically forward to the real provider once one is installed.
var queueMetrics struct {
	claimedBatch   metric.Int64Histogram
	savedResponses metric.Int64Counter
	delivered      metric.Int64Counter
	enqueued       metric.Int64Counter
}

func init() {
	m := otel.Meter("github.com/kestrelq/rowqueue/queue")
	queueMetrics.claimedBatch, _ = m.Int64Histogram("rowqueue.claim.batch_size",
		metric.WithDescription("Rows claimed per Handle/Respond pass"),
		metric.WithUnit("{row}"),
	)
	queueMetrics.savedResponses, _ = m.Int64Counter("rowqueue.handle.saved",
		metric.WithDescription("Responses successfully saved by Handle, by dialect"),
		metric.WithUnit("{row}"),
	)
	queueMetrics.delivered, _ = m.Int64Counter("rowqueue.respond.delivered",
		metric.WithDescription("Responses successfully delivered by Respond, by outcome"),
		metric.WithUnit("{row}"),
	)
	queueMetrics.enqueued, _ = m.Int64Counter("rowqueue.add.enqueued",
		metric.WithDescription("Requests accepted by Add, by outcome"),
		metric.WithUnit("{request}"),
	)
}

func (q *Queue) spanAttrs() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("db.system", string(q.cfg.Dialect)),
		attribute.String("rowqueue.table", q.cfg.Table),
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

func recordOutcome(ctx context.Context, counter metric.Int64Counter, attrs []attribute.KeyValue, outcome string, n int64) {
	if n == 0 {
		return
	}
	counter.Add(ctx, n, metric.WithAttributes(append(append([]attribute.KeyValue{}, attrs...), attribute.String("outcome", outcome))...))
}
