package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// DLQ pass results.
const (
	dlqRequeued    = "requeued"
	dlqRetry       = "retry_scheduled"
	dlqQuarantined = "quarantined"
)

var (
	publishedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aura",
		Subsystem: "outbox",
		Name:      "events_published_total",
		Help:      "Outbox events written to Kafka.",
	}, []string{"topic", "event_type"})

	deadLetteredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aura",
		Subsystem: "outbox",
		Name:      "events_dead_lettered_total",
		Help:      "Outbox events moved to outbox_dlq after a failed publish.",
	}, []string{"topic", "event_type"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "aura",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent claiming, publishing and settling one outbox batch.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqEntriesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aura",
		Subsystem: "outbox",
		Name:      "dlq_entries_total",
		Help:      "DLQ entries handled by the DLQ manager, by result.",
	}, []string{"result", "event_type"})

	dlqBacklogGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "aura",
		Subsystem: "outbox",
		Name:      "dlq_backlog",
		Help:      "DLQ entries neither requeued nor quarantined.",
	})
)

func init() {
	prometheus.MustRegister(publishedCounter, deadLetteredCounter, batchDuration, dlqEntriesCounter, dlqBacklogGauge)
}

func recordPublished(msgs []Message) {
	for _, m := range msgs {
		publishedCounter.WithLabelValues(m.Topic, m.EventType).Inc()
	}
}

func recordDeadLettered(msgs []Message) {
	for _, m := range msgs {
		deadLetteredCounter.WithLabelValues(m.Topic, m.EventType).Inc()
	}
}

func recordDLQ(result, eventType string) {
	dlqEntriesCounter.WithLabelValues(result, eventType).Inc()
}

func refreshDLQBacklog(ctx context.Context, pool *pgxpool.Pool) {
	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&count); err != nil {
		return
	}
	dlqBacklogGauge.Set(float64(count))
}
