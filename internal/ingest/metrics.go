package ingest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aura",
		Subsystem: "ingest",
		Name:      "events_total",
		Help:      "Webhook notifications processed, by outcome.",
	}, []string{"outcome"})

	xpAwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aura",
		Subsystem: "ingest",
		Name:      "xp_awarded_total",
		Help:      "XP credited from provider activities.",
	})

	processDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "aura",
		Subsystem: "ingest",
		Name:      "duration_seconds",
		Help:      "Time spent processing one notification.",
		Buckets:   prometheus.DefBuckets,
	})

	failuresRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aura",
		Subsystem: "ingest",
		Name:      "failures_recorded_total",
		Help:      "Failed notifications stored for replay, by stage.",
	}, []string{"stage"})
)

func init() {
	prometheus.MustRegister(eventsTotal, xpAwarded, processDuration, failuresRecorded)
}

func observe(outcome Outcome, elapsed time.Duration) {
	eventsTotal.WithLabelValues(string(outcome)).Inc()
	processDuration.Observe(elapsed.Seconds())
}
