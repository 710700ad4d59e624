// Package observability exposes process-wide freshness watermarks. Alerting
// compares them against time() to spot a stalled webhook feed or pipeline.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	stageWebhook = "webhook_received"
	stageCredit  = "activity_credited"
)

var watermark = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "aura",
	Name:      "last_event_timestamp_seconds",
	Help:      "Unix timestamp of the most recent event seen at each ingestion stage.",
}, []string{"stage"})

func init() {
	prometheus.MustRegister(watermark)
}

func advance(stage string, ts time.Time) {
	if ts.IsZero() {
		return
	}
	watermark.WithLabelValues(stage).Set(float64(ts.Unix()))
}

// RecordWebhookReceived marks the arrival of a provider webhook.
func RecordWebhookReceived(ts time.Time) { advance(stageWebhook, ts) }

// RecordActivityCredited marks an activity credited to an account.
func RecordActivityCredited(ts time.Time) { advance(stageCredit, ts) }
