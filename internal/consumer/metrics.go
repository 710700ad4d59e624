package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultProcessed    = "processed"
	resultHandlerError = "handler_error"
	resultDecodeError  = "decode_error"
)

var (
	messagesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aura",
		Subsystem: "consumer",
		Name:      "messages_total",
		Help:      "Kafka messages consumed, by topic, event type and result.",
	}, []string{"topic", "event_type", "result"})

	eventAgeGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aura",
		Subsystem: "consumer",
		Name:      "last_event_age_seconds",
		Help:      "Age of the most recently processed event when it was handled.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(messagesCounter, eventAgeGauge)
}

func recordProcessed(msg Message) {
	messagesCounter.WithLabelValues(msg.Topic, msg.EventType, resultProcessed).Inc()
	if !msg.Timestamp.IsZero() {
		eventAgeGauge.WithLabelValues(msg.Topic).Set(time.Since(msg.Timestamp).Seconds())
	}
}

func recordHandlerError(msg Message) {
	messagesCounter.WithLabelValues(msg.Topic, msg.EventType, resultHandlerError).Inc()
}

func recordDecodeError(topic string) {
	messagesCounter.WithLabelValues(topic, "", resultDecodeError).Inc()
}
