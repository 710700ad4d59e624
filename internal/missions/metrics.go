package missions

import "github.com/prometheus/client_golang/prometheus"

var (
	missionsGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aura",
		Subsystem: "missions",
		Name:      "sets_generated_total",
		Help:      "Daily mission sets sampled.",
	})

	missionsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aura",
		Subsystem: "missions",
		Name:      "completed_total",
		Help:      "Missions completed and paid out.",
	})
)

func init() {
	prometheus.MustRegister(missionsGenerated, missionsCompleted)
}
