package ledger

import "github.com/prometheus/client_golang/prometheus"

var (
	xpAppliedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aura",
		Subsystem: "ledger",
		Name:      "xp_applied_total",
		Help:      "Total XP credited through the ledger.",
	})

	levelUpCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aura",
		Subsystem: "ledger",
		Name:      "level_ups_total",
		Help:      "Number of levels gained across all accounts.",
	})
)

func init() {
	prometheus.MustRegister(xpAppliedCounter, levelUpCounter)
}

// Observe records a committed ledger application.
func Observe(delta int64, result Result) {
	if delta > 0 {
		xpAppliedCounter.Add(float64(delta))
	}
	if result.LevelsGained > 0 {
		levelUpCounter.Add(float64(result.LevelsGained))
	}
}
