package token

import "github.com/prometheus/client_golang/prometheus"

var (
	tokenRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aura",
		Subsystem: "token",
		Name:      "refresh_total",
		Help:      "Provider refresh-token exchanges by result.",
	}, []string{"result"})

	tokenRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aura",
		Subsystem: "token",
		Name:      "requests_total",
		Help:      "Token lookups served without a refresh call, by source.",
	}, []string{"source"})
)

func init() {
	prometheus.MustRegister(tokenRefreshes, tokenRequests)
}
