package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "scheduler"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	// TierServed counts storage calls by operation and the tier that answered.
	TierServed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "tier_served_total", Help: "Storage calls by operation and serving tier (remote|local)."},
		[]string{"op", "tier"},
	)
	RemoteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "remote_failures_total", Help: "Remote storage failures that triggered the local fallback."},
		[]string{"op"},
	)
	Executions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "executions_total", Help: "Executed obligation occurrences by serving tier."},
		[]string{"tier"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(TierServed)
	reg.MustRegister(RemoteFailures)
	reg.MustRegister(Executions)
}
