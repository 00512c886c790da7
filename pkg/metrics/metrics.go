package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "newsdesk"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	ContentWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "content_writes_total", Help: "Content write operations by operation and outcome."},
		[]string{"op", "outcome"},
	)
	SanitizerAltered = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "sanitizer_altered_total", Help: "Untrusted text fields altered by the sanitizer, by policy."},
		[]string{"policy"},
	)
	AggregatorSourceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "aggregator_source_failures_total", Help: "Eligibility source queries that failed, by source."},
		[]string{"source"},
	)
	EligibilityCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "eligibility_cache_total", Help: "Eligibility cache lookups by result."},
		[]string{"result"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(ContentWrites)
	reg.MustRegister(SanitizerAltered)
	reg.MustRegister(AggregatorSourceFailures)
	reg.MustRegister(EligibilityCache)
}
