package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tandatangan"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	// FinalizeResults counts group finalization calls by outcome: ok or the error kind.
	FinalizeResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "finalize_results_total", Help: "Group document finalizations by result."},
		[]string{"result"},
	)
	PackageDocuments = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "package_documents_total", Help: "Package documents processed by outcome."},
		[]string{"outcome"},
	)
	PinAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "pin_attempts_total", Help: "Verification PIN attempts by result."},
		[]string{"result"},
	)
	SideEffectFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "side_effect_failures_total", Help: "Best-effort event and audit failures."},
		[]string{"kind"},
	)
	SigningDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pdf_signing_duration_seconds",
			Help:      "Time spent producing one signed PDF.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(FinalizeResults)
	reg.MustRegister(PackageDocuments)
	reg.MustRegister(PinAttempts)
	reg.MustRegister(SideEffectFailures)
	reg.MustRegister(SigningDuration)
}
