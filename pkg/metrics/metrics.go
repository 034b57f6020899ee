package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Evaluations counts policy decisions. Decision is one of allowed,
	// denied, error. Endpoint names are a small closed set, so label
	// cardinality stays bounded.
	Evaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cocopolicy_evaluations_total",
		Help: "Total number of policy evaluations by endpoint and decision",
	}, []string{"endpoint", "decision"})

	// PolicySwaps counts successful policy replacements.
	PolicySwaps = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cocopolicy_policy_swaps_total",
		Help: "Total number of successful policy replacements",
	})

	// AttestationFailures counts policy replacements rejected because the
	// policy digest did not match the attestation measurement.
	AttestationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cocopolicy_attestation_failures_total",
		Help: "Total number of policy replacements rejected by the attestation binding",
	})

	// PoliciesGenerated counts policies produced by the compiler, by
	// workload kind.
	PoliciesGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cocopolicy_policies_generated_total",
		Help: "Total number of generated workload policies by kind",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(
		Evaluations,
		PolicySwaps,
		AttestationFailures,
		PoliciesGenerated,
	)
}
