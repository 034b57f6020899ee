// Package metrics defines Prometheus metrics for the policy engine and the
// workload policy compiler: evaluation decisions, policy swaps, attestation
// failures, and generated policies.
package metrics
