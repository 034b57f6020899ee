package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestEvaluationCountersIncrement(t *testing.T) {
	Evaluations.WithLabelValues("TestEndpoint", "allowed").Inc()
	if v := testutil.ToFloat64(Evaluations.WithLabelValues("TestEndpoint", "allowed")); v < 1 {
		t.Fatalf("expected Evaluations >= 1, got %v", v)
	}

	Evaluations.WithLabelValues("TestEndpoint", "denied").Add(2)
	if v := testutil.ToFloat64(Evaluations.WithLabelValues("TestEndpoint", "denied")); v < 2 {
		t.Fatalf("expected denied Evaluations >= 2, got %v", v)
	}
}

func TestLifecycleCountersIncrement(t *testing.T) {
	PolicySwaps.Inc()
	if v := testutil.ToFloat64(PolicySwaps); v < 1 {
		t.Fatalf("expected PolicySwaps >= 1, got %v", v)
	}
	AttestationFailures.Inc()
	if v := testutil.ToFloat64(AttestationFailures); v < 1 {
		t.Fatalf("expected AttestationFailures >= 1, got %v", v)
	}
	PoliciesGenerated.WithLabelValues("StatefulSet").Inc()
	if v := testutil.ToFloat64(PoliciesGenerated.WithLabelValues("StatefulSet")); v < 1 {
		t.Fatalf("expected PoliciesGenerated >= 1, got %v", v)
	}
}
