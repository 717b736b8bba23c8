package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register should tolerate duplicates: %v", err)
	}
}

func TestObserveEvaluationCountsOutcome(t *testing.T) {
	before := testutil.ToFloat64(evaluationsTotal.WithLabelValues("regressed"))
	ObserveEvaluation(3*time.Millisecond, "regressed")
	after := testutil.ToFloat64(evaluationsTotal.WithLabelValues("regressed"))
	if after != before+1 {
		t.Fatalf("expected counter to increase by one, got %v -> %v", before, after)
	}

	beforeErr := testutil.ToFloat64(evaluationsTotal.WithLabelValues(OutcomeError))
	ObserveEvaluation(-time.Second, "")
	if got := testutil.ToFloat64(evaluationsTotal.WithLabelValues(OutcomeError)); got != beforeErr+1 {
		t.Fatalf("expected empty outcome to count as error")
	}
}

func TestObserveAlert(t *testing.T) {
	before := testutil.ToFloat64(alertsTotal.WithLabelValues(AlertDuplicate))
	ObserveAlert(AlertDuplicate)
	if got := testutil.ToFloat64(alertsTotal.WithLabelValues(AlertDuplicate)); got != before+1 {
		t.Fatalf("expected duplicate counter to increase")
	}
}
