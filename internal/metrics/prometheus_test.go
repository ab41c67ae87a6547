package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)
	c.Steps.Add(3)
	c.Loss.Set(1.5)
	c.Mismatch.WithLabelValues("p").Set(0.2)

	if got := testutil.ToFloat64(c.Steps); got != 3 {
		t.Fatalf("steps = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.Mismatch.WithLabelValues("p")); got != 0.2 {
		t.Fatalf("mismatch = %v, want 0.2", got)
	}
	if n, err := testutil.GatherAndCount(reg, "gridvolt_train_loss"); err != nil || n != 1 {
		t.Fatalf("gather loss: n=%d err=%v", n, err)
	}
}
