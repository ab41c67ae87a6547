package metrics

import (
	"math"
	"testing"
	"time"
)

func TestWindowSnapshot(t *testing.T) {
	var w Window
	w.Record(50, 20*time.Millisecond, 1.2)
	w.Record(50, 30*time.Millisecond, 0.8)
	snap := w.Snapshot()
	if math.Abs(snap.SamplesPerSec-2000) > 1 {
		t.Fatalf("unexpected throughput %.2f", snap.SamplesPerSec)
	}
	if math.Abs(snap.AvgComputeMS-25) > 1e-9 {
		t.Fatalf("unexpected compute time %.4f", snap.AvgComputeMS)
	}
	if w.samples != 0 || w.steps != 0 {
		t.Fatalf("window was not reset")
	}
	if snap.LastLoss != 0.8 || snap.Steps != 2 {
		t.Fatalf("expected last loss 0.8 over 2 steps, got %.2f over %d", snap.LastLoss, snap.Steps)
	}
}

func TestEmptyWindowSnapshot(t *testing.T) {
	var w Window
	snap := w.Snapshot()
	if snap.SamplesPerSec != 0 || snap.AvgComputeMS != 0 || snap.Steps != 0 {
		t.Fatalf("expected zero snapshot, got %+v", snap)
	}
}
