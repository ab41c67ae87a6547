package dataset

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"
)

func keyedBuild(delay func(id int) time.Duration) BuildFunc {
	return func(worker, id int) (Sample, error) {
		if delay != nil {
			time.Sleep(delay(id))
		}
		v := mat.NewVecDense(2, []float64{float64(id), float64(id)})
		return Sample{Key: fmt.Sprintf("case-%03d", id), Factor: float64(id), Input: v, Output: v}, nil
	}
}

func keys(samples []Sample) []string {
	out := make([]string, len(samples))
	for i, s := range samples {
		out[i] = s.Key
	}
	return out
}

func TestGenerateOrderIndependentOfWorkers(t *testing.T) {
	// later ids finish first to force reordering
	delay := func(id int) time.Duration { return time.Duration(10-id%10) * time.Millisecond }

	sequential, err := Generate(context.Background(), GenerateOptions{Count: 20, NumWorkers: 1, Build: keyedBuild(nil)})
	if err != nil {
		t.Fatalf("sequential generate: %v", err)
	}
	parallel, err := Generate(context.Background(), GenerateOptions{Count: 20, NumWorkers: 4, Build: keyedBuild(delay)})
	if err != nil {
		t.Fatalf("parallel generate: %v", err)
	}
	if !reflect.DeepEqual(keys(sequential), keys(parallel)) {
		t.Fatalf("order differs: %v vs %v", keys(sequential), keys(parallel))
	}
	if len(parallel) != 20 || parallel[0].Key != "case-000" || parallel[19].Key != "case-019" {
		t.Fatalf("unexpected samples %v", keys(parallel))
	}
}

func TestGeneratePropagatesBuildError(t *testing.T) {
	boom := errors.New("boom")
	build := func(worker, id int) (Sample, error) {
		if id == 3 {
			return Sample{}, boom
		}
		return keyedBuild(nil)(worker, id)
	}
	_, err := Generate(context.Background(), GenerateOptions{Count: 8, NumWorkers: 2, Build: build})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestGenerateHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Generate(ctx, GenerateOptions{Count: 5, NumWorkers: 2, Build: keyedBuild(func(int) time.Duration { return 5 * time.Millisecond })})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGenerateRejectsBadOptions(t *testing.T) {
	if _, err := Generate(context.Background(), GenerateOptions{Count: 0, Build: keyedBuild(nil)}); err == nil {
		t.Fatal("expected error for zero count")
	}
	if _, err := Generate(context.Background(), GenerateOptions{Count: 1}); err == nil {
		t.Fatal("expected error for missing build")
	}
}
