package trainer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gridvolt/internal/casebuilder"
	"gridvolt/internal/dataset"
	"gridvolt/internal/metrics"
	"gridvolt/internal/model"
	"gridvolt/internal/powerflow"
)

// Provider supplies network cases and scores predictions.
type Provider interface {
	LoadCase(filename, builder string) (casebuilder.CaseInfo, error)
	TrainSet(ctx context.Context, n int) ([]dataset.Sample, error)
	TestCase() (dataset.Sample, error)
	Mismatch(netVolt []float64) (powerflow.Mismatch, error)
}

// RunConfig captures the knobs required by the training loop.
type RunConfig struct {
	Provider     Provider
	CaseFile     string
	Builder      string
	TrainPoints  int
	Steps        int
	LearningRate float64
	LogEvery     int

	// Optional sinks.
	Collectors *metrics.Collectors
	Status     *Status
}

// Result is the outcome of a run.
type Result struct {
	Case      casebuilder.CaseInfo
	Size      int
	FinalLoss float64
	Mismatch  powerflow.Mismatch
	Model     *model.Linear
}

// Run loads the case, fits the model for exactly cfg.Steps updates and
// scores its prediction on one test case.
func Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if cfg.Provider == nil {
		return nil, errors.New("trainer: no provider")
	}
	if cfg.Steps < 0 {
		return nil, errors.New("trainer: steps must be >= 0")
	}
	if cfg.TrainPoints <= 0 {
		return nil, errors.New("trainer: train points must be > 0")
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 1000
	}
	status := cfg.Status
	if status == nil {
		status = &Status{}
	}

	status.setPhase(PhaseLoading)
	info, err := cfg.Provider.LoadCase(cfg.CaseFile, cfg.Builder)
	if err != nil {
		status.fail(err)
		return nil, fmt.Errorf("load case: %w", err)
	}
	log.Printf("case=%s loaded buses=%d branches=%d", info.Filename, info.NumBuses, info.NumBranches)

	size := 2 * info.NumBuses
	mdl, err := model.NewLinear(size, cfg.LearningRate)
	if err != nil {
		status.fail(err)
		return nil, err
	}
	status.setCase(info, size, cfg.Steps)
	if cfg.Collectors != nil {
		cfg.Collectors.ModelSize.Set(float64(size))
	}

	status.setPhase(PhaseTraining)
	log.Printf("begin training: %s", time.Now().Format(time.RFC3339))
	samples, err := cfg.Provider.TrainSet(ctx, cfg.TrainPoints)
	if err != nil {
		status.fail(err)
		return nil, fmt.Errorf("train set: %w", err)
	}
	batch, err := dataset.ToBatch(samples, size)
	if err != nil {
		status.fail(err)
		return nil, err
	}
	if cfg.Collectors != nil {
		cfg.Collectors.Samples.Set(float64(batch.Len()))
	}

	loss, err := fit(ctx, mdl, batch, cfg, status)
	if err != nil {
		status.fail(err)
		return nil, err
	}
	log.Printf("end training: %s", time.Now().Format(time.RFC3339))

	status.setPhase(PhaseEvaluating)
	mis, err := evaluate(cfg.Provider, mdl, size)
	if err != nil {
		status.fail(err)
		return nil, err
	}
	log.Printf("model out mismatch: %s", mis)
	if cfg.Collectors != nil {
		cfg.Collectors.Mismatch.WithLabelValues("p").Set(mis.MaxP)
		cfg.Collectors.Mismatch.WithLabelValues("q").Set(mis.MaxQ)
	}
	status.finish(mis)

	return &Result{Case: info, Size: size, FinalLoss: loss, Mismatch: mis, Model: mdl}, nil
}

func fit(ctx context.Context, mdl *model.Linear, batch model.Batch, cfg RunConfig, status *Status) (float64, error) {
	if cfg.Steps == 0 {
		return mdl.Loss(batch)
	}
	var window metrics.Window
	loss := 0.0
	for step := 0; step < cfg.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		start := time.Now()
		loss = mdl.TrainStep(batch)
		elapsed := time.Since(start)

		window.Record(batch.Len(), elapsed, loss)
		status.setStep(step+1, loss)
		if cfg.Collectors != nil {
			cfg.Collectors.Steps.Inc()
			cfg.Collectors.Loss.Set(loss)
			cfg.Collectors.StepDuration.Observe(elapsed.Seconds())
		}

		if step%cfg.LogEvery == 0 {
			snap := window.Snapshot()
			log.Printf("step=%d samples_per_sec=%.1f compute_ms=%.3f loss=%.6f",
				step,
				snap.SamplesPerSec,
				snap.AvgComputeMS,
				snap.LastLoss,
			)
		}
	}
	return loss, nil
}

func evaluate(p Provider, mdl model.Model, size int) (powerflow.Mismatch, error) {
	test, err := p.TestCase()
	if err != nil {
		return powerflow.Mismatch{}, fmt.Errorf("test case: %w", err)
	}
	if test.Output != nil && test.Output.Len() != size {
		return powerflow.Mismatch{}, fmt.Errorf("test case output has %d values, size %d: %w", test.Output.Len(), size, dataset.ErrDimension)
	}
	x, err := dataset.InputOf(test, size)
	if err != nil {
		return powerflow.Mismatch{}, err
	}
	pred, err := mdl.Predict(x)
	if err != nil {
		return powerflow.Mismatch{}, err
	}
	netVolt, err := dataset.FromPrediction(pred, size)
	if err != nil {
		return powerflow.Mismatch{}, err
	}
	mis, err := p.Mismatch(netVolt)
	if err != nil {
		return powerflow.Mismatch{}, fmt.Errorf("mismatch: %w", err)
	}
	return mis, nil
}
