package dataset

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"gridvolt/internal/model"
)

// Sample is one labeled network case: the load pattern and the solved
// voltages it produced.
type Sample struct {
	Key    string
	Factor float64
	Input  *mat.VecDense
	Output *mat.VecDense
}

// ErrDimension indicates a vector length that disagrees with the model size.
var ErrDimension = errors.New("dataset: vector dimension mismatch")

// ToBatch stacks samples into row matrices for the model.
func ToBatch(samples []Sample, size int) (model.Batch, error) {
	if len(samples) == 0 {
		return model.Batch{}, errors.New("dataset: no samples")
	}
	inputs := mat.NewDense(len(samples), size, nil)
	targets := mat.NewDense(len(samples), size, nil)
	for i, s := range samples {
		if s.Input == nil || s.Output == nil {
			return model.Batch{}, fmt.Errorf("sample %d (%s): missing vector", i, s.Key)
		}
		if s.Input.Len() != size || s.Output.Len() != size {
			return model.Batch{}, fmt.Errorf("sample %d (%s): input %d output %d, size %d: %w",
				i, s.Key, s.Input.Len(), s.Output.Len(), size, ErrDimension)
		}
		inputs.SetRow(i, mat.Col(nil, 0, s.Input))
		targets.SetRow(i, mat.Col(nil, 0, s.Output))
	}
	return model.Batch{Inputs: inputs, Targets: targets}, nil
}

// InputOf returns a copy of the sample input as a plain slice.
func InputOf(s Sample, size int) ([]float64, error) {
	if s.Input == nil || s.Input.Len() != size {
		return nil, fmt.Errorf("sample %s: %w", s.Key, ErrDimension)
	}
	return mat.Col(nil, 0, s.Input), nil
}

// FromPrediction converts a model output into the voltage vector handed back
// to the provider for mismatch scoring.
func FromPrediction(pred []float64, size int) ([]float64, error) {
	if len(pred) != size {
		return nil, fmt.Errorf("prediction has %d values, size %d: %w", len(pred), size, ErrDimension)
	}
	return append([]float64(nil), pred...), nil
}
