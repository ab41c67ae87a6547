package model

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Linear is the affine map y = x·W + b fitted by full-batch gradient descent
// on the summed squared error.
type Linear struct {
	size    int
	lr      float64
	weights *mat.Dense
	bias    *mat.VecDense
	steps   int
}

// NewLinear constructs a size x size model with zero weights and bias.
func NewLinear(size int, lr float64) (*Linear, error) {
	if size <= 0 {
		return nil, fmt.Errorf("model: size must be > 0 (got %d)", size)
	}
	if lr < 0 {
		return nil, fmt.Errorf("model: learning rate must be >= 0 (got %g)", lr)
	}
	return &Linear{
		size:    size,
		lr:      lr,
		weights: mat.NewDense(size, size, nil),
		bias:    mat.NewVecDense(size, nil),
	}, nil
}

// TrainStep applies one gradient-descent update against every sample in
// batch and returns the loss measured before the update.
func (m *Linear) TrainStep(batch Batch) float64 {
	n := batch.Len()
	if n == 0 {
		return 0
	}

	// R = XW + 1bᵀ - Y
	var resid mat.Dense
	resid.Mul(batch.Inputs, m.weights)
	resid.Apply(func(i, j int, v float64) float64 {
		return v + m.bias.AtVec(j) - batch.Targets.At(i, j)
	}, &resid)

	loss := 0.0
	colSum := make([]float64, m.size)
	for i := 0; i < n; i++ {
		row := resid.RawRowView(i)
		loss += floats.Dot(row, row)
		floats.Add(colSum, row)
	}

	// dW = 2XᵀR, db = 2·Σ_rows R
	var grad mat.Dense
	grad.Mul(batch.Inputs.T(), &resid)
	grad.Scale(2*m.lr, &grad)
	m.weights.Sub(m.weights, &grad)
	m.bias.AddScaledVec(m.bias, -2*m.lr, mat.NewVecDense(m.size, colSum))

	m.steps++
	return loss
}

// Predict returns x·W + b.
func (m *Linear) Predict(x []float64) ([]float64, error) {
	if len(x) != m.size {
		return nil, fmt.Errorf("model: input has %d values, want %d", len(x), m.size)
	}
	var out mat.VecDense
	out.MulVec(m.weights.T(), mat.NewVecDense(m.size, append([]float64(nil), x...)))
	out.AddVec(&out, m.bias)
	return append([]float64(nil), out.RawVector().Data...), nil
}

// Loss returns the summed squared error of the current parameters on batch.
func (m *Linear) Loss(batch Batch) (float64, error) {
	if batch.Len() == 0 {
		return 0, errors.New("model: empty batch")
	}
	loss := 0.0
	for i := 0; i < batch.Len(); i++ {
		pred, err := m.Predict(mat.Row(nil, i, batch.Inputs))
		if err != nil {
			return 0, err
		}
		floats.Sub(pred, mat.Row(nil, i, batch.Targets))
		loss += floats.Dot(pred, pred)
	}
	return loss, nil
}

// Size is the input and output dimension.
func (m *Linear) Size() int { return m.size }

// Steps is the number of updates applied so far.
func (m *Linear) Steps() int { return m.steps }

// Weights returns a copy of W.
func (m *Linear) Weights() *mat.Dense { return mat.DenseCopyOf(m.weights) }

// Bias returns a copy of b.
func (m *Linear) Bias() *mat.VecDense { return mat.VecDenseCopyOf(m.bias) }
