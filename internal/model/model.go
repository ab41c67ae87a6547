package model

import "gonum.org/v1/gonum/mat"

// Batch holds a full set of regression samples, one per row.
type Batch struct {
	Inputs  *mat.Dense
	Targets *mat.Dense
}

// Len returns the number of samples in the batch.
func (b Batch) Len() int {
	if b.Inputs == nil {
		return 0
	}
	r, _ := b.Inputs.Dims()
	return r
}

// Model defines the minimal training functionality required by the trainer.
type Model interface {
	TrainStep(batch Batch) float64
	Predict(x []float64) ([]float64, error)
}
