package casebuilder

import (
	"log"
	"math/cmplx"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"gridvolt/internal/dataset"
	"gridvolt/internal/powerflow"
)

type voltageForm int

const (
	polarVoltage voltageForm = iota // |V|, angle in radians
	rectVoltage                     // Re V, Im V
)

// loadChange scales PQ bus loads by a factor and samples bus voltages.
//
// input:  x[i] = P_load, x[n+i] = Q_load (pu) on PQ buses, 0 elsewhere
// output: y[i], y[n+i] = voltage in the configured form
type loadChange struct {
	name   string
	form   voltageForm
	solver powerflow.Options

	numBuses int
	slot     []int // bus position -> sample index, -1 when not sampled
	baseP    []float64
	baseQ    []float64
}

func newLoadChange(name string, form voltageForm, solver powerflow.Options) *loadChange {
	return &loadChange{name: name, form: form, solver: solver}
}

func (lc *loadChange) Name() string { return lc.name }

func (lc *loadChange) Prepare(net *powerflow.Network, m *Mapping) (int, error) {
	if m.HasBus() {
		lc.numBuses = len(m.Bus)
	} else {
		lc.numBuses = net.NumActiveBuses()
	}
	if lc.numBuses == 0 {
		return 0, errors.New("casebuilder: network has no active buses")
	}

	lc.slot = make([]int, len(net.Buses))
	lc.baseP = make([]float64, lc.numBuses)
	lc.baseQ = make([]float64, lc.numBuses)
	next := 0
	for pos, b := range net.Buses {
		lc.slot[pos] = -1
		if !b.Active {
			continue
		}
		i := next
		if m.HasBus() {
			idx, ok := m.Bus[b.ID]
			if !ok {
				return 0, errors.Errorf("casebuilder: bus %s missing from bus mapping", b.ID)
			}
			i = idx
		}
		next++
		lc.slot[pos] = i
		if b.Type == powerflow.PQ {
			lc.baseP[i] = b.LoadP
			lc.baseQ[i] = b.LoadQ
		}
	}
	return lc.numBuses, nil
}

func (lc *loadChange) Build(net *powerflow.Network, factor float64) (dataset.Sample, error) {
	if lc.slot == nil {
		return dataset.Sample{}, errors.New("casebuilder: builder not prepared")
	}
	n := lc.numBuses
	for pos, b := range net.Buses {
		i := lc.slot[pos]
		if i < 0 || b.Type != powerflow.PQ {
			continue
		}
		b.LoadP = lc.baseP[i] * factor
		b.LoadQ = lc.baseQ[i] * factor
	}
	load := net.TotalLoad()
	log.Printf("total_load=%.4f%+.4fj pu factor=%.4f", real(load), imag(load), factor)

	if _, err := powerflow.Solve(net, lc.solver); err != nil {
		return dataset.Sample{}, errors.Wrapf(err, "load flow at factor %.4f", factor)
	}

	in := mat.NewVecDense(2*n, nil)
	out := mat.NewVecDense(2*n, nil)
	for pos, b := range net.Buses {
		i := lc.slot[pos]
		if i < 0 {
			continue
		}
		if b.Type == powerflow.PQ {
			in.SetVec(i, b.LoadP)
			in.SetVec(n+i, b.LoadQ)
		}
		switch lc.form {
		case rectVoltage:
			v := b.Voltage()
			out.SetVec(i, real(v))
			out.SetVec(n+i, imag(v))
		default:
			out.SetVec(i, b.VMag)
			out.SetVec(n+i, b.VAng)
		}
	}
	return dataset.Sample{Factor: factor, Input: in, Output: out}, nil
}

func (lc *loadChange) Apply(net *powerflow.Network, out []float64) error {
	n := lc.numBuses
	if len(out) != 2*n {
		return errors.Wrapf(dataset.ErrDimension, "voltage vector has %d values, want %d", len(out), 2*n)
	}
	for pos, b := range net.Buses {
		i := lc.slot[pos]
		if i < 0 {
			continue
		}
		switch lc.form {
		case rectVoltage:
			b.SetVoltage(complex(out[i], out[n+i]))
		default:
			b.SetVoltage(cmplx.Rect(out[i], out[n+i]))
		}
	}
	return nil
}
