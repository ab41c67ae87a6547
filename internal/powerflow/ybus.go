package powerflow

import (
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Ybus builds the bus admittance matrix indexed by bus position. Inactive
// buses keep empty rows and columns.
func (n *Network) Ybus() *mat.CDense {
	size := len(n.Buses)
	y := mat.NewCDense(size, size, nil)
	for _, br := range n.Branches {
		if !br.Active || !n.Buses[br.From].Active || !n.Buses[br.To].Active {
			continue
		}
		z := complex(br.R, br.X)
		if z == 0 {
			continue
		}
		ys := 1 / z
		charging := complex(0, br.B/2)
		ratio := br.Ratio
		if ratio == 0 {
			ratio = 1
		}
		tap := cmplx.Rect(ratio, br.Shift)

		f, t := br.From, br.To
		y.Set(f, f, y.At(f, f)+(ys+charging)/complex(ratio*ratio, 0))
		y.Set(t, t, y.At(t, t)+ys+charging)
		y.Set(f, t, y.At(f, t)-ys/cmplx.Conj(tap))
		y.Set(t, f, y.At(t, f)-ys/tap)
	}
	for i, b := range n.Buses {
		if !b.Active {
			continue
		}
		y.Set(i, i, y.At(i, i)+complex(b.ShuntG, b.ShuntB))
	}
	return y
}

// injections returns S_i = V_i * conj(sum_k Y_ik V_k) for every bus position.
func injections(y *mat.CDense, v []complex128) []complex128 {
	n := len(v)
	out := make([]complex128, n)
	for i := 0; i < n; i++ {
		var current complex128
		for k := 0; k < n; k++ {
			current += y.At(i, k) * v[k]
		}
		out[i] = v[i] * cmplx.Conj(current)
	}
	return out
}

func voltages(net *Network) []complex128 {
	v := make([]complex128, len(net.Buses))
	for i, b := range net.Buses {
		if b.Active {
			v[i] = b.Voltage()
		}
	}
	return v
}
