package powerflow

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrNotConverged is returned when Newton-Raphson exhausts its iterations.
var ErrNotConverged = errors.New("powerflow: load flow did not converge")

// Options tunes the Newton-Raphson solver.
type Options struct {
	Tolerance float64 // max abs power mismatch in pu
	MaxIter   int
}

// DefaultOptions matches the usual 1e-6 pu / 20 iteration setup.
func DefaultOptions() Options {
	return Options{Tolerance: 1e-6, MaxIter: 20}
}

// Result summarizes a solve.
type Result struct {
	Iterations  int
	MaxMismatch float64
}

// Solve runs a polar Newton-Raphson load flow from a flat start and writes
// the solved voltages back into net. PV reactive limits are not enforced.
func Solve(net *Network, opts Options) (Result, error) {
	if opts.Tolerance <= 0 {
		opts.Tolerance = 1e-6
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = 20
	}

	var pvpq, pq []int
	swing := -1
	for i, b := range net.Buses {
		if !b.Active {
			continue
		}
		switch b.Type {
		case Swing:
			swing = i
			b.VMag = b.VSpec
		case PV:
			pvpq = append(pvpq, i)
			b.VMag, b.VAng = b.VSpec, 0
		default:
			pvpq = append(pvpq, i)
			pq = append(pq, i)
			b.VMag, b.VAng = 1, 0
		}
	}
	if swing < 0 {
		return Result{}, errors.New("powerflow: network has no active swing bus")
	}

	ybus := net.Ybus()
	npvpq, npq := len(pvpq), len(pq)
	dim := npvpq + npq
	// bus position -> column of its |V| unknown
	vcol := make(map[int]int, npq)
	for j, i := range pq {
		vcol[i] = npvpq + j
	}
	acol := make(map[int]int, npvpq)
	for j, i := range pvpq {
		acol[i] = j
	}

	f := make([]float64, dim)
	var jac *mat.Dense
	for iter := 0; ; iter++ {
		v := voltages(net)
		s := injections(ybus, v)
		for j, i := range pvpq {
			b := net.Buses[i]
			f[j] = (b.GenP - b.LoadP) - real(s[i])
		}
		for j, i := range pq {
			b := net.Buses[i]
			f[npvpq+j] = (b.GenQ - b.LoadQ) - imag(s[i])
		}
		maxMis := floats.Norm(f, math.Inf(1))
		if maxMis < opts.Tolerance {
			finishSolve(net, s, swing)
			return Result{Iterations: iter, MaxMismatch: maxMis}, nil
		}
		if iter == opts.MaxIter {
			return Result{Iterations: iter, MaxMismatch: maxMis}, ErrNotConverged
		}

		if jac == nil {
			jac = mat.NewDense(dim, dim, nil)
		} else {
			jac.Zero()
		}
		fillJacobian(jac, net, ybus, s, pvpq, acol, vcol)

		var dx mat.VecDense
		if err := dx.SolveVec(jac, mat.NewVecDense(dim, f)); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
				return Result{Iterations: iter, MaxMismatch: maxMis}, errors.Wrap(err, "powerflow: solve jacobian")
			}
		}
		for j, i := range pvpq {
			net.Buses[i].VAng += dx.AtVec(j)
		}
		for j, i := range pq {
			net.Buses[i].VMag += dx.AtVec(npvpq + j)
		}
	}
}

func fillJacobian(jac *mat.Dense, net *Network, ybus *mat.CDense, s []complex128, rows []int, acol, vcol map[int]int) {
	for r, i := range rows {
		bi := net.Buses[i]
		qrow, isPQ := vcol[i]
		pi, qi := real(s[i]), imag(s[i])
		for k, bk := range net.Buses {
			if !bk.Active {
				continue
			}
			y := ybus.At(i, k)
			if y == 0 && i != k {
				continue
			}
			g, b := real(y), imag(y)
			ac, hasAngle := acol[k]
			vc, hasMag := vcol[k]
			if i == k {
				if hasAngle {
					jac.Set(r, ac, -qi-b*bi.VMag*bi.VMag)
					if isPQ {
						jac.Set(qrow, ac, pi-g*bi.VMag*bi.VMag)
					}
				}
				if hasMag {
					jac.Set(r, vc, pi/bi.VMag+g*bi.VMag)
					jac.Set(qrow, vc, qi/bi.VMag-b*bi.VMag)
				}
				continue
			}
			sin, cos := math.Sincos(bi.VAng - bk.VAng)
			if hasAngle {
				jac.Set(r, ac, bi.VMag*bk.VMag*(g*sin-b*cos))
				if isPQ {
					jac.Set(qrow, ac, -bi.VMag*bk.VMag*(g*cos+b*sin))
				}
			}
			if hasMag {
				jac.Set(r, vc, bi.VMag*(g*cos+b*sin))
				if isPQ {
					jac.Set(qrow, vc, bi.VMag*(g*sin-b*cos))
				}
			}
		}
	}
}

// finishSolve records the swing generation and PV reactive output implied by
// the converged injections.
func finishSolve(net *Network, s []complex128, swing int) {
	for i, b := range net.Buses {
		if !b.Active {
			continue
		}
		switch {
		case i == swing:
			b.GenP = real(s[i]) + b.LoadP
			b.GenQ = imag(s[i]) + b.LoadQ
		case b.Type == PV:
			b.GenQ = imag(s[i]) + b.LoadQ
		}
	}
}
