package powerflow

import (
	"fmt"
	"math"
)

// Mismatch is the bus power imbalance of a voltage profile, in per-unit.
type Mismatch struct {
	MaxP    float64
	MaxPBus string
	MaxQ    float64
	MaxQBus string
	SumP    float64
	SumQ    float64
}

func (m Mismatch) String() string {
	return fmt.Sprintf("maxMis: P %.6f pu at %s, Q %.6f pu at %s; sum: P %.6f, Q %.6f",
		m.MaxP, m.MaxPBus, m.MaxQ, m.MaxQBus, m.SumP, m.SumQ)
}

// Max returns the larger of the P and Q maxima.
func (m Mismatch) Max() float64 {
	return math.Max(m.MaxP, m.MaxQ)
}

// CalcMismatch evaluates scheduled minus computed injections using the
// voltages currently stored on the buses. P is checked on every non-swing
// bus, Q on PQ buses only.
func CalcMismatch(net *Network) Mismatch {
	s := injections(net.Ybus(), voltages(net))
	var m Mismatch
	for i, b := range net.Buses {
		if !b.Active || b.Type == Swing {
			continue
		}
		dp := math.Abs((b.GenP - b.LoadP) - real(s[i]))
		m.SumP += dp
		if dp >= m.MaxP {
			m.MaxP, m.MaxPBus = dp, b.ID
		}
		if b.Type != PQ {
			continue
		}
		dq := math.Abs((b.GenQ - b.LoadQ) - imag(s[i]))
		m.SumQ += dq
		if dq >= m.MaxQ {
			m.MaxQ, m.MaxQBus = dq, b.ID
		}
	}
	return m
}
