package powerflow

import (
	"math"
	"math/cmplx"
)

// BusType classifies a bus for the load-flow formulation.
type BusType int

const (
	PQ BusType = iota
	PV
	Swing
)

func (t BusType) String() string {
	switch t {
	case PQ:
		return "pq"
	case PV:
		return "pv"
	case Swing:
		return "swing"
	default:
		return "unknown"
	}
}

// Bus holds per-bus data in per-unit on the network MVA base.
type Bus struct {
	Number int
	ID     string
	Name   string
	Type   BusType
	Active bool

	VMag float64
	VAng float64 // radians
	// VSpec is the voltage setpoint held at PV and swing buses.
	VSpec float64

	LoadP float64
	LoadQ float64
	GenP  float64
	GenQ  float64

	ShuntG float64
	ShuntB float64
	BaseKV float64
}

// Voltage returns the bus voltage phasor.
func (b *Bus) Voltage() complex128 {
	return cmplx.Rect(b.VMag, b.VAng)
}

// SetVoltage stores v as magnitude and angle.
func (b *Bus) SetVoltage(v complex128) {
	b.VMag, b.VAng = cmplx.Polar(v)
}

// Branch is a line or transformer between two buses, stored by bus position.
type Branch struct {
	ID      string
	From    int
	To      int
	Circuit string
	Active  bool

	R float64
	X float64
	B float64 // total line charging

	Ratio float64 // off-nominal turns ratio on the from side, 0 means 1
	Shift float64 // phase shift, radians
}

// Network is a single-area AC network.
type Network struct {
	Name     string
	BaseMVA  float64
	Buses    []*Bus
	Branches []*Branch

	index map[int]int
}

// NewNetwork returns an empty network on the given MVA base.
func NewNetwork(name string, baseMVA float64) *Network {
	if baseMVA <= 0 {
		baseMVA = 100
	}
	return &Network{Name: name, BaseMVA: baseMVA, index: make(map[int]int)}
}

// AddBus appends b and indexes it by number.
func (n *Network) AddBus(b *Bus) {
	n.index[b.Number] = len(n.Buses)
	n.Buses = append(n.Buses, b)
}

// BusPos returns the position of the bus with the given external number.
func (n *Network) BusPos(number int) (int, bool) {
	pos, ok := n.index[number]
	return pos, ok
}

// Bus returns the bus with the given id, or nil.
func (n *Network) Bus(id string) *Bus {
	for _, b := range n.Buses {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// Branch returns the branch with the given id, or nil.
func (n *Network) Branch(id string) *Branch {
	for _, br := range n.Branches {
		if br.ID == id {
			return br
		}
	}
	return nil
}

// NumActiveBuses counts in-service buses.
func (n *Network) NumActiveBuses() int {
	count := 0
	for _, b := range n.Buses {
		if b.Active {
			count++
		}
	}
	return count
}

// NumActiveBranches counts in-service branches.
func (n *Network) NumActiveBranches() int {
	count := 0
	for _, br := range n.Branches {
		if br.Active {
			count++
		}
	}
	return count
}

// TotalLoad sums active bus loads in per-unit.
func (n *Network) TotalLoad() complex128 {
	var total complex128
	for _, b := range n.Buses {
		if b.Active {
			total += complex(b.LoadP, b.LoadQ)
		}
	}
	return total
}

// Clone returns a deep copy safe to solve independently.
func (n *Network) Clone() *Network {
	out := NewNetwork(n.Name, n.BaseMVA)
	for _, b := range n.Buses {
		cp := *b
		out.AddBus(&cp)
	}
	out.Branches = make([]*Branch, len(n.Branches))
	for i, br := range n.Branches {
		cp := *br
		out.Branches[i] = &cp
	}
	return out
}

func deg2rad(d float64) float64 {
	return d * math.Pi / 180
}
