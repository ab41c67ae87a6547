package powerflow

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ieee14 = "../../testdata/ieee14.ieee"

func TestLoadIEEE14(t *testing.T) {
	net, err := LoadIEEECDF(ieee14)
	require.NoError(t, err)

	assert.Equal(t, 100.0, net.BaseMVA)
	assert.Equal(t, 14, net.NumActiveBuses())
	assert.Equal(t, 20, net.NumActiveBranches())

	swing := net.Bus("Bus1")
	require.NotNil(t, swing)
	assert.Equal(t, Swing, swing.Type)
	assert.Equal(t, "Bus 1     HV", swing.Name)

	bus9 := net.Bus("Bus9")
	require.NotNil(t, bus9)
	assert.Equal(t, PQ, bus9.Type)
	assert.InDelta(t, 0.295, bus9.LoadP, 1e-12)
	assert.InDelta(t, 0.19, bus9.ShuntB, 1e-12)

	xfmr := net.Branch("Bus4->Bus7(1)")
	require.NotNil(t, xfmr)
	assert.InDelta(t, 0.978, xfmr.Ratio, 1e-12)
}

func TestParseRejectsMalformedBus(t *testing.T) {
	data := strings.Join([]string{
		"08/19/93 UW ARCHIVE             100.0 1962 W TEST",
		"BUS DATA FOLLOWS",
		"   1 Bus 1     HV  1  1  3 1.060    abc",
		"-999",
	}, "\n")
	_, err := ParseIEEECDF(strings.NewReader(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestParseRejectsUnknownBranchBus(t *testing.T) {
	data := strings.Join([]string{
		"08/19/93 UW ARCHIVE             100.0 1962 W TEST",
		"BUS DATA FOLLOWS",
		"   1 Bus 1     HV  1  1  3 1.060    0.00       0.0       0.0    232.4    -16.9",
		"-999",
		"BRANCH DATA FOLLOWS",
		"   1    7  1  1 1 0    0.01938    0.05917     0.0528",
		"-999",
		"END OF DATA",
	}, "\n")
	_, err := ParseIEEECDF(strings.NewReader(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown bus 7")
}

func TestSolveIEEE14(t *testing.T) {
	net, err := LoadIEEECDF(ieee14)
	require.NoError(t, err)

	res, err := Solve(net, DefaultOptions())
	require.NoError(t, err)
	assert.Less(t, res.Iterations, 10)
	assert.Less(t, res.MaxMismatch, 1e-6)

	cases := []struct {
		id   string
		vmag float64
		vang float64 // degrees
	}{
		{"Bus4", 1.018, -10.31},
		{"Bus9", 1.056, -14.94},
		{"Bus14", 1.036, -16.03},
	}
	for _, tc := range cases {
		b := net.Bus(tc.id)
		assert.InDelta(t, tc.vmag, b.VMag, 3e-3, tc.id)
		assert.InDelta(t, tc.vang, b.VAng*180/math.Pi, 0.1, tc.id)
	}

	swing := net.Bus("Bus1")
	assert.InDelta(t, 2.32, swing.GenP, 0.02)
}

func TestMismatchOfSolvedAndFlatProfile(t *testing.T) {
	net, err := LoadIEEECDF(ieee14)
	require.NoError(t, err)
	_, err = Solve(net, DefaultOptions())
	require.NoError(t, err)

	solved := CalcMismatch(net)
	assert.Less(t, solved.Max(), 1e-5)

	flat := net.Clone()
	for _, b := range flat.Buses {
		b.VMag, b.VAng = 1, 0
	}
	unsolved := CalcMismatch(flat)
	assert.Greater(t, unsolved.Max(), 0.1)
	assert.NotEmpty(t, unsolved.MaxPBus)
	assert.Contains(t, unsolved.String(), "maxMis")
}

func TestCloneIsIndependent(t *testing.T) {
	net, err := LoadIEEECDF(ieee14)
	require.NoError(t, err)
	cp := net.Clone()
	cp.Buses[3].LoadP = 9
	cp.Branches[0].R = 9
	assert.NotEqual(t, 9.0, net.Buses[3].LoadP)
	assert.NotEqual(t, 9.0, net.Branches[0].R)

	pos, ok := cp.BusPos(14)
	require.True(t, ok)
	assert.Equal(t, "Bus14", cp.Buses[pos].ID)
}

func TestSolveWithoutSwing(t *testing.T) {
	net := NewNetwork("x", 100)
	net.AddBus(&Bus{Number: 1, ID: "Bus1", Type: PQ, Active: true, VMag: 1})
	_, err := Solve(net, DefaultOptions())
	require.Error(t, err)
}
