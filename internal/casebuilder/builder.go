package casebuilder

import (
	"sort"

	"github.com/pkg/errors"

	"gridvolt/internal/dataset"
	"gridvolt/internal/powerflow"
)

// ErrUnknownBuilder is returned for a builder name that is not registered.
var ErrUnknownBuilder = errors.New("casebuilder: unknown builder")

// Builder turns a base network into labeled training cases.
type Builder interface {
	Name() string
	// Prepare caches base-case data and returns the number of model buses.
	Prepare(net *powerflow.Network, m *Mapping) (int, error)
	// Build rescales net for factor, solves it and samples the result.
	Build(net *powerflow.Network, factor float64) (dataset.Sample, error)
	// Apply writes a model output vector into the bus voltages of net.
	Apply(net *powerflow.Network, out []float64) error
}

var registry = map[string]func(powerflow.Options) Builder{
	"BusVoltLoadChangeTrainCaseBuilder": func(o powerflow.Options) Builder {
		return newLoadChange("BusVoltLoadChangeTrainCaseBuilder", polarVoltage, o)
	},
	"BusVoltRectLoadChangeTrainCaseBuilder": func(o powerflow.Options) Builder {
		return newLoadChange("BusVoltRectLoadChangeTrainCaseBuilder", rectVoltage, o)
	},
}

// New returns the registered builder called name.
func New(name string, opts powerflow.Options) (Builder, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownBuilder, "%q (known: %v)", name, Names())
	}
	return ctor(opts), nil
}

// Names lists registered builders.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
