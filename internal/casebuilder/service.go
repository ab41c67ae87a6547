package casebuilder

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"

	"gridvolt/internal/dataset"
	"gridvolt/internal/powerflow"
)

// ErrNoCase is returned when an operation needs a loaded case or test case.
var ErrNoCase = errors.New("casebuilder: no case loaded")

// CaseInfo describes a loaded network case.
type CaseInfo struct {
	Filename    string
	Builder     string
	Name        string
	NumBuses    int
	NumBranches int
	// Pattern names the matched operation pattern, empty when no pattern
	// file is configured or none matches.
	Pattern string
}

// Options configures a Service.
type Options struct {
	NumWorkers    int
	Seed          int64 // 0 seeds from the clock
	Solver        powerflow.Options
	BusMapping    string
	BranchMapping string
	PatternFile   string
}

// Service loads a network case and serves training cases, test cases and
// mismatch scoring for it.
type Service struct {
	opts    Options
	base    *powerflow.Network
	builder Builder
	info    CaseInfo
	test    *powerflow.Network
	factor  distuv.Uniform
}

// NewService returns a Service with no case loaded.
func NewService(opts Options) *Service {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	seed := uint64(opts.Seed)
	if opts.Seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Service{
		opts: opts,
		factor: distuv.Uniform{
			Min: 0.5,
			Max: 1.5,
			Src: rand.NewPCG(seed, seed>>1|1),
		},
	}
}

// LoadCase parses filename and prepares the named builder on it.
func (s *Service) LoadCase(filename, builderName string) (CaseInfo, error) {
	builder, err := New(builderName, s.opts.Solver)
	if err != nil {
		return CaseInfo{}, err
	}
	net, err := powerflow.LoadIEEECDF(filename)
	if err != nil {
		return CaseInfo{}, err
	}
	mapping, err := LoadMapping(s.opts.BusMapping, s.opts.BranchMapping)
	if err != nil {
		return CaseInfo{}, err
	}
	if buses, branches := mapping.MissingInMapping(net); len(buses)+len(branches) > 0 {
		log.Printf("case=%s unmapped buses=%v branches=%v", filename, buses, branches)
	}

	pattern, err := s.matchPattern(filename, mapping, net)
	if err != nil {
		return CaseInfo{}, err
	}

	numBuses, err := builder.Prepare(net, mapping)
	if err != nil {
		return CaseInfo{}, err
	}
	numBranches := net.NumActiveBranches()
	if mapping.HasBranch() {
		numBranches = len(mapping.Branch)
	}

	s.base = net
	s.builder = builder
	s.test = nil
	s.info = CaseInfo{
		Filename:    filename,
		Builder:     builder.Name(),
		Name:        net.Name,
		NumBuses:    numBuses,
		NumBranches: numBranches,
		Pattern:     pattern,
	}
	return s.info, nil
}

func (s *Service) matchPattern(filename string, mapping *Mapping, net *powerflow.Network) (string, error) {
	if s.opts.PatternFile == "" {
		return "", nil
	}
	patterns, err := LoadPatterns(s.opts.PatternFile)
	if err != nil {
		return "", errors.Wrap(err, "pattern file")
	}
	p, ok := MatchPattern(patterns, mapping, net)
	if !ok {
		log.Printf("case=%s pattern=unknown %s", filename, mapping.PatternOf("?", net))
		return "", nil
	}
	log.Printf("case=%s pattern=%s", filename, p.Name)
	return p.Name, nil
}

// Info returns the loaded case description.
func (s *Service) Info() CaseInfo { return s.info }

// TrainSet builds n training cases. Case k scales load by 0.5 + k/n.
func (s *Service) TrainSet(ctx context.Context, n int) ([]dataset.Sample, error) {
	if s.base == nil {
		return nil, ErrNoCase
	}
	if n <= 0 {
		return nil, errors.Errorf("casebuilder: train set size must be > 0 (got %d)", n)
	}
	workers := s.opts.NumWorkers
	if workers > n {
		workers = n
	}
	nets := make([]*powerflow.Network, workers)
	for i := range nets {
		nets[i] = s.base.Clone()
	}
	return dataset.Generate(ctx, dataset.GenerateOptions{
		Count:      n,
		NumWorkers: workers,
		Build: func(worker, id int) (dataset.Sample, error) {
			sample, err := s.builder.Build(nets[worker], 0.5+float64(id)/float64(n))
			if err != nil {
				return dataset.Sample{}, err
			}
			sample.Key = fmt.Sprintf("train-%04d", id)
			return sample, nil
		},
	})
}

// TestCase builds one case at a random factor in [0.5, 1.5).
func (s *Service) TestCase() (dataset.Sample, error) {
	return s.TestCaseWithFactor(s.factor.Rand())
}

// TestCaseWithFactor builds one case at the given factor and keeps its
// network for Mismatch.
func (s *Service) TestCaseWithFactor(factor float64) (dataset.Sample, error) {
	if s.base == nil {
		return dataset.Sample{}, ErrNoCase
	}
	net := s.base.Clone()
	sample, err := s.builder.Build(net, factor)
	if err != nil {
		return dataset.Sample{}, err
	}
	sample.Key = "test"
	s.test = net
	return sample, nil
}

// Mismatch scores a predicted voltage vector against the last test case.
func (s *Service) Mismatch(netVolt []float64) (powerflow.Mismatch, error) {
	if s.test == nil {
		return powerflow.Mismatch{}, errors.Wrap(ErrNoCase, "no test case generated")
	}
	log.Printf("mismatch calculation for %s", s.info.Filename)
	net := s.test.Clone()
	if err := s.builder.Apply(net, netVolt); err != nil {
		return powerflow.Mismatch{}, err
	}
	return powerflow.CalcMismatch(net), nil
}
