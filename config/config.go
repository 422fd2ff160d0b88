// Package config loads simulation and sampling scenarios
// from YAML.
package config

import (
	"math/rand"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/unixpickle/trainhmm"
	"gopkg.in/yaml.v3"
)

// Scenario describes one simulated train run and the chain
// used to infer its switches.
type Scenario struct {
	Vertices int     `yaml:"vertices"`
	Steps    int     `yaml:"steps"`
	Noise    float64 `yaml:"noise"`
	Seed     int64   `yaml:"seed"`

	// Switches optionally fixes the true assignment, e.g.
	// "LLRRLRLR".
	// If empty, it is drawn at random.
	Switches string `yaml:"switches"`

	BurnIn        int           `yaml:"burn_in"`
	Samples       int           `yaml:"samples"`
	Rule          string        `yaml:"rule"`
	Proposal      string        `yaml:"proposal"`
	DiscardBurnIn bool          `yaml:"discard_burn_in"`
	MaxIterations int           `yaml:"max_iterations"`
	Timeout       time.Duration `yaml:"timeout"`

	// Database is a badger directory to store the run in.
	Database string `yaml:"database"`
}

// Default returns the scenario used when no file is
// given.
func Default() *Scenario {
	return &Scenario{
		Vertices:      8,
		Steps:         100,
		Noise:         0.05,
		Seed:          1,
		BurnIn:        100,
		Samples:       2000,
		Rule:          "inverted",
		Proposal:      "flip",
		MaxIterations: 1000000,
		Timeout:       time.Minute,
	}
}

// Load reads a scenario from a YAML file.
// Fields missing from the file keep their Default values.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "load scenario")
	}
	s, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load scenario %s", path)
	}
	return s, nil
}

// Parse decodes a YAML scenario on top of Default.
func Parse(data []byte) (*Scenario, error) {
	s := Default()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, errors.Wrap(err, "parse scenario")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the scenario for values the simulator
// or sampler would reject.
func (s *Scenario) Validate() error {
	if s.Vertices%2 != 0 || s.Vertices < trainhmm.MinVertices {
		return errors.Wrapf(trainhmm.ErrInvalidSize, "vertices=%d", s.Vertices)
	}
	if s.Steps < 1 {
		return errors.Wrapf(trainhmm.ErrInsufficientObservations, "steps=%d", s.Steps)
	}
	if s.Noise < 0 || s.Noise > 1 {
		return errors.Wrapf(trainhmm.ErrInvalidNoise, "noise=%f", s.Noise)
	}
	if s.BurnIn < 0 || s.Samples < 0 || s.MaxIterations < 0 {
		return errors.New("iteration counts must be non-negative")
	}
	if s.Timeout < 0 {
		return errors.New("timeout must be non-negative")
	}
	if s.Switches != "" {
		sigma, err := trainhmm.ParseSwitchAssignment(s.Switches)
		if err != nil {
			return errors.Wrap(err, "switches")
		}
		if err := sigma.Validate(s.Vertices); err != nil {
			return errors.Wrap(err, "switches")
		}
	}
	if _, err := s.AcceptanceRule(); err != nil {
		return err
	}
	if _, err := s.ProposalKind(); err != nil {
		return err
	}
	return nil
}

// AcceptanceRule decodes the Rule field.
func (s *Scenario) AcceptanceRule() (trainhmm.AcceptanceRule, error) {
	switch s.Rule {
	case "", "inverted":
		return trainhmm.InvertedRatio, nil
	case "metropolis":
		return trainhmm.MetropolisRatio, nil
	}
	return 0, errors.Errorf("unknown acceptance rule %q", s.Rule)
}

// ProposalKind decodes the Proposal field.
func (s *Scenario) ProposalKind() (trainhmm.Proposal, error) {
	switch s.Proposal {
	case "", "flip":
		return trainhmm.SingleFlip, nil
	case "resample":
		return trainhmm.FullResample, nil
	}
	return 0, errors.Errorf("unknown proposal %q", s.Proposal)
}

// TrueSwitches returns the configured true assignment,
// or a random one drawn from gen if none is set.
func (s *Scenario) TrueSwitches(gen *rand.Rand) (trainhmm.SwitchAssignment, error) {
	if s.Switches == "" {
		return trainhmm.RandomSwitchAssignment(gen, s.Vertices), nil
	}
	return trainhmm.ParseSwitchAssignment(s.Switches)
}

// SamplerConfig builds the sampler settings for the
// scenario.
func (s *Scenario) SamplerConfig(gen *rand.Rand) (trainhmm.SamplerConfig, error) {
	rule, err := s.AcceptanceRule()
	if err != nil {
		return trainhmm.SamplerConfig{}, err
	}
	proposal, err := s.ProposalKind()
	if err != nil {
		return trainhmm.SamplerConfig{}, err
	}
	return trainhmm.SamplerConfig{
		BurnIn:        s.BurnIn,
		NumSamples:    s.Samples,
		Rule:          rule,
		Proposal:      proposal,
		DiscardBurnIn: s.DiscardBurnIn,
		MaxIterations: s.MaxIterations,
		Gen:           gen,
	}, nil
}
