package trainhmm

import (
	"context"
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
)

// Phase is the state of a Sampler.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseBurning
	PhaseSampling
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseBurning:
		return "burning"
	case PhaseSampling:
		return "sampling"
	case PhaseDone:
		return "done"
	}
	return "unknown"
}

// AcceptanceRule selects the Metropolis-Hastings ratio.
type AcceptanceRule int

const (
	// InvertedRatio accepts a proposal with probability
	// min(1, L(current)/L(proposed)).
	// This favors less likely configurations, so the chain
	// does not target the posterior.
	InvertedRatio AcceptanceRule = iota

	// MetropolisRatio accepts a proposal with probability
	// min(1, L(proposed)/L(current)).
	MetropolisRatio
)

// Proposal selects how candidate assignments are drawn.
type Proposal int

const (
	// SingleFlip toggles one uniformly chosen switch.
	SingleFlip Proposal = iota

	// FullResample draws every switch anew.
	FullResample
)

// SamplerConfig configures a Sampler.
type SamplerConfig struct {
	BurnIn     int
	NumSamples int

	Rule     AcceptanceRule
	Proposal Proposal

	// DiscardBurnIn drops burn-in iterations from the
	// returned Chain.
	// By default, every iteration is recorded.
	DiscardBurnIn bool

	// MaxIterations caps BurnIn+NumSamples if it is
	// positive.
	MaxIterations int

	// Initial is the starting assignment.
	// If nil, one is drawn uniformly at random.
	Initial SwitchAssignment

	// Gen is the random source.
	// If nil, the global routines in package rand are used.
	Gen *rand.Rand

	// Metrics, if non-nil, is updated on every step.
	Metrics *SamplerMetrics

	// OnSample, if non-nil, is called after every
	// iteration, including discarded ones.
	OnSample func(Sample)
}

// Iterations returns the number of iterations Run
// performs, which is BurnIn+NumSamples capped at
// MaxIterations.
func (c SamplerConfig) Iterations() int {
	total := c.BurnIn + c.NumSamples
	if c.MaxIterations > 0 && total > c.MaxIterations {
		return c.MaxIterations
	}
	return total
}

// A Sampler runs a Metropolis-Hastings chain over switch
// assignments, using Model.Likelihood as the unnormalized
// target density.
//
// A Sampler is not safe for concurrent use.
type Sampler struct {
	model  *Model
	config SamplerConfig

	phase      Phase
	iteration  int
	sigma      SwitchAssignment
	likelihood float64
}

// NewSampler creates a Sampler in PhaseInit.
func NewSampler(m *Model, config SamplerConfig) (*Sampler, error) {
	if config.BurnIn < 0 || config.NumSamples < 0 {
		return nil, errors.Errorf("negative iteration count (burn-in %d, samples %d)",
			config.BurnIn, config.NumSamples)
	}
	if config.Initial != nil {
		if err := config.Initial.Validate(m.Topology.NumVertices()); err != nil {
			return nil, errors.Wrap(err, "initial assignment")
		}
	}
	return &Sampler{model: m, config: config, phase: PhaseInit}, nil
}

// Phase returns the current phase.
func (s *Sampler) Phase() Phase {
	return s.phase
}

// Current returns the current assignment and its
// likelihood.
// The caller should not modify the assignment.
func (s *Sampler) Current() (SwitchAssignment, float64) {
	return s.sigma, s.likelihood
}

// Run performs BurnIn+NumSamples iterations and returns
// the recorded chain.
//
// If ctx is done before the chain finishes, the partial
// chain is returned along with the context's error.
//
// Proposals whose likelihood would divide by zero are
// rejected.
// If the current assignment itself has zero likelihood
// under MetropolisRatio, the chain cannot move and Run
// fails with ErrDegenerateLikelihood.
func (s *Sampler) Run(ctx context.Context) (*Chain, error) {
	if s.phase == PhaseInit {
		if err := s.init(); err != nil {
			return nil, err
		}
	}

	total := s.config.Iterations()
	if uncapped := s.config.BurnIn + s.config.NumSamples; total < uncapped {
		klog.Warningf("capping %d iterations at %d", uncapped, total)
	}

	chain := &Chain{BurnIn: s.config.BurnIn}
	if s.config.DiscardBurnIn {
		chain.BurnIn = 0
	}

	for s.iteration < total {
		if err := ctx.Err(); err != nil {
			return chain, errors.Wrapf(err, "sampler stopped at iteration %d", s.iteration)
		}
		if s.iteration >= s.config.BurnIn && s.phase == PhaseBurning {
			s.setPhase(PhaseSampling)
		}
		if s.config.Rule == MetropolisRatio && s.likelihood == 0 {
			return chain, errors.Wrapf(ErrDegenerateLikelihood,
				"current assignment %v has zero likelihood", s.sigma)
		}

		accepted, err := s.Step()
		if err != nil {
			if !errors.Is(err, ErrDegenerateLikelihood) {
				return chain, err
			}
			klog.V(2).Infof("iteration %d: rejecting proposal: %v", s.iteration, err)
			chain.Degenerate++
		}
		if accepted {
			chain.Accepted++
		}

		sample := Sample{
			Iteration:  s.iteration,
			Phase:      s.phase,
			Sigma:      s.sigma.Copy(),
			Likelihood: s.likelihood,
			Accepted:   accepted,
		}
		if !(s.config.DiscardBurnIn && s.phase == PhaseBurning) {
			chain.Samples = append(chain.Samples, sample)
		}
		if s.config.OnSample != nil {
			s.config.OnSample(sample)
		}
		klog.V(3).Infof("iteration %d: sigma=%v likelihood=%g accepted=%v",
			s.iteration, s.sigma, s.likelihood, accepted)
		s.iteration++
	}

	s.setPhase(PhaseDone)
	return chain, nil
}

// Step proposes a new assignment and accepts or rejects
// it.
//
// If the acceptance ratio has a zero denominator, the
// proposal is rejected and an error wrapping
// ErrDegenerateLikelihood is returned.
func (s *Sampler) Step() (accepted bool, err error) {
	if s.phase == PhaseInit {
		if err := s.init(); err != nil {
			return false, err
		}
	}
	metrics := s.config.Metrics
	metrics.proposed()

	proposed := s.propose()
	propLikelihood, err := s.model.Likelihood(proposed)
	if err != nil {
		return false, errors.Wrap(err, "proposal likelihood")
	}

	num, denom := s.likelihood, propLikelihood
	if s.config.Rule == MetropolisRatio {
		num, denom = propLikelihood, s.likelihood
	}
	if denom == 0 {
		metrics.degenerate()
		return false, errors.Wrapf(ErrDegenerateLikelihood,
			"acceptance ratio %g/%g", num, denom)
	}

	ratio := math.Min(1, num/denom)
	if ratio >= randFloat(s.config.Gen) {
		s.sigma = proposed
		s.likelihood = propLikelihood
		metrics.accepted(propLikelihood)
		return true, nil
	}
	return false, nil
}

func (s *Sampler) init() error {
	if s.config.Initial != nil {
		s.sigma = s.config.Initial.Copy()
	} else {
		s.sigma = RandomSwitchAssignment(s.config.Gen, s.model.Topology.NumVertices())
	}
	likelihood, err := s.model.Likelihood(s.sigma)
	if err != nil {
		return errors.Wrap(err, "initial likelihood")
	}
	s.likelihood = likelihood
	s.config.Metrics.setLikelihood(likelihood)
	if s.config.BurnIn > 0 {
		s.setPhase(PhaseBurning)
	} else {
		s.setPhase(PhaseSampling)
	}
	return nil
}

func (s *Sampler) propose() SwitchAssignment {
	if s.config.Proposal == FullResample {
		return RandomSwitchAssignment(s.config.Gen, len(s.sigma))
	}
	return s.sigma.Flip(randIntn(s.config.Gen, len(s.sigma)))
}

func (s *Sampler) setPhase(p Phase) {
	if s.phase != p {
		klog.V(1).Infof("sampler: %v -> %v at iteration %d", s.phase, p, s.iteration)
		s.phase = p
	}
}
