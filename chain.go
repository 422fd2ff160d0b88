package trainhmm

import (
	"errors"
	"fmt"

	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	serializer.RegisterTypedDeserializer((&Chain{}).SerializerType(), DeserializeChain)
}

// A Sample is the state of a chain after one iteration.
type Sample struct {
	Iteration  int
	Phase      Phase
	Sigma      SwitchAssignment
	Likelihood float64

	// Accepted is true if the iteration moved the chain.
	Accepted bool
}

// A Chain is the output of Sampler.Run.
type Chain struct {
	Samples []Sample

	// BurnIn is the number of leading samples recorded
	// during burn-in.
	BurnIn int

	// Accepted counts accepted proposals, including those
	// made during discarded burn-in iterations.
	Accepted int

	// Degenerate counts proposals rejected because of a
	// zero denominator.
	Degenerate int
}

// DeserializeChain deserializes a Chain.
func DeserializeChain(d []byte) (c *Chain, err error) {
	defer essentials.AddCtxTo("deserialize Chain", &err)
	var burnIn, accepted, degenerate int
	var iterations, phases, likelihoods, acceptFlags []float64
	var sigmas []serializer.Serializer
	err = serializer.DeserializeAny(d, &burnIn, &accepted, &degenerate, &iterations,
		&phases, &likelihoods, &acceptFlags, &sigmas)
	if err != nil {
		return nil, err
	}
	n := len(sigmas)
	if len(iterations) != n || len(phases) != n || len(likelihoods) != n ||
		len(acceptFlags) != n {
		return nil, errors.New("mismatching slice lengths")
	}
	c = &Chain{BurnIn: burnIn, Accepted: accepted, Degenerate: degenerate}
	for i, sigmaSer := range sigmas {
		sigma, ok := sigmaSer.(SwitchAssignment)
		if !ok {
			return nil, fmt.Errorf("not a SwitchAssignment: %T", sigmaSer)
		}
		c.Samples = append(c.Samples, Sample{
			Iteration:  int(iterations[i]),
			Phase:      Phase(phases[i]),
			Sigma:      sigma,
			Likelihood: likelihoods[i],
			Accepted:   acceptFlags[i] != 0,
		})
	}
	return c, nil
}

// Len returns the number of recorded samples.
func (c *Chain) Len() int {
	return len(c.Samples)
}

// Sigmas returns the recorded assignments in order.
func (c *Chain) Sigmas() []SwitchAssignment {
	res := make([]SwitchAssignment, len(c.Samples))
	for i, s := range c.Samples {
		res[i] = s.Sigma
	}
	return res
}

// Likelihoods returns the recorded likelihoods in order.
func (c *Chain) Likelihoods() []float64 {
	res := make([]float64, len(c.Samples))
	for i, s := range c.Samples {
		res[i] = s.Likelihood
	}
	return res
}

// PostBurnIn returns the samples recorded after burn-in.
func (c *Chain) PostBurnIn() []Sample {
	if c.BurnIn >= len(c.Samples) {
		return nil
	}
	return c.Samples[c.BurnIn:]
}

// AcceptanceRate returns the fraction of recorded
// iterations which accepted their proposal.
func (c *Chain) AcceptanceRate() float64 {
	if len(c.Samples) == 0 {
		return 0
	}
	var n int
	for _, s := range c.Samples {
		if s.Accepted {
			n++
		}
	}
	return float64(n) / float64(len(c.Samples))
}

// Best returns the recorded sample with the highest
// likelihood.
// The second result is false if the chain is empty.
func (c *Chain) Best() (Sample, bool) {
	if len(c.Samples) == 0 {
		return Sample{}, false
	}
	best := c.Samples[0]
	for _, s := range c.Samples[1:] {
		if s.Likelihood > best.Likelihood {
			best = s
		}
	}
	return best, true
}

// SerializerType returns the unique ID used to serialize
// a Chain with the serializer package.
func (c *Chain) SerializerType() string {
	return "github.com/unixpickle/trainhmm.Chain"
}

// Serialize serializes the Chain.
func (c *Chain) Serialize() (data []byte, err error) {
	defer essentials.AddCtxTo("serialize Chain", &err)
	var iterations, phases, likelihoods, acceptFlags []float64
	var sigmas []serializer.Serializer
	for _, s := range c.Samples {
		iterations = append(iterations, float64(s.Iteration))
		phases = append(phases, float64(s.Phase))
		likelihoods = append(likelihoods, s.Likelihood)
		if s.Accepted {
			acceptFlags = append(acceptFlags, 1)
		} else {
			acceptFlags = append(acceptFlags, 0)
		}
		sigmas = append(sigmas, s.Sigma)
	}
	return serializer.SerializeAny(c.BurnIn, c.Accepted, c.Degenerate, iterations,
		phases, likelihoods, acceptFlags, sigmas)
}
