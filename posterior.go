package trainhmm

import (
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
	"gonum.org/v1/gonum/floats"
)

// StatePosterior estimates the distribution of the final
// composite state given the observations, by summing the
// last forward column over the assignments in sigmas and
// normalizing.
func StatePosterior(m *Model, sigmas []SwitchAssignment) ([]float64, error) {
	joint := make([]float64, m.NumStates())
	for _, sigma := range sigmas {
		table, err := m.Forward(sigma)
		if err != nil {
			return nil, err
		}
		floats.Add(joint, table.Column(table.Cols()-1))
	}
	total := floats.Sum(joint)
	if total == 0 {
		return nil, fmt.Errorf("%w: no assignment explains the observations",
			ErrDegenerateLikelihood)
	}
	floats.Scale(1/total, joint)
	return joint, nil
}

// ConfigCount is the number of times an assignment was
// visited by a chain.
type ConfigCount struct {
	Sigma SwitchAssignment
	Count int
}

// Histogram counts the distinct assignments in the
// post-burn-in part of the chain, in lexical order of
// their string form.
func (c *Chain) Histogram() []ConfigCount {
	counts := treemap.NewWithStringComparator()
	sigmas := map[string]SwitchAssignment{}
	for _, s := range c.PostBurnIn() {
		key := s.Sigma.String()
		n := 0
		if old, ok := counts.Get(key); ok {
			n = old.(int)
		} else {
			sigmas[key] = s.Sigma
		}
		counts.Put(key, n+1)
	}
	res := make([]ConfigCount, 0, counts.Size())
	it := counts.Iterator()
	for it.Next() {
		key := it.Key().(string)
		res = append(res, ConfigCount{Sigma: sigmas[key], Count: it.Value().(int)})
	}
	return res
}

// SwitchMarginals returns, for every vertex, the fraction
// of post-burn-in samples in which its switch is Left.
func (c *Chain) SwitchMarginals() []float64 {
	samples := c.PostBurnIn()
	if len(samples) == 0 {
		return nil
	}
	res := make([]float64, len(samples[0].Sigma))
	for _, s := range samples {
		for i, l := range s.Sigma {
			if l == Left {
				res[i]++
			}
		}
	}
	floats.Scale(1/float64(len(samples)), res)
	return res
}

// MarginalAssignment thresholds SwitchMarginals at 1/2,
// breaking ties toward Left.
func (c *Chain) MarginalAssignment() SwitchAssignment {
	marginals := c.SwitchMarginals()
	if marginals == nil {
		return nil
	}
	res := make(SwitchAssignment, len(marginals))
	for i, p := range marginals {
		if p >= 0.5 {
			res[i] = Left
		} else {
			res[i] = Right
		}
	}
	return res
}
