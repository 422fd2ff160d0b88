package trainhmm

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/approb"
)

func TestSamplerBurnInOnly(t *testing.T) {
	model, _ := testingModel(t, 6, 10, 0.1, nil)
	sampler, err := NewSampler(model, SamplerConfig{
		BurnIn: 1,
		Gen:    rand.New(rand.NewSource(testSeed)),
	})
	require.NoError(t, err)
	assert.Equal(t, PhaseInit, sampler.Phase())

	chain, err := sampler.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, chain.Len())
	assert.Equal(t, PhaseBurning, chain.Samples[0].Phase)
	assert.Equal(t, 0, chain.Samples[0].Iteration)
	assert.Empty(t, chain.PostBurnIn())
	assert.Equal(t, PhaseDone, sampler.Phase())
}

func TestSamplerPhases(t *testing.T) {
	model, _ := testingModel(t, 8, 20, 0.1, nil)
	sampler, err := NewSampler(model, SamplerConfig{
		BurnIn:     5,
		NumSamples: 10,
		Gen:        rand.New(rand.NewSource(testSeed)),
	})
	require.NoError(t, err)
	chain, err := sampler.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 15, chain.Len())
	assert.Equal(t, 5, chain.BurnIn)
	assert.Len(t, chain.PostBurnIn(), 10)
	for i, s := range chain.Samples {
		assert.Equal(t, i, s.Iteration)
		if i < 5 {
			assert.Equal(t, PhaseBurning, s.Phase, "iteration %d", i)
		} else {
			assert.Equal(t, PhaseSampling, s.Phase, "iteration %d", i)
		}
	}
}

func TestSamplerDiscardBurnIn(t *testing.T) {
	model, _ := testingModel(t, 8, 20, 0.1, nil)
	var callbacks int
	sampler, err := NewSampler(model, SamplerConfig{
		BurnIn:        5,
		NumSamples:    10,
		DiscardBurnIn: true,
		Gen:           rand.New(rand.NewSource(testSeed)),
		OnSample: func(Sample) {
			callbacks++
		},
	})
	require.NoError(t, err)
	chain, err := sampler.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10, chain.Len())
	assert.Equal(t, 0, chain.BurnIn)
	assert.Equal(t, 15, callbacks)
	for i, s := range chain.Samples {
		assert.Equal(t, i+5, s.Iteration)
		assert.Equal(t, PhaseSampling, s.Phase)
	}
}

func TestSamplerSingleFlip(t *testing.T) {
	for _, rule := range []AcceptanceRule{InvertedRatio, MetropolisRatio} {
		model, _ := testingModel(t, 10, 30, 0.1, nil)
		initial := RandomSwitchAssignment(rand.New(rand.NewSource(testSeed)), 10)
		sampler, err := NewSampler(model, SamplerConfig{
			NumSamples: 200,
			Rule:       rule,
			Initial:    initial,
			Gen:        rand.New(rand.NewSource(testSeed)),
		})
		require.NoError(t, err)
		chain, err := sampler.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 200, chain.Len())

		prev := initial
		var accepted int
		for _, s := range chain.Samples {
			dist := prev.Hamming(s.Sigma)
			require.LessOrEqual(t, dist, 1, "rule %d iteration %d", rule, s.Iteration)
			assert.Equal(t, s.Accepted, dist == 1, "rule %d iteration %d", rule, s.Iteration)
			if s.Accepted {
				accepted++
			}
			likelihood, err := model.Likelihood(s.Sigma)
			require.NoError(t, err)
			assert.InDelta(t, likelihood, s.Likelihood, testTolerance)
			prev = s.Sigma
		}
		assert.Equal(t, accepted, chain.Accepted)

		current, likelihood := sampler.Current()
		assert.True(t, current.Equal(prev))
		assert.Equal(t, chain.Samples[199].Likelihood, likelihood)
	}
}

func TestSamplerFullResample(t *testing.T) {
	model, _ := testingModel(t, 8, 20, 0.2, nil)
	sampler, err := NewSampler(model, SamplerConfig{
		NumSamples: 100,
		Proposal:   FullResample,
		Rule:       MetropolisRatio,
		Gen:        rand.New(rand.NewSource(testSeed)),
	})
	require.NoError(t, err)
	chain, err := sampler.Run(context.Background())
	require.NoError(t, err)
	var bigJumps int
	for i := 1; i < chain.Len(); i++ {
		if chain.Samples[i].Sigma.Hamming(chain.Samples[i-1].Sigma) > 1 {
			bigJumps++
		}
	}
	assert.Greater(t, bigJumps, 0)
}

func TestSamplerInvertedDegenerate(t *testing.T) {
	model := impossibleModel(t)
	initial := UniformSwitchAssignment(6, Right)

	// No single flip can produce two consecutive Left
	// departures, so every proposal is impossible.
	for v := range initial {
		likelihood, err := model.Likelihood(initial.Flip(v))
		require.NoError(t, err)
		require.Zero(t, likelihood, "flip %d", v)
	}

	registry := prometheus.NewRegistry()
	metrics := NewSamplerMetrics(registry)
	sampler, err := NewSampler(model, SamplerConfig{
		NumSamples: 20,
		Initial:    initial,
		Gen:        rand.New(rand.NewSource(testSeed)),
		Metrics:    metrics,
	})
	require.NoError(t, err)
	chain, err := sampler.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 20, chain.Len())
	assert.Equal(t, 20, chain.Degenerate)
	assert.Equal(t, 0, chain.Accepted)
	for _, s := range chain.Samples {
		assert.True(t, s.Sigma.Equal(initial))
		assert.Zero(t, s.Likelihood)
	}
	assert.Equal(t, 20.0, testutil.ToFloat64(metrics.Proposals))
	assert.Equal(t, 20.0, testutil.ToFloat64(metrics.Degenerate))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.Accepted))
}

func TestSamplerMetropolisDegenerate(t *testing.T) {
	model := impossibleModel(t)
	sampler, err := NewSampler(model, SamplerConfig{
		NumSamples: 20,
		Rule:       MetropolisRatio,
		Initial:    UniformSwitchAssignment(6, Right),
		Gen:        rand.New(rand.NewSource(testSeed)),
	})
	require.NoError(t, err)
	chain, err := sampler.Run(context.Background())
	assert.ErrorIs(t, err, ErrDegenerateLikelihood)
	require.NotNil(t, chain)
	assert.Zero(t, chain.Len())
}

func TestSamplerCancel(t *testing.T) {
	model, _ := testingModel(t, 8, 20, 0.1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sampler, err := NewSampler(model, SamplerConfig{NumSamples: 10})
	require.NoError(t, err)
	chain, err := sampler.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, chain.Len())

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	sampler, err = NewSampler(model, SamplerConfig{
		NumSamples: 100,
		Gen:        rand.New(rand.NewSource(testSeed)),
		OnSample: func(s Sample) {
			if s.Iteration == 2 {
				cancel()
			}
		},
	})
	require.NoError(t, err)
	chain, err = sampler.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, chain.Len())
	assert.NotEqual(t, PhaseDone, sampler.Phase())
}

func TestSamplerMaxIterations(t *testing.T) {
	model, _ := testingModel(t, 6, 10, 0.1, nil)
	sampler, err := NewSampler(model, SamplerConfig{
		BurnIn:        10,
		NumSamples:    100,
		MaxIterations: 25,
		Gen:           rand.New(rand.NewSource(testSeed)),
	})
	require.NoError(t, err)
	chain, err := sampler.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, chain.Len())
	assert.Len(t, chain.PostBurnIn(), 15)
}

func TestSamplerConfigIterations(t *testing.T) {
	config := SamplerConfig{BurnIn: 10, NumSamples: 100}
	assert.Equal(t, 110, config.Iterations())
	config.MaxIterations = 25
	assert.Equal(t, 25, config.Iterations())
	config.MaxIterations = 500
	assert.Equal(t, 110, config.Iterations())
}

func TestSamplerMetrics(t *testing.T) {
	model, _ := testingModel(t, 8, 20, 0.1, nil)
	registry := prometheus.NewRegistry()
	metrics := NewSamplerMetrics(registry)
	sampler, err := NewSampler(model, SamplerConfig{
		BurnIn:     10,
		NumSamples: 50,
		Rule:       MetropolisRatio,
		Gen:        rand.New(rand.NewSource(testSeed)),
		Metrics:    metrics,
	})
	require.NoError(t, err)
	chain, err := sampler.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 60.0, testutil.ToFloat64(metrics.Proposals))
	assert.Equal(t, float64(chain.Accepted), testutil.ToFloat64(metrics.Accepted))
	_, likelihood := sampler.Current()
	assert.Equal(t, likelihood, testutil.ToFloat64(metrics.Likelihood))

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 4)
}

func TestNewSamplerErrors(t *testing.T) {
	model, _ := testingModel(t, 6, 10, 0.1, nil)
	_, err := NewSampler(model, SamplerConfig{BurnIn: -1})
	assert.Error(t, err)
	_, err = NewSampler(model, SamplerConfig{NumSamples: -1})
	assert.Error(t, err)
	_, err = NewSampler(model, SamplerConfig{Initial: UniformSwitchAssignment(8, Left)})
	assert.ErrorIs(t, err, ErrInvalidSwitch)
}

func TestSamplerMetropolisPosterior(t *testing.T) {
	const (
		n          = 6
		numSamples = 30000
	)
	model, _ := testingModel(t, n, 30, 0.3, nil)

	all := allAssignments(n)
	var total, bestLikelihood float64
	likelihoods := map[string]float64{}
	for _, sigma := range all {
		likelihood, err := model.Likelihood(sigma)
		require.NoError(t, err)
		likelihoods[sigma.String()] = likelihood
		total += likelihood
		if likelihood > bestLikelihood {
			bestLikelihood = likelihood
		}
	}
	require.Greater(t, total, 0.0)

	sampler, err := NewSampler(model, SamplerConfig{
		BurnIn:     100,
		NumSamples: numSamples,
		Rule:       MetropolisRatio,
		Proposal:   FullResample,
		Gen:        rand.New(rand.NewSource(testSeed)),
	})
	require.NoError(t, err)
	chain, err := sampler.Run(context.Background())
	require.NoError(t, err)

	best, ok := chain.Best()
	require.True(t, ok)
	assert.InDelta(t, bestLikelihood, best.Likelihood, testTolerance)

	counts := map[string]int{}
	for _, entry := range chain.Histogram() {
		counts[entry.Sigma.String()] = entry.Count
	}
	for _, sigma := range all {
		key := sigma.String()
		expected := likelihoods[key] / total
		actual := float64(counts[key]) / numSamples
		assert.InDelta(t, expected, actual, 0.06, "assignment %s", key)
	}
}

func TestSamplerAcceptanceRatio(t *testing.T) {
	const numTrials = 20000
	model, _ := testingModel(t, 6, 40, 0.2, nil)
	best, worst := extremeAssignments(t, model)

	// flipRate is the chance that one Step from sigma
	// accepts, averaging min(1, num/denom) over the
	// uniformly chosen flips.
	flipRate := func(sigma SwitchAssignment, rule AcceptanceRule) float64 {
		current, err := model.Likelihood(sigma)
		require.NoError(t, err)
		var sum float64
		for v := range sigma {
			proposed, err := model.Likelihood(sigma.Flip(v))
			require.NoError(t, err)
			if rule == InvertedRatio {
				sum += math.Min(1, current/proposed)
			} else {
				sum += math.Min(1, proposed/current)
			}
		}
		return sum / float64(len(sigma))
	}
	newSampler := func(sigma SwitchAssignment, rule AcceptanceRule,
		gen *rand.Rand) *Sampler {
		sampler, err := NewSampler(model, SamplerConfig{Rule: rule, Initial: sigma, Gen: gen})
		require.NoError(t, err)
		return sampler
	}

	downhill := []struct {
		rule  AcceptanceRule
		sigma SwitchAssignment
	}{
		{InvertedRatio, best},
		{MetropolisRatio, worst},
	}
	for _, c := range downhill {
		gen := rand.New(rand.NewSource(testSeed))
		for i := 0; i < 500; i++ {
			accepted, err := newSampler(c.sigma, c.rule, gen).Step()
			require.NoError(t, err)
			require.True(t, accepted, "rule %d from %v: trial %d rejected", c.rule,
				c.sigma, i)
		}
	}

	uphill := []struct {
		rule  AcceptanceRule
		sigma SwitchAssignment
	}{
		{InvertedRatio, worst},
		{MetropolisRatio, best},
	}
	for _, c := range uphill {
		expected := flipRate(c.sigma, c.rule)
		require.Less(t, expected, 0.95, "rule %d: flips barely change the likelihood",
			c.rule)
		gen := rand.New(rand.NewSource(testSeed))
		mean, variance := approb.Moments(numTrials, func() float64 {
			accepted, err := newSampler(c.sigma, c.rule, gen).Step()
			if err != nil {
				t.Fatal(err)
			}
			if accepted {
				return 1
			}
			return 0
		})
		stderr := math.Sqrt(variance / numTrials)
		assert.InDelta(t, expected, mean, 5*stderr+1e-3, "rule %d from %v", c.rule, c.sigma)
	}
}
