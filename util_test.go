package trainhmm

import (
	"math/rand"
	"testing"
)

const testSeed = 1337

// testingModel simulates T steps on a seeded n-vertex
// topology and wraps the observations in a Model.
func testingModel(t *testing.T, n, T int, p float64,
	sigma SwitchAssignment) (*Model, TruePath) {
	gen := rand.New(rand.NewSource(testSeed))
	topology, err := BuildTopology(gen, n)
	if err != nil {
		t.Fatal(err)
	}
	if sigma == nil {
		sigma = RandomSwitchAssignment(gen, n)
	}
	path, obs, err := Simulate(gen, topology, sigma, T, p)
	if err != nil {
		t.Fatal(err)
	}
	model, err := NewModel(topology, obs, p)
	if err != nil {
		t.Fatal(err)
	}
	return model, path
}

// deterministicPath follows the train from a start state
// under sigma, returning the state at every timestep and
// the probability of each state sequence prefix.
func deterministicPath(m *Model, sigma SwitchAssignment, start int) ([]int, []float64) {
	emit := SwitchNoise{P: m.Noise}
	states := []int{start}
	probs := []float64{1 / float64(m.NumStates())}
	state := start
	for t := 1; t < m.NumSteps(); t++ {
		v, l := DecodeState(state)
		next, _ := m.Topology.NeighborVia(v, l)
		arrival, _ := m.Topology.ReturnLabel(v, l)
		departure := Zero
		if arrival == Zero {
			departure = sigma[next]
		}
		state = EncodeState(next, departure)
		states = append(states, state)
		probs = append(probs, probs[t-1]*emit.Prob(m.Obs[t].Departure, departure))
	}
	return states, probs
}

// bruteForceForward computes the forward table by
// following the single path out of every start state.
func bruteForceForward(m *Model, sigma SwitchAssignment) *Table {
	res := NewTable(m.NumStates(), m.NumSteps())
	for start := 0; start < m.NumStates(); start++ {
		states, probs := deterministicPath(m, sigma, start)
		for t, s := range states {
			res.Set(s, t, res.At(s, t)+probs[t])
		}
	}
	return res
}

// bruteForceViterbi computes the Viterbi probabilities by
// following the single path out of every start state.
func bruteForceViterbi(m *Model, sigma SwitchAssignment) *Table {
	res := NewTable(m.NumStates(), m.NumSteps())
	for start := 0; start < m.NumStates(); start++ {
		states, probs := deterministicPath(m, sigma, start)
		for t, s := range states {
			if probs[t] > res.At(s, t) {
				res.Set(s, t, probs[t])
			}
		}
	}
	return res
}

// impossibleModel creates a noiseless Model whose
// observations cannot be explained when every switch is
// Right.
func impossibleModel(t *testing.T) *Model {
	gen := rand.New(rand.NewSource(testSeed))
	topology, err := BuildTopology(gen, 6)
	if err != nil {
		t.Fatal(err)
	}
	obs := ObservedSequence{
		{Arrival: None, Departure: Left},
		{Arrival: Zero, Departure: Left},
		{Arrival: Zero, Departure: Left},
	}
	model, err := NewModel(topology, obs, 0)
	if err != nil {
		t.Fatal(err)
	}
	return model
}

// allAssignments enumerates every assignment of n
// switches.
func allAssignments(n int) []SwitchAssignment {
	var res []SwitchAssignment
	for mask := 0; mask < 1<<uint(n); mask++ {
		sigma := make(SwitchAssignment, n)
		for i := range sigma {
			if mask&(1<<uint(i)) != 0 {
				sigma[i] = Left
			} else {
				sigma[i] = Right
			}
		}
		res = append(res, sigma)
	}
	return res
}

// extremeAssignments finds the most and least likely
// assignments of a small Model by enumeration.
func extremeAssignments(t *testing.T, m *Model) (best, worst SwitchAssignment) {
	var bestL, worstL float64
	for _, sigma := range allAssignments(m.Topology.NumVertices()) {
		l, err := m.Likelihood(sigma)
		if err != nil {
			t.Fatal(err)
		}
		if best == nil || l > bestL {
			best, bestL = sigma, l
		}
		if worst == nil || l < worstL {
			worst, worstL = sigma, l
		}
	}
	return
}
