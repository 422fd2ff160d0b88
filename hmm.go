package trainhmm

import (
	"errors"
	"fmt"

	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	serializer.RegisterTypedDeserializer((&Model{}).SerializerType(), DeserializeModel)
}

// Model is a hidden Markov model of a train running on a
// Topology, conditioned on a fixed observation sequence.
//
// The hidden state is a composite (vertex, departure
// label) pair.
// Transitions are deterministic given a SwitchAssignment,
// so every inference routine takes the assignment as an
// argument.
type Model struct {
	Topology *Topology
	Obs      ObservedSequence

	// Noise is the probability that a departure label is
	// misreported.
	Noise float64

	preds predecessors
}

// NewModel creates a Model after validating its inputs.
func NewModel(t *Topology, obs ObservedSequence, noise float64) (*Model, error) {
	if len(obs) == 0 {
		return nil, fmt.Errorf("%w: empty observation sequence", ErrInsufficientObservations)
	}
	if err := obs.Validate(); err != nil {
		return nil, err
	}
	if !validNoise(noise) {
		return nil, fmt.Errorf("%w: %f", ErrInvalidNoise, noise)
	}
	return &Model{
		Topology: t,
		Obs:      obs,
		Noise:    noise,
		preds:    newPredecessors(t),
	}, nil
}

// DeserializeModel deserializes a Model.
func DeserializeModel(d []byte) (m *Model, err error) {
	defer essentials.AddCtxTo("deserialize Model", &err)
	var t *Topology
	var obs ObservedSequence
	var noise []float64
	if err := serializer.DeserializeAny(d, &t, &obs, &noise); err != nil {
		return nil, err
	}
	if len(noise) != 1 {
		return nil, errors.New("invalid noise field")
	}
	return NewModel(t, obs, noise[0])
}

// NumStates returns the number of composite states.
func (m *Model) NumStates() int {
	return m.Topology.NumStates()
}

// NumSteps returns the number of observed timesteps.
func (m *Model) NumSteps() int {
	return len(m.Obs)
}

// SerializerType returns the unique ID used to serialize
// a Model with the serializer package.
func (m *Model) SerializerType() string {
	return "github.com/unixpickle/trainhmm.Model"
}

// Serialize serializes the Model.
func (m *Model) Serialize() (data []byte, err error) {
	defer essentials.AddCtxTo("serialize Model", &err)
	return serializer.SerializeAny(m.Topology, m.Obs, []float64{m.Noise})
}

// transitionFunc combines the probabilities of the two
// branch predecessors of a Zero state.
// It returns the combined value and the chosen
// predecessor.
type transitionFunc func(right, left int, prev []float64) (float64, int)

// fill runs the shared recurrence behind Forward and
// Viterbi over a fresh table.
//
// For every vertex i, the Zero state is fed by trains
// arriving on i's Left or Right edge, and the branch which
// sigma[i] selects is fed by trains arriving on i's Zero
// edge.
// The other branch is unreachable under sigma.
//
// The visit callback, if non-nil, receives the chosen
// predecessor of every reachable state.
func (m *Model) fill(sigma SwitchAssignment, combine transitionFunc,
	visit func(t, state, pred int)) (*Table, error) {
	if err := sigma.Validate(m.Topology.NumVertices()); err != nil {
		return nil, err
	}
	if m.NumSteps() < 1 {
		return nil, fmt.Errorf("%w: empty observation sequence", ErrInsufficientObservations)
	}
	numStates := m.NumStates()
	table := NewTable(numStates, m.NumSteps())
	initial := 1 / float64(numStates)
	for s := 0; s < numStates; s++ {
		table.Set(s, 0, initial)
	}

	emit := SwitchNoise{P: m.Noise}
	for t := 1; t < m.NumSteps(); t++ {
		prev := table.Column(t - 1)
		obs := m.Obs[t].Departure
		if !obs.IsEdge() {
			return nil, fmt.Errorf("%w: departure %v at time %d", ErrInvalidObservation,
				obs, t)
		}
		for i := 0; i < m.Topology.NumVertices(); i++ {
			zeroState := EncodeState(i, Zero)
			val, pred := combine(m.preds.Right(i), m.preds.Left(i), prev)
			table.Set(zeroState, t, emit.Prob(obs, Zero)*val)
			if visit != nil {
				visit(t, zeroState, pred)
			}

			sw := sigma[i]
			branchState := EncodeState(i, sw)
			zeroPred := m.preds.Zero(i)
			table.Set(branchState, t, emit.Prob(obs, sw)*prev[zeroPred])
			table.Set(EncodeState(i, sw.Opposite()), t, 0)
			if visit != nil {
				visit(t, branchState, zeroPred)
			}
		}
	}
	return table, nil
}
