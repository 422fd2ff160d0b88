package trainhmm

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	serializer.RegisterTypedDeserializer(ObservedSequence{}.SerializerType(),
		DeserializeObservedSequence)
}

// A Step is one timestep of the train's true trajectory.
type Step struct {
	Vertex    int
	Arrival   Label
	Departure Label
}

// TruePath is the trajectory a train actually took.
type TruePath []Step

// States converts the path to composite state indices,
// using the departure label of each step.
func (t TruePath) States() []int {
	res := make([]int, len(t))
	for i, step := range t {
		res[i] = EncodeState(step.Vertex, step.Departure)
	}
	return res
}

// An Observation is what an observer reports for one
// timestep.
type Observation struct {
	Arrival   Label
	Departure Label
}

// ObservedSequence is a sequence of observations, one per
// timestep.
type ObservedSequence []Observation

// DeserializeObservedSequence deserializes an
// ObservedSequence.
func DeserializeObservedSequence(d []byte) (o ObservedSequence, err error) {
	defer essentials.AddCtxTo("deserialize ObservedSequence", &err)
	if len(d)%2 != 0 {
		return nil, errors.New("odd data length")
	}
	o = make(ObservedSequence, len(d)/2)
	for i := range o {
		o[i] = Observation{Arrival: Label(d[2*i]), Departure: Label(d[2*i+1])}
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Departures returns the observed departure labels.
func (o ObservedSequence) Departures() []Label {
	res := make([]Label, len(o))
	for i, obs := range o {
		res[i] = obs.Departure
	}
	return res
}

// Validate checks that every observation uses the label
// alphabet properly.
//
// Departures must be edge labels.
// Arrivals must be edge labels, except for the first
// observation, which may have no arrival.
func (o ObservedSequence) Validate() error {
	for t, obs := range o {
		if !obs.Departure.IsEdge() {
			return fmt.Errorf("%w: departure %v at time %d", ErrInvalidObservation,
				obs.Departure, t)
		}
		if !obs.Arrival.IsEdge() && !(t == 0 && obs.Arrival == None) {
			return fmt.Errorf("%w: arrival %v at time %d", ErrInvalidObservation,
				obs.Arrival, t)
		}
	}
	return nil
}

// SerializerType returns the unique ID used to serialize
// an ObservedSequence with the serializer package.
func (o ObservedSequence) SerializerType() string {
	return "github.com/unixpickle/trainhmm.ObservedSequence"
}

// Serialize serializes the sequence, two bytes per
// observation.
func (o ObservedSequence) Serialize() ([]byte, error) {
	res := make([]byte, 0, len(o)*2)
	for _, obs := range o {
		res = append(res, byte(obs.Arrival), byte(obs.Departure))
	}
	return res, nil
}

// Simulate runs a train for T timesteps around t with the
// switches set according to sigma.
//
// The train starts at a random vertex with a random
// Left/Right departure.
// Afterwards, a train which arrives on a Zero edge leaves
// on the edge its switch points to, and a train which
// arrives on a Left or Right edge leaves on Zero.
//
// Arrivals and Zero departures are always observed
// correctly.
// Left/Right departures are reported as the opposite
// setting with probability p.
//
// If gen is nil, the global routines in package rand are
// used.
func Simulate(gen *rand.Rand, t *Topology, sigma SwitchAssignment, T int,
	p float64) (TruePath, ObservedSequence, error) {
	if err := sigma.Validate(t.NumVertices()); err != nil {
		return nil, nil, err
	}
	if !validNoise(p) {
		return nil, nil, fmt.Errorf("%w: %f", ErrInvalidNoise, p)
	}
	if T < 1 {
		return nil, nil, fmt.Errorf("%w: T=%d", ErrInsufficientObservations, T)
	}

	path := make(TruePath, T)
	observed := make(ObservedSequence, T)

	start := Step{
		Vertex:    randIntn(gen, t.NumVertices()),
		Arrival:   None,
		Departure: randomSwitch(gen),
	}
	path[0] = start
	observed[0] = Observation{
		Arrival:   None,
		Departure: noisySwitch(gen, start.Departure, p),
	}

	for i := 1; i < T; i++ {
		prev := path[i-1]
		vertex, err := t.NeighborVia(prev.Vertex, prev.Departure)
		if err != nil {
			return nil, nil, err
		}
		arrival, err := t.ReturnLabel(prev.Vertex, prev.Departure)
		if err != nil {
			return nil, nil, err
		}
		step := Step{Vertex: vertex, Arrival: arrival}
		obs := Observation{Arrival: arrival}
		if arrival == Zero {
			step.Departure = sigma[vertex]
			obs.Departure = noisySwitch(gen, step.Departure, p)
		} else {
			step.Departure = Zero
			obs.Departure = Zero
		}
		path[i] = step
		observed[i] = obs
	}

	return path, observed, nil
}
