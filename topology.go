package trainhmm

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	serializer.RegisterTypedDeserializer((&Topology{}).SerializerType(), DeserializeTopology)
}

// MinVertices is the smallest graph BuildTopology can
// produce.
// With fewer vertices, the i+2 and i-2 neighbors of a
// vertex coincide.
const MinVertices = 6

// Topology is a graph in which every vertex has exactly
// one outgoing edge per edge label.
//
// Adjacency is symmetric, but the two ends of an edge
// carry independent labels: the label a train departs on
// is generally not the label it arrives on.
type Topology struct {
	// neighbors[v][l-1] is the vertex reached from v via
	// edge label l.
	neighbors [][NumLabels]int

	// returns[v][l-1] is the label of the edge leading
	// back to v from neighbors[v][l-1].
	returns [][NumLabels]Label
}

// BuildTopology creates a ring-of-rings graph with n
// vertices.
//
// Even vertices are joined to i+1, i+2 and i-2 and odd
// vertices to i+2, i-2 and i-1 (mod n), which forms two
// concentric cycles joined by rungs.
// Each vertex assigns a uniformly random permutation of
// the edge labels to its three edges.
//
// If gen is nil, the global routines in package rand are
// used.
func BuildTopology(gen *rand.Rand, n int) (*Topology, error) {
	if n%2 != 0 || n < MinVertices {
		return nil, fmt.Errorf("%w: need an even count of at least %d, got %d",
			ErrInvalidSize, MinVertices, n)
	}
	matrix := make([][]Label, n)
	for i := range matrix {
		matrix[i] = make([]Label, n)
		var targets [NumLabels]int
		if i%2 == 0 {
			targets = [NumLabels]int{i + 1, i + 2, i - 2}
		} else {
			targets = [NumLabels]int{i + 2, i - 2, i - 1}
		}
		perm := randPerm(gen, NumLabels)
		for j, target := range targets {
			matrix[i][mod(target, n)] = edgeLabels[perm[j]]
		}
	}
	return TopologyFromMatrix(matrix)
}

// TopologyFromMatrix creates a Topology from a square
// label matrix, where m[u][v] is the label of the edge
// from u to v, or None if there is no edge.
//
// Every row must contain each edge label exactly once,
// the diagonal must be None, and every edge must have a
// return edge.
func TopologyFromMatrix(m [][]Label) (*Topology, error) {
	n := len(m)
	if n%2 != 0 || n < MinVertices {
		return nil, fmt.Errorf("%w: need an even count of at least %d, got %d",
			ErrInvalidSize, MinVertices, n)
	}
	res := &Topology{
		neighbors: make([][NumLabels]int, n),
		returns:   make([][NumLabels]Label, n),
	}
	for u, row := range m {
		if len(row) != n {
			return nil, fmt.Errorf("%w: row %d has length %d", ErrInvalidSize, u, len(row))
		}
		var seen [NumLabels]bool
		for v, l := range row {
			if l == None {
				continue
			}
			if !l.IsEdge() {
				return nil, fmt.Errorf("%w: entry (%d, %d) has label %v", ErrNoSuchEdge,
					u, v, l)
			}
			if u == v {
				return nil, fmt.Errorf("%w: self loop at vertex %d", ErrNoSuchEdge, u)
			}
			if seen[l-1] {
				return nil, fmt.Errorf("%w: vertex %d has two %v edges", ErrNoSuchEdge, u, l)
			}
			seen[l-1] = true
			res.neighbors[u][l-1] = v
		}
		for i, ok := range seen {
			if !ok {
				return nil, fmt.Errorf("%w: vertex %d has no %v edge", ErrNoSuchEdge, u,
					edgeLabels[i])
			}
		}
	}
	for u := range res.neighbors {
		for i, v := range res.neighbors[u] {
			back := m[v][u]
			if back == None {
				return nil, fmt.Errorf("%w: edge %d->%d has no return edge", ErrNoSuchEdge,
					u, v)
			}
			res.returns[u][i] = back
		}
	}
	return res, nil
}

// DeserializeTopology deserializes a Topology.
func DeserializeTopology(d []byte) (t *Topology, err error) {
	defer essentials.AddCtxTo("deserialize Topology", &err)
	var n int
	var flat []float64
	if err := serializer.DeserializeAny(d, &n, &flat); err != nil {
		return nil, err
	}
	if n < 0 || len(flat) != n*n {
		return nil, errors.New("invalid matrix size")
	}
	m := make([][]Label, n)
	for i := range m {
		m[i] = make([]Label, n)
		for j := range m[i] {
			m[i][j] = Label(flat[i*n+j])
		}
	}
	return TopologyFromMatrix(m)
}

// NumVertices returns the number of vertices.
func (t *Topology) NumVertices() int {
	return len(t.neighbors)
}

// NumStates returns the number of composite states.
func (t *Topology) NumStates() int {
	return NumLabels * len(t.neighbors)
}

// NeighborVia returns the vertex reached from v by taking
// the edge with label l.
func (t *Topology) NeighborVia(v int, l Label) (int, error) {
	if err := t.checkEdge(v, l); err != nil {
		return 0, err
	}
	return t.neighbors[v][l-1], nil
}

// ReturnLabel returns the label of the edge which leads
// back to v from NeighborVia(v, l).
// This is the label a train arrives on after leaving v
// via l.
func (t *Topology) ReturnLabel(v int, l Label) (Label, error) {
	if err := t.checkEdge(v, l); err != nil {
		return None, err
	}
	return t.returns[v][l-1], nil
}

// Matrix returns the label matrix of the graph.
func (t *Topology) Matrix() [][]Label {
	n := len(t.neighbors)
	res := make([][]Label, n)
	for u, nbrs := range t.neighbors {
		res[u] = make([]Label, n)
		for i, v := range nbrs {
			res[u][v] = edgeLabels[i]
		}
	}
	return res
}

// SerializerType returns the unique ID used to serialize
// a Topology with the serializer package.
func (t *Topology) SerializerType() string {
	return "github.com/unixpickle/trainhmm.Topology"
}

// Serialize serializes the label matrix of the Topology.
func (t *Topology) Serialize() (data []byte, err error) {
	defer essentials.AddCtxTo("serialize Topology", &err)
	n := t.NumVertices()
	flat := make([]float64, 0, n*n)
	for _, row := range t.Matrix() {
		for _, l := range row {
			flat = append(flat, float64(l))
		}
	}
	return serializer.SerializeAny(n, flat)
}

func (t *Topology) checkEdge(v int, l Label) error {
	if v < 0 || v >= len(t.neighbors) {
		return fmt.Errorf("%w: vertex %d out of range", ErrNoSuchEdge, v)
	}
	if !l.IsEdge() {
		return fmt.Errorf("%w: vertex %d has no %v edge", ErrNoSuchEdge, v, l)
	}
	return nil
}

func mod(x, n int) int {
	return ((x % n) + n) % n
}
