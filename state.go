package trainhmm

// EncodeState returns the composite state index for a
// train at vertex v which departs via edge label l.
func EncodeState(v int, l Label) int {
	return NumLabels*v + int(l) - 1
}

// DecodeState is the inverse of EncodeState.
func DecodeState(idx int) (v int, l Label) {
	return idx / NumLabels, Label(idx%NumLabels + 1)
}

// predecessors caches, for every vertex i and label l,
// the composite state a train must be in one step before
// it arrives at i via i's l-labeled edge.
//
// preds[i][l-1] is the state of the neighbor across that
// edge, departing on the edge's label at the neighbor's
// end.
type predecessors [][NumLabels]int

func newPredecessors(t *Topology) predecessors {
	res := make(predecessors, t.NumVertices())
	for i := range res {
		for j := range res[i] {
			res[i][j] = EncodeState(t.neighbors[i][j], t.returns[i][j])
		}
	}
	return res
}

// Zero returns the predecessor for arrivals at i over its
// Zero edge.
func (p predecessors) Zero(i int) int {
	return p[i][Zero-1]
}

// Left returns the predecessor for arrivals at i over its
// Left edge.
func (p predecessors) Left(i int) int {
	return p[i][Left-1]
}

// Right returns the predecessor for arrivals at i over its
// Right edge.
func (p predecessors) Right(i int) int {
	return p[i][Right-1]
}
