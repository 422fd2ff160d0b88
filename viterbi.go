package trainhmm

// A Predecessor is a backpointer in a ViterbiTable.
// If OK is false, the state has no predecessor, either
// because it is in the first column or because it cannot
// be reached under the switch assignment.
type Predecessor struct {
	State int
	OK    bool
}

// ViterbiTable stores the results of the Viterbi
// recurrence.
type ViterbiTable struct {
	// Probs holds, for each state and time, the probability
	// of the best path which ends there.
	Probs *Table

	// Back holds the backpointer of every entry in Probs,
	// indexed as Back[t][state].
	Back [][]Predecessor
}

// Viterbi runs the max-product version of Forward,
// recording the best predecessor of every state.
//
// When both branch predecessors of a Zero state are
// equally likely, the one across the Right edge is
// chosen.
func (m *Model) Viterbi(sigma SwitchAssignment) (*ViterbiTable, error) {
	back := make([][]Predecessor, m.NumSteps())
	for t := range back {
		back[t] = make([]Predecessor, m.NumStates())
	}
	probs, err := m.fill(sigma, func(right, left int, prev []float64) (float64, int) {
		if prev[right] >= prev[left] {
			return prev[right], right
		}
		return prev[left], left
	}, func(t, state, pred int) {
		back[t][state] = Predecessor{State: pred, OK: true}
	})
	if err != nil {
		return nil, err
	}
	return &ViterbiTable{Probs: probs, Back: back}, nil
}

// BestProb returns the probability of the most likely
// path, i.e. the largest entry in the last column.
func (v *ViterbiTable) BestProb() float64 {
	_, prob := v.bestFinal()
	return prob
}

// MostLikely returns the most probable sequence of
// composite states.
//
// If no state sequence can explain the observations, nil
// is returned.
func (v *ViterbiTable) MostLikely() []int {
	state, prob := v.bestFinal()
	if prob <= 0 {
		return nil
	}
	cols := v.Probs.Cols()
	res := make([]int, 0, cols)
	res = append(res, state)
	for t := cols - 1; t > 0; t-- {
		pred := v.Back[t][state]
		if !pred.OK {
			return nil
		}
		state = pred.State
		res = append(res, state)
	}
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res
}

func (v *ViterbiTable) bestFinal() (state int, prob float64) {
	last := v.Probs.Column(v.Probs.Cols() - 1)
	state = -1
	for s, p := range last {
		if state < 0 || p > prob {
			state, prob = s, p
		}
	}
	return
}
