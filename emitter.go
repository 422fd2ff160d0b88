package trainhmm

// SwitchNoise is the emission model for departure labels:
// the observer misreports the label with probability P.
//
// This applies uniformly to all three labels, so an
// observed Zero when the train took a branch costs P just
// like an observed branch when it took Zero.
type SwitchNoise struct {
	P float64
}

// Prob returns the probability of observing the label
// observed when the train departed on actual.
func (s SwitchNoise) Prob(observed, actual Label) float64 {
	if observed == actual {
		return 1 - s.P
	}
	return s.P
}
