package trainhmm

import "math/rand"

// randFloat draws from [0, 1), using gen if it is non-nil
// and the global source otherwise.
func randFloat(gen *rand.Rand) float64 {
	if gen == nil {
		return rand.Float64()
	}
	return gen.Float64()
}

// randIntn draws from [0, n).
func randIntn(gen *rand.Rand, n int) int {
	if gen == nil {
		return rand.Intn(n)
	}
	return gen.Intn(n)
}

// randPerm returns a random permutation of [0, n).
func randPerm(gen *rand.Rand, n int) []int {
	if gen == nil {
		return rand.Perm(n)
	}
	return gen.Perm(n)
}

// randomSwitch picks Left or Right uniformly.
func randomSwitch(gen *rand.Rand) Label {
	if randIntn(gen, 2) == 0 {
		return Left
	}
	return Right
}

// noisySwitch reports the switch setting l as seen by an
// observer who gets it wrong with probability p.
func noisySwitch(gen *rand.Rand, l Label, p float64) Label {
	if randFloat(gen) < p {
		return l.Opposite()
	}
	return l
}

// validNoise checks that p is a probability.
func validNoise(p float64) bool {
	return p >= 0 && p <= 1
}
