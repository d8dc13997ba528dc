package evo

import "math/rand"

// Mutate perturbs each weight by N(0, intensity) where a uniform draw falls
// below rate. One uniform draw is consumed per weight.
func Mutate(rng *rand.Rand, weights []float64, rate, intensity float64) int {
	mutated := 0
	for i := range weights {
		if rng.Float64() < rate {
			weights[i] += rng.NormFloat64() * intensity
			mutated++
		}
	}
	return mutated
}

// Crossover swaps each position between a and b with probability 0.5.
func Crossover(rng *rand.Rand, a, b []float64) {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if rng.Float64() < 0.5 {
			a[i], b[i] = b[i], a[i]
		}
	}
}
