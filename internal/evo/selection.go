package evo

import (
	"math/rand"
	"sort"
)

// Rank returns the population ordered by combined score, highest first.
// Ties keep their population order.
func Rank(population []Individual) []Individual {
	ranked := append([]Individual(nil), population...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score() > ranked[j].Score()
	})
	return ranked
}

// SelectElite returns the top min(count, len(population)) individuals by
// combined score.
func SelectElite(population []Individual, count int) []Individual {
	ranked := Rank(population)
	if count < len(ranked) {
		ranked = ranked[:count]
	}
	return ranked
}

// Tournament draws size members uniformly with replacement and returns the
// one with the highest combined score. The first drawn wins ties.
func Tournament(rng *rand.Rand, population []Individual, size int) Individual {
	if size <= 0 {
		size = 1
	}
	best := population[rng.Intn(len(population))]
	for i := 1; i < size; i++ {
		candidate := population[rng.Intn(len(population))]
		if candidate.Score() > best.Score() {
			best = candidate
		}
	}
	return best
}
