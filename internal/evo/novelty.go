package evo

import (
	"math"
	"sync"
)

// Distance is the Euclidean distance between two flattened genomes.
func Distance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Novelty returns, per genome, the mean distance to every other genome.
// Genomes are only read; each worker writes its own result slot.
func Novelty(genomes [][]float64, workers int) []float64 {
	out := make([]float64, len(genomes))
	if len(genomes) < 2 {
		return out
	}
	if workers <= 0 {
		workers = 1
	}

	var wg sync.WaitGroup
	slots := make(chan struct{}, workers)
	for i := range genomes {
		slots <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-slots }()
			sum := 0.0
			for j := range genomes {
				if i != j {
					sum += Distance(genomes[i], genomes[j])
				}
			}
			out[i] = sum / float64(len(genomes)-1)
		}()
	}
	wg.Wait()
	return out
}
