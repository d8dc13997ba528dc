package evo

import (
	"math/rand"
	"testing"
)

func TestMutateZeroRateLeavesWeights(t *testing.T) {
	weights := []float64{0.1, -0.2, 0.3}
	if n := Mutate(rand.New(rand.NewSource(1)), weights, 0, 1); n != 0 {
		t.Fatalf("expected no mutations, got %d", n)
	}
	if weights[0] != 0.1 || weights[1] != -0.2 || weights[2] != 0.3 {
		t.Fatalf("unexpected weights: %v", weights)
	}
}

func TestMutateFullRateTouchesEveryWeight(t *testing.T) {
	weights := make([]float64, 64)
	n := Mutate(rand.New(rand.NewSource(2)), weights, 1, 0.5)
	if n != len(weights) {
		t.Fatalf("expected %d mutations, got %d", len(weights), n)
	}
	for i, w := range weights {
		if w == 0 {
			t.Fatalf("weight %d not perturbed", i)
		}
	}
}

func TestMutateIsDeterministicForSeed(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5, 6}
	b := append([]float64(nil), a...)
	Mutate(rand.New(rand.NewSource(9)), a, 0.5, 0.3)
	Mutate(rand.New(rand.NewSource(9)), b, 0.5, 0.3)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("position %d differs: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestCrossoverSwapsPositionsPairwise(t *testing.T) {
	origA := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	origB := []float64{-1, -2, -3, -4, -5, -6, -7, -8, -9, -10}
	a := append([]float64(nil), origA...)
	b := append([]float64(nil), origB...)
	Crossover(rand.New(rand.NewSource(3)), a, b)

	swapped := 0
	for i := range a {
		switch {
		case a[i] == origA[i] && b[i] == origB[i]:
		case a[i] == origB[i] && b[i] == origA[i]:
			swapped++
		default:
			t.Fatalf("position %d mixed values: %f %f", i, a[i], b[i])
		}
	}
	if swapped == 0 || swapped == len(a) {
		t.Fatalf("expected a partial swap, got %d of %d", swapped, len(a))
	}
}
