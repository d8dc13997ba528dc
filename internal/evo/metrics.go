package evo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports engine progress as Prometheus collectors. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	generations       prometheus.Counter
	evaluations       prometheus.Counter
	bestFitness       prometheus.Gauge
	meanFitness       prometheus.Gauge
	meanNovelty       prometheus.Gauge
	mutationRate      prometheus.Gauge
	mutationIntensity prometheus.Gauge
	stagnation        prometheus.Gauge
}

// NewMetrics registers the engine collectors with reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		generations: factory.NewCounter(prometheus.CounterOpts{
			Name: "neuroevo_generations_total",
			Help: "Generational transitions performed",
		}),
		evaluations: factory.NewCounter(prometheus.CounterOpts{
			Name: "neuroevo_evaluations_total",
			Help: "Fitness function invocations",
		}),
		bestFitness: factory.NewGauge(prometheus.GaugeOpts{
			Name: "neuroevo_best_fitness",
			Help: "Best fitness in the last evaluated population",
		}),
		meanFitness: factory.NewGauge(prometheus.GaugeOpts{
			Name: "neuroevo_mean_fitness",
			Help: "Mean fitness in the last evaluated population",
		}),
		meanNovelty: factory.NewGauge(prometheus.GaugeOpts{
			Name: "neuroevo_mean_novelty",
			Help: "Mean weight-space novelty in the last evaluated population",
		}),
		mutationRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "neuroevo_mutation_rate",
			Help: "Current adaptive mutation rate",
		}),
		mutationIntensity: factory.NewGauge(prometheus.GaugeOpts{
			Name: "neuroevo_mutation_intensity",
			Help: "Current adaptive mutation intensity",
		}),
		stagnation: factory.NewGauge(prometheus.GaugeOpts{
			Name: "neuroevo_generations_without_improvement",
			Help: "Consecutive generations without a strict best-fitness improvement",
		}),
	}
}

func (m *Metrics) observeEvaluation(population []Individual) {
	if m == nil || len(population) == 0 {
		return
	}
	best := population[0].Fitness
	fitness, novelty := 0.0, 0.0
	for _, ind := range population {
		best = max(best, ind.Fitness)
		fitness += ind.Fitness
		novelty += ind.Novelty
	}
	n := float64(len(population))
	m.evaluations.Add(n)
	m.bestFitness.Set(best)
	m.meanFitness.Set(fitness / n)
	m.meanNovelty.Set(novelty / n)
}

func (m *Metrics) observeGeneration(state State) {
	if m == nil {
		return
	}
	m.generations.Inc()
	m.mutationRate.Set(state.MutationRate)
	m.mutationIntensity.Set(state.MutationIntensity)
	m.stagnation.Set(float64(state.GenerationsWithoutImprovement))
}
