package evo

import (
	"errors"
	"log/slog"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"neuroevo/internal/nn"
)

var (
	ErrInvalidConfig   = errors.New("invalid engine config")
	ErrNoFitnessFunc   = errors.New("fitness function is required")
	ErrNotInitialized  = errors.New("population is not initialized")
	ErrEmptyPopulation = errors.New("population is empty")
)

// FitnessFunc scores one network. It may drive the network through SetInput
// and Forward but must not change its weights, and it must be safe to call
// concurrently on distinct networks.
type FitnessFunc func(net *nn.Network) float64

// Individual is one genome with its latest fitness and novelty.
type Individual struct {
	Network *nn.Network
	Fitness float64
	Novelty float64
}

// Score is the combined ranking value 0.7*fitness + 0.3*novelty.
func (ind Individual) Score() float64 {
	return FitnessWeight*ind.Fitness + NoveltyWeight*ind.Novelty
}

func (ind Individual) clone() Individual {
	return Individual{Network: ind.Network.Clone(), Fitness: ind.Fitness, Novelty: ind.Novelty}
}

// State is the adaptive control state carried between generations.
type State struct {
	Generation                    int
	GenerationsWithoutImprovement int
	BestFitness                   float64
	MutationRate                  float64
	MutationIntensity             float64
	CrossoverRate                 float64
}

// Engine evolves a fixed-size population of fixed-topology networks.
type Engine struct {
	cfg        Config
	rng        *rand.Rand
	logger     *slog.Logger
	metrics    *Metrics
	population []Individual
	state      State
}

func NewEngine(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		state: State{
			MutationRate:      cfg.MutationRate,
			MutationIntensity: cfg.MutationIntensity,
			CrossoverRate:     cfg.CrossoverRate,
		},
	}, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) State() State {
	return e.state
}

func (e *Engine) Size() int {
	return len(e.population)
}

// Individual returns the i-th member. The network is shared with the engine.
func (e *Engine) Individual(i int) Individual {
	return e.population[i]
}

// Population returns the current members in order. Networks are shared.
func (e *Engine) Population() []Individual {
	return append([]Individual(nil), e.population...)
}

// InitializePopulation replaces the population with freshly initialized
// individuals.
func (e *Engine) InitializePopulation() error {
	population := make([]Individual, 0, e.cfg.PopulationSize)
	for i := 0; i < e.cfg.PopulationSize; i++ {
		ind, err := e.freshIndividual()
		if err != nil {
			return err
		}
		population = append(population, ind)
	}
	e.population = population
	e.logger.Debug("population initialized",
		slog.Int("size", len(population)),
		slog.String("shape", e.cfg.Shape.String()),
		slog.Int("weights", e.cfg.Shape.WeightCount()),
	)
	return nil
}

func (e *Engine) freshIndividual() (Individual, error) {
	net, err := nn.New(e.cfg.Shape, e.rng)
	if err != nil {
		return Individual{}, err
	}
	return Individual{Network: net}, nil
}

// Evaluate stores fn's score as every individual's fitness and then
// recomputes novelty over the whole population.
func (e *Engine) Evaluate(fn FitnessFunc) error {
	if len(e.population) == 0 {
		return ErrNotInitialized
	}
	if fn == nil {
		return ErrNoFitnessFunc
	}

	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for i := range e.population {
		g.Go(func() error {
			e.population[i].Fitness = fn(e.population[i].Network)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	genomes := make([][]float64, len(e.population))
	for i := range e.population {
		genomes[i] = e.population[i].Network.FlattenWeights()
	}
	novelty := Novelty(genomes, e.cfg.Workers)
	for i := range e.population {
		e.population[i].Novelty = novelty[i]
	}

	e.metrics.observeEvaluation(e.population)
	return nil
}

// Evolve performs one generational transition.
func (e *Engine) Evolve() error {
	if len(e.population) == 0 {
		return ErrNotInitialized
	}

	best, _ := e.BestFitness()
	if best > e.state.BestFitness {
		e.state.GenerationsWithoutImprovement = 0
		e.state.BestFitness = best
	} else {
		e.state.GenerationsWithoutImprovement++
	}
	e.adapt()

	size := e.cfg.PopulationSize
	next := make([]Individual, 0, size)

	elite := SelectElite(e.population, e.cfg.EliteCount)
	for _, ind := range elite {
		if len(next) >= size {
			break
		}
		next = append(next, ind.clone())
	}

	for _, ind := range elite {
		if len(next) >= size {
			break
		}
		genes := ind.Network.FlattenWeights()
		Mutate(e.rng, genes, e.cfg.SoftMutationRate, e.cfg.SoftMutationIntensity)
		next = append(next, e.childFrom(ind, genes))
	}

	fresh := int(float64(size) * e.cfg.FreshFraction)
	for i := 0; i < fresh && len(next) < size; i++ {
		ind, err := e.freshIndividual()
		if err != nil {
			return err
		}
		next = append(next, ind)
	}

	for len(next) < size {
		p1 := Tournament(e.rng, e.population, e.cfg.TournamentSize)
		p2 := Tournament(e.rng, e.population, e.cfg.TournamentSize)
		genes1 := p1.Network.FlattenWeights()
		genes2 := p2.Network.FlattenWeights()

		if e.rng.Float64() < e.state.CrossoverRate {
			Crossover(e.rng, genes1, genes2)
		}
		Mutate(e.rng, genes1, e.state.MutationRate, e.state.MutationIntensity)
		Mutate(e.rng, genes2, e.state.MutationRate, e.state.MutationIntensity)

		next = append(next, e.childFrom(p1, genes1))
		if len(next) < size {
			next = append(next, e.childFrom(p2, genes2))
		}
	}

	e.population = next
	e.state.Generation++
	e.metrics.observeGeneration(e.state)
	e.logger.Debug("generation evolved",
		slog.Int("generation", e.state.Generation),
		slog.Float64("best_fitness", e.state.BestFitness),
		slog.Int("stagnation", e.state.GenerationsWithoutImprovement),
		slog.Float64("mutation_rate", e.state.MutationRate),
		slog.Float64("mutation_intensity", e.state.MutationIntensity),
		slog.Int("elite", len(elite)),
	)
	return nil
}

// adapt escalates mutation under sustained stagnation and snaps back to the
// configured defaults otherwise.
func (e *Engine) adapt() {
	if e.state.GenerationsWithoutImprovement > e.cfg.StagnationLimit {
		e.state.MutationRate = min(e.cfg.MutationCap, e.state.MutationRate*e.cfg.EscalationFactor)
		e.state.MutationIntensity = min(e.cfg.MutationCap, e.state.MutationIntensity*e.cfg.EscalationFactor)
		return
	}
	e.state.MutationRate = e.cfg.MutationRate
	e.state.MutationIntensity = e.cfg.MutationIntensity
}

func (e *Engine) childFrom(parent Individual, genes []float64) Individual {
	net := parent.Network.Clone()
	net.LoadWeights(genes)
	return Individual{Network: net}
}

// BestFitness is the maximum fitness in the current population.
func (e *Engine) BestFitness() (float64, error) {
	if len(e.population) == 0 {
		return 0, ErrEmptyPopulation
	}
	best := e.population[0].Fitness
	for _, ind := range e.population[1:] {
		best = max(best, ind.Fitness)
	}
	return best, nil
}

// AverageFitness is the mean fitness of the current population.
func (e *Engine) AverageFitness() (float64, error) {
	if len(e.population) == 0 {
		return 0, ErrEmptyPopulation
	}
	total := 0.0
	for _, ind := range e.population {
		total += ind.Fitness
	}
	return total / float64(len(e.population)), nil
}

// AverageNovelty is the mean novelty of the current population.
func (e *Engine) AverageNovelty() (float64, error) {
	if len(e.population) == 0 {
		return 0, ErrEmptyPopulation
	}
	total := 0.0
	for _, ind := range e.population {
		total += ind.Novelty
	}
	return total / float64(len(e.population)), nil
}

// Champion returns the individual with the highest fitness.
func (e *Engine) Champion() (Individual, error) {
	if len(e.population) == 0 {
		return Individual{}, ErrEmptyPopulation
	}
	bestIdx := 0
	for i, ind := range e.population {
		if ind.Fitness > e.population[bestIdx].Fitness {
			bestIdx = i
		}
	}
	return e.population[bestIdx], nil
}
