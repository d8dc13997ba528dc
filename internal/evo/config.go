package evo

import (
	"fmt"
	"log/slog"

	"neuroevo/internal/nn"
)

const (
	DefaultMutationRate          = 0.3
	DefaultMutationIntensity     = 0.3
	DefaultCrossoverRate         = 0.7
	DefaultEliteCount            = 50
	DefaultFreshFraction         = 0.1
	DefaultSoftMutationRate      = 0.1
	DefaultSoftMutationIntensity = 0.1
	DefaultTournamentSize        = 5
	DefaultStagnationLimit       = 5
	DefaultEscalationFactor      = 1.5
	DefaultMutationCap           = 0.8
)

// Combined ranking weights.
const (
	FitnessWeight = 0.7
	NoveltyWeight = 0.3
)

// Config fixes the topology, population size and reproduction parameters of
// an Engine. Zero values are replaced by the package defaults.
type Config struct {
	Shape          nn.Shape
	PopulationSize int
	EliteCount     int

	MutationRate      float64
	MutationIntensity float64
	CrossoverRate     float64

	SoftMutationRate      float64
	SoftMutationIntensity float64

	// FreshFraction of the population is re-initialized each generation.
	// Negative disables fresh individuals.
	FreshFraction float64

	TournamentSize int
	// StagnationLimit is the number of non-improving generations tolerated
	// before mutation escalates.
	StagnationLimit  int
	EscalationFactor float64
	MutationCap      float64

	Seed    int64
	Workers int

	Logger  *slog.Logger
	Metrics *Metrics
}

func (c Config) withDefaults() Config {
	if c.EliteCount <= 0 {
		c.EliteCount = DefaultEliteCount
	}
	if c.MutationRate <= 0 {
		c.MutationRate = DefaultMutationRate
	}
	if c.MutationIntensity <= 0 {
		c.MutationIntensity = DefaultMutationIntensity
	}
	if c.CrossoverRate <= 0 {
		c.CrossoverRate = DefaultCrossoverRate
	}
	if c.SoftMutationRate <= 0 {
		c.SoftMutationRate = DefaultSoftMutationRate
	}
	if c.SoftMutationIntensity <= 0 {
		c.SoftMutationIntensity = DefaultSoftMutationIntensity
	}
	if c.FreshFraction == 0 {
		c.FreshFraction = DefaultFreshFraction
	}
	if c.FreshFraction < 0 {
		c.FreshFraction = 0
	}
	if c.TournamentSize <= 0 {
		c.TournamentSize = DefaultTournamentSize
	}
	if c.StagnationLimit <= 0 {
		c.StagnationLimit = DefaultStagnationLimit
	}
	if c.EscalationFactor <= 0 {
		c.EscalationFactor = DefaultEscalationFactor
	}
	if c.MutationCap <= 0 {
		c.MutationCap = DefaultMutationCap
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

func (c Config) validate() error {
	if err := c.Shape.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.PopulationSize <= 0 {
		return fmt.Errorf("%w: population size must be > 0, got %d", ErrInvalidConfig, c.PopulationSize)
	}
	if c.FreshFraction > 1 {
		return fmt.Errorf("%w: fresh fraction must be <= 1, got %f", ErrInvalidConfig, c.FreshFraction)
	}
	if c.MutationRate > 1 {
		return fmt.Errorf("%w: mutation rate must be <= 1, got %f", ErrInvalidConfig, c.MutationRate)
	}
	if c.CrossoverRate > 1 {
		return fmt.Errorf("%w: crossover rate must be <= 1, got %f", ErrInvalidConfig, c.CrossoverRate)
	}
	return nil
}
