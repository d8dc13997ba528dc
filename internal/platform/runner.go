package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"neuroevo/internal/evo"
	"neuroevo/internal/model"
	"neuroevo/internal/nn"
	"neuroevo/internal/storage"
	"neuroevo/internal/task"
)

type StopReason string

const (
	StopReasonGenerationLimit StopReason = "generation_limit"
	StopReasonEpochLimit      StopReason = "epoch_limit"
	StopReasonFitnessGoal     StopReason = "fitness_goal"
	StopReasonErrorGoal       StopReason = "error_goal"
	StopReasonCancelled       StopReason = "cancelled"
)

const (
	ModeEvolve = "evolve"
	ModeTrain  = "train"
)

var ErrNotStarted = errors.New("runner is not initialized")

type Config struct {
	Store   storage.Store
	Logger  *slog.Logger
	Metrics *evo.Metrics
}

type EvolutionConfig struct {
	RunID             string
	TaskName          string
	Shape             nn.Shape
	PopulationSize    int
	EliteCount        int
	Generations       int
	FitnessGoal       float64
	MutationRate      float64
	MutationIntensity float64
	CrossoverRate     float64
	Seed              int64
	Workers           int
}

type EvolutionResult struct {
	Run                model.Run
	History            []model.GenerationStats
	Champion           *nn.Network
	ChampionFitness    float64
	ChampionGeneration int
	StopReason         StopReason
}

type TrainConfig struct {
	RunID        string
	TaskName     string
	Shape        nn.Shape
	Epochs       int
	LearningRate float64
	ErrorGoal    float64
	Seed         int64
}

type TrainResult struct {
	Run        model.Run
	History    []model.GenerationStats
	Network    *nn.Network
	FinalError float64
	StopReason StopReason
}

// Runner drives evolutionary and supervised runs against the built-in tasks
// and records them in a Store.
type Runner struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *evo.Metrics

	mu      sync.RWMutex
	started bool
}

func NewRunner(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{store: cfg.Store, logger: logger, metrics: cfg.Metrics}
}

func (r *Runner) Init(ctx context.Context) error {
	if r.store == nil {
		return fmt.Errorf("store is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	if err := r.store.Init(ctx); err != nil {
		return err
	}
	r.started = true
	return nil
}

func (r *Runner) Started() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.started
}

func (r *Runner) Store() storage.Store {
	return r.store
}

// RunEvolution evaluates and evolves a population for up to cfg.Generations
// generations. The context is checked between generations; a cancelled run
// is still persisted with whatever it completed.
func (r *Runner) RunEvolution(ctx context.Context, cfg EvolutionConfig) (EvolutionResult, error) {
	if !r.Started() {
		return EvolutionResult{}, ErrNotStarted
	}
	if cfg.Generations <= 0 {
		return EvolutionResult{}, fmt.Errorf("generations must be > 0")
	}
	t, err := resolveTask(cfg.TaskName, cfg.Shape)
	if err != nil {
		return EvolutionResult{}, err
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := r.logger.With(slog.String("run_id", runID), slog.String("task", t.Name()))

	engine, err := evo.NewEngine(evo.Config{
		Shape:             cfg.Shape,
		PopulationSize:    cfg.PopulationSize,
		EliteCount:        cfg.EliteCount,
		MutationRate:      cfg.MutationRate,
		MutationIntensity: cfg.MutationIntensity,
		CrossoverRate:     cfg.CrossoverRate,
		Seed:              cfg.Seed,
		Workers:           cfg.Workers,
		Logger:            logger,
		Metrics:           r.metrics,
	})
	if err != nil {
		return EvolutionResult{}, err
	}
	if err := engine.InitializePopulation(); err != nil {
		return EvolutionResult{}, err
	}

	run := newRunRecord(runID, ModeEvolve, t.Name(), cfg.Shape, cfg.Seed)
	run.PopulationSize = engine.Config().PopulationSize
	run.EliteCount = engine.Config().EliteCount

	fitness := task.Fitness(t)
	result := EvolutionResult{StopReason: StopReasonGenerationLimit}
	logger.Info("evolution started",
		slog.String("shape", cfg.Shape.String()),
		slog.Int("population", run.PopulationSize),
		slog.Int("generations", cfg.Generations),
	)

	for gen := 1; gen <= cfg.Generations; gen++ {
		if ctx.Err() != nil {
			result.StopReason = StopReasonCancelled
			break
		}
		if err := engine.Evaluate(fitness); err != nil {
			return EvolutionResult{}, err
		}

		stats, err := generationStats(engine, gen)
		if err != nil {
			return EvolutionResult{}, err
		}
		result.History = append(result.History, stats)

		champion, err := engine.Champion()
		if err != nil {
			return EvolutionResult{}, err
		}
		if result.Champion == nil || champion.Fitness > result.ChampionFitness {
			result.Champion = champion.Network.Clone()
			result.ChampionFitness = champion.Fitness
			result.ChampionGeneration = gen
		}

		if cfg.FitnessGoal > 0 && stats.BestFitness >= cfg.FitnessGoal {
			result.StopReason = StopReasonFitnessGoal
			break
		}
		if gen == cfg.Generations {
			break
		}
		if err := engine.Evolve(); err != nil {
			return EvolutionResult{}, err
		}
	}

	run.Generations = len(result.History)
	run.BestFitness = result.ChampionFitness
	run.StopReason = string(result.StopReason)
	run.FinishedAt = time.Now().UTC()
	result.Run = run

	if err := r.persist(context.WithoutCancel(ctx), run, result.History, result.Champion, result.ChampionGeneration, result.ChampionFitness); err != nil {
		return EvolutionResult{}, err
	}
	logger.Info("evolution finished",
		slog.Int("generations", run.Generations),
		slog.Float64("best_fitness", run.BestFitness),
		slog.String("stop_reason", run.StopReason),
	)
	return result, nil
}

// Train fits a single network to the task samples by backpropagation, one
// pass over the samples per epoch.
func (r *Runner) Train(ctx context.Context, cfg TrainConfig) (TrainResult, error) {
	if !r.Started() {
		return TrainResult{}, ErrNotStarted
	}
	if cfg.Epochs <= 0 {
		return TrainResult{}, fmt.Errorf("epochs must be > 0")
	}
	t, err := resolveTask(cfg.TaskName, cfg.Shape)
	if err != nil {
		return TrainResult{}, err
	}
	net, err := nn.New(cfg.Shape, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return TrainResult{}, err
	}
	if cfg.LearningRate > 0 {
		net.SetLearningRate(cfg.LearningRate)
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := r.logger.With(slog.String("run_id", runID), slog.String("task", t.Name()))
	run := newRunRecord(runID, ModeTrain, t.Name(), cfg.Shape, cfg.Seed)
	samples := t.Samples()
	result := TrainResult{Network: net, StopReason: StopReasonEpochLimit}

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		if ctx.Err() != nil {
			result.StopReason = StopReasonCancelled
			break
		}
		for _, s := range samples {
			if err := net.Train(s.Input, s.Target); err != nil {
				return TrainResult{}, err
			}
		}
		meanError, err := task.MeanError(net, samples)
		if err != nil {
			return TrainResult{}, err
		}
		result.FinalError = meanError
		score := task.FitnessFromError(meanError)
		result.History = append(result.History, model.GenerationStats{
			Generation:  epoch,
			BestFitness: score,
			MeanFitness: score,
		})
		if meanError <= cfg.ErrorGoal {
			result.StopReason = StopReasonErrorGoal
			break
		}
	}

	run.Generations = len(result.History)
	if n := len(result.History); n > 0 {
		run.BestFitness = result.History[n-1].BestFitness
	}
	run.StopReason = string(result.StopReason)
	run.FinishedAt = time.Now().UTC()
	result.Run = run

	if err := r.persist(context.WithoutCancel(ctx), run, result.History, net, run.Generations, run.BestFitness); err != nil {
		return TrainResult{}, err
	}
	logger.Info("training finished",
		slog.Int("epochs", run.Generations),
		slog.Float64("mean_error", result.FinalError),
		slog.String("stop_reason", run.StopReason),
	)
	return result, nil
}

func (r *Runner) Runs(ctx context.Context) ([]model.Run, error) {
	if !r.Started() {
		return nil, ErrNotStarted
	}
	return r.store.ListRuns(ctx)
}

func (r *Runner) History(ctx context.Context, runID string) ([]model.GenerationStats, error) {
	if !r.Started() {
		return nil, ErrNotStarted
	}
	stats, ok, err := r.store.GetGenerationStats(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no history for run %s", runID)
	}
	return stats, nil
}

// Champion decodes the stored champion network of a run.
func (r *Runner) Champion(ctx context.Context, runID string) (*nn.Network, model.Champion, error) {
	if !r.Started() {
		return nil, model.Champion{}, ErrNotStarted
	}
	champion, ok, err := r.store.GetChampion(ctx, runID)
	if err != nil {
		return nil, model.Champion{}, err
	}
	if !ok {
		return nil, model.Champion{}, fmt.Errorf("no champion for run %s", runID)
	}
	net, err := nn.UnmarshalNetwork(champion.Network, rand.New(rand.NewSource(1)))
	if err != nil {
		return nil, model.Champion{}, fmt.Errorf("decode champion %s: %w", runID, err)
	}
	return net, champion, nil
}

func (r *Runner) persist(ctx context.Context, run model.Run, history []model.GenerationStats, champion *nn.Network, generation int, fitness float64) error {
	if err := r.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	if err := r.store.SaveGenerationStats(ctx, run.ID, history); err != nil {
		return fmt.Errorf("save generation stats %s: %w", run.ID, err)
	}
	if champion == nil {
		return nil
	}
	blob, err := champion.MarshalBinary()
	if err != nil {
		return err
	}
	return r.store.SaveChampion(ctx, model.Champion{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           run.ID,
		Generation:      generation,
		Fitness:         fitness,
		Network:         blob,
	})
}

func resolveTask(name string, shape nn.Shape) (task.Task, error) {
	if name == "" {
		return nil, fmt.Errorf("task name is required")
	}
	t, err := task.Resolve(name)
	if err != nil {
		return nil, err
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if err := task.CheckShape(t, shape); err != nil {
		return nil, err
	}
	return t, nil
}

func newRunRecord(id, mode, taskName string, shape nn.Shape, seed int64) model.Run {
	return model.Run{
		VersionedRecord: storage.CurrentVersion(),
		ID:              id,
		Mode:            mode,
		Task:            taskName,
		Shape:           shape.String(),
		HiddenLayers:    shape.HiddenLayers,
		Inputs:          shape.Inputs,
		HiddenWidth:     shape.HiddenWidth,
		Outputs:         shape.Outputs,
		WeightCount:     shape.WeightCount(),
		Seed:            seed,
		StartedAt:       time.Now().UTC(),
	}
}

func generationStats(engine *evo.Engine, gen int) (model.GenerationStats, error) {
	best, err := engine.BestFitness()
	if err != nil {
		return model.GenerationStats{}, err
	}
	mean, err := engine.AverageFitness()
	if err != nil {
		return model.GenerationStats{}, err
	}
	novelty, err := engine.AverageNovelty()
	if err != nil {
		return model.GenerationStats{}, err
	}
	state := engine.State()
	return model.GenerationStats{
		Generation:        gen,
		BestFitness:       best,
		MeanFitness:       mean,
		MeanNovelty:       novelty,
		MutationRate:      state.MutationRate,
		MutationIntensity: state.MutationIntensity,
		Stagnation:        state.GenerationsWithoutImprovement,
	}, nil
}
