package neuroevo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"neuroevo/internal/evo"
	"neuroevo/internal/model"
	"neuroevo/internal/nn"
	"neuroevo/internal/platform"
	"neuroevo/internal/stats"
	"neuroevo/internal/storage"
	"neuroevo/internal/task"
)

const defaultRunsLimit = 20

type Options struct {
	StoreKind    string
	StorePath    string
	ArtifactsDir string
	Logger       *slog.Logger
	// Registerer receives the engine metrics. Nil disables metrics.
	Registerer prometheus.Registerer
}

type Client struct {
	store  storage.Store
	runner *platform.Runner
	logger *slog.Logger

	artifactsDir string
}

// RunRequest describes one evolution run. Zero rates and a zero elite count
// select the engine defaults.
type RunRequest struct {
	Task              string
	HiddenLayers      int
	Inputs            int
	HiddenWidth       int
	Outputs           int
	Population        int
	EliteCount        int
	Generations       int
	FitnessGoal       float64
	MutationRate      float64
	MutationIntensity float64
	CrossoverRate     float64
	Seed              int64
	Workers           int
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	BestByGeneration []float64
	MeanByGeneration []float64
	FinalBestFitness float64
	StopReason       string
}

type TrainRequest struct {
	Task         string
	HiddenLayers int
	Inputs       int
	HiddenWidth  int
	Outputs      int
	Epochs       int
	LearningRate float64
	ErrorGoal    float64
	Seed         int64
}

type TrainSummary struct {
	RunID        string
	ArtifactsDir string
	Epochs       int
	FinalError   float64
	StopReason   string
}

type RunsRequest struct {
	Limit int
}

type HistoryRequest struct {
	RunID  string
	Latest bool
}

type InspectSummary struct {
	Run             model.Run
	ChampionFitness float64
	Generation      int
	Snapshot        nn.Snapshot
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store, err := storage.NewStore(storeKind, opts.StorePath, logger)
	if err != nil {
		return nil, err
	}

	var metrics *evo.Metrics
	if opts.Registerer != nil {
		metrics = evo.NewMetrics(opts.Registerer)
	}

	return &Client{
		store:        store,
		runner:       platform.NewRunner(platform.Config{Store: store, Logger: logger, Metrics: metrics}),
		logger:       logger,
		artifactsDir: opts.ArtifactsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.runner.Init(ctx)
}

// Tasks lists the registered task names.
func (c *Client) Tasks() []string {
	return task.Names()
}

// LoadTableTask registers the CSV table at path as a task and returns its
// name. A table with the same name replaces the previous one.
func (c *Client) LoadTableTask(path string) (string, error) {
	table, err := task.LoadTableCSV(path)
	if err != nil {
		return "", err
	}
	if err := task.Replace(table); err != nil {
		return "", err
	}
	c.logger.Debug("table task loaded", "task", table.Name(), "inputs", table.Inputs(), "outputs", table.Outputs())
	return table.Name(), nil
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}
	result, err := c.runner.RunEvolution(ctx, platform.EvolutionConfig{
		TaskName:          req.Task,
		Shape:             nn.Shape{HiddenLayers: req.HiddenLayers, Inputs: req.Inputs, HiddenWidth: req.HiddenWidth, Outputs: req.Outputs},
		PopulationSize:    req.Population,
		EliteCount:        req.EliteCount,
		Generations:       req.Generations,
		FitnessGoal:       req.FitnessGoal,
		MutationRate:      req.MutationRate,
		MutationIntensity: req.MutationIntensity,
		CrossoverRate:     req.CrossoverRate,
		Seed:              req.Seed,
		Workers:           req.Workers,
	})
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:            result.Run.ID,
		FinalBestFitness: result.ChampionFitness,
		StopReason:       string(result.StopReason),
	}
	for _, s := range result.History {
		summary.BestByGeneration = append(summary.BestByGeneration, s.BestFitness)
		summary.MeanByGeneration = append(summary.MeanByGeneration, s.MeanFitness)
	}
	summary.ArtifactsDir, err = c.writeArtifacts(result.Run, result.History, result.Champion)
	if err != nil {
		return RunSummary{}, err
	}
	return summary, nil
}

func (c *Client) Train(ctx context.Context, req TrainRequest) (TrainSummary, error) {
	if err := c.Init(ctx); err != nil {
		return TrainSummary{}, err
	}
	result, err := c.runner.Train(ctx, platform.TrainConfig{
		TaskName:     req.Task,
		Shape:        nn.Shape{HiddenLayers: req.HiddenLayers, Inputs: req.Inputs, HiddenWidth: req.HiddenWidth, Outputs: req.Outputs},
		Epochs:       req.Epochs,
		LearningRate: req.LearningRate,
		ErrorGoal:    req.ErrorGoal,
		Seed:         req.Seed,
	})
	if err != nil {
		return TrainSummary{}, err
	}

	summary := TrainSummary{
		RunID:      result.Run.ID,
		Epochs:     result.Run.Generations,
		FinalError: result.FinalError,
		StopReason: string(result.StopReason),
	}
	summary.ArtifactsDir, err = c.writeArtifacts(result.Run, result.History, result.Network)
	if err != nil {
		return TrainSummary{}, err
	}
	return summary, nil
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.Run, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	if req.Limit <= 0 {
		req.Limit = defaultRunsLimit
	}
	runs, err := c.runner.Runs(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}
	return runs, nil
}

func (c *Client) History(ctx context.Context, req HistoryRequest) ([]model.GenerationStats, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	return c.runner.History(ctx, runID)
}

// Inspect loads a run and a structural snapshot of its champion network.
func (c *Client) Inspect(ctx context.Context, runID string, latest bool) (InspectSummary, error) {
	runID, err := c.resolveRunID(ctx, runID, latest)
	if err != nil {
		return InspectSummary{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return InspectSummary{}, err
	}
	if !ok {
		return InspectSummary{}, fmt.Errorf("run not found: %s", runID)
	}
	net, champion, err := c.runner.Champion(ctx, runID)
	if err != nil {
		return InspectSummary{}, err
	}
	return InspectSummary{
		Run:             run,
		ChampionFitness: champion.Fitness,
		Generation:      champion.Generation,
		Snapshot:        net.Snapshot(),
	}, nil
}

// Predict feeds input through the champion network of a run.
func (c *Client) Predict(ctx context.Context, runID string, input []float64) ([]float64, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	net, _, err := c.runner.Champion(ctx, runID)
	if err != nil {
		return nil, err
	}
	return net.Predict(input)
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if err := c.Init(ctx); err != nil {
		return "", err
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id is required unless latest is set")
	}
	runs, err := c.runner.Runs(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs recorded")
	}
	return runs[0].ID, nil
}

func (c *Client) writeArtifacts(run model.Run, history []model.GenerationStats, champion *nn.Network) (string, error) {
	if c.artifactsDir == "" {
		return "", nil
	}
	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{Run: run, History: history, Champion: champion})
	if err != nil {
		return "", fmt.Errorf("write artifacts for %s: %w", run.ID, err)
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.IndexEntry(run)); err != nil {
		return "", err
	}
	return runDir, nil
}
