package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"neuroevo/internal/model"
	"neuroevo/internal/nn"
)

const (
	runIndexFile      = "run_index.json"
	runFile           = "run.json"
	generationsFile   = "generation_stats.json"
	fitnessSeriesFile = "fitness_series.csv"
	championFile      = "champion.net"
)

var seriesHeader = []string{
	"generation", "best_fitness", "mean_fitness", "mean_novelty",
	"mutation_rate", "mutation_intensity", "stagnation",
}

type RunArtifacts struct {
	Run      model.Run
	History  []model.GenerationStats
	Champion *nn.Network
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Mode         string  `json:"mode"`
	Task         string  `json:"task"`
	Shape        string  `json:"shape"`
	Generations  int     `json:"generations"`
	BestFitness  float64 `json:"best_fitness"`
	StopReason   string  `json:"stop_reason"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

// Summary condenses a best-fitness series.
type Summary struct {
	Generations int     `json:"generations"`
	InitialBest float64 `json:"initial_best"`
	FinalBest   float64 `json:"final_best"`
	BestMax     float64 `json:"best_max"`
	BestMean    float64 `json:"best_mean"`
	BestStd     float64 `json:"best_std"`
	Improvement float64 `json:"improvement"`
}

// WriteRunArtifacts writes the run record, its generation history as JSON
// and CSV, and the champion network under baseDir/<run id>.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Run.ID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, runFile), artifacts.Run); err != nil {
		return "", err
	}
	history := artifacts.History
	if history == nil {
		history = []model.GenerationStats{}
	}
	if err := writeJSON(filepath.Join(runDir, generationsFile), history); err != nil {
		return "", err
	}
	if err := writeSeries(filepath.Join(runDir, fitnessSeriesFile), history); err != nil {
		return "", err
	}
	if artifacts.Champion != nil {
		if err := artifacts.Champion.Save(filepath.Join(runDir, championFile)); err != nil {
			return "", err
		}
	}
	return runDir, nil
}

func ReadRun(baseDir, runID string) (model.Run, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, runFile))
	if err != nil {
		if os.IsNotExist(err) {
			return model.Run{}, false, nil
		}
		return model.Run{}, false, err
	}
	var run model.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return model.Run{}, false, err
	}
	return run, true, nil
}

// ChampionPath is where WriteRunArtifacts stores the champion network.
func ChampionPath(runDir string) string {
	return filepath.Join(runDir, championFile)
}

// SeriesPath is where WriteRunArtifacts stores the fitness CSV.
func SeriesPath(runDir string) string {
	return filepath.Join(runDir, fitnessSeriesFile)
}

func writeSeries(path string, history []model.GenerationStats) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := WriteSeries(f, history); err != nil {
		return err
	}
	return f.Close()
}

// WriteSeries writes history as CSV with a header row.
func WriteSeries(w io.Writer, history []model.GenerationStats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(seriesHeader); err != nil {
		return err
	}
	for _, s := range history {
		row := []string{
			strconv.Itoa(s.Generation),
			formatFloat(s.BestFitness),
			formatFloat(s.MeanFitness),
			formatFloat(s.MeanNovelty),
			formatFloat(s.MutationRate),
			formatFloat(s.MutationIntensity),
			strconv.Itoa(s.Stagnation),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadSeries parses CSV written by WriteSeries.
func ReadSeries(r io.Reader) ([]model.GenerationStats, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("missing series header")
	}
	history := make([]model.GenerationStats, 0, len(records)-1)
	for line, rec := range records[1:] {
		if len(rec) != len(seriesHeader) {
			return nil, fmt.Errorf("series line %d: expected %d fields, got %d", line+2, len(seriesHeader), len(rec))
		}
		var s model.GenerationStats
		ints := []*int{&s.Generation, &s.Stagnation}
		for i, idx := range []int{0, 6} {
			v, err := strconv.Atoi(rec[idx])
			if err != nil {
				return nil, fmt.Errorf("series line %d: %w", line+2, err)
			}
			*ints[i] = v
		}
		floats := []*float64{&s.BestFitness, &s.MeanFitness, &s.MeanNovelty, &s.MutationRate, &s.MutationIntensity}
		for i, ptr := range floats {
			v, err := strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("series line %d: %w", line+2, err)
			}
			*ptr = v
		}
		history = append(history, s)
	}
	return history, nil
}

func Summarize(history []model.GenerationStats) Summary {
	if len(history) == 0 {
		return Summary{}
	}
	out := Summary{
		Generations: len(history),
		InitialBest: history[0].BestFitness,
		FinalBest:   history[len(history)-1].BestFitness,
		BestMax:     history[0].BestFitness,
	}
	sum := 0.0
	for _, s := range history {
		out.BestMax = max(out.BestMax, s.BestFitness)
		sum += s.BestFitness
	}
	out.BestMean = sum / float64(len(history))
	variance := 0.0
	for _, s := range history {
		d := s.BestFitness - out.BestMean
		variance += d * d
	}
	out.BestStd = math.Sqrt(variance / float64(len(history)))
	out.Improvement = out.FinalBest - out.InitialBest
	return out
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}
	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}
	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAtUTC > entries[j].CreatedAtUTC
	})
	return entries, nil
}

// IndexEntry builds the run index row for run.
func IndexEntry(run model.Run) RunIndexEntry {
	return RunIndexEntry{
		RunID:        run.ID,
		Mode:         run.Mode,
		Task:         run.Task,
		Shape:        run.Shape,
		Generations:  run.Generations,
		BestFitness:  run.BestFitness,
		StopReason:   run.StopReason,
		CreatedAtUTC: run.StartedAt.UTC().Format("2006-01-02T15:04:05.000000000Z"),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
