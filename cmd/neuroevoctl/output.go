package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"neuroevo/internal/model"
	"neuroevo/internal/stats"
	api "neuroevo/pkg/neuroevo"
)

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func printRunSummary(w io.Writer, s api.RunSummary) {
	fmt.Fprintf(w, "run_id=%s generations=%d best_fitness=%.6f stop=%s\n",
		s.RunID, len(s.BestByGeneration), s.FinalBestFitness, s.StopReason)
	if n := len(s.BestByGeneration); n > 0 {
		fmt.Fprintf(w, "best: first=%.6f last=%.6f  mean: first=%.6f last=%.6f\n",
			s.BestByGeneration[0], s.BestByGeneration[n-1], s.MeanByGeneration[0], s.MeanByGeneration[n-1])
	}
	if s.ArtifactsDir != "" {
		fmt.Fprintf(w, "artifacts=%s\n", s.ArtifactsDir)
	}
}

func printTrainSummary(w io.Writer, s api.TrainSummary) {
	fmt.Fprintf(w, "run_id=%s epochs=%s mean_error=%.6g stop=%s\n",
		s.RunID, humanize.Comma(int64(s.Epochs)), s.FinalError, s.StopReason)
	if s.ArtifactsDir != "" {
		fmt.Fprintf(w, "artifacts=%s\n", s.ArtifactsDir)
	}
}

func printRuns(w io.Writer, runs []model.Run, now time.Time) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs found")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tMODE\tTASK\tSHAPE\tGENS\tBEST\tSTOP\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.6f\t%s\t%s\n",
			r.ID, r.Mode, r.Task, r.Shape,
			humanize.Comma(int64(r.Generations)), r.BestFitness, r.StopReason,
			humanize.RelTime(r.StartedAt, now, "ago", "from now"))
	}
	_ = tw.Flush()
}

func printHistory(w io.Writer, history []model.GenerationStats) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GEN\tBEST\tMEAN\tNOVELTY\tRATE\tINTENSITY\tSTAGNATION")
	for _, s := range history {
		fmt.Fprintf(tw, "%d\t%.6f\t%.6f\t%.4f\t%.4f\t%.4f\t%d\n",
			s.Generation, s.BestFitness, s.MeanFitness, s.MeanNovelty,
			s.MutationRate, s.MutationIntensity, s.Stagnation)
	}
	_ = tw.Flush()

	summary := stats.Summarize(history)
	fmt.Fprintf(w, "improvement=%+.6f best_max=%.6f best_mean=%.6f best_std=%.6f\n",
		summary.Improvement, summary.BestMax, summary.BestMean, summary.BestStd)
}

func printInspect(w io.Writer, s api.InspectSummary, outputs []float64) {
	snap := s.Snapshot
	fmt.Fprintf(w, "run_id=%s task=%s mode=%s\n", s.Run.ID, s.Run.Task, s.Run.Mode)
	fmt.Fprintf(w, "shape=%s weights=%s size=%s max_abs_weight=%.4f\n",
		snap.Shape, humanize.Comma(int64(snap.WeightCount)),
		humanize.IBytes(uint64(16+8*snap.WeightCount)), snap.MaxAbsWeight())
	fmt.Fprintf(w, "champion fitness=%.6f generation=%d\n", s.ChampionFitness, s.Generation)
	for i, layer := range snap.Layers {
		fmt.Fprintf(w, "  layer %d %-6s width=%d fan_in=%d\n", i, layer.Kind, len(layer.Neurons), layer.FanIn)
	}
	if outputs != nil {
		parts := make([]string, len(outputs))
		for i, v := range outputs {
			parts[i] = fmt.Sprintf("%.6f", v)
		}
		fmt.Fprintf(w, "outputs=[%s]\n", strings.Join(parts, ", "))
	}
}
