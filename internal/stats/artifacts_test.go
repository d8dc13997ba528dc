package stats

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"neuroevo/internal/model"
	"neuroevo/internal/nn"
)

func sampleHistory() []model.GenerationStats {
	return []model.GenerationStats{
		{Generation: 1, BestFitness: 0.5, MeanFitness: 0.25, MeanNovelty: 1.5, MutationRate: 0.3, MutationIntensity: 0.3},
		{Generation: 2, BestFitness: 0.7, MeanFitness: 0.4, MeanNovelty: 1.25, MutationRate: 0.3, MutationIntensity: 0.3},
		{Generation: 3, BestFitness: 0.6, MeanFitness: 0.45, MeanNovelty: 1.125, MutationRate: 0.45, MutationIntensity: 0.45, Stagnation: 6},
	}
}

func TestWriteRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	net, err := nn.New(nn.Shape{HiddenLayers: 1, Inputs: 2, HiddenWidth: 3, Outputs: 1}, rand.New(rand.NewSource(4)))
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	run := model.Run{ID: "run-123", Task: "xor", Generations: 3, BestFitness: 0.7}

	runDir, err := WriteRunArtifacts(baseDir, RunArtifacts{Run: run, History: sampleHistory(), Champion: net})
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	for _, file := range []string{runFile, generationsFile, fitnessSeriesFile, championFile} {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	loaded, ok, err := ReadRun(baseDir, "run-123")
	if err != nil || !ok {
		t.Fatalf("read run: ok=%t err=%v", ok, err)
	}
	if loaded.Task != "xor" || loaded.BestFitness != 0.7 {
		t.Fatalf("unexpected run: %+v", loaded)
	}

	champion, err := nn.Load(ChampionPath(runDir), nil)
	if err != nil {
		t.Fatalf("load champion: %v", err)
	}
	if !reflect.DeepEqual(champion.FlattenWeights(), net.FlattenWeights()) {
		t.Fatal("champion weights differ after round trip")
	}

	f, err := os.Open(SeriesPath(runDir))
	if err != nil {
		t.Fatalf("open series: %v", err)
	}
	defer f.Close()
	series, err := ReadSeries(f)
	if err != nil {
		t.Fatalf("read series: %v", err)
	}
	if !reflect.DeepEqual(series, sampleHistory()) {
		t.Fatalf("unexpected series: %+v", series)
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{}); err == nil {
		t.Fatal("expected missing run id error")
	}
}

func TestReadRunMissing(t *testing.T) {
	_, ok, err := ReadRun(t.TempDir(), "nope")
	if err != nil || ok {
		t.Fatalf("expected missing run, ok=%t err=%v", ok, err)
	}
}

func TestReadSeriesRejectsMalformedRows(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "empty", in: ""},
		{name: "short-row", in: strings.Join(seriesHeader, ",") + "\n1,0.5\n"},
		{name: "bad-number", in: strings.Join(seriesHeader, ",") + "\n1,x,0,0,0,0,0\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ReadSeries(strings.NewReader(tc.in)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestWriteSeriesHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSeries(&buf, nil); err != nil {
		t.Fatalf("write series: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != strings.Join(seriesHeader, ",") {
		t.Fatalf("unexpected header %q", got)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleHistory())
	if s.Generations != 3 || s.InitialBest != 0.5 || s.FinalBest != 0.6 || s.BestMax != 0.7 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if diff := s.BestMean - 0.6; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("unexpected mean %f", s.BestMean)
	}
	if diff := s.Improvement - 0.1; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("unexpected improvement %f", s.Improvement)
	}
	if s.BestStd <= 0 {
		t.Fatalf("expected positive std, got %f", s.BestStd)
	}
	if (Summarize(nil) != Summary{}) {
		t.Fatal("expected zero summary for empty history")
	}
}

func TestRunIndexOrdersNewestFirst(t *testing.T) {
	baseDir := t.TempDir()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		run := model.Run{ID: id, Task: "xor", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := AppendRunIndex(baseDir, IndexEntry(run)); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	updated := IndexEntry(model.Run{ID: "a", Task: "sine", StartedAt: base})
	if err := AppendRunIndex(baseDir, updated); err != nil {
		t.Fatalf("update a: %v", err)
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(index) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(index))
	}
	if index[0].RunID != "c" || index[2].RunID != "a" || index[2].Task != "sine" {
		t.Fatalf("unexpected index order: %+v", index)
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{}); err == nil {
		t.Fatal("expected missing run id error")
	}
}
