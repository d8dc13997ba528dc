package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Run describes one evolutionary or supervised training run.
type Run struct {
	VersionedRecord
	ID             string    `json:"id"`
	Mode           string    `json:"mode"`
	Task           string    `json:"task"`
	Shape          string    `json:"shape"`
	HiddenLayers   int       `json:"hidden_layers"`
	Inputs         int       `json:"inputs"`
	HiddenWidth    int       `json:"hidden_width"`
	Outputs        int       `json:"outputs"`
	WeightCount    int       `json:"weight_count"`
	PopulationSize int       `json:"population_size,omitempty"`
	EliteCount     int       `json:"elite_count,omitempty"`
	Seed           int64     `json:"seed"`
	Generations    int       `json:"generations"`
	BestFitness    float64   `json:"best_fitness"`
	StopReason     string    `json:"stop_reason"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// GenerationStats is the per-generation summary recorded after evaluation.
// For supervised runs Generation counts epochs and BestFitness is 1-MSE.
type GenerationStats struct {
	Generation        int     `json:"generation"`
	BestFitness       float64 `json:"best_fitness"`
	MeanFitness       float64 `json:"mean_fitness"`
	MeanNovelty       float64 `json:"mean_novelty"`
	MutationRate      float64 `json:"mutation_rate"`
	MutationIntensity float64 `json:"mutation_intensity"`
	Stagnation        int     `json:"stagnation"`
}

// Champion is the best network seen during a run, encoded in the binary
// network file format.
type Champion struct {
	VersionedRecord
	RunID      string  `json:"run_id"`
	Generation int     `json:"generation"`
	Fitness    float64 `json:"fitness"`
	Network    []byte  `json:"network"`
}
