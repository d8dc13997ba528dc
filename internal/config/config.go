package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"neuroevo/internal/nn"
	"neuroevo/internal/platform"
)

// iniSection holds the run settings in INI files.
const iniSection = "run"

var ErrInvalidConfig = errors.New("invalid run config")

var validate = validator.New(validator.WithRequiredStructEnabled())

// RunConfig is the file and flag level description of a run.
type RunConfig struct {
	Task         string `yaml:"task" ini:"task" validate:"required"`
	TaskFile     string `yaml:"task_file" ini:"task_file" validate:"omitempty,file"`
	HiddenLayers int    `yaml:"hidden_layers" ini:"hidden_layers" validate:"gte=1"`
	Inputs       int    `yaml:"inputs" ini:"inputs" validate:"gte=1"`
	HiddenWidth  int    `yaml:"hidden_width" ini:"hidden_width" validate:"gte=1"`
	Outputs      int    `yaml:"outputs" ini:"outputs" validate:"gte=1"`

	PopulationSize    int     `yaml:"population_size" ini:"population_size" validate:"gte=1"`
	EliteCount        int     `yaml:"elite_count" ini:"elite_count" validate:"gte=1"`
	Generations       int     `yaml:"generations" ini:"generations" validate:"gte=1"`
	FitnessGoal       float64 `yaml:"fitness_goal" ini:"fitness_goal" validate:"gte=0,lte=1"`
	MutationRate      float64 `yaml:"mutation_rate" ini:"mutation_rate" validate:"gt=0,lte=1"`
	MutationIntensity float64 `yaml:"mutation_intensity" ini:"mutation_intensity" validate:"gt=0"`
	CrossoverRate     float64 `yaml:"crossover_rate" ini:"crossover_rate" validate:"gt=0,lte=1"`
	Seed              int64   `yaml:"seed" ini:"seed"`
	Workers           int     `yaml:"workers" ini:"workers" validate:"gte=0"`

	Epochs       int     `yaml:"epochs" ini:"epochs" validate:"gte=1"`
	LearningRate float64 `yaml:"learning_rate" ini:"learning_rate" validate:"gt=0"`
	ErrorGoal    float64 `yaml:"error_goal" ini:"error_goal" validate:"gte=0"`

	Store        string `yaml:"store" ini:"store" validate:"oneof=memory sqlite badger"`
	StorePath    string `yaml:"store_path" ini:"store_path" validate:"required_if=Store sqlite"`
	ArtifactsDir string `yaml:"artifacts_dir" ini:"artifacts_dir"`
	MetricsAddr  string `yaml:"metrics_addr" ini:"metrics_addr" validate:"omitempty,hostname_port"`
	LogLevel     string `yaml:"log_level" ini:"log_level" validate:"oneof=debug info warn error"`
}

// Default is an XOR run with the engine's stock parameters.
func Default() RunConfig {
	return RunConfig{
		Task:              "xor",
		HiddenLayers:      1,
		Inputs:            2,
		HiddenWidth:       4,
		Outputs:           1,
		PopulationSize:    100,
		EliteCount:        10,
		Generations:       100,
		MutationRate:      0.3,
		MutationIntensity: 0.3,
		CrossoverRate:     0.7,
		Seed:              1,
		Workers:           4,
		Epochs:            5000,
		LearningRate:      nn.DefaultLearningRate,
		Store:             "memory",
		LogLevel:          "info",
	}
}

// Load reads a YAML (.yaml, .yml) or INI (.ini, .cfg) file over Default and
// validates the result.
func Load(path string) (RunConfig, error) {
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return RunConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return RunConfig{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".ini", ".cfg":
		file, err := ini.Load(path)
		if err != nil {
			return RunConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := file.Section(iniSection).MapTo(&cfg); err != nil {
			return RunConfig{}, fmt.Errorf("map [%s] section of %s: %w", iniSection, path, err)
		}
	default:
		return RunConfig{}, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

func (c RunConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c RunConfig) Shape() nn.Shape {
	return nn.Shape{
		HiddenLayers: c.HiddenLayers,
		Inputs:       c.Inputs,
		HiddenWidth:  c.HiddenWidth,
		Outputs:      c.Outputs,
	}
}

func (c RunConfig) Evolution(runID string) platform.EvolutionConfig {
	return platform.EvolutionConfig{
		RunID:             runID,
		TaskName:          c.Task,
		Shape:             c.Shape(),
		PopulationSize:    c.PopulationSize,
		EliteCount:        c.EliteCount,
		Generations:       c.Generations,
		FitnessGoal:       c.FitnessGoal,
		MutationRate:      c.MutationRate,
		MutationIntensity: c.MutationIntensity,
		CrossoverRate:     c.CrossoverRate,
		Seed:              c.Seed,
		Workers:           c.Workers,
	}
}

func (c RunConfig) Training(runID string) platform.TrainConfig {
	return platform.TrainConfig{
		RunID:        runID,
		TaskName:     c.Task,
		Shape:        c.Shape(),
		Epochs:       c.Epochs,
		LearningRate: c.LearningRate,
		ErrorGoal:    c.ErrorGoal,
		Seed:         c.Seed,
	}
}

// Level maps LogLevel to a slog level, defaulting to info.
func (c RunConfig) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
