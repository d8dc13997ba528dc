package storage

import (
	"context"

	"neuroevo/internal/model"
)

// Store persists runs, their generation history and champion networks.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, bool, error)
	ListRuns(ctx context.Context) ([]model.Run, error)
	SaveGenerationStats(ctx context.Context, runID string, stats []model.GenerationStats) error
	GetGenerationStats(ctx context.Context, runID string) ([]model.GenerationStats, bool, error)
	SaveChampion(ctx context.Context, champion model.Champion) error
	GetChampion(ctx context.Context, runID string) (model.Champion, bool, error)
}
