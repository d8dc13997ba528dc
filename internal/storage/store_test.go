package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuroevo/internal/model"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			return NewSQLiteStore(filepath.Join(t.TempDir(), "neuroevo.db"))
		},
		"badger-memory": func(*testing.T) Store { return NewBadgerStore("", nil) },
		"badger-disk": func(t *testing.T) Store {
			return NewBadgerStore(filepath.Join(t.TempDir(), "badger"), nil)
		},
	}
}

func openStore(t *testing.T, build func(t *testing.T) Store) Store {
	t.Helper()
	store := build(t)
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() {
		_ = CloseIfSupported(store)
	})
	return store
}

func sampleRun(id string, started time.Time) model.Run {
	return model.Run{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		Mode:            "evolve",
		Task:            "xor",
		Shape:           "2x[4]x1->1",
		HiddenLayers:    1,
		Inputs:          2,
		HiddenWidth:     4,
		Outputs:         1,
		WeightCount:     12,
		PopulationSize:  20,
		EliteCount:      5,
		Seed:            7,
		Generations:     3,
		BestFitness:     0.75,
		StopReason:      "generation_limit",
		StartedAt:       started,
		FinishedAt:      started.Add(time.Second),
	}
}

func TestStoreContract(t *testing.T) {
	for name, build := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := openStore(t, build)

			base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			older := sampleRun("run-a", base)
			newer := sampleRun("run-b", base.Add(time.Hour))
			require.NoError(t, store.SaveRun(ctx, older))
			require.NoError(t, store.SaveRun(ctx, newer))

			got, ok, err := store.GetRun(ctx, "run-a")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, older.Task, got.Task)
			assert.Equal(t, older.BestFitness, got.BestFitness)
			assert.True(t, older.StartedAt.Equal(got.StartedAt))

			_, ok, err = store.GetRun(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			runs, err := store.ListRuns(ctx)
			require.NoError(t, err)
			require.Len(t, runs, 2)
			assert.Equal(t, "run-b", runs[0].ID)
			assert.Equal(t, "run-a", runs[1].ID)

			older.BestFitness = 0.9
			require.NoError(t, store.SaveRun(ctx, older))
			got, _, err = store.GetRun(ctx, "run-a")
			require.NoError(t, err)
			assert.Equal(t, 0.9, got.BestFitness)

			stats := []model.GenerationStats{
				{Generation: 1, BestFitness: 0.5, MeanFitness: 0.2, MutationRate: 0.3, MutationIntensity: 0.3},
				{Generation: 2, BestFitness: 0.6, MeanFitness: 0.3, MutationRate: 0.3, MutationIntensity: 0.3, Stagnation: 0},
			}
			require.NoError(t, store.SaveGenerationStats(ctx, "run-a", stats))
			loaded, ok, err := store.GetGenerationStats(ctx, "run-a")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, stats, loaded)

			_, ok, err = store.GetGenerationStats(ctx, "run-b")
			require.NoError(t, err)
			assert.False(t, ok)

			champion := model.Champion{
				VersionedRecord: CurrentVersion(),
				RunID:           "run-a",
				Generation:      2,
				Fitness:         0.6,
				Network:         []byte{1, 2, 3, 4},
			}
			require.NoError(t, store.SaveChampion(ctx, champion))
			gotChampion, ok, err := store.GetChampion(ctx, "run-a")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, champion, gotChampion)

			_, ok, err = store.GetChampion(ctx, "run-b")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStoreRequiresInit(t *testing.T) {
	ctx := context.Background()
	for name, build := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := build(t)
			err := store.SaveRun(ctx, sampleRun("r", time.Now()))
			assert.ErrorIs(t, err, ErrNotInitialized)
			_, _, err = store.GetChampion(ctx, "r")
			assert.ErrorIs(t, err, ErrNotInitialized)
		})
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	tests := []struct {
		name  string
		build func() Store
	}{
		{name: "sqlite", build: func() Store { return NewSQLiteStore(filepath.Join(dir, "runs.db")) }},
		{name: "badger", build: func() Store { return NewBadgerStore(filepath.Join(dir, "kv"), nil) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			first := tc.build()
			require.NoError(t, first.Init(ctx))
			require.NoError(t, first.SaveRun(ctx, sampleRun("persisted", time.Now().UTC())))
			require.NoError(t, CloseIfSupported(first))

			second := tc.build()
			require.NoError(t, second.Init(ctx))
			t.Cleanup(func() { _ = CloseIfSupported(second) })
			_, ok, err := second.GetRun(ctx, "persisted")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestMemoryStoreCopiesChampionBytes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Init(ctx))

	blob := []byte{9, 9}
	require.NoError(t, store.SaveChampion(ctx, model.Champion{VersionedRecord: CurrentVersion(), RunID: "r", Network: blob}))
	blob[0] = 0

	got, _, err := store.GetChampion(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9}, got.Network)
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	err := NewSQLiteStore("").Init(context.Background())
	require.Error(t, err)
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	run := sampleRun("v", time.Now())
	run.SchemaVersion = CurrentSchemaVersion + 1
	payload, err := EncodeRun(run)
	require.NoError(t, err)
	_, err = DecodeRun(payload)
	assert.ErrorIs(t, err, ErrVersionMismatch)

	payload, err = EncodeChampion(model.Champion{RunID: "x"})
	require.NoError(t, err)
	_, err = DecodeChampion(payload)
	assert.ErrorIs(t, err, ErrVersionMismatch)

	_, err = DecodeGenerationStats([]byte("{"))
	assert.Error(t, err)
}

func TestNewStore(t *testing.T) {
	for _, kind := range append([]string{""}, Kinds...) {
		store, err := NewStore(kind, "", nil)
		require.NoError(t, err, kind)
		require.NotNil(t, store)
	}
	_, err := NewStore("unknown", "", nil)
	assert.Error(t, err)
}
