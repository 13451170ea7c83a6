package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natsel/internal/model"
)

var testVersion = model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": NewSQLiteStore(filepath.Join(dir, "natsel.db")),
		"bolt":   NewBoltStore(filepath.Join(dir, "natsel.bolt")),
	}
}

func TestStoreRoundTrips(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Init(ctx))
			t.Cleanup(func() { _ = CloseIfSupported(store) })

			individual := model.Individual{
				VersionedRecord: testVersion,
				ID:              "ind-g1-i0",
				Genes:           model.Genome{1, 2, 3},
				ParentIDs:       []string{"ind-g0-i3"},
				Generation:      1,
			}
			require.NoError(t, store.SaveIndividual(ctx, individual))
			gotIndividual, ok, err := store.GetIndividual(ctx, individual.ID)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, individual, gotIndividual)

			population := model.Population{VersionedRecord: testVersion, ID: "run-1:final", IndividualIDs: []string{"ind-g1-i0"}, Generation: 1}
			require.NoError(t, store.SavePopulation(ctx, population))
			gotPopulation, ok, err := store.GetPopulation(ctx, population.ID)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, population, gotPopulation)

			summary := model.ProblemSummary{VersionedRecord: testVersion, Name: "sphere", Objective: "minimize", Dimensions: 3, BestFitness: 0.5, Runs: 1}
			require.NoError(t, store.SaveProblemSummary(ctx, summary))
			summary.Runs = 2
			require.NoError(t, store.SaveProblemSummary(ctx, summary))
			gotSummary, ok, err := store.GetProblemSummary(ctx, "sphere")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 2, gotSummary.Runs)

			history := []float64{0.1, 0.5, 0.9}
			require.NoError(t, store.SaveFitnessHistory(ctx, "run-1", history))
			gotHistory, ok, err := store.GetFitnessHistory(ctx, "run-1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, history, gotHistory)

			diagnostics := []model.GenerationDiagnostics{{Generation: 1, BestFitness: 0.9, MeanFitness: 0.4, Evaluations: 8}}
			require.NoError(t, store.SaveGenerationDiagnostics(ctx, "run-1", diagnostics))
			gotDiagnostics, ok, err := store.GetGenerationDiagnostics(ctx, "run-1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, diagnostics, gotDiagnostics)

			top := []model.TopIndividualRecord{{Rank: 1, Fitness: 0.9, Individual: individual}}
			require.NoError(t, store.SaveTopIndividuals(ctx, "run-1", top))
			gotTop, ok, err := store.GetTopIndividuals(ctx, "run-1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, top, gotTop)

			lineage := []model.LineageRecord{{
				VersionedRecord: testVersion,
				IndividualID:    "ind-g1-i0",
				ParentIDs:       []string{"ind-g0-i3"},
				Generation:      1,
				Operation:       "perturb_gene",
			}}
			require.NoError(t, store.SaveLineage(ctx, "run-1", lineage))
			gotLineage, ok, err := store.GetLineage(ctx, "run-1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, lineage, gotLineage)
		})
	}
}

func TestStoreMissingRecords(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Init(ctx))
			t.Cleanup(func() { _ = CloseIfSupported(store) })

			_, ok, err := store.GetIndividual(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)
			_, ok, err = store.GetProblemSummary(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)
			_, ok, err = store.GetLineage(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStoreReset(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Init(ctx))
			t.Cleanup(func() { _ = CloseIfSupported(store) })

			require.NoError(t, store.SaveFitnessHistory(ctx, "run-1", []float64{1}))
			resetter, ok := store.(Resetter)
			require.True(t, ok)
			require.NoError(t, resetter.Reset(ctx))

			_, ok, err := store.GetFitnessHistory(ctx, "run-1")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStoreRequiresInit(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := store.SaveFitnessHistory(context.Background(), "run-1", []float64{1})
			assert.ErrorIs(t, err, ErrNotInitialized)
		})
	}
}

func TestPersistentStoresSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	reopen := map[string]func() Store{
		"sqlite": func() Store { return NewSQLiteStore(filepath.Join(dir, "natsel.db")) },
		"bolt":   func() Store { return NewBoltStore(filepath.Join(dir, "natsel.bolt")) },
	}
	for name, open := range reopen {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := open()
			require.NoError(t, first.Init(ctx))
			require.NoError(t, first.SaveFitnessHistory(ctx, "run-7", []float64{3, 4}))
			require.NoError(t, CloseIfSupported(first))

			second := open()
			require.NoError(t, second.Init(ctx))
			t.Cleanup(func() { _ = CloseIfSupported(second) })
			history, ok, err := second.GetFitnessHistory(ctx, "run-7")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []float64{3, 4}, history)
		})
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Init(ctx))

	history := []float64{1, 2}
	require.NoError(t, store.SaveFitnessHistory(ctx, "run-1", history))
	history[0] = 99

	got, _, err := store.GetFitnessHistory(ctx, "run-1")
	require.NoError(t, err)
	got[1] = 42

	again, _, err := store.GetFitnessHistory(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, again)
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()
	for _, kind := range []string{"", "memory", "sqlite", "bolt"} {
		store, err := NewStore(kind, filepath.Join(dir, "store-"+kind))
		require.NoError(t, err, kind)
		require.NotNil(t, store, kind)
	}

	_, err := NewStore("unknown", "")
	assert.Error(t, err)
}

func TestPersistentStoresRequirePath(t *testing.T) {
	ctx := context.Background()
	assert.Error(t, NewSQLiteStore("").Init(ctx))
	assert.Error(t, NewBoltStore("").Init(ctx))
}
