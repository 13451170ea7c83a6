package storage

import (
	"context"

	"natsel/internal/model"
)

// Store defines persistence operations for evolution runs and their records.
type Store interface {
	Init(ctx context.Context) error
	SaveIndividual(ctx context.Context, individual model.Individual) error
	GetIndividual(ctx context.Context, id string) (model.Individual, bool, error)
	SavePopulation(ctx context.Context, population model.Population) error
	GetPopulation(ctx context.Context, id string) (model.Population, bool, error)
	SaveProblemSummary(ctx context.Context, summary model.ProblemSummary) error
	GetProblemSummary(ctx context.Context, name string) (model.ProblemSummary, bool, error)
	SaveFitnessHistory(ctx context.Context, runID string, history []float64) error
	GetFitnessHistory(ctx context.Context, runID string) ([]float64, bool, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
	SaveTopIndividuals(ctx context.Context, runID string, top []model.TopIndividualRecord) error
	GetTopIndividuals(ctx context.Context, runID string) ([]model.TopIndividualRecord, bool, error)
	SaveLineage(ctx context.Context, runID string, lineage []model.LineageRecord) error
	GetLineage(ctx context.Context, runID string) ([]model.LineageRecord, bool, error)
}

// Resetter is implemented by stores that can drop all persisted records.
type Resetter interface {
	Reset(ctx context.Context) error
}
