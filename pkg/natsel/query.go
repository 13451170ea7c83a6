package natsel

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"natsel/internal/model"
	"natsel/internal/stats"
)

const defaultRunsLimit = 20

var ErrNoRuns = errors.New("no runs available")

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Problem          string
	Objective        string
	Seed             int64
	Population       int
	Generations      int
	TuningEnabled    bool
	FinalBestFitness float64
	StopReason       string
}

// RunRef names a run either by id or as the most recent one. Limit caps the
// number of returned rows; zero means all.
type RunRef struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type LineageItem struct {
	IndividualID string
	ParentIDs    []string
	Generation   int
	Operation    string
	Fingerprint  string
}

type ProblemSummaryItem struct {
	Name        string
	Description string
	Objective   string
	Dimensions  int
	BestFitness float64
	Runs        int
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = defaultRunsLimit
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Problem:          e.Problem,
			Objective:        e.Objective,
			Seed:             e.Seed,
			Population:       e.PopulationSize,
			Generations:      e.Generations,
			TuningEnabled:    e.TuningEnabled,
			FinalBestFitness: e.FinalBestFitness,
			StopReason:       e.StopReason,
		})
	}
	return out, nil
}

// RunConfig returns the configuration recorded with a run's artifacts.
func (c *Client) RunConfig(_ context.Context, ref RunRef) (stats.RunConfig, error) {
	runID, err := c.resolveRunID(ref.RunID, ref.Latest, "run config")
	if err != nil {
		return stats.RunConfig{}, err
	}
	cfg, ok, err := stats.ReadRunConfig(c.artifactsDir, runID)
	if err != nil {
		return stats.RunConfig{}, err
	}
	if !ok {
		return stats.RunConfig{}, fmt.Errorf("run config not found for run id: %s", runID)
	}
	return cfg, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) FitnessHistory(ctx context.Context, ref RunRef) ([]float64, error) {
	runID, err := c.resolveRef(ref, "fitness history")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensureHabitat(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	return limit(history, ref.Limit), nil
}

func (c *Client) Diagnostics(ctx context.Context, ref RunRef) ([]model.GenerationDiagnostics, error) {
	runID, err := c.resolveRef(ref, "diagnostics")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensureHabitat(ctx); err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	return limit(diagnostics, ref.Limit), nil
}

func (c *Client) TopIndividuals(ctx context.Context, ref RunRef) ([]model.TopIndividualRecord, error) {
	runID, err := c.resolveRef(ref, "top individuals")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensureHabitat(ctx); err != nil {
		return nil, err
	}
	top, ok, err := c.store.GetTopIndividuals(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("top individuals not found for run id: %s", runID)
	}
	return limit(top, ref.Limit), nil
}

func (c *Client) Lineage(ctx context.Context, ref RunRef) ([]LineageItem, error) {
	runID, err := c.resolveRef(ref, "lineage")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensureHabitat(ctx); err != nil {
		return nil, err
	}
	lineage, ok, err := c.store.GetLineage(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("lineage not found for run id: %s", runID)
	}

	lineage = limit(lineage, ref.Limit)
	out := make([]LineageItem, 0, len(lineage))
	for _, rec := range lineage {
		out = append(out, LineageItem{
			IndividualID: rec.IndividualID,
			ParentIDs:    append([]string(nil), rec.ParentIDs...),
			Generation:   rec.Generation,
			Operation:    rec.Operation,
			Fingerprint:  rec.Fingerprint,
		})
	}
	return out, nil
}

func (c *Client) ProblemSummary(ctx context.Context, name string) (ProblemSummaryItem, error) {
	if name == "" {
		return ProblemSummaryItem{}, errors.New("problem name is required")
	}
	if _, err := c.ensureHabitat(ctx); err != nil {
		return ProblemSummaryItem{}, err
	}
	summary, ok, err := c.store.GetProblemSummary(ctx, name)
	if err != nil {
		return ProblemSummaryItem{}, err
	}
	if !ok {
		return ProblemSummaryItem{}, fmt.Errorf("problem summary not found: %s", name)
	}
	return ProblemSummaryItem{
		Name:        summary.Name,
		Description: summary.Description,
		Objective:   summary.Objective,
		Dimensions:  summary.Dimensions,
		BestFitness: summary.BestFitness,
		Runs:        summary.Runs,
	}, nil
}

func (c *Client) Benchmarks(_ context.Context) ([]stats.BenchmarkExperiment, error) {
	return stats.ListBenchmarkExperiments(c.artifactsDir)
}

func (c *Client) resolveRef(ref RunRef, what string) (string, error) {
	if ref.Limit < 0 {
		return "", errors.New("limit must be >= 0")
	}
	return c.resolveRunID(ref.RunID, ref.Latest, what)
}

func (c *Client) resolveRunID(runID string, latest bool, what string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", ErrNoRuns
	}
	return entries[0].RunID, nil
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}
