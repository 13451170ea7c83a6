package stats

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"natsel/internal/fitness"
	"natsel/internal/model"
)

func testArtifacts(runID string) RunArtifacts {
	goal := 0.01
	return RunArtifacts{
		Config: RunConfig{
			RunID:           runID,
			Problem:         "sphere",
			Objective:       "minimize",
			Dimensions:      2,
			PopulationSize:  4,
			Generations:     3,
			Seed:            1,
			Workers:         2,
			EliteCount:      1,
			FitnessGoal:     &goal,
			MutationWeights: map[string]float64{"gaussian": 1},
		},
		BestByGeneration: []float64{0.7, 0.6, 0.5},
		FinalBestFitness: 0.5,
		StopReason:       "generations",
		Evaluations:      12,
		TopIndividuals: []TopIndividual{{
			Rank:    1,
			Fitness: 0.5,
			ID:      "ind-g2-i0",
			Genes:   model.Genome{0.5, 0.5},
		}},
		Lineage: []LineageEntry{{
			IndividualID: "ind-g0-i0",
			Generation:   0,
			Operation:    "seed",
		}},
		GenerationDiagnostics: []model.GenerationDiagnostics{{Generation: 1, BestFitness: 0.7}},
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runDir, err := WriteRunArtifacts(baseDir, testArtifacts("run-123"))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	files := []string{"config.json", "fitness_history.json", "top_individuals.json", "lineage.json", "generation_diagnostics.json"}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	exportedDir, err := ExportRunArtifacts(baseDir, "run-123", outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}
	if _, err := os.Stat(filepath.Join(exportedDir, "benchmark_summary.json")); !os.IsNotExist(err) {
		t.Fatalf("expected no benchmark summary in export, got %v", err)
	}
}

func TestExportIncludesBenchmarkFiles(t *testing.T) {
	baseDir := t.TempDir()
	runDir, err := WriteRunArtifacts(baseDir, testArtifacts("bench-1"))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	if err := WriteBenchmarkSummary(runDir, BenchmarkSummary{RunID: "bench-1", Repeats: 2}); err != nil {
		t.Fatalf("write summary: %v", err)
	}
	if err := WriteBenchmarkSeries(runDir, []float64{1, 2}); err != nil {
		t.Fatalf("write series: %v", err)
	}

	exportedDir, err := ExportRunArtifacts(baseDir, "bench-1", t.TempDir())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	for _, file := range []string{"benchmark_summary.json", "benchmark_series.csv"} {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}
}

func TestExportMissingRun(t *testing.T) {
	if _, err := ExportRunArtifacts(t.TempDir(), "missing", t.TempDir()); err == nil {
		t.Fatal("expected export error for missing run")
	}
	if _, err := ExportRunArtifacts(t.TempDir(), "", t.TempDir()); err == nil {
		t.Fatal("expected export error for empty run id")
	}
}

func TestReadRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	want := testArtifacts("run-read")
	if _, err := WriteRunArtifacts(baseDir, want); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	cfg, ok, err := ReadRunConfig(baseDir, "run-read")
	if err != nil || !ok {
		t.Fatalf("read config: ok=%t err=%v", ok, err)
	}
	if !reflect.DeepEqual(cfg, want.Config) {
		t.Fatalf("config mismatch: got=%+v want=%+v", cfg, want.Config)
	}

	history, ok, err := ReadFitnessHistory(baseDir, "run-read")
	if err != nil || !ok {
		t.Fatalf("read history: ok=%t err=%v", ok, err)
	}
	if !reflect.DeepEqual(history, want.BestByGeneration) {
		t.Fatalf("history mismatch: %v", history)
	}

	top, ok, err := ReadTopIndividuals(baseDir, "run-read")
	if err != nil || !ok || len(top) != 1 || top[0].ID != "ind-g2-i0" {
		t.Fatalf("unexpected top individuals: %+v ok=%t err=%v", top, ok, err)
	}

	lineage, ok, err := ReadLineage(baseDir, "run-read")
	if err != nil || !ok || len(lineage) != 1 || lineage[0].Operation != "seed" {
		t.Fatalf("unexpected lineage: %+v ok=%t err=%v", lineage, ok, err)
	}

	diagnostics, ok, err := ReadGenerationDiagnostics(baseDir, "run-read")
	if err != nil || !ok || len(diagnostics) != 1 {
		t.Fatalf("unexpected diagnostics: %+v ok=%t err=%v", diagnostics, ok, err)
	}

	if _, ok, err := ReadRunConfig(baseDir, "missing"); ok || err != nil {
		t.Fatalf("expected missing config, ok=%t err=%v", ok, err)
	}
}

func TestWriteRunConfigRejectsMismatch(t *testing.T) {
	baseDir := t.TempDir()
	if err := WriteRunConfig(baseDir, "run-a", RunConfig{RunID: "run-b"}); err == nil {
		t.Fatal("expected run id mismatch error")
	}
	if err := WriteRunConfig(baseDir, "run-a", RunConfig{Problem: "sphere"}); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, ok, err := ReadRunConfig(baseDir, "run-a")
	if err != nil || !ok || cfg.RunID != "run-a" {
		t.Fatalf("unexpected config: %+v ok=%t err=%v", cfg, ok, err)
	}
}

func TestRunIndexOrdering(t *testing.T) {
	baseDir := t.TempDir()
	entries := []RunIndexEntry{
		{RunID: "old", CreatedAtUTC: "2026-01-01T00:00:00Z"},
		{RunID: "new", CreatedAtUTC: "2026-02-01T00:00:00Z"},
		{RunID: "tie", CreatedAtUTC: "2026-02-01T00:00:00Z"},
	}
	for _, entry := range entries {
		if err := AppendRunIndex(baseDir, entry); err != nil {
			t.Fatalf("append %s: %v", entry.RunID, err)
		}
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "old", CreatedAtUTC: "2026-01-01T00:00:00Z", FinalBestFitness: 3}); err != nil {
		t.Fatalf("replace old: %v", err)
	}

	listed, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := make([]string, 0, len(listed))
	for _, entry := range listed {
		got = append(got, entry.RunID)
	}
	if !reflect.DeepEqual(got, []string{"tie", "new", "old"}) {
		t.Fatalf("unexpected order: %v", got)
	}
	if listed[2].FinalBestFitness != 3 {
		t.Fatalf("expected replaced entry, got %+v", listed[2])
	}
}

func TestListRunIndexEmpty(t *testing.T) {
	listed, err := ListRunIndex(t.TempDir())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected empty index, got %v", listed)
	}
}

func TestBenchmarkSeriesRoundTrip(t *testing.T) {
	baseDir := t.TempDir()
	runDir := filepath.Join(baseDir, "bench")
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	want := []float64{1.5, 0.25, 0.125}
	if err := WriteBenchmarkSeries(runDir, want); err != nil {
		t.Fatalf("write series: %v", err)
	}
	got, ok, err := ReadBenchmarkSeries(baseDir, "bench")
	if err != nil || !ok {
		t.Fatalf("read series: ok=%t err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("series mismatch: got=%v want=%v", got, want)
	}
}

func TestSummarizeBenchmarkMinimize(t *testing.T) {
	goal := 0.5
	runs := []BenchmarkRun{
		{RunID: "r1", Seed: 1, FinalBest: 0.2, Evaluations: 100},
		{RunID: "r2", Seed: 2, FinalBest: 1.0, Evaluations: 200},
		{RunID: "r3", Seed: 3, FinalBest: 0.6, Evaluations: 300},
	}
	summary, err := SummarizeBenchmark(BenchmarkSummary{RunID: "bench"}, runs, fitness.Minimize, &goal)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.Best != 0.2 || summary.Worst != 1.0 {
		t.Fatalf("unexpected best/worst: %+v", summary)
	}
	if math.Abs(summary.Mean-0.6) > 1e-12 {
		t.Fatalf("unexpected mean: %f", summary.Mean)
	}
	wantStd := math.Sqrt((0.16 + 0.16 + 0) / 3)
	if math.Abs(summary.Std-wantStd) > 1e-12 {
		t.Fatalf("unexpected std: got=%f want=%f", summary.Std, wantStd)
	}
	if summary.SuccessRuns != 1 || !summary.Runs[0].Success || summary.Runs[2].Success {
		t.Fatalf("unexpected success accounting: %+v", summary.Runs)
	}
	if summary.AvgEvaluations != 200 {
		t.Fatalf("unexpected avg evaluations: %f", summary.AvgEvaluations)
	}
}

func TestSummarizeBenchmarkMaximizeWithoutGoal(t *testing.T) {
	runs := []BenchmarkRun{{FinalBest: -1}, {FinalBest: 3}}
	summary, err := SummarizeBenchmark(BenchmarkSummary{}, runs, fitness.Maximize, nil)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.Best != 3 || summary.Worst != -1 || summary.SuccessRate != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if _, err := SummarizeBenchmark(BenchmarkSummary{}, nil, fitness.Maximize, nil); err == nil {
		t.Fatal("expected error for empty benchmark")
	}
}

func TestAverageSeries(t *testing.T) {
	got := AverageSeries([][]float64{{1, 2, 3}, {3, 4}})
	if !reflect.DeepEqual(got, []float64{2, 3, 3}) {
		t.Fatalf("unexpected average: %v", got)
	}
	if len(AverageSeries(nil)) != 0 {
		t.Fatal("expected empty average")
	}
}

func TestBenchmarkExperiments(t *testing.T) {
	baseDir := t.TempDir()
	for _, exp := range []BenchmarkExperiment{
		{ID: "a", StartedAtUTC: "2026-01-01T00:00:00Z"},
		{ID: "b", StartedAtUTC: "2026-03-01T00:00:00Z", RunIDs: []string{"b-1"}},
		{ID: "c"},
	} {
		if err := WriteBenchmarkExperiment(baseDir, exp); err != nil {
			t.Fatalf("write %s: %v", exp.ID, err)
		}
	}
	exps, err := ListBenchmarkExperiments(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	ids := []string{exps[0].ID, exps[1].ID, exps[2].ID}
	if !reflect.DeepEqual(ids, []string{"b", "a", "c"}) {
		t.Fatalf("unexpected order: %v", ids)
	}

	exp, ok, err := ReadBenchmarkExperiment(baseDir, "b")
	if err != nil || !ok || len(exp.RunIDs) != 1 {
		t.Fatalf("unexpected experiment: %+v ok=%t err=%v", exp, ok, err)
	}
	if err := WriteBenchmarkExperiment(baseDir, BenchmarkExperiment{}); err == nil {
		t.Fatal("expected error for empty id")
	}
}
