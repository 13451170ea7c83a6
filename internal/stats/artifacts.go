package stats

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"natsel/internal/model"
)

const (
	runIndexFile           = "run_index.json"
	configFile             = "config.json"
	fitnessHistoryFile     = "fitness_history.json"
	topIndividualsFile     = "top_individuals.json"
	lineageFile            = "lineage.json"
	diagnosticsFile        = "generation_diagnostics.json"
	benchmarkSummaryFile   = "benchmark_summary.json"
	benchmarkSeriesCSVFile = "benchmark_series.csv"
)

// RunConfig records every knob a run was started with so that it can be
// reproduced from its artifacts alone.
type RunConfig struct {
	RunID               string             `json:"run_id"`
	Problem             string             `json:"problem"`
	Objective           string             `json:"objective,omitempty"`
	Dimensions          int                `json:"dimensions,omitempty"`
	Noise               float64            `json:"noise,omitempty"`
	DataPath            string             `json:"data_path,omitempty"`
	Degree              int                `json:"degree,omitempty"`
	PopulationSize      int                `json:"population_size"`
	Generations         int                `json:"generations"`
	EliteCount          int                `json:"elite_count"`
	Workers             int                `json:"workers"`
	Seed                int64              `json:"seed"`
	FitnessGoal         *float64           `json:"fitness_goal,omitempty"`
	EvaluationsLimit    int                `json:"evaluations_limit"`
	Cache               bool               `json:"cache"`
	Selection           string             `json:"selection"`
	TournamentSize      int                `json:"tournament_size,omitempty"`
	Crossover           string             `json:"crossover,omitempty"`
	CrossoverRate       float64            `json:"crossover_rate"`
	CrossoverAlpha      float64            `json:"crossover_alpha,omitempty"`
	MutationWeights     map[string]float64 `json:"mutation_weights,omitempty"`
	MutationCountPolicy string             `json:"mutation_count_policy,omitempty"`
	MutationCount       int                `json:"mutation_count,omitempty"`
	MutationCountParam  float64            `json:"mutation_count_param,omitempty"`
	MutationCountMax    int                `json:"mutation_count_max,omitempty"`
	MutationSigma       float64            `json:"mutation_sigma,omitempty"`
	MutationRate        float64            `json:"mutation_rate,omitempty"`
	MutationStep        float64            `json:"mutation_step,omitempty"`
	FitnessPostprocess  string             `json:"fitness_postprocessor"`
	SharingRadius       float64            `json:"sharing_radius,omitempty"`
	TuningEnabled       bool               `json:"tuning_enabled"`
	TuneAttempts        int                `json:"tune_attempts,omitempty"`
	TuneSteps           int                `json:"tune_steps,omitempty"`
	TuneStepSize        float64            `json:"tune_step_size,omitempty"`
	TunePerturbation    float64            `json:"tune_perturbation_range,omitempty"`
	TuneAnnealing       float64            `json:"tune_annealing_factor,omitempty"`
	TuneMinImprovement  float64            `json:"tune_min_improvement,omitempty"`
	TuneSelection       string             `json:"tune_selection,omitempty"`
	TuneDurationPolicy  string             `json:"tune_duration_policy,omitempty"`
	TuneDurationParam   float64            `json:"tune_duration_param,omitempty"`
	StoreKind           string             `json:"store_kind,omitempty"`
}

type TopIndividual struct {
	Rank       int          `json:"rank"`
	Fitness    float64      `json:"fitness"`
	ID         string       `json:"id"`
	Genes      model.Genome `json:"genes"`
	Generation int          `json:"generation"`
}

type LineageEntry struct {
	IndividualID string   `json:"individual_id"`
	ParentIDs    []string `json:"parent_ids,omitempty"`
	Generation   int      `json:"generation"`
	Operation    string   `json:"operation"`
	Fingerprint  string   `json:"fingerprint,omitempty"`
}

type RunArtifacts struct {
	Config                RunConfig                     `json:"config"`
	BestByGeneration      []float64                     `json:"best_by_generation"`
	GenerationDiagnostics []model.GenerationDiagnostics `json:"generation_diagnostics,omitempty"`
	FinalBestFitness      float64                       `json:"final_best_fitness"`
	StopReason            string                        `json:"stop_reason,omitempty"`
	Evaluations           int                           `json:"evaluations"`
	TopIndividuals        []TopIndividual               `json:"top_individuals"`
	Lineage               []LineageEntry                `json:"lineage"`
}

type fitnessHistory struct {
	BestByGeneration []float64 `json:"best_by_generation"`
	FinalBestFitness float64   `json:"final_best_fitness"`
	StopReason       string    `json:"stop_reason,omitempty"`
	Evaluations      int       `json:"evaluations"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	Problem          string  `json:"problem"`
	Objective        string  `json:"objective,omitempty"`
	PopulationSize   int     `json:"population_size"`
	Generations      int     `json:"generations"`
	Seed             int64   `json:"seed"`
	Workers          int     `json:"workers"`
	EliteCount       int     `json:"elite_count"`
	TuningEnabled    bool    `json:"tuning_enabled"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	StopReason       string  `json:"stop_reason,omitempty"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	history := fitnessHistory{
		BestByGeneration: artifacts.BestByGeneration,
		FinalBestFitness: artifacts.FinalBestFitness,
		StopReason:       artifacts.StopReason,
		Evaluations:      artifacts.Evaluations,
	}
	files := []struct {
		name  string
		value any
	}{
		{configFile, artifacts.Config},
		{fitnessHistoryFile, history},
		{topIndividualsFile, artifacts.TopIndividuals},
		{lineageFile, artifacts.Lineage},
		{diagnosticsFile, artifacts.GenerationDiagnostics},
	}
	for _, file := range files {
		if err := writeJSON(filepath.Join(runDir, file.name), file.value); err != nil {
			return "", err
		}
	}
	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}
	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}
	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index newest first. Entries with equal timestamps
// keep the later appended one first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries := []RunIndexEntry{}
	ok, err := readJSON(filepath.Join(baseDir, runIndexFile), &entries)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []RunIndexEntry{}, nil
	}
	return entries, nil
}

// ExportRunArtifacts copies a run directory into outDir. Benchmark files are
// copied when present.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	required := []string{configFile, fitnessHistoryFile, topIndividualsFile, lineageFile, diagnosticsFile}
	for _, file := range required {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, file := range []string{benchmarkSummaryFile, benchmarkSeriesCSVFile} {
		err := copyFile(filepath.Join(src, file), filepath.Join(dst, file))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	if err != nil || !ok {
		return RunConfig{}, ok, err
	}
	return cfg, true, nil
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = runID
	}
	if cfg.RunID != runID {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, runID)
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, configFile), cfg)
}

func ReadFitnessHistory(baseDir, runID string) ([]float64, bool, error) {
	var history fitnessHistory
	ok, err := readJSON(filepath.Join(baseDir, runID, fitnessHistoryFile), &history)
	if err != nil || !ok {
		return nil, ok, err
	}
	return history.BestByGeneration, true, nil
}

func ReadTopIndividuals(baseDir, runID string) ([]TopIndividual, bool, error) {
	var top []TopIndividual
	ok, err := readJSON(filepath.Join(baseDir, runID, topIndividualsFile), &top)
	if err != nil || !ok {
		return nil, ok, err
	}
	return top, true, nil
}

func ReadLineage(baseDir, runID string) ([]LineageEntry, bool, error) {
	var lineage []LineageEntry
	ok, err := readJSON(filepath.Join(baseDir, runID, lineageFile), &lineage)
	if err != nil || !ok {
		return nil, ok, err
	}
	return lineage, true, nil
}

func ReadGenerationDiagnostics(baseDir, runID string) ([]model.GenerationDiagnostics, bool, error) {
	var diagnostics []model.GenerationDiagnostics
	ok, err := readJSON(filepath.Join(baseDir, runID, diagnosticsFile), &diagnostics)
	if err != nil || !ok {
		return nil, ok, err
	}
	return diagnostics, true, nil
}

func WriteBenchmarkSummary(runDir string, summary BenchmarkSummary) error {
	return writeJSON(filepath.Join(runDir, benchmarkSummaryFile), summary)
}

func ReadBenchmarkSummary(baseDir, runID string) (BenchmarkSummary, bool, error) {
	var summary BenchmarkSummary
	ok, err := readJSON(filepath.Join(baseDir, runID, benchmarkSummaryFile), &summary)
	if err != nil || !ok {
		return BenchmarkSummary{}, ok, err
	}
	return summary, true, nil
}

// WriteBenchmarkSeries writes one generation,best_fitness row per generation.
func WriteBenchmarkSeries(runDir string, bestByGeneration []float64) error {
	file, err := os.Create(filepath.Join(runDir, benchmarkSeriesCSVFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "best_fitness"}); err != nil {
		return err
	}
	for i, best := range bestByGeneration {
		if err := writer.Write([]string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(best, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadBenchmarkSeries(baseDir, runID string) ([]float64, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, benchmarkSeriesCSVFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("benchmark series header must have at least 2 columns")
	}

	series := make([]float64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
