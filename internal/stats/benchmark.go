package stats

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"natsel/internal/fitness"
)

const benchmarkExperimentsDir = "experiments"

// BenchmarkRun is one repetition of a benchmark with its own seed.
type BenchmarkRun struct {
	RunID       string  `json:"run_id"`
	Seed        int64   `json:"seed"`
	FinalBest   float64 `json:"final_best"`
	Generations int     `json:"generations"`
	Evaluations int     `json:"evaluations"`
	StopReason  string  `json:"stop_reason,omitempty"`
	Success     bool    `json:"success"`
}

// BenchmarkSummary aggregates the final best fitness of repeated runs of the
// same configuration.
type BenchmarkSummary struct {
	RunID          string         `json:"run_id"`
	Problem        string         `json:"problem"`
	Objective      string         `json:"objective"`
	PopulationSize int            `json:"population_size"`
	Generations    int            `json:"generations"`
	Repeats        int            `json:"repeats"`
	FitnessGoal    *float64       `json:"fitness_goal,omitempty"`
	Best           float64        `json:"best"`
	Worst          float64        `json:"worst"`
	Mean           float64        `json:"mean"`
	Std            float64        `json:"std"`
	Min            float64        `json:"min"`
	Max            float64        `json:"max"`
	SuccessRuns    int            `json:"success_runs"`
	SuccessRate    float64        `json:"success_rate"`
	AvgEvaluations float64        `json:"avg_evaluations"`
	Runs           []BenchmarkRun `json:"runs"`
}

// BenchmarkExperiment groups the runs of one benchmark invocation.
type BenchmarkExperiment struct {
	ID             string           `json:"id"`
	Notes          string           `json:"notes,omitempty"`
	StartedAtUTC   string           `json:"started_at_utc,omitempty"`
	CompletedAtUTC string           `json:"completed_at_utc,omitempty"`
	RunIDs         []string         `json:"run_ids,omitempty"`
	Summary        BenchmarkSummary `json:"summary"`
}

// SummarizeBenchmark fills the aggregate fields of summary from runs. Best and
// Worst follow objective; a run succeeds when it reached goal, or always when
// goal is nil.
func SummarizeBenchmark(summary BenchmarkSummary, runs []BenchmarkRun, objective fitness.Objective, goal *float64) (BenchmarkSummary, error) {
	if len(runs) == 0 {
		return BenchmarkSummary{}, fmt.Errorf("benchmark requires at least one run")
	}
	summary.Objective = string(objective)
	summary.Repeats = len(runs)
	summary.Runs = make([]BenchmarkRun, len(runs))
	if goal != nil {
		g := *goal
		summary.FitnessGoal = &g
	}

	finals := make([]float64, len(runs))
	summary.SuccessRuns = 0
	evaluations := 0.0
	for i, run := range runs {
		run.Success = goal == nil || objective.Reached(run.FinalBest, *goal)
		if run.Success {
			summary.SuccessRuns++
		}
		summary.Runs[i] = run
		finals[i] = run.FinalBest
		evaluations += float64(run.Evaluations)
	}
	summary.Mean, summary.Std = meanStd(finals)
	summary.Min, summary.Max = minMax(finals)
	summary.Best, summary.Worst = summary.Max, summary.Min
	if objective == fitness.Minimize {
		summary.Best, summary.Worst = summary.Min, summary.Max
	}
	summary.SuccessRate = float64(summary.SuccessRuns) / float64(len(runs))
	summary.AvgEvaluations = evaluations / float64(len(runs))
	return summary, nil
}

// AverageSeries averages per-generation values across runs. Runs that stopped
// early stop contributing once their series ends.
func AverageSeries(series [][]float64) []float64 {
	longest := 0
	for _, s := range series {
		if len(s) > longest {
			longest = len(s)
		}
	}
	out := make([]float64, 0, longest)
	for i := 0; i < longest; i++ {
		sum, n := 0.0, 0
		for _, s := range series {
			if i < len(s) {
				sum += s[i]
				n++
			}
		}
		out = append(out, sum/float64(n))
	}
	return out
}

func WriteBenchmarkExperiment(baseDir string, exp BenchmarkExperiment) error {
	if exp.ID == "" {
		return fmt.Errorf("experiment id is required")
	}
	path := benchmarkExperimentPath(baseDir, exp.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeJSON(path, exp)
}

func ReadBenchmarkExperiment(baseDir, id string) (BenchmarkExperiment, bool, error) {
	if id == "" {
		return BenchmarkExperiment{}, false, fmt.Errorf("experiment id is required")
	}
	var exp BenchmarkExperiment
	ok, err := readJSON(benchmarkExperimentPath(baseDir, id), &exp)
	if err != nil || !ok {
		return BenchmarkExperiment{}, ok, err
	}
	return exp, true, nil
}

// ListBenchmarkExperiments returns experiments newest first; experiments
// without a start time sort last.
func ListBenchmarkExperiments(baseDir string) ([]BenchmarkExperiment, error) {
	entries, err := os.ReadDir(filepath.Join(baseDir, benchmarkExperimentsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []BenchmarkExperiment{}, nil
		}
		return nil, err
	}

	exps := make([]BenchmarkExperiment, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		exp, ok, err := ReadBenchmarkExperiment(baseDir, entry.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			exps = append(exps, exp)
		}
	}
	sort.Slice(exps, func(i, j int) bool {
		switch {
		case exps[i].StartedAtUTC == exps[j].StartedAtUTC:
			return exps[i].ID < exps[j].ID
		case exps[i].StartedAtUTC == "":
			return false
		case exps[j].StartedAtUTC == "":
			return true
		default:
			return exps[i].StartedAtUTC > exps[j].StartedAtUTC
		}
	})
	return exps, nil
}

func benchmarkExperimentPath(baseDir, id string) string {
	return filepath.Join(baseDir, benchmarkExperimentsDir, id, "experiment.json")
}

// meanStd returns the mean and population standard deviation.
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}

func minMax(values []float64) (float64, float64) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
