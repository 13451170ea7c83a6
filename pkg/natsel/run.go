package natsel

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"natsel/internal/config"
	"natsel/internal/evo"
	"natsel/internal/fitness"
	"natsel/internal/platform"
	"natsel/internal/problem"
	"natsel/internal/stats"
	"natsel/internal/tuning"
)

// RunRequest mirrors stats.RunConfig field for field so the recorded config
// can be copied straight from it.
type RunRequest struct {
	// RunID is generated when empty. Set it to control the run while it is in
	// flight.
	RunID            string
	Problem          string
	Dimensions       int
	Noise            float64
	DataPath         string
	Degree           int
	PopulationSize   int
	Generations      int
	EliteCount       int
	Workers          int
	Seed             int64
	FitnessGoal      *float64
	EvaluationsLimit int
	Cache            bool

	Selection      string
	TournamentSize int
	Crossover      string
	CrossoverRate  float64
	CrossoverAlpha float64

	MutationWeights     map[string]float64
	MutationSigma       float64
	MutationRate        float64
	MutationStep        float64
	MutationCountPolicy string
	MutationCount       int
	MutationCountParam  float64
	MutationCountMax    int

	FitnessPostprocess string
	SharingRadius      float64

	TuningEnabled      bool
	TuneAttempts       int
	TuneSteps          int
	TuneStepSize       float64
	TunePerturbation   float64
	TuneAnnealing      float64
	TuneMinImprovement float64
	TuneSelection      string
	TuneDurationPolicy string
	TuneDurationParam  float64

	// TopCount is the number of final individuals kept; defaults to 5.
	TopCount int
	// StartPaused queues a pause before the first generation. The run waits
	// for ContinueRun, or for AutoContinueAfter when it is positive.
	StartPaused       bool
	AutoContinueAfter time.Duration
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	Problem          string
	Objective        string
	BestByGeneration []float64
	FinalBestFitness float64
	BestGenes        []float64
	StopReason       string
	Evaluations      int
	CacheHits        int
}

// RequestFromConfig turns a loaded configuration file into a run request.
func RequestFromConfig(cfg config.Run) RunRequest {
	req := RunRequest{
		Problem:             cfg.Run.Problem,
		Dimensions:          cfg.Run.Dimensions,
		Noise:               cfg.Run.Noise,
		DataPath:            cfg.Run.DataPath,
		Degree:              cfg.Run.Degree,
		PopulationSize:      cfg.Run.Population,
		Generations:         cfg.Run.Generations,
		EliteCount:          cfg.Run.EliteCount,
		Workers:             cfg.Run.Workers,
		Seed:                cfg.Run.Seed,
		EvaluationsLimit:    cfg.Run.EvaluationsLimit,
		Cache:               cfg.Run.Cache,
		Selection:           cfg.Selection.Strategy,
		TournamentSize:      cfg.Selection.TournamentSize,
		Crossover:           cfg.Crossover.Operator,
		CrossoverRate:       cfg.Crossover.Rate,
		CrossoverAlpha:      cfg.Crossover.Alpha,
		MutationWeights:     make(map[string]float64, len(cfg.Mutation.Weights)),
		MutationSigma:       cfg.Mutation.Sigma,
		MutationRate:        cfg.Mutation.Rate,
		MutationStep:        cfg.Mutation.Step,
		MutationCountPolicy: cfg.Mutation.CountPolicy,
		MutationCount:       cfg.Mutation.Count,
		MutationCountParam:  cfg.Mutation.CountParam,
		MutationCountMax:    cfg.Mutation.CountMax,
		FitnessPostprocess:  cfg.Postprocess.Name,
		SharingRadius:       cfg.Postprocess.SharingRadius,
		TuningEnabled:       cfg.Tuning.Enabled,
		TuneAttempts:        cfg.Tuning.Attempts,
		TuneSteps:           cfg.Tuning.Steps,
		TuneStepSize:        cfg.Tuning.StepSize,
		TunePerturbation:    cfg.Tuning.PerturbationRange,
		TuneAnnealing:       cfg.Tuning.AnnealingFactor,
		TuneMinImprovement:  cfg.Tuning.MinImprovement,
		TuneSelection:       cfg.Tuning.Selection,
		TuneDurationPolicy:  cfg.Tuning.DurationPolicy,
		TuneDurationParam:   cfg.Tuning.DurationParam,
	}
	for name, w := range cfg.Mutation.Weights {
		req.MutationWeights[name] = w
	}
	if cfg.Run.FitnessGoal != nil {
		goal := *cfg.Run.FitnessGoal
		req.FitnessGoal = &goal
	}
	return req
}

func applyRunDefaults(req *RunRequest) {
	def := config.Default()
	if req.Problem == "" {
		req.Problem = def.Run.Problem
	}
	if req.PopulationSize <= 0 {
		req.PopulationSize = def.Run.Population
	}
	if req.Generations <= 0 {
		req.Generations = def.Run.Generations
	}
	if req.EliteCount <= 0 {
		req.EliteCount = 1
	}
	if req.Workers <= 0 {
		req.Workers = def.Run.Workers
	}
	if len(req.MutationWeights) == 0 {
		req.MutationWeights = def.Mutation.Weights
	}
	if req.TuningEnabled {
		if req.TuneAttempts <= 0 {
			req.TuneAttempts = def.Tuning.Attempts
		}
		if req.TuneSteps <= 0 {
			req.TuneSteps = def.Tuning.Steps
		}
		if req.TuneStepSize <= 0 {
			req.TuneStepSize = def.Tuning.StepSize
		}
	}
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	applyRunDefaults(&req)
	if req.RunID == "" {
		req.RunID = uuid.New().String()
	}

	h, err := c.ensureHabitat(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	provider, err := problem.New(req.Problem, problem.Params{
		Dimensions: req.Dimensions,
		Seed:       req.Seed,
		Noise:      req.Noise,
		DataPath:   req.DataPath,
		Degree:     req.Degree,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := fitness.Check(provider); err != nil {
		return RunSummary{}, fmt.Errorf("fitness provider check: %w", err)
	}
	bounds := provider.GenomeRange()
	objective := fitness.ObjectiveOf(provider)

	evoCfg, err := c.evolutionConfig(req, provider, objective)
	if err != nil {
		return RunSummary{}, err
	}
	mutationPolicy, err := evo.MutationPolicyFromWeights(req.MutationWeights, req.Seed, bounds)
	if err != nil {
		return RunSummary{}, err
	}
	evo.ApplyMutationParams(mutationPolicy, evo.MutationParams{
		Sigma: req.MutationSigma,
		Rate:  req.MutationRate,
		Step:  req.MutationStep,
	})
	evoCfg.MutationPolicy = mutationPolicy

	control := make(chan evo.MonitorCommand, 16)
	if req.StartPaused {
		control <- evo.CommandPause
		if req.AutoContinueAfter > 0 {
			timer := time.AfterFunc(req.AutoContinueAfter, func() {
				select {
				case control <- evo.CommandContinue:
				default:
				}
			})
			defer timer.Stop()
		}
	}
	evoCfg.Control = control

	startedAt := time.Now().UTC()
	log := c.log.With().Str("run_id", req.RunID).Str("problem", req.Problem).Logger()
	log.Info().Int("population", req.PopulationSize).Int("generations", req.Generations).Msg("run started")

	result, err := h.RunEvolution(ctx, evoCfg)
	if err != nil {
		return RunSummary{}, err
	}

	runDir, err := c.writeRunArtifacts(req, provider, result, startedAt)
	if err != nil {
		return RunSummary{}, err
	}
	log.Info().
		Str("stop_reason", string(result.StopReason)).
		Float64("best", result.Best.Fitness).
		Int("evaluations", result.Evaluations).
		Dur("elapsed", time.Since(startedAt)).
		Msg("run finished")

	return RunSummary{
		RunID:            req.RunID,
		ArtifactsDir:     filepath.Clean(runDir),
		Problem:          result.Problem,
		Objective:        string(result.Objective),
		BestByGeneration: append([]float64(nil), result.BestByGeneration...),
		FinalBestFitness: result.Best.Fitness,
		BestGenes:        append([]float64(nil), result.Best.Individual.Genes...),
		StopReason:       string(result.StopReason),
		Evaluations:      result.Evaluations,
		CacheHits:        result.CacheHits,
	}, nil
}

func (c *Client) evolutionConfig(req RunRequest, provider fitness.Provider, objective fitness.Objective) (platform.EvolutionConfig, error) {
	selector, err := evo.SelectorFromName(req.Selection, req.TournamentSize)
	if err != nil {
		return platform.EvolutionConfig{}, err
	}
	crossover, err := evo.CrossoverFromName(req.Crossover, req.CrossoverAlpha)
	if err != nil {
		return platform.EvolutionConfig{}, err
	}
	postprocessor, err := evo.PostprocessorFromName(req.FitnessPostprocess, req.SharingRadius)
	if err != nil {
		return platform.EvolutionConfig{}, err
	}
	mutationCount, err := evo.MutationCountPolicyFromConfig(req.MutationCountPolicy, req.MutationCount, req.MutationCountParam, req.MutationCountMax)
	if err != nil {
		return platform.EvolutionConfig{}, err
	}
	crossoverRate := req.CrossoverRate
	if crossover == nil {
		crossoverRate = 0
	}

	cfg := platform.EvolutionConfig{
		RunID:            req.RunID,
		Provider:         provider,
		PopulationSize:   req.PopulationSize,
		Generations:      req.Generations,
		EliteCount:       req.EliteCount,
		Workers:          req.Workers,
		Seed:             req.Seed,
		FitnessGoal:      req.FitnessGoal,
		EvaluationsLimit: req.EvaluationsLimit,
		MutationCount:    mutationCount,
		Crossover:        crossover,
		CrossoverRate:    crossoverRate,
		Selector:         selector,
		Postprocessor:    postprocessor,
		Cache:            req.Cache,
		Metrics:          c.metrics,
		TopCount:         req.TopCount,
	}
	if !req.TuningEnabled {
		return cfg, nil
	}

	attemptPolicy, err := tuning.AttemptPolicyFromConfig(req.TuneDurationPolicy, req.TuneDurationParam)
	if err != nil {
		return platform.EvolutionConfig{}, err
	}
	tuner := &tuning.Exoself{
		Rand:               rand.New(rand.NewSource(req.Seed + 1000)),
		Steps:              req.TuneSteps,
		StepSize:           req.TuneStepSize,
		PerturbationRange:  req.TunePerturbation,
		AnnealingFactor:    req.TuneAnnealing,
		MinImprovement:     req.TuneMinImprovement,
		CandidateSelection: tuning.NormalizeCandidateSelectionName(req.TuneSelection),
	}
	if req.FitnessGoal != nil {
		tuner.SetGoalScore(objective.Score(*req.FitnessGoal))
	}
	cfg.Tuner = tuner
	cfg.TuneAttempts = req.TuneAttempts
	cfg.TuneAttemptPolicy = attemptPolicy
	return cfg, nil
}

func (c *Client) writeRunArtifacts(req RunRequest, provider fitness.Provider, result platform.EvolutionResult, startedAt time.Time) (string, error) {
	var runConfig stats.RunConfig
	if err := copier.CopyWithOption(&runConfig, &req, copier.Option{DeepCopy: true}); err != nil {
		return "", fmt.Errorf("record run config: %w", err)
	}
	runConfig.Objective = string(result.Objective)
	runConfig.Dimensions = len(provider.GenomeRange())
	runConfig.StoreKind = c.storeKind

	top := make([]stats.TopIndividual, 0, len(result.TopFinal))
	for i, item := range result.TopFinal {
		top = append(top, stats.TopIndividual{
			Rank:       i + 1,
			Fitness:    item.Fitness,
			ID:         item.Individual.ID,
			Genes:      item.Individual.Genes.Clone(),
			Generation: item.Individual.Generation,
		})
	}
	lineage := make([]stats.LineageEntry, 0, len(result.Lineage))
	for _, record := range result.Lineage {
		lineage = append(lineage, stats.LineageEntry{
			IndividualID: record.IndividualID,
			ParentIDs:    append([]string(nil), record.ParentIDs...),
			Generation:   record.Generation,
			Operation:    record.Operation,
			Fingerprint:  record.Fingerprint,
		})
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config:                runConfig,
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.GenerationDiagnostics,
		FinalBestFitness:      result.Best.Fitness,
		StopReason:            string(result.StopReason),
		Evaluations:           result.Evaluations,
		TopIndividuals:        top,
		Lineage:               lineage,
	})
	if err != nil {
		return "", err
	}
	if err := stats.WriteBenchmarkSeries(runDir, result.BestByGeneration); err != nil {
		return "", err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:            req.RunID,
		Problem:          result.Problem,
		Objective:        string(result.Objective),
		PopulationSize:   req.PopulationSize,
		Generations:      req.Generations,
		Seed:             req.Seed,
		Workers:          req.Workers,
		EliteCount:       req.EliteCount,
		TuningEnabled:    req.TuningEnabled,
		FinalBestFitness: result.Best.Fitness,
		StopReason:       string(result.StopReason),
		CreatedAtUTC:     startedAt.Format(time.RFC3339Nano),
	}); err != nil {
		return "", err
	}
	return runDir, nil
}

type BenchmarkRequest struct {
	RunRequest
	Repeats int
	// ExperimentID is generated when empty.
	ExperimentID string
	Notes        string
}

type BenchmarkResult struct {
	ExperimentID  string
	Directory     string
	Summary       stats.BenchmarkSummary
	AverageSeries []float64
}

// Benchmark repeats the same run with consecutive seeds and records the
// aggregate as an experiment.
func (c *Client) Benchmark(ctx context.Context, req BenchmarkRequest) (BenchmarkResult, error) {
	if req.Repeats <= 0 {
		return BenchmarkResult{}, errors.New("repeats must be > 0")
	}
	if req.ExperimentID == "" {
		req.ExperimentID = "bench-" + uuid.New().String()
	}
	base := req.RunRequest
	applyRunDefaults(&base)
	startedAt := time.Now().UTC()

	runs := make([]stats.BenchmarkRun, 0, req.Repeats)
	runIDs := make([]string, 0, req.Repeats)
	series := make([][]float64, 0, req.Repeats)
	var objective fitness.Objective
	var problemName string
	for i := 0; i < req.Repeats; i++ {
		runReq := base
		runReq.RunID = fmt.Sprintf("%s-r%02d", req.ExperimentID, i+1)
		runReq.Seed = base.Seed + int64(i)
		summary, err := c.Run(ctx, runReq)
		if err != nil {
			return BenchmarkResult{}, fmt.Errorf("benchmark repeat %d: %w", i+1, err)
		}
		objective = fitness.Objective(summary.Objective)
		problemName = summary.Problem
		runIDs = append(runIDs, summary.RunID)
		series = append(series, summary.BestByGeneration)
		runs = append(runs, stats.BenchmarkRun{
			RunID:       summary.RunID,
			Seed:        runReq.Seed,
			FinalBest:   summary.FinalBestFitness,
			Generations: len(summary.BestByGeneration),
			Evaluations: summary.Evaluations,
			StopReason:  summary.StopReason,
		})
	}

	summary, err := stats.SummarizeBenchmark(stats.BenchmarkSummary{
		RunID:          req.ExperimentID,
		Problem:        problemName,
		PopulationSize: base.PopulationSize,
		Generations:    base.Generations,
	}, runs, objective, base.FitnessGoal)
	if err != nil {
		return BenchmarkResult{}, err
	}
	average := stats.AverageSeries(series)

	experimentsDir := c.experimentsDir()
	dir := filepath.Join(experimentsDir, req.ExperimentID)
	if err := stats.WriteBenchmarkExperiment(c.artifactsDir, stats.BenchmarkExperiment{
		ID:             req.ExperimentID,
		Notes:          req.Notes,
		StartedAtUTC:   startedAt.Format(time.RFC3339Nano),
		CompletedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
		RunIDs:         runIDs,
		Summary:        summary,
	}); err != nil {
		return BenchmarkResult{}, err
	}
	if err := stats.WriteBenchmarkSummary(dir, summary); err != nil {
		return BenchmarkResult{}, err
	}
	if err := stats.WriteBenchmarkSeries(dir, average); err != nil {
		return BenchmarkResult{}, err
	}
	c.log.Info().
		Str("experiment_id", req.ExperimentID).
		Int("repeats", req.Repeats).
		Float64("mean", summary.Mean).
		Float64("success_rate", summary.SuccessRate).
		Msg("benchmark finished")

	return BenchmarkResult{
		ExperimentID:  req.ExperimentID,
		Directory:     filepath.Clean(dir),
		Summary:       summary,
		AverageSeries: average,
	}, nil
}

func (c *Client) experimentsDir() string {
	return filepath.Join(c.artifactsDir, "experiments")
}
