package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"natsel/internal/config"
	"natsel/pkg/natsel"
)

// runFlags binds the search knobs to a config.Run so that a --config file can
// be loaded first and explicitly set flags applied on top of it.
type runFlags struct {
	cmd   *cobra.Command
	cfg   config.Run
	apply map[string]func(dst *config.Run)

	configPath   string
	fitnessGoal  float64
	weights      map[string]string
	runID        string
	topCount     int
	startPaused  bool
	autoContinue time.Duration
}

func bindRunFlags(cmd *cobra.Command) *runFlags {
	f := &runFlags{
		cmd:   cmd,
		cfg:   config.Default(),
		apply: make(map[string]func(dst *config.Run)),
	}
	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "TOML run configuration; flags set explicitly override it")
	flags.StringVar(&f.runID, "run-id", "", "run id; generated when empty")
	flags.IntVar(&f.topCount, "top", 5, "number of final individuals to keep")
	flags.BoolVar(&f.startPaused, "start-paused", false, "queue a pause before the first generation")
	flags.DurationVar(&f.autoContinue, "auto-continue", 0, "continue a paused run after this delay")
	flags.Float64Var(&f.fitnessGoal, "fitness-goal", 0, "stop once the best fitness reaches this value")
	flags.StringToStringVar(&f.weights, "mutation-weights", nil, "mutation operator weights, e.g. gaussian=2,creep=1")

	f.stringFlag("problem", "problem name", func(c *config.Run) *string { return &c.Run.Problem })
	f.intFlag("dimensions", "genome length; 0 keeps the problem default", func(c *config.Run) *int { return &c.Run.Dimensions })
	f.floatFlag("noise", "noise amplitude for stochastic problems", func(c *config.Run) *float64 { return &c.Run.Noise })
	f.stringFlag("data-path", "CSV of x,y samples for curve_fit", func(c *config.Run) *string { return &c.Run.DataPath })
	f.intFlag("degree", "polynomial degree for curve_fit", func(c *config.Run) *int { return &c.Run.Degree })
	f.intFlag("pop", "population size", func(c *config.Run) *int { return &c.Run.Population })
	f.intFlag("gens", "maximum number of generations", func(c *config.Run) *int { return &c.Run.Generations })
	f.int64Flag("seed", "random seed", func(c *config.Run) *int64 { return &c.Run.Seed })
	f.intFlag("workers", "concurrent fitness evaluations", func(c *config.Run) *int { return &c.Run.Workers })
	f.intFlag("elite", "individuals copied unchanged into the next generation", func(c *config.Run) *int { return &c.Run.EliteCount })
	f.intFlag("evaluations-limit", "stop after this many fitness evaluations; 0 disables", func(c *config.Run) *int { return &c.Run.EvaluationsLimit })
	f.boolFlag("cache", "cache fitness of deterministic problems", func(c *config.Run) *bool { return &c.Run.Cache })
	f.stringFlag("selection", "parent selection: elite, tournament, roulette, rank, niche_tournament", func(c *config.Run) *string { return &c.Selection.Strategy })
	f.intFlag("tournament-size", "tournament size", func(c *config.Run) *int { return &c.Selection.TournamentSize })
	f.stringFlag("crossover", "crossover: none, uniform, arithmetic, single_point, blx_alpha", func(c *config.Run) *string { return &c.Crossover.Operator })
	f.floatFlag("crossover-rate", "probability that a child is bred by crossover", func(c *config.Run) *float64 { return &c.Crossover.Rate })
	f.floatFlag("crossover-alpha", "blx_alpha extension factor", func(c *config.Run) *float64 { return &c.Crossover.Alpha })
	f.floatFlag("mutation-sigma", "gaussian mutation sigma as a fraction of the gene span", func(c *config.Run) *float64 { return &c.Mutation.Sigma })
	f.floatFlag("mutation-rate", "per-gene mutation probability", func(c *config.Run) *float64 { return &c.Mutation.Rate })
	f.floatFlag("mutation-step", "creep mutation step as a fraction of the gene span", func(c *config.Run) *float64 { return &c.Mutation.Step })
	f.stringFlag("mutation-count-policy", "mutation count policy: const, dimension_linear, dimension_random", func(c *config.Run) *string { return &c.Mutation.CountPolicy })
	f.intFlag("mutation-count", "mutations per child for the const policy", func(c *config.Run) *int { return &c.Mutation.Count })
	f.floatFlag("mutation-count-param", "multiplier or power for the dimension policies", func(c *config.Run) *float64 { return &c.Mutation.CountParam })
	f.intFlag("mutation-count-max", "upper bound on mutations per child; 0 disables", func(c *config.Run) *int { return &c.Mutation.CountMax })
	f.stringFlag("postprocess", "fitness postprocessor: none, rank, sharing", func(c *config.Run) *string { return &c.Postprocess.Name })
	f.floatFlag("sharing-radius", "normalized niche radius for sharing", func(c *config.Run) *float64 { return &c.Postprocess.SharingRadius })
	f.boolFlag("tune", "refine each individual with the hill climbing tuner", func(c *config.Run) *bool { return &c.Tuning.Enabled })
	f.intFlag("tune-attempts", "tuning attempts per individual", func(c *config.Run) *int { return &c.Tuning.Attempts })
	f.intFlag("tune-steps", "genes perturbed per tuning candidate", func(c *config.Run) *int { return &c.Tuning.Steps })
	f.floatFlag("tune-step-size", "tuning step as a fraction of the gene span", func(c *config.Run) *float64 { return &c.Tuning.StepSize })
	f.floatFlag("tune-perturbation", "tuning perturbation range multiplier", func(c *config.Run) *float64 { return &c.Tuning.PerturbationRange })
	f.floatFlag("tune-annealing", "tuning annealing factor", func(c *config.Run) *float64 { return &c.Tuning.AnnealingFactor })
	f.floatFlag("tune-min-improvement", "minimum score gain for a tuning candidate to be kept", func(c *config.Run) *float64 { return &c.Tuning.MinImprovement })
	f.stringFlag("tune-selection", "tuning candidate selection mode", func(c *config.Run) *string { return &c.Tuning.Selection })
	f.stringFlag("tune-duration", "tuning attempt policy: fixed, linear_decay, dimension_scaled", func(c *config.Run) *string { return &c.Tuning.DurationPolicy })
	f.floatFlag("tune-duration-param", "parameter for the tuning attempt policy", func(c *config.Run) *float64 { return &c.Tuning.DurationParam })
	return f
}

func (f *runFlags) stringFlag(name, usage string, field func(*config.Run) *string) {
	f.cmd.Flags().StringVar(field(&f.cfg), name, *field(&f.cfg), usage)
	f.apply[name] = func(dst *config.Run) { *field(dst) = *field(&f.cfg) }
}

func (f *runFlags) intFlag(name, usage string, field func(*config.Run) *int) {
	f.cmd.Flags().IntVar(field(&f.cfg), name, *field(&f.cfg), usage)
	f.apply[name] = func(dst *config.Run) { *field(dst) = *field(&f.cfg) }
}

func (f *runFlags) int64Flag(name, usage string, field func(*config.Run) *int64) {
	f.cmd.Flags().Int64Var(field(&f.cfg), name, *field(&f.cfg), usage)
	f.apply[name] = func(dst *config.Run) { *field(dst) = *field(&f.cfg) }
}

func (f *runFlags) floatFlag(name, usage string, field func(*config.Run) *float64) {
	f.cmd.Flags().Float64Var(field(&f.cfg), name, *field(&f.cfg), usage)
	f.apply[name] = func(dst *config.Run) { *field(dst) = *field(&f.cfg) }
}

func (f *runFlags) boolFlag(name, usage string, field func(*config.Run) *bool) {
	f.cmd.Flags().BoolVar(field(&f.cfg), name, *field(&f.cfg), usage)
	f.apply[name] = func(dst *config.Run) { *field(dst) = *field(&f.cfg) }
}

// resolve returns the effective configuration: the --config file, or the
// defaults, with every explicitly set flag applied on top.
func (f *runFlags) resolve(opts *globalOptions) (config.Run, error) {
	flags := f.cmd.Flags()
	cfg := f.cfg
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return config.Run{}, err
		}
		for name, apply := range f.apply {
			if flags.Changed(name) {
				apply(&loaded)
			}
		}
		cfg = loaded
		if !flags.Changed("store") && cfg.Store.Kind != "" {
			opts.storeKind = cfg.Store.Kind
		}
		if !flags.Changed("db-path") && cfg.Store.Path != "" {
			opts.dbPath = cfg.Store.Path
		}
		if !flags.Changed("log-level") && cfg.Log.Level != "" {
			opts.logLevel = cfg.Log.Level
		}
		if !flags.Changed("log-format") && cfg.Log.Format != "" {
			opts.logFormat = cfg.Log.Format
		}
		if !flags.Changed("metrics-addr") && cfg.Metrics.Addr != "" {
			opts.metricsAddr = cfg.Metrics.Addr
		}
	}
	if flags.Changed("fitness-goal") {
		goal := f.fitnessGoal
		cfg.Run.FitnessGoal = &goal
	}
	if flags.Changed("mutation-weights") {
		weights, err := parseWeights(f.weights)
		if err != nil {
			return config.Run{}, err
		}
		cfg.Mutation.Weights = weights
	}
	if err := cfg.Validate(); err != nil {
		return config.Run{}, err
	}
	return cfg, nil
}

func (f *runFlags) request(cfg config.Run) natsel.RunRequest {
	req := natsel.RequestFromConfig(cfg)
	req.RunID = f.runID
	req.TopCount = f.topCount
	req.StartPaused = f.startPaused
	req.AutoContinueAfter = f.autoContinue
	return req
}

func parseWeights(raw map[string]string) (map[string]float64, error) {
	weights := make(map[string]float64, len(raw))
	for name, value := range raw {
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("mutation weight %s: %w", name, err)
		}
		weights[strings.TrimSpace(name)] = w
	}
	return weights, nil
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evolve a population against a problem",
		Args:  cobra.NoArgs,
	}
	flags := bindRunFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := flags.resolve(opts)
		if err != nil {
			return err
		}
		client, err := opts.openClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		req := flags.request(cfg)
		summary, err := client.Run(cmd.Context(), req)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if opts.jsonOut {
			return writeJSON(out, summary)
		}
		fmt.Fprintf(out, "run completed run_id=%s problem=%s objective=%s pop=%d gens=%d seed=%d\n",
			summary.RunID, summary.Problem, summary.Objective, req.PopulationSize, req.Generations, req.Seed)
		for i, best := range summary.BestByGeneration {
			fmt.Fprintf(out, "generation=%d best_fitness=%.6f\n", i+1, best)
		}
		fmt.Fprintf(out, "final_best_fitness=%.6f stop_reason=%s evaluations=%d cache_hits=%d\n",
			summary.FinalBestFitness, summary.StopReason, summary.Evaluations, summary.CacheHits)
		fmt.Fprintf(out, "best_genes=%s\n", formatGenes(summary.BestGenes))
		fmt.Fprintf(out, "artifacts_dir=%s\n", summary.ArtifactsDir)
		return nil
	}
	return cmd
}

func newBenchmarkCmd(opts *globalOptions) *cobra.Command {
	var (
		repeats      int
		experimentID string
		notes        string
	)
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Repeat a run with consecutive seeds and summarize the results",
		Args:  cobra.NoArgs,
	}
	flags := bindRunFlags(cmd)
	cmd.Flags().IntVar(&repeats, "repeats", 5, "number of runs")
	cmd.Flags().StringVar(&experimentID, "experiment-id", "", "experiment id; generated when empty")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes stored with the experiment")
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := flags.resolve(opts)
		if err != nil {
			return err
		}
		client, err := opts.openClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		result, err := client.Benchmark(cmd.Context(), natsel.BenchmarkRequest{
			RunRequest:   flags.request(cfg),
			Repeats:      repeats,
			ExperimentID: experimentID,
			Notes:        notes,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if opts.jsonOut {
			return writeJSON(out, result)
		}
		s := result.Summary
		fmt.Fprintf(out, "benchmark experiment_id=%s problem=%s objective=%s repeats=%d best=%.6f worst=%.6f mean=%.6f std=%.6f success_rate=%.4f avg_evaluations=%.1f\n",
			result.ExperimentID, s.Problem, s.Objective, s.Repeats, s.Best, s.Worst, s.Mean, s.Std, s.SuccessRate, s.AvgEvaluations)
		for _, run := range s.Runs {
			fmt.Fprintf(out, "run_id=%s seed=%d final_best=%.6f generations=%d stop_reason=%s success=%t\n",
				run.RunID, run.Seed, run.FinalBest, run.Generations, run.StopReason, run.Success)
		}
		fmt.Fprintf(out, "experiment_dir=%s\n", result.Directory)
		return nil
	}
	return cmd
}

func formatGenes(genes []float64) string {
	parts := make([]string, len(genes))
	for i, g := range genes {
		parts[i] = strconv.FormatFloat(g, 'f', 6, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
