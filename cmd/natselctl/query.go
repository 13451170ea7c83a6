package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"natsel/pkg/natsel"
)

func bindRunRef(cmd *cobra.Command, ref *natsel.RunRef) {
	cmd.Flags().StringVar(&ref.RunID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&ref.Latest, "latest", false, "use the most recent run")
	cmd.Flags().IntVar(&ref.Limit, "limit", 0, "maximum rows to print; 0 prints all")
}

func newRunsCmd(opts *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			runs, err := client.Runs(cmd.Context(), natsel.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs found")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(out, "run_id=%s created_at=%s problem=%s objective=%s seed=%d pop=%d gens=%d tuning=%t final_best_fitness=%.6f stop_reason=%s\n",
					r.RunID, r.CreatedAtUTC, r.Problem, r.Objective, r.Seed, r.Population, r.Generations, r.TuningEnabled, r.FinalBestFitness, r.StopReason)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	return cmd
}

func newFitnessCmd(opts *globalOptions) *cobra.Command {
	var ref natsel.RunRef
	cmd := &cobra.Command{
		Use:   "fitness",
		Short: "Print the best fitness of every generation of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			history, err := client.FitnessHistory(cmd.Context(), ref)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(out, history)
			}
			if len(history) == 0 {
				fmt.Fprintln(out, "no fitness history")
				return nil
			}
			for i, best := range history {
				fmt.Fprintf(out, "generation=%d best_fitness=%.6f\n", i+1, best)
			}
			return nil
		},
	}
	bindRunRef(cmd, &ref)
	return cmd
}

func newDiagnosticsCmd(opts *globalOptions) *cobra.Command {
	var ref natsel.RunRef
	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Print per-generation population statistics of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			diagnostics, err := client.Diagnostics(cmd.Context(), ref)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(out, diagnostics)
			}
			if len(diagnostics) == 0 {
				fmt.Fprintln(out, "no diagnostics")
				return nil
			}
			for _, d := range diagnostics {
				fmt.Fprintf(out, "generation=%d best=%.6f mean=%.6f min=%.6f max=%.6f std=%.6f diversity=%.4f distinct=%d niches=%d largest_niche=%d evaluations=%d cache_hits=%d tuning_invocations=%d tuning_accepted=%d\n",
					d.Generation, d.BestFitness, d.MeanFitness, d.MinFitness, d.MaxFitness, d.StdDevFitness, d.GeneDiversity,
					d.DistinctGenomes, d.NicheCount, d.LargestNicheSize, d.Evaluations, d.CacheHits, d.TuningInvocations, d.TuningAccepted)
			}
			return nil
		},
	}
	bindRunRef(cmd, &ref)
	return cmd
}

func newTopCmd(opts *globalOptions) *cobra.Command {
	var ref natsel.RunRef
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Print the best individuals of a run's final population",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			top, err := client.TopIndividuals(cmd.Context(), ref)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(out, top)
			}
			if len(top) == 0 {
				fmt.Fprintln(out, "no top individuals")
				return nil
			}
			for _, item := range top {
				fmt.Fprintf(out, "rank=%d fitness=%.6f id=%s generation=%d genes=%s\n",
					item.Rank, item.Fitness, item.Individual.ID, item.Individual.Generation, formatGenes(item.Individual.Genes))
			}
			return nil
		},
	}
	bindRunRef(cmd, &ref)
	return cmd
}

func newLineageCmd(opts *globalOptions) *cobra.Command {
	var ref natsel.RunRef
	cmd := &cobra.Command{
		Use:   "lineage",
		Short: "Print how each individual of a run was produced",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			lineage, err := client.Lineage(cmd.Context(), ref)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(out, lineage)
			}
			if len(lineage) == 0 {
				fmt.Fprintln(out, "no lineage records")
				return nil
			}
			for _, rec := range lineage {
				fmt.Fprintf(out, "gen=%d id=%s parents=%v op=%s fingerprint=%s\n",
					rec.Generation, rec.IndividualID, rec.ParentIDs, rec.Operation, rec.Fingerprint)
			}
			return nil
		},
	}
	bindRunRef(cmd, &ref)
	return cmd
}

func newProblemSummaryCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "problem-summary <problem>",
		Short: "Print the best fitness recorded for a problem across runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			summary, err := client.ProblemSummary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(out, summary)
			}
			fmt.Fprintf(out, "problem=%s objective=%s dimensions=%d runs=%d best_fitness=%.6f description=%q\n",
				summary.Name, summary.Objective, summary.Dimensions, summary.Runs, summary.BestFitness, summary.Description)
			return nil
		},
	}
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	var req natsel.ExportRequest
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy a run's artifacts to another directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			exported, err := client.Export(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(out, exported)
			}
			fmt.Fprintf(out, "exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.RunID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&req.Latest, "latest", false, "export the most recent run")
	cmd.Flags().StringVar(&req.OutDir, "out", "", "destination directory; defaults to --exports-dir")
	return cmd
}

func newExperimentsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "experiments",
		Short: "List recorded benchmark experiments, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			experiments, err := client.Benchmarks(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(out, experiments)
			}
			if len(experiments) == 0 {
				fmt.Fprintln(out, "no experiments found")
				return nil
			}
			for _, exp := range experiments {
				fmt.Fprintf(out, "id=%s started_at=%s problem=%s repeats=%d best=%.6f mean=%.6f success_rate=%.4f notes=%q\n",
					exp.ID, exp.StartedAtUTC, exp.Summary.Problem, exp.Summary.Repeats, exp.Summary.Best, exp.Summary.Mean, exp.Summary.SuccessRate, exp.Notes)
			}
			return nil
		},
	}
}
