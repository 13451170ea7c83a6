package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"natsel/internal/problem"
)

func newInitCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the store and register the built-in problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "initialized store=%s\n", opts.storeKind)
			return nil
		},
	}
}

func newResetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Drop every persisted record; run artifacts on disk are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset store=%s\n", opts.storeKind)
			return nil
		},
	}
}

func newProblemsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "problems",
		Short: "List the built-in problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			problems, err := client.Problems(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return writeJSON(out, problems)
			}
			for _, p := range problems {
				fmt.Fprintf(out, "name=%s objective=%s dimensions=%d stochastic=%t description=%q\n",
					p.Name, p.Objective, p.Dimensions, p.Stochastic, p.Description)
			}
			return nil
		},
	}
}

func newCheckCmd(opts *globalOptions) *cobra.Command {
	var params problem.Params
	cmd := &cobra.Command{
		Use:   "check <problem>",
		Short: "Verify that a problem honours the fitness provider contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.openClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.CheckProblem(cmd.Context(), args[0], params); err != nil {
				return fmt.Errorf("check %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "problem=%s ok\n", args[0])
			return nil
		},
	}
	bindProblemFlags(cmd, &params)
	return cmd
}

func bindProblemFlags(cmd *cobra.Command, params *problem.Params) {
	flags := cmd.Flags()
	flags.IntVar(&params.Dimensions, "dimensions", 0, "genome length; 0 keeps the problem default")
	flags.Int64Var(&params.Seed, "problem-seed", 1, "seed for the problem's own random source")
	flags.Float64Var(&params.Noise, "noise", 0, "noise amplitude for stochastic problems")
	flags.StringVar(&params.DataPath, "data-path", "", "CSV of x,y samples for curve_fit")
	flags.IntVar(&params.Degree, "degree", 0, "polynomial degree for curve_fit")
}
