package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"natsel/internal/logging"
	"natsel/pkg/natsel"
)

const (
	defaultStoreKind    = "bolt"
	defaultDBPath       = "natsel.db"
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
)

type globalOptions struct {
	logLevel     string
	logFormat    string
	storeKind    string
	dbPath       string
	artifactsDir string
	exportsDir   string
	metricsAddr  string
	jsonOut      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "natselctl",
		Short:         "Run and inspect evolutionary searches over fitness providers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", logging.FormatConsole, "log format: console or json")
	flags.StringVar(&opts.storeKind, "store", defaultStoreKind, "store backend: memory, sqlite or bolt")
	flags.StringVar(&opts.dbPath, "db-path", defaultDBPath, "database file for the sqlite and bolt stores")
	flags.StringVar(&opts.artifactsDir, "artifacts-dir", defaultArtifactsDir, "directory holding run artifacts and the run index")
	flags.StringVar(&opts.exportsDir, "exports-dir", defaultExportsDir, "default destination for exported runs")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")
	flags.BoolVar(&opts.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		newInitCmd(opts),
		newResetCmd(opts),
		newProblemsCmd(opts),
		newCheckCmd(opts),
		newRunCmd(opts),
		newBenchmarkCmd(opts),
		newRunsCmd(opts),
		newFitnessCmd(opts),
		newDiagnosticsCmd(opts),
		newTopCmd(opts),
		newLineageCmd(opts),
		newProblemSummaryCmd(opts),
		newExportCmd(opts),
		newExperimentsCmd(opts),
	)
	return root
}

func (o *globalOptions) logger(cmd *cobra.Command) (zerolog.Logger, error) {
	return logging.New(logging.Options{
		Level:  o.logLevel,
		Format: o.logFormat,
		Out:    cmd.ErrOrStderr(),
	})
}

// openClient builds a client from the global flags and initializes it. The
// caller closes it.
func (o *globalOptions) openClient(cmd *cobra.Command) (*natsel.Client, error) {
	log, err := o.logger(cmd)
	if err != nil {
		return nil, err
	}
	client, err := natsel.New(natsel.Options{
		StoreKind:    o.storeKind,
		DBPath:       o.dbPath,
		ArtifactsDir: o.artifactsDir,
		ExportsDir:   o.exportsDir,
		Logger:       log,
		MetricsAddr:  o.metricsAddr,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Init(cmd.Context()); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
