// Package natsel is the embedding API for the evolutionary search engine. A
// Client owns a store and a habitat, runs searches against the registered
// problems and writes run artifacts next to the store.
package natsel

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"natsel/internal/evo"
	"natsel/internal/fitness"
	"natsel/internal/platform"
	"natsel/internal/problem"
	"natsel/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "natsel.db"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       zerolog.Logger
	// Registerer receives the engine metrics. It is ignored when MetricsAddr
	// is set, in which case the client serves its own registry there.
	Registerer  prometheus.Registerer
	MetricsAddr string
}

type Client struct {
	store     storage.Store
	storeKind string
	log       zerolog.Logger
	metrics   *evo.Metrics
	modules   []platform.SupportModule

	mu      sync.Mutex
	habitat *platform.Habitat

	artifactsDir string
	exportsDir   string
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = "memory"
	}
	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	c := &Client{
		store:        store,
		storeKind:    storeKind,
		log:          opts.Logger,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}

	registerer := opts.Registerer
	if opts.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		registerer = reg
		c.modules = append(c.modules, &platform.MetricsServer{
			Addr:     opts.MetricsAddr,
			Gatherer: reg,
			Logger:   opts.Logger,
		})
	}
	if registerer != nil {
		c.metrics, err = evo.NewMetrics(registerer)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return c, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.habitat != nil {
		c.habitat.Stop()
	}
	c.mu.Unlock()
	return storage.CloseIfSupported(c.store)
}

// Init opens the store and starts the habitat with every built-in problem
// registered at its default parameters.
func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureHabitat(ctx)
	return err
}

// Reset drops every persisted record. Run artifacts on disk are kept.
func (c *Client) Reset(ctx context.Context) error {
	h, err := c.ensureHabitat(ctx)
	if err != nil {
		return err
	}
	if err := h.Reset(ctx); err != nil {
		return err
	}
	return registerDefaultProblems(h)
}

type ProblemInfo struct {
	Name        string
	Description string
	Objective   string
	Dimensions  int
	Stochastic  bool
}

// Problems lists the problems the client can build, with their default shape.
func (c *Client) Problems(_ context.Context) ([]ProblemInfo, error) {
	names := problem.List()
	out := make([]ProblemInfo, 0, len(names))
	for _, name := range names {
		p, err := problem.New(name, problem.Params{})
		if err != nil {
			return nil, fmt.Errorf("build problem %s: %w", name, err)
		}
		out = append(out, ProblemInfo{
			Name:        name,
			Description: fitness.DescriptionOf(p),
			Objective:   string(fitness.ObjectiveOf(p)),
			Dimensions:  len(p.GenomeRange()),
			Stochastic:  fitness.IsStochastic(p),
		})
	}
	return out, nil
}

// CheckProblem builds the named problem and verifies that it honours the
// fitness provider contract.
func (c *Client) CheckProblem(_ context.Context, name string, params problem.Params) error {
	p, err := problem.New(name, params)
	if err != nil {
		return err
	}
	return fitness.Check(p)
}

func (c *Client) PauseRun(runID string) error {
	h, err := c.startedHabitat()
	if err != nil {
		return err
	}
	return h.PauseRun(runID)
}

func (c *Client) ContinueRun(runID string) error {
	h, err := c.startedHabitat()
	if err != nil {
		return err
	}
	return h.ContinueRun(runID)
}

func (c *Client) StopRun(runID string) error {
	h, err := c.startedHabitat()
	if err != nil {
		return err
	}
	return h.StopRun(runID)
}

func (c *Client) ActiveRuns() []string {
	h, err := c.startedHabitat()
	if err != nil {
		return nil
	}
	return h.ActiveRuns()
}

func (c *Client) startedHabitat() (*platform.Habitat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.habitat == nil || !c.habitat.Started() {
		return nil, platform.ErrNotStarted
	}
	return c.habitat, nil
}

func (c *Client) ensureHabitat(ctx context.Context) (*platform.Habitat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.habitat != nil && c.habitat.Started() {
		return c.habitat, nil
	}
	h := c.habitat
	if h == nil {
		h = platform.NewHabitat(platform.Config{
			Store:          c.store,
			SupportModules: c.modules,
			Logger:         c.log,
		})
	}
	if err := h.Init(ctx); err != nil {
		return nil, err
	}
	if err := registerDefaultProblems(h); err != nil {
		return nil, err
	}
	c.habitat = h
	return c.habitat, nil
}

func registerDefaultProblems(h *platform.Habitat) error {
	for _, name := range problem.List() {
		p, err := problem.New(name, problem.Params{})
		if err != nil {
			return fmt.Errorf("build problem %s: %w", name, err)
		}
		if err := h.RegisterProblem(p); err != nil {
			return err
		}
	}
	return nil
}
