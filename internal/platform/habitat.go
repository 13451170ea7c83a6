package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"natsel/internal/evo"
	"natsel/internal/fitness"
	"natsel/internal/model"
	"natsel/internal/storage"
	"natsel/internal/tuning"
)

var (
	ErrNotStarted      = errors.New("habitat is not initialized")
	ErrProblemNotFound = errors.New("problem not registered")
	ErrRunActive       = errors.New("run already active")
	ErrRunNotActive    = errors.New("run not active")
)

const defaultTopCount = 5

type Config struct {
	Store          storage.Store
	SupportModules []SupportModule
	// Problems are registered during Init.
	Problems []fitness.Provider
	Logger   zerolog.Logger
}

// SupportModule is a long-lived service started with the habitat and stopped
// in reverse order when it shuts down.
type SupportModule interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type EvolutionConfig struct {
	RunID   string
	Problem string
	// Provider, when set, is used instead of the registered problem named by
	// Problem, so runs may use instances built with their own parameters.
	Provider          fitness.Provider
	PopulationSize    int
	Generations       int
	EliteCount        int
	Workers           int
	Seed              int64
	FitnessGoal       *float64
	EvaluationsLimit  int
	Mutation          evo.Operator
	MutationPolicy    []evo.WeightedMutation
	MutationCount     evo.MutationCountPolicy
	Crossover         evo.Crossover
	CrossoverRate     float64
	Selector          evo.Selector
	Postprocessor     evo.FitnessPostprocessor
	Cache             bool
	CacheEntries      int
	Tuner             tuning.Tuner
	TuneAttempts      int
	TuneAttemptPolicy tuning.AttemptPolicy
	Niching           *evo.AdaptiveNiching
	Metrics           *evo.Metrics
	Control           chan evo.MonitorCommand
	// Initial is drawn from the provider when empty. Individual IDs are
	// prefixed with RunID so runs sharing a store do not collide.
	Initial  []model.Individual
	TopCount int
}

type EvolutionResult struct {
	RunID                 string
	Problem               string
	Objective             fitness.Objective
	BestByGeneration      []float64
	GenerationDiagnostics []model.GenerationDiagnostics
	Best                  evo.ScoredIndividual
	TopFinal              []evo.ScoredIndividual
	Lineage               []model.LineageRecord
	StopReason            evo.StopReason
	Evaluations           int
	CacheHits             int
}

// Habitat owns a store, the registered fitness providers and the control
// channels of the runs currently in flight.
type Habitat struct {
	store storage.Store
	log   zerolog.Logger

	mu             sync.RWMutex
	problems       map[string]fitness.Provider
	supportModules []SupportModule
	started        bool
	runs           map[string]chan evo.MonitorCommand

	// summaryMu serializes the read-modify-write of problem summaries.
	summaryMu sync.Mutex

	config Config
}

func NewHabitat(cfg Config) *Habitat {
	return &Habitat{
		store:    cfg.Store,
		log:      cfg.Logger,
		problems: make(map[string]fitness.Provider),
		runs:     make(map[string]chan evo.MonitorCommand),
		config:   cfg,
	}
}

func (h *Habitat) Init(ctx context.Context) error {
	if h.store == nil {
		return fmt.Errorf("store is required")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return nil
	}
	if err := h.store.Init(ctx); err != nil {
		return err
	}

	started := make([]SupportModule, 0, len(h.config.SupportModules))
	seen := make(map[string]struct{}, len(h.config.SupportModules))
	for i, module := range h.config.SupportModules {
		if module == nil {
			stopSupportModules(ctx, started)
			return fmt.Errorf("support module is nil at index %d", i)
		}
		name := module.Name()
		if name == "" {
			stopSupportModules(ctx, started)
			return fmt.Errorf("support module name is required at index %d", i)
		}
		if _, exists := seen[name]; exists {
			stopSupportModules(ctx, started)
			return fmt.Errorf("duplicate support module: %s", name)
		}
		if err := module.Start(ctx); err != nil {
			stopSupportModules(ctx, started)
			return fmt.Errorf("start support module %s: %w", name, err)
		}
		seen[name] = struct{}{}
		started = append(started, module)
	}

	problems := make(map[string]fitness.Provider, len(h.config.Problems))
	for i, p := range h.config.Problems {
		name, err := problemName(p)
		if err != nil {
			stopSupportModules(ctx, started)
			return fmt.Errorf("problem at index %d: %w", i, err)
		}
		if _, exists := problems[name]; exists {
			stopSupportModules(ctx, started)
			return fmt.Errorf("duplicate problem: %s", name)
		}
		problems[name] = p
	}

	h.supportModules = started
	h.problems = problems
	h.started = true
	h.log.Info().Int("problems", len(problems)).Int("support_modules", len(started)).Msg("habitat started")
	return nil
}

// Reset stops active runs, drops every persisted record and starts again.
func (h *Habitat) Reset(ctx context.Context) error {
	h.Stop()
	if resetter, ok := h.store.(storage.Resetter); ok {
		if err := h.store.Init(ctx); err != nil {
			return err
		}
		if err := resetter.Reset(ctx); err != nil {
			return err
		}
	}
	return h.Init(ctx)
}

// Stop asks active runs to stop and shuts the support modules down. The store
// stays open; callers close it.
func (h *Habitat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return
	}
	for _, control := range h.runs {
		select {
		case control <- evo.CommandStop:
		default:
		}
	}
	stopSupportModules(context.Background(), h.supportModules)

	h.started = false
	h.supportModules = nil
	h.problems = make(map[string]fitness.Provider)
	h.runs = make(map[string]chan evo.MonitorCommand)
	h.log.Info().Msg("habitat stopped")
}

func (h *Habitat) Started() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

func (h *Habitat) Store() storage.Store {
	return h.store
}

func (h *Habitat) RegisterProblem(p fitness.Provider) error {
	name, err := problemName(p)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return ErrNotStarted
	}
	h.problems[name] = p
	return nil
}

func (h *Habitat) GetProblem(name string) (fitness.Provider, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	p, ok := h.problems[name]
	return p, ok
}

func (h *Habitat) RegisteredProblems() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.problems))
	for name := range h.problems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *Habitat) ActiveSupportModules() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.supportModules))
	for _, module := range h.supportModules {
		names = append(names, module.Name())
	}
	sort.Strings(names)
	return names
}

func (h *Habitat) RunEvolution(ctx context.Context, cfg EvolutionConfig) (EvolutionResult, error) {
	if cfg.Provider != nil {
		name, err := problemName(cfg.Provider)
		if err != nil {
			return EvolutionResult{}, err
		}
		cfg.Problem = name
	}
	if cfg.Problem == "" {
		return EvolutionResult{}, fmt.Errorf("problem name is required")
	}
	if cfg.RunID == "" {
		return EvolutionResult{}, fmt.Errorf("run id is required")
	}
	if cfg.EliteCount <= 0 {
		cfg.EliteCount = 1
	}
	if cfg.TopCount <= 0 {
		cfg.TopCount = defaultTopCount
	}

	h.mu.RLock()
	provider, ok := h.problems[cfg.Problem]
	started := h.started
	h.mu.RUnlock()
	if cfg.Provider != nil {
		provider, ok = cfg.Provider, true
	}
	if !started {
		return EvolutionResult{}, ErrNotStarted
	}
	if !ok {
		return EvolutionResult{}, fmt.Errorf("%w: %s", ErrProblemNotFound, cfg.Problem)
	}

	control := cfg.Control
	if control == nil {
		control = make(chan evo.MonitorCommand, 16)
	}
	if err := h.registerRunControl(cfg.RunID, control); err != nil {
		return EvolutionResult{}, err
	}
	defer h.unregisterRunControl(cfg.RunID)

	log := h.log.With().Str("run_id", cfg.RunID).Logger()
	monitor, err := evo.NewMonitor(evo.MonitorConfig{
		Provider:          provider,
		Mutation:          cfg.Mutation,
		MutationPolicy:    cfg.MutationPolicy,
		MutationCount:     cfg.MutationCount,
		Crossover:         cfg.Crossover,
		CrossoverRate:     cfg.CrossoverRate,
		Selector:          cfg.Selector,
		Postprocessor:     cfg.Postprocessor,
		PopulationSize:    cfg.PopulationSize,
		EliteCount:        cfg.EliteCount,
		Generations:       cfg.Generations,
		FitnessGoal:       cfg.FitnessGoal,
		EvaluationsLimit:  cfg.EvaluationsLimit,
		Workers:           cfg.Workers,
		Seed:              cfg.Seed,
		Cache:             cfg.Cache,
		CacheEntries:      cfg.CacheEntries,
		Tuner:             cfg.Tuner,
		TuneAttempts:      cfg.TuneAttempts,
		TuneAttemptPolicy: cfg.TuneAttemptPolicy,
		Niching:           cfg.Niching,
		Control:           control,
		Metrics:           cfg.Metrics,
		Logger:            log,
		IDPrefix:          cfg.RunID,
	})
	if err != nil {
		return EvolutionResult{}, err
	}

	initial := cfg.Initial
	if len(initial) == 0 {
		initial, err = evo.SeedPopulation(provider, cfg.PopulationSize, cfg.RunID)
		if err != nil {
			return EvolutionResult{}, err
		}
	}

	result, err := monitor.Run(ctx, initial)
	if err != nil {
		return EvolutionResult{}, err
	}

	topFinal := topIndividuals(result.FinalPopulation, cfg.TopCount)
	if err := h.persistRun(ctx, cfg.RunID, provider, result, topFinal); err != nil {
		return EvolutionResult{}, fmt.Errorf("persist run %s: %w", cfg.RunID, err)
	}
	log.Info().
		Str("stop_reason", string(result.StopReason)).
		Float64("best", result.Best.Fitness).
		Msg("run persisted")

	return EvolutionResult{
		RunID:                 cfg.RunID,
		Problem:               cfg.Problem,
		Objective:             result.Objective,
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.GenerationDiagnostics,
		Best:                  result.Best,
		TopFinal:              topFinal,
		Lineage:               result.Lineage,
		StopReason:            result.StopReason,
		Evaluations:           result.Evaluations,
		CacheHits:             result.CacheHits,
	}, nil
}

func (h *Habitat) persistRun(ctx context.Context, runID string, provider fitness.Provider, result evo.RunResult, top []evo.ScoredIndividual) error {
	ids := make([]string, 0, len(result.FinalPopulation))
	for _, scored := range result.FinalPopulation {
		individual := scored.Individual.Clone()
		individual.VersionedRecord = currentVersion()
		if err := h.store.SaveIndividual(ctx, individual); err != nil {
			return err
		}
		ids = append(ids, individual.ID)
	}
	if err := h.store.SavePopulation(ctx, model.Population{
		VersionedRecord: currentVersion(),
		ID:              runID,
		IndividualIDs:   ids,
		Generation:      len(result.BestByGeneration),
	}); err != nil {
		return err
	}
	if err := h.store.SaveFitnessHistory(ctx, runID, result.BestByGeneration); err != nil {
		return err
	}
	if err := h.store.SaveGenerationDiagnostics(ctx, runID, result.GenerationDiagnostics); err != nil {
		return err
	}
	if err := h.store.SaveLineage(ctx, runID, result.Lineage); err != nil {
		return err
	}
	if err := h.store.SaveTopIndividuals(ctx, runID, toTopRecords(top)); err != nil {
		return err
	}
	if len(result.BestByGeneration) == 0 {
		return nil
	}
	return h.updateProblemSummary(ctx, provider, result)
}

// updateProblemSummary keeps the best fitness seen across runs in the
// provider's direction.
func (h *Habitat) updateProblemSummary(ctx context.Context, provider fitness.Provider, result evo.RunResult) error {
	h.summaryMu.Lock()
	defer h.summaryMu.Unlock()

	name := fitness.NameOf(provider)
	summary, ok, err := h.store.GetProblemSummary(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		summary = model.ProblemSummary{
			VersionedRecord: currentVersion(),
			Name:            name,
			Description:     fitness.DescriptionOf(provider),
			Objective:       string(result.Objective),
			Dimensions:      len(provider.GenomeRange()),
			BestFitness:     result.Best.Fitness,
		}
	} else if result.Objective.Better(result.Best.Fitness, summary.BestFitness) {
		summary.BestFitness = result.Best.Fitness
	}
	summary.Runs++
	return h.store.SaveProblemSummary(ctx, summary)
}

func topIndividuals(ranked []evo.ScoredIndividual, n int) []evo.ScoredIndividual {
	if len(ranked) < n {
		n = len(ranked)
	}
	out := make([]evo.ScoredIndividual, n)
	for i := 0; i < n; i++ {
		out[i] = ranked[i]
		out[i].Individual = ranked[i].Individual.Clone()
	}
	return out
}

func toTopRecords(top []evo.ScoredIndividual) []model.TopIndividualRecord {
	out := make([]model.TopIndividualRecord, 0, len(top))
	for i, item := range top {
		individual := item.Individual.Clone()
		individual.VersionedRecord = currentVersion()
		out = append(out, model.TopIndividualRecord{
			Rank:       i + 1,
			Fitness:    item.Fitness,
			Individual: individual,
		})
	}
	return out
}

func currentVersion() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: storage.CurrentSchemaVersion,
		CodecVersion:  storage.CurrentCodecVersion,
	}
}

func (h *Habitat) PauseRun(runID string) error {
	return h.sendRunCommand(runID, evo.CommandPause)
}

func (h *Habitat) ContinueRun(runID string) error {
	return h.sendRunCommand(runID, evo.CommandContinue)
}

func (h *Habitat) StopRun(runID string) error {
	return h.sendRunCommand(runID, evo.CommandStop)
}

func (h *Habitat) ActiveRuns() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.runs))
	for id := range h.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Habitat) registerRunControl(runID string, control chan evo.MonitorCommand) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return ErrNotStarted
	}
	if _, exists := h.runs[runID]; exists {
		return fmt.Errorf("%w: %s", ErrRunActive, runID)
	}
	h.runs[runID] = control
	return nil
}

func (h *Habitat) unregisterRunControl(runID string) {
	h.mu.Lock()
	delete(h.runs, runID)
	h.mu.Unlock()
}

func (h *Habitat) sendRunCommand(runID string, cmd evo.MonitorCommand) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	h.mu.RLock()
	control, ok := h.runs[runID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotActive, runID)
	}
	select {
	case control <- cmd:
		return nil
	default:
		return fmt.Errorf("run control channel is full: %s", runID)
	}
}

func problemName(p fitness.Provider) (string, error) {
	if p == nil {
		return "", fmt.Errorf("problem is nil")
	}
	name := fitness.NameOf(p)
	if name == "" {
		return "", fmt.Errorf("problem name is required")
	}
	return name, nil
}

func stopSupportModules(ctx context.Context, modules []SupportModule) {
	for i := len(modules) - 1; i >= 0; i-- {
		_ = modules[i].Stop(ctx)
	}
}
