package evo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"natsel/internal/fitness"
	"natsel/internal/model"
	"natsel/internal/tuning"
)

// ErrGenomeShape reports a genome whose length differs from the range of the
// provider that scores it. Variable-length genomes are not supported.
var ErrGenomeShape = errors.New("genome length does not match genome range")

type RunResult struct {
	Problem   string            `json:"problem"`
	Objective fitness.Objective `json:"objective"`
	// BestByGeneration holds the best raw fitness of every evaluated generation.
	BestByGeneration      []float64                     `json:"best_by_generation"`
	GenerationDiagnostics []model.GenerationDiagnostics `json:"generation_diagnostics"`
	// FinalPopulation is the last evaluated generation ranked by score.
	FinalPopulation []ScoredIndividual    `json:"final_population"`
	Lineage         []model.LineageRecord `json:"lineage"`
	// Best is the best individual by raw fitness across the whole run.
	Best        ScoredIndividual `json:"best"`
	StopReason  StopReason       `json:"stop_reason"`
	Evaluations int              `json:"evaluations"`
	CacheHits   int              `json:"cache_hits"`
}

type MonitorConfig struct {
	Provider       fitness.Provider
	Mutation       Operator
	MutationPolicy []WeightedMutation
	MutationCount  MutationCountPolicy
	Crossover      Crossover
	CrossoverRate  float64
	Selector       Selector
	Postprocessor  FitnessPostprocessor
	PopulationSize int
	EliteCount     int
	Generations    int
	// FitnessGoal stops the run once the best raw fitness reaches it in the
	// provider's direction. Nil disables the goal.
	FitnessGoal *float64
	// EvaluationsLimit stops the run after the generation in which the total
	// number of provider calls reaches it. Zero disables the limit.
	EvaluationsLimit  int
	Workers           int
	Seed              int64
	Cache             bool
	CacheEntries      int
	Tuner             tuning.Tuner
	TuneAttempts      int
	TuneAttemptPolicy tuning.AttemptPolicy
	Niching           *AdaptiveNiching
	Control           <-chan MonitorCommand
	Metrics           *Metrics
	// Logger defaults to the zero zerolog.Logger, which discards events.
	Logger   zerolog.Logger
	IDPrefix string
}

type Monitor struct {
	cfg       MonitorConfig
	rng       *rand.Rand
	bounds    model.GenomeRange
	objective fitness.Objective
	problem   string
	cache     *EvaluationCache
	niching   *AdaptiveNiching
	control   <-chan MonitorCommand
	log       zerolog.Logger

	// evalMu serializes Fitness calls for providers that are not
	// concurrency safe.
	evalMu sync.Mutex
	serial bool
	evals  atomic.Int64
	hits   atomic.Int64
}

type generationCounters struct {
	evaluations     atomic.Int64
	cacheHits       atomic.Int64
	tuneInvocations atomic.Int64
	tuneEvaluations atomic.Int64
	tuneAccepted    atomic.Int64
	tuneGoals       atomic.Int64
}

func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("fitness provider is required")
	}
	if cfg.Mutation == nil && len(cfg.MutationPolicy) == 0 {
		return nil, fmt.Errorf("mutation operator or policy is required")
	}
	positivePolicyWeight := false
	for i, item := range cfg.MutationPolicy {
		if item.Operator == nil {
			return nil, fmt.Errorf("mutation policy operator is required at index %d", i)
		}
		if item.Weight < 0 {
			return nil, fmt.Errorf("mutation policy weight must be >= 0 at index %d", i)
		}
		if item.Weight > 0 {
			positivePolicyWeight = true
		}
	}
	if len(cfg.MutationPolicy) > 0 && !positivePolicyWeight {
		return nil, fmt.Errorf("mutation policy requires at least one positive weight")
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.EliteCount <= 0 || cfg.EliteCount > cfg.PopulationSize {
		return nil, fmt.Errorf("elite count must be in [1, population size]")
	}
	if cfg.Generations <= 0 {
		return nil, fmt.Errorf("generations must be > 0")
	}
	if cfg.CrossoverRate < 0 || cfg.CrossoverRate > 1 {
		return nil, fmt.Errorf("crossover rate must be in [0, 1]")
	}
	if cfg.EvaluationsLimit < 0 {
		return nil, fmt.Errorf("evaluations limit must be >= 0")
	}
	if cfg.FitnessGoal != nil && math.IsNaN(*cfg.FitnessGoal) {
		return nil, fmt.Errorf("fitness goal must be a number")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Tuner != nil && cfg.TuneAttempts < 0 {
		return nil, fmt.Errorf("tune attempts must be >= 0")
	}
	if cfg.Tuner != nil && cfg.TuneAttemptPolicy == nil {
		cfg.TuneAttemptPolicy = tuning.FixedAttemptPolicy{}
	}
	if cfg.Selector == nil {
		cfg.Selector = EliteSelector{}
	}
	if cfg.Postprocessor == nil {
		cfg.Postprocessor = NoopFitnessPostprocessor{}
	}
	if cfg.MutationCount == nil {
		cfg.MutationCount = ConstMutationCount{Count: 1}
	}
	if cfg.Niching == nil {
		cfg.Niching = NewAdaptiveNiching(cfg.PopulationSize)
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "ind"
	}

	if err := fitness.Check(cfg.Provider); err != nil {
		return nil, fmt.Errorf("fitness provider check: %w", err)
	}

	m := &Monitor{
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		bounds:    cfg.Provider.GenomeRange(),
		objective: fitness.ObjectiveOf(cfg.Provider),
		problem:   fitness.NameOf(cfg.Provider),
		niching:   cfg.Niching,
		control:   cfg.Control,
		serial:    !fitness.IsConcurrencySafe(cfg.Provider),
	}
	m.log = cfg.Logger.With().Str("problem", m.problem).Logger()
	if cfg.Cache && !fitness.IsStochastic(cfg.Provider) {
		m.cache = NewEvaluationCache(cfg.CacheEntries)
	}
	return m, nil
}

func (m *Monitor) reset() {
	m.evals.Store(0)
	m.hits.Store(0)
	niching := *m.cfg.Niching
	m.niching = &niching
	if m.cache != nil {
		m.cache = NewEvaluationCache(m.cfg.CacheEntries)
	}
}

func (m *Monitor) Bounds() model.GenomeRange {
	return m.bounds.Clone()
}

func (m *Monitor) Objective() fitness.Objective {
	return m.objective
}

// SeedPopulation draws size initial individuals from the provider.
func SeedPopulation(p fitness.Provider, size int, prefix string) (individuals []model.Individual, err error) {
	if p == nil {
		return nil, fmt.Errorf("fitness provider is required")
	}
	if size <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if prefix == "" {
		prefix = "ind"
	}
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("initialize genome: %w", e)
				return
			}
			err = fmt.Errorf("initialize genome: %v", r)
		}
	}()

	bounds := p.GenomeRange()
	individuals = make([]model.Individual, 0, size)
	for i := 0; i < size; i++ {
		genes := p.InitializeGenome()
		if len(genes) != len(bounds) {
			return nil, fmt.Errorf("%w: got=%d want=%d", ErrGenomeShape, len(genes), len(bounds))
		}
		individuals = append(individuals, model.Individual{
			VersionedRecord: model.VersionedRecord{SchemaVersion: SupportedSchemaVersion, CodecVersion: SupportedCodecVersion},
			ID:              fmt.Sprintf("%s-g0-i%d", prefix, i),
			Genes:           fitness.Clamp(bounds, genes),
			Generation:      0,
		})
	}
	return individuals, nil
}

// Run evolves initial until a stop condition holds. Every call starts from
// zero evaluations, an empty cache and the configured niching threshold. A
// Monitor runs one search at a time.
func (m *Monitor) Run(ctx context.Context, initial []model.Individual) (RunResult, error) {
	if len(initial) != m.cfg.PopulationSize {
		return RunResult{}, fmt.Errorf("initial population mismatch: got=%d want=%d", len(initial), m.cfg.PopulationSize)
	}
	m.reset()

	population := make([]model.Individual, len(initial))
	for i, ind := range initial {
		if len(ind.Genes) != len(m.bounds) {
			return RunResult{}, fmt.Errorf("individual %s: %w: got=%d want=%d", ind.ID, ErrGenomeShape, len(ind.Genes), len(m.bounds))
		}
		population[i] = ind.Clone()
		population[i].Genes = fitness.Clamp(m.bounds, ind.Genes)
	}

	result := RunResult{
		Problem:               m.problem,
		Objective:             m.objective,
		BestByGeneration:      make([]float64, 0, m.cfg.Generations),
		GenerationDiagnostics: make([]model.GenerationDiagnostics, 0, m.cfg.Generations),
		Lineage:               make([]model.LineageRecord, 0, len(initial)*(m.cfg.Generations+1)),
		StopReason:            StopGenerations,
	}
	for _, ind := range population {
		result.Lineage = append(result.Lineage, model.LineageRecord{
			VersionedRecord: model.VersionedRecord{SchemaVersion: SupportedSchemaVersion, CodecVersion: SupportedCodecVersion},
			IndividualID:    ind.ID,
			Generation:      ind.Generation,
			Operation:       "seed",
			Fingerprint:     Fingerprint(ind.Genes),
		})
	}

	m.log.Info().
		Int("population", m.cfg.PopulationSize).
		Int("generations", m.cfg.Generations).
		Str("objective", string(m.objective)).
		Int("workers", m.cfg.Workers).
		Bool("cache", m.cache != nil).
		Msg("evolution started")

	haveBest := false
	for gen := 0; gen < m.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}
		stop, err := m.handleCommands(ctx)
		if err != nil {
			return RunResult{}, err
		}
		if stop {
			result.StopReason = StopCommand
			break
		}

		scored, counters, err := m.evaluatePopulation(ctx, population, gen)
		if err != nil {
			return RunResult{}, err
		}
		scored = m.cfg.Postprocessor.Process(scored, m.bounds)
		sort.SliceStable(scored, func(i, j int) bool {
			return scored[i].Score > scored[j].Score
		})

		genBest := scored[0]
		for _, item := range scored[1:] {
			if m.objective.Better(item.Fitness, genBest.Fitness) {
				genBest = item
			}
		}
		if !haveBest || m.objective.Better(genBest.Fitness, result.Best.Fitness) {
			result.Best = genBest
			result.Best.Individual = genBest.Individual.Clone()
			haveBest = true
		}
		result.BestByGeneration = append(result.BestByGeneration, genBest.Fitness)

		rankedIndividuals := make([]model.Individual, len(scored))
		for i := range scored {
			rankedIndividuals[i] = scored[i].Individual
		}
		nicheByID, nicheStats := m.niching.Assign(rankedIndividuals, m.bounds)
		diag := m.summarizeGeneration(scored, gen+1, genBest.Fitness, nicheStats, counters)
		result.GenerationDiagnostics = append(result.GenerationDiagnostics, diag)
		result.FinalPopulation = scored
		m.cfg.Metrics.observeGeneration(m.problem, genBest.Fitness)

		m.log.Debug().
			Int("generation", diag.Generation).
			Float64("best", diag.BestFitness).
			Float64("mean", diag.MeanFitness).
			Float64("diversity", diag.GeneDiversity).
			Int("niches", diag.NicheCount).
			Int("evaluations", diag.Evaluations).
			Int("cache_hits", diag.CacheHits).
			Msg("generation evaluated")

		if m.cfg.FitnessGoal != nil && m.objective.Reached(result.Best.Fitness, *m.cfg.FitnessGoal) {
			result.StopReason = StopFitnessGoal
			break
		}
		if m.cfg.EvaluationsLimit > 0 && int(m.evals.Load()) >= m.cfg.EvaluationsLimit {
			result.StopReason = StopEvaluationsLimit
			break
		}
		if gen == m.cfg.Generations-1 {
			break
		}

		var generationLineage []model.LineageRecord
		population, generationLineage, err = m.nextGeneration(ctx, scored, nicheByID, gen)
		if err != nil {
			return RunResult{}, err
		}
		result.Lineage = append(result.Lineage, generationLineage...)
	}

	result.Evaluations = int(m.evals.Load())
	result.CacheHits = int(m.hits.Load())
	m.log.Info().
		Str("stop_reason", string(result.StopReason)).
		Int("generations", len(result.BestByGeneration)).
		Float64("best", result.Best.Fitness).
		Str("best_id", result.Best.Individual.ID).
		Int("evaluations", result.Evaluations).
		Msg("evolution finished")
	return result, nil
}

// handleCommands drains pending control commands before a generation is
// evaluated. While paused it blocks until a continue or stop arrives or ctx
// is done.
func (m *Monitor) handleCommands(ctx context.Context) (bool, error) {
	paused := false
	for m.control != nil {
		var (
			cmd MonitorCommand
			ok  bool
		)
		if paused {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case cmd, ok = <-m.control:
			}
		} else {
			select {
			case cmd, ok = <-m.control:
			default:
				return false, nil
			}
		}
		if !ok {
			m.control = nil
			return false, nil
		}
		switch cmd {
		case CommandPause:
			if !paused {
				m.log.Info().Msg("evolution paused")
			}
			paused = true
		case CommandContinue:
			if paused {
				m.log.Info().Msg("evolution continued")
			}
			paused = false
		case CommandStop:
			m.log.Info().Msg("evolution stop requested")
			return true, nil
		default:
			m.log.Warn().Str("command", string(cmd)).Msg("ignoring unknown monitor command")
		}
	}
	return false, nil
}

func (m *Monitor) evaluatePopulation(ctx context.Context, population []model.Individual, generation int) ([]ScoredIndividual, *generationCounters, error) {
	counters := &generationCounters{}
	scored := make([]ScoredIndividual, len(population))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	for i := range population {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			candidate := population[i].Clone()
			if m.cfg.Tuner != nil {
				attempts := m.cfg.TuneAttemptPolicy.Attempts(m.cfg.TuneAttempts, generation, m.cfg.Generations, candidate.Genes)
				if attempts > 0 {
					tuned, report, err := m.cfg.Tuner.Tune(gctx, candidate.Genes, m.bounds, attempts, func(ctx context.Context, genes model.Genome) (float64, error) {
						f, err := m.evaluate(ctx, genes, counters)
						if err != nil {
							return 0, err
						}
						return m.objective.Score(f), nil
					})
					if err != nil {
						return fmt.Errorf("tune %s: %w", candidate.ID, err)
					}
					counters.tuneInvocations.Add(1)
					counters.tuneEvaluations.Add(int64(report.CandidateEvaluations))
					counters.tuneAccepted.Add(int64(report.AcceptedCandidates))
					if report.GoalReached {
						counters.tuneGoals.Add(1)
					}
					candidate.Genes = fitness.Clamp(m.bounds, tuned)
				}
			}

			f, err := m.evaluate(gctx, candidate.Genes, counters)
			if err != nil {
				return fmt.Errorf("evaluate %s: %w", candidate.ID, err)
			}
			scored[i] = ScoredIndividual{Individual: candidate, Fitness: f, Score: m.objective.Score(f)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return scored, counters, nil
}

func (m *Monitor) evaluate(ctx context.Context, genes model.Genome, counters *generationCounters) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(genes) != len(m.bounds) {
		return 0, fmt.Errorf("%w: got=%d want=%d", ErrGenomeShape, len(genes), len(m.bounds))
	}
	if m.cache != nil {
		if f, ok := m.cache.Lookup(genes); ok {
			counters.cacheHits.Add(1)
			m.hits.Add(1)
			m.cfg.Metrics.observeCacheHit(m.problem)
			return f, nil
		}
	}

	start := time.Now()
	f, err := m.callFitness(genes)
	if err != nil {
		return 0, err
	}
	counters.evaluations.Add(1)
	m.evals.Add(1)
	m.cfg.Metrics.observeEvaluation(m.problem, time.Since(start))
	if math.IsNaN(f) {
		return 0, fmt.Errorf("%s: %w", m.problem, fitness.ErrInvalidFitness)
	}
	if m.cache != nil {
		m.cache.Store(genes, f)
	}
	return f, nil
}

func (m *Monitor) callFitness(genes model.Genome) (f float64, err error) {
	if m.serial {
		m.evalMu.Lock()
		defer m.evalMu.Unlock()
	}
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("%s: fitness: %w", m.problem, e)
				return
			}
			err = fmt.Errorf("%s: fitness panicked: %v", m.problem, r)
		}
	}()
	return m.cfg.Provider.Fitness(genes.Clone())
}

func (m *Monitor) summarizeGeneration(scored []ScoredIndividual, generation int, best float64, nicheStats NicheStats, counters *generationCounters) model.GenerationDiagnostics {
	diag := model.GenerationDiagnostics{
		Generation:         generation,
		BestFitness:        best,
		NicheCount:         nicheStats.NicheCount,
		NicheThreshold:     nicheStats.Threshold,
		LargestNicheSize:   nicheStats.LargestNicheSize,
		Evaluations:        int(counters.evaluations.Load()),
		CacheHits:          int(counters.cacheHits.Load()),
		TuningInvocations:  int(counters.tuneInvocations.Load()),
		TuningEvaluations:  int(counters.tuneEvaluations.Load()),
		TuningAccepted:     int(counters.tuneAccepted.Load()),
		TuningGoalsReached: int(counters.tuneGoals.Load()),
	}
	if len(scored) == 0 {
		return diag
	}

	total := 0.0
	diag.MinFitness = scored[0].Fitness
	diag.MaxFitness = scored[0].Fitness
	fingerprints := make(map[uint64]struct{}, len(scored))
	for _, item := range scored {
		total += item.Fitness
		diag.MinFitness = math.Min(diag.MinFitness, item.Fitness)
		diag.MaxFitness = math.Max(diag.MaxFitness, item.Fitness)
		fingerprints[GenomeHash(item.Individual.Genes)] = struct{}{}
	}
	diag.MeanFitness = total / float64(len(scored))
	variance := 0.0
	for _, item := range scored {
		d := item.Fitness - diag.MeanFitness
		variance += d * d
	}
	diag.StdDevFitness = math.Sqrt(variance / float64(len(scored)))
	diag.DistinctGenomes = len(fingerprints)
	diag.GeneDiversity = geneDiversity(scored, m.bounds)
	return diag
}

// geneDiversity is the mean over positions of the population standard
// deviation of that gene divided by its bound span.
func geneDiversity(scored []ScoredIndividual, bounds model.GenomeRange) float64 {
	if len(scored) == 0 || len(bounds) == 0 {
		return 0
	}
	total := 0.0
	counted := 0
	for i, b := range bounds {
		span := b.Span()
		if span <= 0 {
			continue
		}
		mean := 0.0
		for _, item := range scored {
			mean += item.Individual.Genes[i]
		}
		mean /= float64(len(scored))
		variance := 0.0
		for _, item := range scored {
			d := item.Individual.Genes[i] - mean
			variance += d * d
		}
		total += math.Sqrt(variance/float64(len(scored))) / span
		counted++
	}
	if counted == 0 {
		return 0
	}
	return total / float64(counted)
}

func (m *Monitor) nextGeneration(ctx context.Context, ranked []ScoredIndividual, nicheByID map[string]string, generation int) ([]model.Individual, []model.LineageRecord, error) {
	next := make([]model.Individual, 0, m.cfg.PopulationSize)
	lineage := make([]model.LineageRecord, 0, m.cfg.PopulationSize)
	nextGeneration := generation + 1

	for i := 0; i < m.cfg.EliteCount; i++ {
		elite := ranked[i].Individual.Clone()
		elite.ID = fmt.Sprintf("%s-g%d-i%d", m.cfg.IDPrefix, nextGeneration, i)
		elite.ParentIDs = []string{ranked[i].Individual.ID}
		elite.Generation = nextGeneration
		next = append(next, elite)
		lineage = append(lineage, model.LineageRecord{
			VersionedRecord: elite.VersionedRecord,
			IndividualID:    elite.ID,
			ParentIDs:       elite.ParentIDs,
			Generation:      nextGeneration,
			Operation:       "elite_clone",
			Fingerprint:     Fingerprint(elite.Genes),
		})
	}

	for len(next) < m.cfg.PopulationSize {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		child, record, err := m.breed(ctx, ranked, nicheByID, nextGeneration, len(next))
		if err != nil {
			return nil, nil, err
		}
		next = append(next, child)
		lineage = append(lineage, record)
	}
	return next, lineage, nil
}

func (m *Monitor) pickParent(ranked []ScoredIndividual, nicheByID map[string]string) (model.Individual, error) {
	eliteCount := m.cfg.EliteCount
	if eliteCount > len(ranked) {
		eliteCount = len(ranked)
	}
	if nicheAware, ok := m.cfg.Selector.(NicheAwareSelector); ok {
		return nicheAware.PickParentWithNiches(m.rng, ranked, eliteCount, nicheByID)
	}
	return m.cfg.Selector.PickParent(m.rng, ranked, eliteCount)
}

func (m *Monitor) breed(ctx context.Context, ranked []ScoredIndividual, nicheByID map[string]string, generation, index int) (model.Individual, model.LineageRecord, error) {
	parent, err := m.pickParent(ranked, nicheByID)
	if err != nil {
		return model.Individual{}, model.LineageRecord{}, err
	}
	parentIDs := []string{parent.ID}
	genes := parent.Genes.Clone()
	operationNames := make([]string, 0, 4)

	if m.cfg.Crossover != nil && m.cfg.CrossoverRate > 0 && m.rng.Float64() < m.cfg.CrossoverRate {
		mate, err := m.pickParent(ranked, nicheByID)
		if err != nil {
			return model.Individual{}, model.LineageRecord{}, err
		}
		genes, err = m.cfg.Crossover.Cross(m.rng, parent.Genes, mate.Genes, m.bounds)
		if err != nil {
			return model.Individual{}, model.LineageRecord{}, fmt.Errorf("crossover %s: %w", m.cfg.Crossover.Name(), err)
		}
		parentIDs = append(parentIDs, mate.ID)
		operationNames = append(operationNames, "crossover:"+m.cfg.Crossover.Name())
	}

	mutationCount, err := m.cfg.MutationCount.MutationCount(genes, generation, m.rng)
	if err != nil {
		return model.Individual{}, model.LineageRecord{}, err
	}
	if mutationCount <= 0 {
		return model.Individual{}, model.LineageRecord{}, fmt.Errorf("invalid mutation count from policy: %d", mutationCount)
	}
	for step := 0; step < mutationCount; step++ {
		operator := m.chooseMutation()
		mutated, opErr := operator.Apply(ctx, genes, m.bounds)
		operationName := operator.Name()
		if opErr != nil && m.cfg.Mutation != nil && operator != m.cfg.Mutation {
			mutated, opErr = m.cfg.Mutation.Apply(ctx, genes, m.bounds)
			operationName = m.cfg.Mutation.Name() + "(fallback)"
		}
		if opErr != nil {
			if errors.Is(opErr, ErrNoGenes) {
				operationNames = append(operationNames, "noop(no_genes)")
				continue
			}
			return model.Individual{}, model.LineageRecord{}, opErr
		}
		genes = fitness.Clamp(m.bounds, mutated)
		operationNames = append(operationNames, operationName)
	}

	child := model.Individual{
		VersionedRecord: parent.VersionedRecord,
		ID:              fmt.Sprintf("%s-g%d-i%d", m.cfg.IDPrefix, generation, index),
		Genes:           genes,
		ParentIDs:       parentIDs,
		Generation:      generation,
	}
	return child, model.LineageRecord{
		VersionedRecord: child.VersionedRecord,
		IndividualID:    child.ID,
		ParentIDs:       append([]string(nil), parentIDs...),
		Generation:      generation,
		Operation:       strings.Join(operationNames, "+"),
		Fingerprint:     Fingerprint(genes),
	}, nil
}

func (m *Monitor) chooseMutation() Operator {
	if len(m.cfg.MutationPolicy) == 0 {
		return m.cfg.Mutation
	}

	total := 0.0
	for _, item := range m.cfg.MutationPolicy {
		total += item.Weight
	}
	if total <= 0 {
		return m.cfg.Mutation
	}
	pick := m.rng.Float64() * total
	acc := 0.0
	for _, item := range m.cfg.MutationPolicy {
		acc += item.Weight
		if pick <= acc {
			return item.Operator
		}
	}
	return m.cfg.MutationPolicy[len(m.cfg.MutationPolicy)-1].Operator
}
