package storage

import (
	"context"
	"errors"
	"sync"

	"natsel/internal/model"
)

var ErrNotInitialized = errors.New("store is not initialized")

// MemoryStore keeps every record in process memory. Records are copied on
// save and on load so callers never share slices with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	individuals map[string]model.Individual
	populations map[string]model.Population
	problems    map[string]model.ProblemSummary
	history     map[string][]float64
	diagnostics map[string][]model.GenerationDiagnostics
	top         map[string][]model.TopIndividualRecord
	lineage     map[string][]model.LineageRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.reset()
	s.initialized = true
	return nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	s.initialized = true
	return nil
}

func (s *MemoryStore) reset() {
	s.individuals = make(map[string]model.Individual)
	s.populations = make(map[string]model.Population)
	s.problems = make(map[string]model.ProblemSummary)
	s.history = make(map[string][]float64)
	s.diagnostics = make(map[string][]model.GenerationDiagnostics)
	s.top = make(map[string][]model.TopIndividualRecord)
	s.lineage = make(map[string][]model.LineageRecord)
}

func (s *MemoryStore) SaveIndividual(_ context.Context, individual model.Individual) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.individuals[individual.ID] = individual.Clone()
	return nil
}

func (s *MemoryStore) GetIndividual(_ context.Context, id string) (model.Individual, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return model.Individual{}, false, ErrNotInitialized
	}
	individual, ok := s.individuals[id]
	if !ok {
		return model.Individual{}, false, nil
	}
	return individual.Clone(), true, nil
}

func (s *MemoryStore) SavePopulation(_ context.Context, population model.Population) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	population.IndividualIDs = append([]string(nil), population.IndividualIDs...)
	s.populations[population.ID] = population
	return nil
}

func (s *MemoryStore) GetPopulation(_ context.Context, id string) (model.Population, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return model.Population{}, false, ErrNotInitialized
	}
	population, ok := s.populations[id]
	if !ok {
		return model.Population{}, false, nil
	}
	population.IndividualIDs = append([]string(nil), population.IndividualIDs...)
	return population, true, nil
}

func (s *MemoryStore) SaveProblemSummary(_ context.Context, summary model.ProblemSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.problems[summary.Name] = summary
	return nil
}

func (s *MemoryStore) GetProblemSummary(_ context.Context, name string) (model.ProblemSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return model.ProblemSummary{}, false, ErrNotInitialized
	}
	summary, ok := s.problems[name]
	return summary, ok, nil
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.history[runID] = append([]float64(nil), history...)
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, false, ErrNotInitialized
	}
	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), history...), true, nil
}

func (s *MemoryStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.diagnostics[runID] = append([]model.GenerationDiagnostics(nil), diagnostics...)
	return nil
}

func (s *MemoryStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, false, ErrNotInitialized
	}
	diagnostics, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.GenerationDiagnostics(nil), diagnostics...), true, nil
}

func (s *MemoryStore) SaveTopIndividuals(_ context.Context, runID string, top []model.TopIndividualRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.top[runID] = cloneTop(top)
	return nil
}

func (s *MemoryStore) GetTopIndividuals(_ context.Context, runID string) ([]model.TopIndividualRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, false, ErrNotInitialized
	}
	top, ok := s.top[runID]
	if !ok {
		return nil, false, nil
	}
	return cloneTop(top), true, nil
}

func (s *MemoryStore) SaveLineage(_ context.Context, runID string, lineage []model.LineageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.lineage[runID] = cloneLineage(lineage)
	return nil
}

func (s *MemoryStore) GetLineage(_ context.Context, runID string) ([]model.LineageRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, false, ErrNotInitialized
	}
	lineage, ok := s.lineage[runID]
	if !ok {
		return nil, false, nil
	}
	return cloneLineage(lineage), true, nil
}

func cloneTop(top []model.TopIndividualRecord) []model.TopIndividualRecord {
	if top == nil {
		return nil
	}
	out := make([]model.TopIndividualRecord, len(top))
	for i, record := range top {
		out[i] = record
		out[i].Individual = record.Individual.Clone()
	}
	return out
}

func cloneLineage(lineage []model.LineageRecord) []model.LineageRecord {
	if lineage == nil {
		return nil
	}
	out := make([]model.LineageRecord, len(lineage))
	for i, record := range lineage {
		out[i] = record
		out[i].ParentIDs = append([]string(nil), record.ParentIDs...)
	}
	return out
}
