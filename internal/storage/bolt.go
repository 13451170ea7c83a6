package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"natsel/internal/model"
)

var (
	bucketIndividuals = []byte("individuals")
	bucketPopulations = []byte("populations")
	bucketProblems    = []byte("problem_summaries")
	bucketHistory     = []byte("fitness_history")
	bucketDiagnostics = []byte("generation_diagnostics")
	bucketTop         = []byte("top_individuals")
	bucketLineage     = []byte("lineage")
)

var boltBuckets = [][]byte{
	bucketIndividuals,
	bucketPopulations,
	bucketProblems,
	bucketHistory,
	bucketDiagnostics,
	bucketTop,
	bucketLineage,
}

// BoltStore persists records in a single bbolt file, one bucket per record kind.
type BoltStore struct {
	path string

	mu sync.RWMutex
	db *bbolt.DB
}

func NewBoltStore(path string) *BoltStore {
	return &BoltStore{path: path}
}

func (s *BoltStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("bolt path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := bbolt.Open(s.path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range boltBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *BoltStore) Reset(_ context.Context) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.Update(func(tx *bbolt.Tx) error {
		for _, name := range boltBuckets {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) SaveIndividual(_ context.Context, individual model.Individual) error {
	payload, err := EncodeIndividual(individual)
	if err != nil {
		return err
	}
	return s.put(bucketIndividuals, individual.ID, payload)
}

func (s *BoltStore) GetIndividual(_ context.Context, id string) (model.Individual, bool, error) {
	payload, ok, err := s.get(bucketIndividuals, id)
	if err != nil || !ok {
		return model.Individual{}, false, err
	}
	individual, err := DecodeIndividual(payload)
	if err != nil {
		return model.Individual{}, false, fmt.Errorf("decode individual %s: %w", id, err)
	}
	return individual, true, nil
}

func (s *BoltStore) SavePopulation(_ context.Context, population model.Population) error {
	payload, err := EncodePopulation(population)
	if err != nil {
		return err
	}
	return s.put(bucketPopulations, population.ID, payload)
}

func (s *BoltStore) GetPopulation(_ context.Context, id string) (model.Population, bool, error) {
	payload, ok, err := s.get(bucketPopulations, id)
	if err != nil || !ok {
		return model.Population{}, false, err
	}
	population, err := DecodePopulation(payload)
	if err != nil {
		return model.Population{}, false, fmt.Errorf("decode population %s: %w", id, err)
	}
	return population, true, nil
}

func (s *BoltStore) SaveProblemSummary(_ context.Context, summary model.ProblemSummary) error {
	payload, err := EncodeProblemSummary(summary)
	if err != nil {
		return err
	}
	return s.put(bucketProblems, summary.Name, payload)
}

func (s *BoltStore) GetProblemSummary(_ context.Context, name string) (model.ProblemSummary, bool, error) {
	payload, ok, err := s.get(bucketProblems, name)
	if err != nil || !ok {
		return model.ProblemSummary{}, false, err
	}
	summary, err := DecodeProblemSummary(payload)
	if err != nil {
		return model.ProblemSummary{}, false, fmt.Errorf("decode problem summary %s: %w", name, err)
	}
	return summary, true, nil
}

func (s *BoltStore) SaveFitnessHistory(_ context.Context, runID string, history []float64) error {
	payload, err := EncodeFitnessHistory(history)
	if err != nil {
		return err
	}
	return s.put(bucketHistory, runID, payload)
}

func (s *BoltStore) GetFitnessHistory(_ context.Context, runID string) ([]float64, bool, error) {
	payload, ok, err := s.get(bucketHistory, runID)
	if err != nil || !ok {
		return nil, false, err
	}
	history, err := DecodeFitnessHistory(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode fitness history %s: %w", runID, err)
	}
	return history, true, nil
}

func (s *BoltStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	payload, err := EncodeGenerationDiagnostics(diagnostics)
	if err != nil {
		return err
	}
	return s.put(bucketDiagnostics, runID, payload)
}

func (s *BoltStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	payload, ok, err := s.get(bucketDiagnostics, runID)
	if err != nil || !ok {
		return nil, false, err
	}
	diagnostics, err := DecodeGenerationDiagnostics(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode generation diagnostics %s: %w", runID, err)
	}
	return diagnostics, true, nil
}

func (s *BoltStore) SaveTopIndividuals(_ context.Context, runID string, top []model.TopIndividualRecord) error {
	payload, err := EncodeTopIndividuals(top)
	if err != nil {
		return err
	}
	return s.put(bucketTop, runID, payload)
}

func (s *BoltStore) GetTopIndividuals(_ context.Context, runID string) ([]model.TopIndividualRecord, bool, error) {
	payload, ok, err := s.get(bucketTop, runID)
	if err != nil || !ok {
		return nil, false, err
	}
	top, err := DecodeTopIndividuals(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode top individuals %s: %w", runID, err)
	}
	return top, true, nil
}

func (s *BoltStore) SaveLineage(_ context.Context, runID string, lineage []model.LineageRecord) error {
	payload, err := EncodeLineage(lineage)
	if err != nil {
		return err
	}
	return s.put(bucketLineage, runID, payload)
}

func (s *BoltStore) GetLineage(_ context.Context, runID string) ([]model.LineageRecord, bool, error) {
	payload, ok, err := s.get(bucketLineage, runID)
	if err != nil || !ok {
		return nil, false, err
	}
	lineage, err := DecodeLineage(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode lineage %s: %w", runID, err)
	}
	return lineage, true, nil
}

func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *BoltStore) put(bucket []byte, key string, payload []byte) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}
		return b.Put([]byte(key), payload)
	})
}

// get copies the value out of the transaction; bbolt slices are only valid
// until it closes.
func (s *BoltStore) get(bucket []byte, key string) ([]byte, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}
	var payload []byte
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}
		if v := b.Get([]byte(key)); v != nil {
			payload = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return payload, payload != nil, nil
}

func (s *BoltStore) getDB() (*bbolt.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}
