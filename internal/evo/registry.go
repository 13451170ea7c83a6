package evo

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"natsel/internal/model"
)

const (
	SupportedSchemaVersion = 1
	SupportedCodecVersion  = 1
)

var (
	ErrOperatorExists       = errors.New("operator already registered")
	ErrOperatorNotFound     = errors.New("operator not found")
	ErrOperatorIncompatible = errors.New("operator incompatible with genome range")
	ErrVersionMismatch      = errors.New("operator version mismatch")
)

// OperatorFactory builds an operator bound to rng.
type OperatorFactory func(rng *rand.Rand) Operator

type CompatibilityFn func(bounds model.GenomeRange) error

type OperatorSpec struct {
	Name          string
	Factory       OperatorFactory
	SchemaVersion int
	CodecVersion  int
	Compatible    CompatibilityFn
}

type registeredOperator struct {
	factory       OperatorFactory
	schemaVersion int
	codecVersion  int
	compatible    CompatibilityFn
}

var operatorRegistry = struct {
	mu sync.RWMutex
	m  map[string]registeredOperator
}{
	m: builtinOperators(),
}

func builtinOperators() map[string]registeredOperator {
	entry := func(f OperatorFactory) registeredOperator {
		return registeredOperator{factory: f, schemaVersion: SupportedSchemaVersion, codecVersion: SupportedCodecVersion}
	}
	return map[string]registeredOperator{
		"gaussian":      entry(func(rng *rand.Rand) Operator { return &GaussianMutation{Rand: rng, Sigma: 0.1} }),
		"uniform_reset": entry(func(rng *rand.Rand) Operator { return &UniformResetMutation{Rand: rng} }),
		"creep":         entry(func(rng *rand.Rand) Operator { return &CreepMutation{Rand: rng, Step: 0.05} }),
		"boundary":      entry(func(rng *rand.Rand) Operator { return &BoundaryMutation{Rand: rng} }),
	}
}

// RegisterOperator registers an operator factory with default schema and codec versions.
func RegisterOperator(name string, factory OperatorFactory) error {
	return RegisterOperatorWithSpec(OperatorSpec{
		Name:          name,
		Factory:       factory,
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
	})
}

// RegisterOperatorWithSpec registers an operator factory with explicit versioning and compatibility metadata.
func RegisterOperatorWithSpec(spec OperatorSpec) error {
	if spec.Name == "" {
		return errors.New("operator name is required")
	}
	if spec.Factory == nil {
		return errors.New("operator factory is required")
	}
	if spec.SchemaVersion != SupportedSchemaVersion || spec.CodecVersion != SupportedCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, spec.SchemaVersion, spec.CodecVersion)
	}

	operatorRegistry.mu.Lock()
	defer operatorRegistry.mu.Unlock()

	if _, exists := operatorRegistry.m[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrOperatorExists, spec.Name)
	}
	operatorRegistry.m[spec.Name] = registeredOperator{
		factory:       spec.Factory,
		schemaVersion: spec.SchemaVersion,
		codecVersion:  spec.CodecVersion,
		compatible:    spec.Compatible,
	}
	return nil
}

// ResolveOperator builds a registered operator only if record versions and
// range compatibility checks pass.
func ResolveOperator(name string, rng *rand.Rand, record model.VersionedRecord, bounds model.GenomeRange) (Operator, error) {
	operatorRegistry.mu.RLock()
	entry, ok := operatorRegistry.m[name]
	operatorRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperatorNotFound, name)
	}
	if record.SchemaVersion != entry.schemaVersion || record.CodecVersion != entry.codecVersion {
		return nil, fmt.Errorf("%w: operator=%s expected(schema=%d codec=%d) got(schema=%d codec=%d)",
			ErrVersionMismatch,
			name,
			entry.schemaVersion,
			entry.codecVersion,
			record.SchemaVersion,
			record.CodecVersion,
		)
	}
	if entry.compatible != nil {
		if err := entry.compatible(bounds); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrOperatorIncompatible, name, err)
		}
	}
	return entry.factory(rng), nil
}

func ListOperators() []string {
	operatorRegistry.mu.RLock()
	defer operatorRegistry.mu.RUnlock()

	names := make([]string, 0, len(operatorRegistry.m))
	for name := range operatorRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MutationPolicyFromWeights resolves each named operator with its own random
// source derived from seed. Zero weights are skipped.
func MutationPolicyFromWeights(weights map[string]float64, seed int64, bounds model.GenomeRange) ([]WeightedMutation, error) {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	record := model.VersionedRecord{SchemaVersion: SupportedSchemaVersion, CodecVersion: SupportedCodecVersion}
	policy := make([]WeightedMutation, 0, len(names))
	for i, name := range names {
		weight := weights[name]
		if weight < 0 {
			return nil, fmt.Errorf("mutation weight for %s must be >= 0", name)
		}
		if weight == 0 {
			continue
		}
		op, err := ResolveOperator(name, rand.New(rand.NewSource(seed+int64(i)+1)), record, bounds)
		if err != nil {
			return nil, err
		}
		policy = append(policy, WeightedMutation{Operator: op, Weight: weight})
	}
	if len(policy) == 0 {
		return nil, errors.New("at least one mutation weight must be > 0")
	}
	return policy, nil
}

func resetOperatorRegistryForTests() {
	operatorRegistry.mu.Lock()
	defer operatorRegistry.mu.Unlock()
	operatorRegistry.m = builtinOperators()
}
