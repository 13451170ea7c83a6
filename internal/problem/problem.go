package problem

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"natsel/internal/fitness"
	"natsel/internal/model"
)

var (
	ErrProblemExists   = errors.New("problem already registered")
	ErrProblemNotFound = errors.New("problem not found")
)

const defaultDimensions = 5

// Params configures a problem instance. Zero values select problem defaults.
type Params struct {
	Dimensions int     `json:"dimensions,omitempty" toml:"dimensions"`
	Seed       int64   `json:"seed" toml:"seed"`
	Noise      float64 `json:"noise,omitempty" toml:"noise"`
	DataPath   string  `json:"data_path,omitempty" toml:"data_path"`
	Degree     int     `json:"degree,omitempty" toml:"degree"`
}

func (p Params) dimensions(fallback int) int {
	if p.Dimensions > 0 {
		return p.Dimensions
	}
	return fallback
}

type Factory func(params Params) (fitness.Provider, error)

var problemRegistry = struct {
	mu sync.RWMutex
	m  map[string]Factory
}{
	m: builtinFactories(),
}

func builtinFactories() map[string]Factory {
	return map[string]Factory{
		ParaboloidName: func(p Params) (fitness.Provider, error) { return NewParaboloidFromParams(p) },
		SphereName:     func(p Params) (fitness.Provider, error) { return NewSphere(p.dimensions(defaultDimensions), p.Seed) },
		RastriginName:  func(p Params) (fitness.Provider, error) { return NewRastrigin(p.dimensions(defaultDimensions), p.Seed) },
		RosenbrockName: func(p Params) (fitness.Provider, error) { return NewRosenbrock(p.dimensions(defaultDimensions), p.Seed) },
		AckleyName:     func(p Params) (fitness.Provider, error) { return NewAckley(p.dimensions(defaultDimensions), p.Seed) },
		CurveFitName:   func(p Params) (fitness.Provider, error) { return NewCurveFitFromParams(p) },
		NoisySphereName: func(p Params) (fitness.Provider, error) {
			return NewNoisySphere(p.dimensions(defaultDimensions), p.Noise, p.Seed)
		},
	}
}

// Register adds a named problem factory.
func Register(name string, factory Factory) error {
	if name == "" {
		return errors.New("problem name is required")
	}
	if factory == nil {
		return errors.New("problem factory is required")
	}
	problemRegistry.mu.Lock()
	defer problemRegistry.mu.Unlock()
	if _, exists := problemRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrProblemExists, name)
	}
	problemRegistry.m[name] = factory
	return nil
}

// New builds the named problem.
func New(name string, params Params) (fitness.Provider, error) {
	problemRegistry.mu.RLock()
	factory, ok := problemRegistry.m[name]
	problemRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProblemNotFound, name)
	}
	return factory(params)
}

func List() []string {
	problemRegistry.mu.RLock()
	defer problemRegistry.mu.RUnlock()

	names := make([]string, 0, len(problemRegistry.m))
	for name := range problemRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetRegistryForTests() {
	problemRegistry.mu.Lock()
	defer problemRegistry.mu.Unlock()
	problemRegistry.m = builtinFactories()
}

// bounded holds the range and random source shared by the built-in problems.
type bounded struct {
	bounds model.GenomeRange

	mu  sync.Mutex
	rng *rand.Rand
}

func newBounded(bounds model.GenomeRange, seed int64) (*bounded, error) {
	if err := fitness.ValidateRange(bounds); err != nil {
		return nil, err
	}
	return &bounded{bounds: bounds.Clone(), rng: rand.New(rand.NewSource(seed))}, nil
}

func (b *bounded) InitializeGenome() model.Genome {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fitness.Sample(b.rng, b.bounds)
}

func (b *bounded) GenomeRange() model.GenomeRange {
	return b.bounds.Clone()
}

func (b *bounded) ConcurrencySafe() bool { return true }

func (b *bounded) checkLength(genome model.Genome) error {
	return fitness.CheckLength(b.bounds, genome)
}

func requireDimensions(n, min int) error {
	if n < min {
		return fmt.Errorf("dimensions must be >= %d, got %d", min, n)
	}
	return nil
}
