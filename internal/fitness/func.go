package fitness

import (
	"errors"
	"math/rand"
	"sync"

	"natsel/internal/model"
)

// FuncProvider adapts a plain scoring function and a fixed range to Provider.
// Genomes are sampled uniformly from a private seeded source.
type FuncProvider struct {
	name      string
	bounds    model.GenomeRange
	objective Objective
	eval      func(model.Genome) (float64, error)

	mu  sync.Mutex
	rng *rand.Rand
}

var (
	_ Provider        = (*FuncProvider)(nil)
	_ Named           = (*FuncProvider)(nil)
	_ Directed        = (*FuncProvider)(nil)
	_ ConcurrencySafe = (*FuncProvider)(nil)
)

func NewFuncProvider(name string, bounds model.GenomeRange, objective Objective, seed int64, eval func(model.Genome) (float64, error)) (*FuncProvider, error) {
	if name == "" {
		return nil, errors.New("provider name is required")
	}
	if eval == nil {
		return nil, errors.New("fitness function is required")
	}
	if err := ValidateRange(bounds); err != nil {
		return nil, err
	}
	if objective == "" {
		objective = Maximize
	}
	return &FuncProvider{
		name:      name,
		bounds:    bounds.Clone(),
		objective: objective,
		eval:      eval,
		rng:       rand.New(rand.NewSource(seed)),
	}, nil
}

func (p *FuncProvider) Name() string { return p.name }

func (p *FuncProvider) Objective() Objective { return p.objective }

// ConcurrencySafe reports true; the wrapped function must not share mutable
// state across calls.
func (p *FuncProvider) ConcurrencySafe() bool { return true }

func (p *FuncProvider) InitializeGenome() model.Genome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Sample(p.rng, p.bounds)
}

func (p *FuncProvider) GenomeRange() model.GenomeRange {
	return p.bounds.Clone()
}

func (p *FuncProvider) Fitness(genome model.Genome) (float64, error) {
	if err := CheckLength(p.bounds, genome); err != nil {
		return 0, err
	}
	return p.eval(genome)
}
