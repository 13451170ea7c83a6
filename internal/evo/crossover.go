package evo

import (
	"errors"
	"fmt"
	"math/rand"

	"natsel/internal/model"
)

// Crossover recombines two parent genomes into one child.
type Crossover interface {
	Name() string
	Cross(rng *rand.Rand, a, b model.Genome, bounds model.GenomeRange) (model.Genome, error)
}

// UniformCrossover takes each gene from either parent with equal probability.
type UniformCrossover struct{}

func (UniformCrossover) Name() string { return "uniform" }

func (UniformCrossover) Cross(rng *rand.Rand, a, b model.Genome, bounds model.GenomeRange) (model.Genome, error) {
	if err := checkParents(rng, a, b, bounds); err != nil {
		return nil, err
	}
	child := make(model.Genome, len(a))
	for i := range child {
		if rng.Intn(2) == 0 {
			child[i] = a[i]
		} else {
			child[i] = b[i]
		}
	}
	return child, nil
}

// ArithmeticCrossover blends parents gene-wise with one random weight.
type ArithmeticCrossover struct{}

func (ArithmeticCrossover) Name() string { return "arithmetic" }

func (ArithmeticCrossover) Cross(rng *rand.Rand, a, b model.Genome, bounds model.GenomeRange) (model.Genome, error) {
	if err := checkParents(rng, a, b, bounds); err != nil {
		return nil, err
	}
	w := rng.Float64()
	child := make(model.Genome, len(a))
	for i := range child {
		child[i] = w*a[i] + (1-w)*b[i]
	}
	return child, nil
}

// SinglePointCrossover copies a prefix from one parent and the suffix from the
// other. One-gene genomes are copied from a random parent.
type SinglePointCrossover struct{}

func (SinglePointCrossover) Name() string { return "single_point" }

func (SinglePointCrossover) Cross(rng *rand.Rand, a, b model.Genome, bounds model.GenomeRange) (model.Genome, error) {
	if err := checkParents(rng, a, b, bounds); err != nil {
		return nil, err
	}
	if len(a) == 1 {
		if rng.Intn(2) == 0 {
			return a.Clone(), nil
		}
		return b.Clone(), nil
	}
	cut := 1 + rng.Intn(len(a)-1)
	child := make(model.Genome, 0, len(a))
	child = append(child, a[:cut]...)
	child = append(child, b[cut:]...)
	return child, nil
}

// BLXAlphaCrossover samples each gene uniformly from the parents' interval
// widened by Alpha on each side.
type BLXAlphaCrossover struct {
	Alpha float64
}

func (BLXAlphaCrossover) Name() string { return "blx_alpha" }

func (c BLXAlphaCrossover) Cross(rng *rand.Rand, a, b model.Genome, bounds model.GenomeRange) (model.Genome, error) {
	if err := checkParents(rng, a, b, bounds); err != nil {
		return nil, err
	}
	alpha := c.Alpha
	if alpha < 0 {
		return nil, fmt.Errorf("blx alpha must be >= 0")
	}
	child := make(model.Genome, len(a))
	for i := range child {
		lo, hi := a[i], b[i]
		if lo > hi {
			lo, hi = hi, lo
		}
		spread := (hi - lo) * alpha
		lo -= spread
		hi += spread
		child[i] = lo + rng.Float64()*(hi-lo)
	}
	return child, nil
}

func CrossoverFromName(name string, alpha float64) (Crossover, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "uniform":
		return UniformCrossover{}, nil
	case "arithmetic":
		return ArithmeticCrossover{}, nil
	case "single_point":
		return SinglePointCrossover{}, nil
	case "blx_alpha":
		if alpha <= 0 {
			alpha = 0.5
		}
		return BLXAlphaCrossover{Alpha: alpha}, nil
	default:
		return nil, fmt.Errorf("unsupported crossover operator: %s", name)
	}
}

func checkParents(rng *rand.Rand, a, b model.Genome, bounds model.GenomeRange) error {
	if rng == nil {
		return errors.New("random source is required")
	}
	if len(a) == 0 {
		return ErrNoGenes
	}
	if len(a) != len(b) || len(a) != len(bounds) {
		return fmt.Errorf("%w: parents %d/%d, range %d", ErrGenomeShape, len(a), len(b), len(bounds))
	}
	return nil
}
