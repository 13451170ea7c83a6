package evo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"natsel/internal/fitness"
	"natsel/internal/model"
)

var ErrNoGenes = errors.New("genome has no genes")

// GaussianMutation adds N(0, (Sigma*span)^2) noise to each gene with
// probability Rate. A zero Rate uses 1/sqrt(len(genome)). At least one gene is
// always mutated.
type GaussianMutation struct {
	Rand  *rand.Rand
	Rate  float64
	Sigma float64
}

func (o *GaussianMutation) Name() string {
	return "gaussian"
}

func (o *GaussianMutation) Apply(_ context.Context, genome model.Genome, bounds model.GenomeRange) (model.Genome, error) {
	if err := checkOperatorInput(genome, bounds); err != nil {
		return nil, err
	}
	if o == nil || o.Rand == nil {
		return nil, errors.New("random source is required")
	}
	sigma := o.Sigma
	if sigma <= 0 {
		sigma = 0.1
	}
	mutated := genome.Clone()
	forEachMutatedGene(o.Rand, len(mutated), o.Rate, func(i int) {
		mutated[i] += o.Rand.NormFloat64() * sigma * bounds[i].Span()
	})
	return mutated, nil
}

// UniformResetMutation redraws each gene uniformly inside its bound with
// probability Rate.
type UniformResetMutation struct {
	Rand *rand.Rand
	Rate float64
}

func (o *UniformResetMutation) Name() string {
	return "uniform_reset"
}

func (o *UniformResetMutation) Apply(_ context.Context, genome model.Genome, bounds model.GenomeRange) (model.Genome, error) {
	if err := checkOperatorInput(genome, bounds); err != nil {
		return nil, err
	}
	if o == nil || o.Rand == nil {
		return nil, errors.New("random source is required")
	}
	mutated := genome.Clone()
	forEachMutatedGene(o.Rand, len(mutated), o.Rate, func(i int) {
		mutated[i] = bounds[i].Min + o.Rand.Float64()*bounds[i].Span()
	})
	return mutated, nil
}

// CreepMutation nudges one random gene by a uniform step in
// [-Step*span, Step*span].
type CreepMutation struct {
	Rand *rand.Rand
	Step float64
}

func (o *CreepMutation) Name() string {
	return "creep"
}

func (o *CreepMutation) Apply(_ context.Context, genome model.Genome, bounds model.GenomeRange) (model.Genome, error) {
	if err := checkOperatorInput(genome, bounds); err != nil {
		return nil, err
	}
	if o == nil || o.Rand == nil {
		return nil, errors.New("random source is required")
	}
	step := o.Step
	if step <= 0 {
		step = 0.05
	}
	mutated := genome.Clone()
	idx := o.Rand.Intn(len(mutated))
	mutated[idx] += (o.Rand.Float64()*2 - 1) * step * bounds[idx].Span()
	return mutated, nil
}

// BoundaryMutation moves one random gene onto its lower or upper bound.
type BoundaryMutation struct {
	Rand *rand.Rand
}

func (o *BoundaryMutation) Name() string {
	return "boundary"
}

func (o *BoundaryMutation) Apply(_ context.Context, genome model.Genome, bounds model.GenomeRange) (model.Genome, error) {
	if err := checkOperatorInput(genome, bounds); err != nil {
		return nil, err
	}
	if o == nil || o.Rand == nil {
		return nil, errors.New("random source is required")
	}
	mutated := genome.Clone()
	idx := o.Rand.Intn(len(mutated))
	if o.Rand.Intn(2) == 0 {
		mutated[idx] = bounds[idx].Min
	} else {
		mutated[idx] = bounds[idx].Max
	}
	return mutated, nil
}

func checkOperatorInput(genome model.Genome, bounds model.GenomeRange) error {
	if len(genome) == 0 {
		return ErrNoGenes
	}
	if len(genome) != len(bounds) {
		return fmt.Errorf("%w: %w", ErrGenomeShape, fitness.ErrLengthMismatch)
	}
	return nil
}

func forEachMutatedGene(rng *rand.Rand, n int, rate float64, fn func(i int)) {
	if rate <= 0 {
		rate = 1 / math.Sqrt(float64(n))
	}
	mutated := 0
	for i := 0; i < n; i++ {
		if rng.Float64() >= rate {
			continue
		}
		fn(i)
		mutated++
	}
	if mutated == 0 {
		fn(rng.Intn(n))
	}
}

// MutationParams overrides the step settings of builtin operators. Zero
// fields keep each operator's own default.
type MutationParams struct {
	Sigma float64
	Rate  float64
	Step  float64
}

// ApplyMutationParams sets params on the builtin operators in policy. Other
// operators are left alone.
func ApplyMutationParams(policy []WeightedMutation, params MutationParams) {
	for _, item := range policy {
		switch op := item.Operator.(type) {
		case *GaussianMutation:
			if params.Sigma > 0 {
				op.Sigma = params.Sigma
			}
			if params.Rate > 0 {
				op.Rate = params.Rate
			}
		case *UniformResetMutation:
			if params.Rate > 0 {
				op.Rate = params.Rate
			}
		case *CreepMutation:
			if params.Step > 0 {
				op.Step = params.Step
			}
		}
	}
}
