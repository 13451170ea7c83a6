package evo

import (
	"fmt"
	"math"
	"math/rand"

	"natsel/internal/model"
)

// MutationCountPolicy determines how many mutation operators are applied to
// each bred child.
type MutationCountPolicy interface {
	Name() string
	MutationCount(genome model.Genome, generation int, rng *rand.Rand) (int, error)
}

type ConstMutationCount struct {
	Count int
}

func (ConstMutationCount) Name() string {
	return "const"
}

func (p ConstMutationCount) MutationCount(_ model.Genome, _ int, _ *rand.Rand) (int, error) {
	if p.Count <= 0 {
		return 0, fmt.Errorf("const mutation count must be > 0")
	}
	return p.Count, nil
}

// DimensionLinearMutationCount applies round(len(genome)*Multiplier)
// mutations, at least one and at most MaxCount when set.
type DimensionLinearMutationCount struct {
	Multiplier float64
	MaxCount   int
}

func (DimensionLinearMutationCount) Name() string {
	return "dimension_linear"
}

func (p DimensionLinearMutationCount) MutationCount(genome model.Genome, _ int, _ *rand.Rand) (int, error) {
	if p.Multiplier <= 0 {
		return 0, fmt.Errorf("linear multiplier must be > 0")
	}
	return capCount(int(math.Round(float64(len(genome))*p.Multiplier)), p.MaxCount), nil
}

// DimensionRandomMutationCount draws uniformly from
// [1, round(len(genome)^Power)].
type DimensionRandomMutationCount struct {
	Power    float64
	MaxCount int
}

func (DimensionRandomMutationCount) Name() string {
	return "dimension_random"
}

func (p DimensionRandomMutationCount) MutationCount(genome model.Genome, _ int, rng *rand.Rand) (int, error) {
	if p.Power <= 0 {
		return 0, fmt.Errorf("random power must be > 0")
	}
	if rng == nil {
		return 0, fmt.Errorf("random source is required")
	}
	upper := capCount(int(math.Round(math.Pow(float64(max(1, len(genome))), p.Power))), p.MaxCount)
	return 1 + rng.Intn(upper), nil
}

func MutationCountPolicyFromConfig(name string, count int, param float64, maxCount int) (MutationCountPolicy, error) {
	switch name {
	case "", "const":
		if count <= 0 {
			count = 1
		}
		return ConstMutationCount{Count: count}, nil
	case "dimension_linear":
		if param <= 0 {
			return nil, fmt.Errorf("mutation count param must be > 0 for dimension_linear")
		}
		return DimensionLinearMutationCount{Multiplier: param, MaxCount: maxCount}, nil
	case "dimension_random":
		if param <= 0 {
			return nil, fmt.Errorf("mutation count param must be > 0 for dimension_random")
		}
		return DimensionRandomMutationCount{Power: param, MaxCount: maxCount}, nil
	default:
		return nil, fmt.Errorf("unsupported mutation count policy: %s", name)
	}
}

func capCount(count, maxCount int) int {
	if count < 1 {
		count = 1
	}
	if maxCount > 0 && count > maxCount {
		count = maxCount
	}
	return count
}
