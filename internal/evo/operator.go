package evo

import (
	"context"

	"natsel/internal/model"
)

// Operator mutates a genome. Implementations return a new genome and leave
// the input untouched. The engine clamps results to bounds afterwards.
type Operator interface {
	Name() string
	Apply(ctx context.Context, genome model.Genome, bounds model.GenomeRange) (model.Genome, error)
}

type WeightedMutation struct {
	Operator Operator
	Weight   float64
}

type ScoredIndividual struct {
	Individual model.Individual `json:"individual"`
	// Fitness is the raw provider value.
	Fitness float64 `json:"fitness"`
	// Score orders individuals, larger is better. It starts as the
	// objective-adjusted fitness and may be rewritten by a postprocessor.
	Score float64 `json:"score"`
}
