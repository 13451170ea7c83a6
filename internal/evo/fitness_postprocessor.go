package evo

import (
	"fmt"
	"math"

	"natsel/internal/model"
)

// FitnessPostprocessor rewrites scores after evaluation and before ranking.
// Raw fitness values are never changed.
type FitnessPostprocessor interface {
	Name() string
	Process(scored []ScoredIndividual, bounds model.GenomeRange) []ScoredIndividual
}

type NoopFitnessPostprocessor struct{}

func (NoopFitnessPostprocessor) Name() string {
	return "none"
}

func (NoopFitnessPostprocessor) Process(scored []ScoredIndividual, _ model.GenomeRange) []ScoredIndividual {
	return cloneScored(scored)
}

// RankPostprocessor replaces scores by normalized rank in [0, 1]; ties share
// the lower rank.
type RankPostprocessor struct{}

func (RankPostprocessor) Name() string {
	return "rank"
}

func (RankPostprocessor) Process(scored []ScoredIndividual, _ model.GenomeRange) []ScoredIndividual {
	out := cloneScored(scored)
	if len(out) <= 1 {
		for i := range out {
			out[i].Score = 1
		}
		return out
	}
	for i := range out {
		below := 0
		for j := range scored {
			if scored[j].Score < scored[i].Score {
				below++
			}
		}
		out[i].Score = float64(below) / float64(len(out)-1)
	}
	return out
}

// SharingPostprocessor divides each shifted score by its niche count
// sum(1 - (d/Radius)^Alpha) over neighbours within Radius in normalized
// genome space.
type SharingPostprocessor struct {
	Radius float64
	Alpha  float64
}

func (SharingPostprocessor) Name() string {
	return "sharing"
}

func (p SharingPostprocessor) Process(scored []ScoredIndividual, bounds model.GenomeRange) []ScoredIndividual {
	out := cloneScored(scored)
	if len(out) == 0 {
		return out
	}
	radius := p.Radius
	if radius <= 0 {
		radius = 0.1
	}
	alpha := p.Alpha
	if alpha <= 0 {
		alpha = 1
	}

	minScore := scored[0].Score
	for _, item := range scored {
		if item.Score < minScore {
			minScore = item.Score
		}
	}
	for i := range out {
		count := 0.0
		for j := range scored {
			d := NormalizedDistance(scored[i].Individual.Genes, scored[j].Individual.Genes, bounds)
			if d < radius {
				count += 1 - math.Pow(d/radius, alpha)
			}
		}
		if count < 1 {
			count = 1
		}
		out[i].Score = (scored[i].Score - minScore + 1e-9) / count
	}
	return out
}

func PostprocessorFromName(name string, radius float64) (FitnessPostprocessor, error) {
	switch name {
	case "", "none":
		return NoopFitnessPostprocessor{}, nil
	case "rank":
		return RankPostprocessor{}, nil
	case "sharing":
		return SharingPostprocessor{Radius: radius}, nil
	default:
		return nil, fmt.Errorf("unsupported fitness postprocessor: %s", name)
	}
}

func cloneScored(scored []ScoredIndividual) []ScoredIndividual {
	out := make([]ScoredIndividual, len(scored))
	copy(out, scored)
	return out
}
