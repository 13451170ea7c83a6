package evo

import (
	"fmt"
	"math"

	"natsel/internal/model"
)

// NicheStats captures per-generation niche partitioning diagnostics.
type NicheStats struct {
	NicheCount       int
	TargetNicheCount int
	Threshold        float64
	MeanNicheSize    float64
	LargestNicheSize int
}

// AdaptiveNiching groups individuals whose normalized distance to a niche
// representative is within Threshold, and nudges the threshold toward a
// target niche count each generation.
type AdaptiveNiching struct {
	TargetNicheCount int
	Threshold        float64
	MinThreshold     float64
	MaxThreshold     float64
	AdjustStep       float64
}

func NewAdaptiveNiching(populationSize int) *AdaptiveNiching {
	target := int(math.Sqrt(float64(populationSize)))
	if target < 2 {
		target = 2
	}
	return &AdaptiveNiching{
		TargetNicheCount: target,
		Threshold:        0.25,
		MinThreshold:     0.01,
		MaxThreshold:     1.0,
		AdjustStep:       0.02,
	}
}

// Assign returns the niche key of every individual ID. Individuals are
// visited in the given order, so passing them ranked makes each niche's
// representative its best member.
func (n *AdaptiveNiching) Assign(individuals []model.Individual, bounds model.GenomeRange) (map[string]string, NicheStats) {
	if len(individuals) == 0 {
		return map[string]string{}, NicheStats{TargetNicheCount: n.TargetNicheCount, Threshold: n.Threshold}
	}

	type niche struct {
		key            string
		representative model.Genome
		size           int
	}
	niches := make([]*niche, 0, len(individuals))
	nicheByID := make(map[string]string, len(individuals))

	for _, ind := range individuals {
		bestIdx := -1
		bestDistance := math.MaxFloat64
		for i, candidate := range niches {
			dist := NormalizedDistance(ind.Genes, candidate.representative, bounds)
			if dist < bestDistance {
				bestDistance = dist
				bestIdx = i
			}
		}
		if bestIdx == -1 || bestDistance > n.Threshold {
			niches = append(niches, &niche{
				key:            fmt.Sprintf("niche-%03d", len(niches)+1),
				representative: ind.Genes,
				size:           1,
			})
			nicheByID[ind.ID] = niches[len(niches)-1].key
			continue
		}
		niches[bestIdx].size++
		nicheByID[ind.ID] = niches[bestIdx].key
	}

	if len(niches) > n.TargetNicheCount {
		n.Threshold = math.Min(n.MaxThreshold, n.Threshold+n.AdjustStep)
	} else if len(niches) < n.TargetNicheCount {
		n.Threshold = math.Max(n.MinThreshold, n.Threshold-n.AdjustStep)
	}

	largest := 0
	for _, item := range niches {
		if item.size > largest {
			largest = item.size
		}
	}
	return nicheByID, NicheStats{
		NicheCount:       len(niches),
		TargetNicheCount: n.TargetNicheCount,
		Threshold:        n.Threshold,
		MeanNicheSize:    float64(len(individuals)) / float64(len(niches)),
		LargestNicheSize: largest,
	}
}

// NormalizedDistance is the Euclidean distance between a and b after scaling
// every position by its bound span, divided by sqrt(len). The result lies in
// [0, 1] for genomes inside bounds. Zero-span positions are ignored.
func NormalizedDistance(a, b model.Genome, bounds model.GenomeRange) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if len(bounds) < n {
		n = len(bounds)
	}
	if n == 0 {
		return 0
	}
	total := 0.0
	for i := 0; i < n; i++ {
		span := bounds[i].Span()
		if span <= 0 {
			continue
		}
		d := (a[i] - b[i]) / span
		total += d * d
	}
	return math.Sqrt(total / float64(n))
}
