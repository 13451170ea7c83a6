package fitness

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"natsel/internal/model"
)

var (
	ErrInvalidRange   = errors.New("invalid genome range")
	ErrLengthMismatch = errors.New("genome length does not match range")
)

// UniformRange returns n identical bounds.
func UniformRange(n int, min, max float64) model.GenomeRange {
	out := make(model.GenomeRange, n)
	for i := range out {
		out[i] = model.Bound{Min: min, Max: max}
	}
	return out
}

// ValidateRange checks that bounds is non-empty, finite and ordered.
func ValidateRange(bounds model.GenomeRange) error {
	if len(bounds) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidRange)
	}
	for i, b := range bounds {
		if math.IsNaN(b.Min) || math.IsNaN(b.Max) || math.IsInf(b.Min, 0) || math.IsInf(b.Max, 0) {
			return fmt.Errorf("%w: position %d is not finite", ErrInvalidRange, i)
		}
		if b.Min > b.Max {
			return fmt.Errorf("%w: position %d min %g > max %g", ErrInvalidRange, i, b.Min, b.Max)
		}
	}
	return nil
}

func CheckLength(bounds model.GenomeRange, genome model.Genome) error {
	if len(genome) != len(bounds) {
		return fmt.Errorf("%w: got=%d want=%d", ErrLengthMismatch, len(genome), len(bounds))
	}
	return nil
}

// Contains reports whether every gene lies inside its bound.
func Contains(bounds model.GenomeRange, genome model.Genome) bool {
	if len(bounds) != len(genome) {
		return false
	}
	for i, v := range genome {
		if v < bounds[i].Min || v > bounds[i].Max {
			return false
		}
	}
	return true
}

func ClampGene(b model.Bound, v float64) float64 {
	if math.IsNaN(v) {
		return b.Min + b.Span()/2
	}
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// Clamp returns a copy of genome with every gene forced into bounds. Genes past
// the end of bounds are dropped.
func Clamp(bounds model.GenomeRange, genome model.Genome) model.Genome {
	n := len(genome)
	if n > len(bounds) {
		n = len(bounds)
	}
	out := make(model.Genome, n)
	for i := 0; i < n; i++ {
		out[i] = ClampGene(bounds[i], genome[i])
	}
	return out
}

// Sample draws a genome uniformly inside bounds.
func Sample(rng *rand.Rand, bounds model.GenomeRange) model.Genome {
	out := make(model.Genome, len(bounds))
	for i, b := range bounds {
		out[i] = b.Min + rng.Float64()*b.Span()
	}
	return out
}
