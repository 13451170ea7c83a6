// Package fitness defines the contract between the evolutionary engine and the
// problems it optimizes.
//
// A Provider knows three things about its problem: how to construct a fresh
// candidate genome, the per-position bounds every genome must respect, and how
// to score a genome. Everything else (selection, variation, persistence) lives
// outside the provider and talks to it only through these three operations.
//
// Optional behavior is discovered through small single-method interfaces
// (Named, Directed, Stochastic, ConcurrencySafe, Describer) so that the core
// contract stays minimal.
package fitness

import (
	"fmt"
	"strings"

	"natsel/internal/model"
)

// Provider supplies genome construction, genome bounds and fitness scoring for
// one optimization problem.
type Provider interface {
	// InitializeGenome returns a newly constructed genome whose length matches
	// GenomeRange. It is usually sampled uniformly inside the bounds.
	InitializeGenome() model.Genome
	// GenomeRange returns one (min, max) pair per genome position. The result
	// is stable for the lifetime of the provider and owned by the caller.
	GenomeRange() model.GenomeRange
	// Fitness scores genome. Input validation is left to the implementation.
	Fitness(genome model.Genome) (float64, error)
}

type Named interface {
	Name() string
}

type Describer interface {
	Description() string
}

// Directed reports whether larger or smaller fitness values are better.
// Providers that do not implement it are maximized.
type Directed interface {
	Objective() Objective
}

// Stochastic providers may return different fitness values for the same
// genome. Callers must not cache their results.
type Stochastic interface {
	Stochastic() bool
}

// ConcurrencySafe providers accept concurrent Fitness calls.
type ConcurrencySafe interface {
	ConcurrencySafe() bool
}

type Objective string

const (
	Maximize Objective = "maximize"
	Minimize Objective = "minimize"
)

func ParseObjective(name string) (Objective, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "max", string(Maximize):
		return Maximize, nil
	case "min", string(Minimize):
		return Minimize, nil
	default:
		return "", fmt.Errorf("unsupported objective: %s", name)
	}
}

// Score maps a raw fitness value onto a scale where larger is always better.
func (o Objective) Score(fitness float64) float64 {
	if o == Minimize {
		return -fitness
	}
	return fitness
}

// Better reports whether a is strictly better than b under o.
func (o Objective) Better(a, b float64) bool {
	return o.Score(a) > o.Score(b)
}

// Reached reports whether fitness meets goal under o.
func (o Objective) Reached(fitness, goal float64) bool {
	return o.Score(fitness) >= o.Score(goal)
}

func ObjectiveOf(p Provider) Objective {
	if d, ok := p.(Directed); ok {
		if obj := d.Objective(); obj == Minimize {
			return Minimize
		}
	}
	return Maximize
}

func NameOf(p Provider) string {
	if n, ok := p.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", p)
}

func DescriptionOf(p Provider) string {
	if d, ok := p.(Describer); ok {
		return d.Description()
	}
	return ""
}

func IsStochastic(p Provider) bool {
	s, ok := p.(Stochastic)
	return ok && s.Stochastic()
}

func IsConcurrencySafe(p Provider) bool {
	s, ok := p.(ConcurrencySafe)
	return ok && s.ConcurrencySafe()
}
