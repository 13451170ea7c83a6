package tuning

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"

	"natsel/internal/fitness"
	"natsel/internal/model"
)

// Exoself is a stochastic hill climber. Each attempt perturbs Steps random
// genes of every candidate base by an annealed uniform step proportional to
// the gene span and keeps the best candidate that improves by more than
// MinImprovement.
type Exoself struct {
	Rand               *rand.Rand
	Steps              int
	StepSize           float64
	PerturbationRange  float64
	AnnealingFactor    float64
	MinImprovement     float64
	CandidateSelection string
	// GoalScore stops tuning once reached. Nil disables the check.
	GoalScore *float64

	mu sync.Mutex
}

const (
	CandidateSelectBestSoFar = "best_so_far"
	CandidateSelectOriginal  = "original"
	CandidateSelectDynamicA  = "dynamic"
	CandidateSelectDynamic   = "dynamic_random"
	CandidateSelectAll       = "all"
	CandidateSelectAllRandom = "all_random"
	CandidateSelectRecent    = "recent"
	CandidateSelectRecentRnd = "recent_random"
)

func (e *Exoself) Name() string {
	return "exoself_hillclimb"
}

func (e *Exoself) SetGoalScore(goal float64) {
	e.GoalScore = &goal
}

func (e *Exoself) Tune(ctx context.Context, genome model.Genome, bounds model.GenomeRange, attempts int, score ScoreFn) (model.Genome, TuneReport, error) {
	report := TuneReport{AttemptsPlanned: attempts}
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}
	if e == nil || e.Rand == nil {
		return nil, report, errors.New("random source is required")
	}
	if attempts <= 0 || len(genome) == 0 {
		return genome.Clone(), report, nil
	}
	if e.Steps <= 0 {
		return nil, report, errors.New("steps must be > 0")
	}
	if e.StepSize <= 0 {
		return nil, report, errors.New("step size must be > 0")
	}
	if e.PerturbationRange < 0 {
		return nil, report, errors.New("perturbation range must be >= 0")
	}
	if e.AnnealingFactor < 0 {
		return nil, report, errors.New("annealing factor must be >= 0")
	}
	if e.MinImprovement < 0 {
		return nil, report, errors.New("min improvement must be >= 0")
	}
	if score == nil {
		return nil, report, errors.New("score function is required")
	}
	if err := fitness.CheckLength(bounds, genome); err != nil {
		return nil, report, err
	}
	perturbationRange := e.PerturbationRange
	if perturbationRange == 0 {
		perturbationRange = 1.0
	}
	annealingFactor := e.AnnealingFactor
	if annealingFactor == 0 {
		annealingFactor = 1.0
	}

	best := genome.Clone()
	bestScore, err := score(ctx, best)
	if err != nil {
		return nil, report, err
	}
	report.CandidateEvaluations++
	if e.goalReached(bestScore) {
		report.GoalReached = true
		return best, report, nil
	}
	recentBase := best.Clone()

	for a := 0; a < attempts; a++ {
		bases, err := e.candidateBases(best, genome, recentBase)
		if err != nil {
			return nil, report, err
		}
		report.AttemptsExecuted++
		localBest := best.Clone()
		localBestScore := bestScore
		for _, base := range bases {
			candidate, err := e.perturbCandidate(ctx, base, bounds, perturbationRange, annealingFactor)
			if err != nil {
				return nil, report, err
			}
			candidateScore, err := score(ctx, candidate)
			if err != nil {
				return nil, report, err
			}
			report.CandidateEvaluations++
			if candidateScore > localBestScore+e.MinImprovement {
				localBest = candidate
				localBestScore = candidateScore
			}
		}
		recentBase = localBest.Clone()
		if localBestScore > bestScore+e.MinImprovement {
			best = localBest
			bestScore = localBestScore
			report.AcceptedCandidates++
		} else {
			report.RejectedCandidates++
		}
		if e.goalReached(bestScore) {
			report.GoalReached = true
			break
		}
	}

	return best, report, nil
}

func (e *Exoself) goalReached(score float64) bool {
	return e.GoalScore != nil && score >= *e.GoalScore
}

func (e *Exoself) randIntn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Rand.Intn(n)
}

func (e *Exoself) randFloat64() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Rand.Float64()
}

func NormalizeCandidateSelectionName(name string) string {
	if name == "" {
		return CandidateSelectBestSoFar
	}
	return name
}

func (e *Exoself) candidateBases(best, original, recent model.Genome) ([]model.Genome, error) {
	mode := NormalizeCandidateSelectionName(e.CandidateSelection)
	if isRandomSelection(mode) {
		pool, err := candidateBasesForMode(nonRandomModeFor(mode), best, original, recent)
		if err != nil {
			return nil, err
		}
		return e.randomSubset(pool), nil
	}
	return candidateBasesForMode(mode, best, original, recent)
}

func candidateBasesForMode(mode string, best, original, recent model.Genome) ([]model.Genome, error) {
	switch mode {
	case CandidateSelectBestSoFar:
		return []model.Genome{best.Clone()}, nil
	case CandidateSelectOriginal:
		return []model.Genome{original.Clone()}, nil
	case CandidateSelectDynamicA:
		return []model.Genome{best.Clone(), original.Clone()}, nil
	case CandidateSelectRecent:
		return []model.Genome{recent.Clone()}, nil
	case CandidateSelectAll:
		return []model.Genome{best.Clone(), original.Clone(), recent.Clone()}, nil
	default:
		return nil, errors.New("unsupported candidate selection")
	}
}

func isRandomSelection(mode string) bool {
	switch mode {
	case CandidateSelectDynamic, CandidateSelectAllRandom, CandidateSelectRecentRnd:
		return true
	default:
		return false
	}
}

func nonRandomModeFor(mode string) string {
	switch mode {
	case CandidateSelectDynamic:
		return CandidateSelectDynamicA
	case CandidateSelectAllRandom:
		return CandidateSelectAll
	case CandidateSelectRecentRnd:
		return CandidateSelectRecent
	default:
		return mode
	}
}

func (e *Exoself) randomSubset(pool []model.Genome) []model.Genome {
	if len(pool) <= 1 {
		return pool
	}
	p := 1 / math.Sqrt(float64(len(pool)))
	chosen := make([]model.Genome, 0, len(pool))
	for i := range pool {
		if e.randFloat64() < p {
			chosen = append(chosen, pool[i])
		}
	}
	if len(chosen) > 0 {
		return chosen
	}
	return []model.Genome{pool[e.randIntn(len(pool))]}
}

func (e *Exoself) perturbCandidate(ctx context.Context, base model.Genome, bounds model.GenomeRange, perturbationRange, annealingFactor float64) (model.Genome, error) {
	candidate := base.Clone()
	for s := 0; s < e.Steps; s++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idx := e.randIntn(len(candidate))
		spread := e.StepSize * perturbationRange * bounds[idx].Span() * math.Pow(annealingFactor, float64(s))
		delta := (e.randFloat64()*2 - 1) * spread
		candidate[idx] = fitness.ClampGene(bounds[idx], candidate[idx]+delta)
	}
	return candidate, nil
}
