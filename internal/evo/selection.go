package evo

import (
	"fmt"
	"math/rand"
	"sort"

	"natsel/internal/model"
)

// Selector chooses parents from individuals ranked by descending score.
type Selector interface {
	Name() string
	PickParent(rng *rand.Rand, ranked []ScoredIndividual, eliteCount int) (model.Individual, error)
}

// NicheAwareSelector receives the niche assignment of the current generation.
type NicheAwareSelector interface {
	Selector
	PickParentWithNiches(rng *rand.Rand, ranked []ScoredIndividual, eliteCount int, nicheByID map[string]string) (model.Individual, error)
}

// EliteSelector picks uniformly from the top elite set.
type EliteSelector struct{}

func (EliteSelector) Name() string {
	return "elite"
}

func (EliteSelector) PickParent(rng *rand.Rand, ranked []ScoredIndividual, eliteCount int) (model.Individual, error) {
	if err := checkSelection(rng, ranked, eliteCount); err != nil {
		return model.Individual{}, err
	}
	return ranked[rng.Intn(eliteCount)].Individual, nil
}

// TournamentSelector samples candidates from the top PoolSize and keeps the
// highest score.
type TournamentSelector struct {
	PoolSize       int
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParent(rng *rand.Rand, ranked []ScoredIndividual, eliteCount int) (model.Individual, error) {
	if err := checkSelection(rng, ranked, eliteCount); err != nil {
		return model.Individual{}, err
	}
	poolSize := s.PoolSize
	if poolSize <= 0 || poolSize > len(ranked) {
		poolSize = len(ranked)
	}
	if poolSize < eliteCount {
		poolSize = eliteCount
	}
	return tournament(rng, ranked[:poolSize], s.TournamentSize).Individual, nil
}

// RouletteSelector picks proportionally to score shifted so the worst
// individual keeps a small positive share.
type RouletteSelector struct{}

func (RouletteSelector) Name() string {
	return "roulette"
}

func (RouletteSelector) PickParent(rng *rand.Rand, ranked []ScoredIndividual, eliteCount int) (model.Individual, error) {
	if err := checkSelection(rng, ranked, eliteCount); err != nil {
		return model.Individual{}, err
	}
	minScore, maxScore := ranked[0].Score, ranked[0].Score
	for _, item := range ranked {
		if item.Score < minScore {
			minScore = item.Score
		}
		if item.Score > maxScore {
			maxScore = item.Score
		}
	}
	floor := (maxScore - minScore) * 0.01
	if floor <= 0 {
		floor = 1
	}
	total := 0.0
	for _, item := range ranked {
		total += item.Score - minScore + floor
	}
	pick := rng.Float64() * total
	acc := 0.0
	for _, item := range ranked {
		acc += item.Score - minScore + floor
		if pick <= acc {
			return item.Individual, nil
		}
	}
	return ranked[len(ranked)-1].Individual, nil
}

// RankSelector uses linear ranking: weight n for the best down to 1 for the worst.
type RankSelector struct{}

func (RankSelector) Name() string {
	return "rank"
}

func (RankSelector) PickParent(rng *rand.Rand, ranked []ScoredIndividual, eliteCount int) (model.Individual, error) {
	if err := checkSelection(rng, ranked, eliteCount); err != nil {
		return model.Individual{}, err
	}
	n := len(ranked)
	total := n * (n + 1) / 2
	pick := rng.Intn(total)
	acc := 0
	for i := range ranked {
		acc += n - i
		if pick < acc {
			return ranked[i].Individual, nil
		}
	}
	return ranked[n-1].Individual, nil
}

// NicheTournamentSelector samples uniformly among niches holding at least
// MinNicheSize members (1 when unset) and runs a tournament inside the chosen
// niche, keeping weaker niches in the breeding pool. When no niche is large
// enough it runs a plain tournament over the whole population.
type NicheTournamentSelector struct {
	TournamentSize int
	MinNicheSize   int
}

func (NicheTournamentSelector) Name() string {
	return "niche_tournament"
}

func (s NicheTournamentSelector) PickParent(rng *rand.Rand, ranked []ScoredIndividual, eliteCount int) (model.Individual, error) {
	return TournamentSelector{TournamentSize: s.TournamentSize}.PickParent(rng, ranked, eliteCount)
}

func (s NicheTournamentSelector) PickParentWithNiches(rng *rand.Rand, ranked []ScoredIndividual, eliteCount int, nicheByID map[string]string) (model.Individual, error) {
	if err := checkSelection(rng, ranked, eliteCount); err != nil {
		return model.Individual{}, err
	}
	if len(nicheByID) == 0 {
		return s.PickParent(rng, ranked, eliteCount)
	}
	minSize := s.MinNicheSize
	if minSize <= 0 {
		minSize = 1
	}
	byNiche := make(map[string][]ScoredIndividual)
	for _, item := range ranked {
		key := nicheByID[item.Individual.ID]
		byNiche[key] = append(byNiche[key], item)
	}
	keys := make([]string, 0, len(byNiche))
	for key, members := range byNiche {
		if len(members) >= minSize {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return s.PickParent(rng, ranked, eliteCount)
	}
	sort.Strings(keys)
	candidates := byNiche[keys[rng.Intn(len(keys))]]
	return tournament(rng, candidates, s.TournamentSize).Individual, nil
}

func SelectorFromName(name string, tournamentSize int) (Selector, error) {
	switch name {
	case "", "elite":
		return EliteSelector{}, nil
	case "tournament":
		return TournamentSelector{TournamentSize: tournamentSize}, nil
	case "roulette":
		return RouletteSelector{}, nil
	case "rank":
		return RankSelector{}, nil
	case "niche_tournament":
		return NicheTournamentSelector{TournamentSize: tournamentSize}, nil
	default:
		return nil, fmt.Errorf("unsupported selection strategy: %s", name)
	}
}

func tournament(rng *rand.Rand, candidates []ScoredIndividual, size int) ScoredIndividual {
	if size <= 0 {
		size = 3
	}
	if size > len(candidates) {
		size = len(candidates)
	}
	best := candidates[rng.Intn(len(candidates))]
	for i := 1; i < size; i++ {
		candidate := candidates[rng.Intn(len(candidates))]
		if candidate.Score > best.Score {
			best = candidate
		}
	}
	return best
}

func checkSelection(rng *rand.Rand, ranked []ScoredIndividual, eliteCount int) error {
	if rng == nil {
		return fmt.Errorf("random source is required")
	}
	if eliteCount <= 0 || eliteCount > len(ranked) {
		return fmt.Errorf("invalid elite count: %d", eliteCount)
	}
	return nil
}
