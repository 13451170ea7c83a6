package evo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natsel/internal/fitness"
	"natsel/internal/model"
)

func TestNoopPostprocessorKeepsCloneIsolation(t *testing.T) {
	scored := rankedByScore(3, 2)
	out := NoopFitnessPostprocessor{}.Process(scored, nil)
	out[0].Score = -100
	assert.Equal(t, 3.0, scored[0].Score)
}

func TestRankPostprocessorNormalizesScores(t *testing.T) {
	scored := rankedByScore(10, -4, 7, 7)
	out := RankPostprocessor{}.Process(scored, nil)

	assert.Equal(t, 1.0, out[0].Score)
	assert.Equal(t, 0.0, out[1].Score)
	assert.InDelta(t, 1.0/3.0, out[2].Score, 1e-12)
	assert.Equal(t, out[2].Score, out[3].Score, "ties share the lower rank")
	for i := range scored {
		assert.Equal(t, scored[i].Fitness, out[i].Fitness, "raw fitness is untouched")
	}

	single := RankPostprocessor{}.Process(rankedByScore(-3), nil)
	assert.Equal(t, 1.0, single[0].Score)
}

func TestSharingPostprocessorPenalizesCrowding(t *testing.T) {
	bounds := fitness.UniformRange(1, 0, 1)
	scored := []ScoredIndividual{
		{Individual: model.Individual{ID: "crowd-a", Genes: model.Genome{0.10}}, Fitness: 1, Score: 1},
		{Individual: model.Individual{ID: "crowd-b", Genes: model.Genome{0.11}}, Fitness: 1, Score: 1},
		{Individual: model.Individual{ID: "crowd-c", Genes: model.Genome{0.12}}, Fitness: 1, Score: 1},
		{Individual: model.Individual{ID: "alone", Genes: model.Genome{0.90}}, Fitness: 1, Score: 1},
		{Individual: model.Individual{ID: "floor", Genes: model.Genome{0.50}}, Fitness: 0, Score: 0},
	}
	out := SharingPostprocessor{Radius: 0.1}.Process(scored, bounds)

	require.Len(t, out, len(scored))
	assert.Greater(t, out[3].Score, out[0].Score)
	assert.Greater(t, out[3].Score, out[1].Score)
	assert.Greater(t, out[3].Score, out[4].Score)
	assert.Equal(t, 1.0, scored[0].Score, "input is not modified")
}

func TestPostprocessorFromName(t *testing.T) {
	for _, name := range []string{"none", "rank", "sharing"} {
		p, err := PostprocessorFromName(name, 0.2)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}
	p, err := PostprocessorFromName("", 0)
	require.NoError(t, err)
	assert.Equal(t, "none", p.Name())
	_, err = PostprocessorFromName("novelty", 0)
	assert.Error(t, err)
}
