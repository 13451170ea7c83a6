package evo

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natsel/internal/fitness"
	"natsel/internal/model"
)

func TestMutationOperatorsLeaveInputUntouched(t *testing.T) {
	bounds := fitness.UniformRange(4, -1, 1)
	genome := model.Genome{0.1, -0.2, 0.3, -0.4}
	operators := []Operator{
		&GaussianMutation{Rand: rand.New(rand.NewSource(1)), Rate: 1},
		&UniformResetMutation{Rand: rand.New(rand.NewSource(2)), Rate: 1},
		&CreepMutation{Rand: rand.New(rand.NewSource(3))},
		&BoundaryMutation{Rand: rand.New(rand.NewSource(4))},
	}
	for _, op := range operators {
		t.Run(op.Name(), func(t *testing.T) {
			out, err := op.Apply(context.Background(), genome, bounds)
			require.NoError(t, err)
			require.Len(t, out, len(genome))
			assert.NotEqual(t, genome, out)
			assert.Equal(t, model.Genome{0.1, -0.2, 0.3, -0.4}, genome)
		})
	}
}

func TestMutationOperatorsRejectBadInput(t *testing.T) {
	bounds := fitness.UniformRange(2, 0, 1)
	operators := []Operator{
		&GaussianMutation{Rand: rand.New(rand.NewSource(1))},
		&UniformResetMutation{Rand: rand.New(rand.NewSource(1))},
		&CreepMutation{Rand: rand.New(rand.NewSource(1))},
		&BoundaryMutation{Rand: rand.New(rand.NewSource(1))},
	}
	for _, op := range operators {
		_, err := op.Apply(context.Background(), model.Genome{}, bounds)
		assert.ErrorIs(t, err, ErrNoGenes, op.Name())
		_, err = op.Apply(context.Background(), model.Genome{0.5}, bounds)
		assert.ErrorIs(t, err, ErrGenomeShape, op.Name())
		assert.ErrorIs(t, err, fitness.ErrLengthMismatch, op.Name())
	}

	_, err := (&GaussianMutation{}).Apply(context.Background(), model.Genome{0, 0}, bounds)
	assert.Error(t, err)
}

func TestUniformResetStaysInBounds(t *testing.T) {
	bounds := model.GenomeRange{{Min: 2, Max: 3}, {Min: -10, Max: -9}}
	op := &UniformResetMutation{Rand: rand.New(rand.NewSource(8)), Rate: 1}
	for i := 0; i < 50; i++ {
		out, err := op.Apply(context.Background(), model.Genome{2.5, -9.5}, bounds)
		require.NoError(t, err)
		assert.True(t, fitness.Contains(bounds, out), "%v", out)
	}
}

func TestCreepMutationChangesOneGeneBySmallStep(t *testing.T) {
	bounds := fitness.UniformRange(3, 0, 10)
	op := &CreepMutation{Rand: rand.New(rand.NewSource(6)), Step: 0.05}
	genome := model.Genome{5, 5, 5}
	out, err := op.Apply(context.Background(), genome, bounds)
	require.NoError(t, err)

	changed := 0
	for i := range out {
		if out[i] != genome[i] {
			changed++
			assert.InDelta(t, genome[i], out[i], 0.5)
		}
	}
	assert.LessOrEqual(t, changed, 1)
}

func TestBoundaryMutationHitsABound(t *testing.T) {
	bounds := model.GenomeRange{{Min: -3, Max: 7}}
	op := &BoundaryMutation{Rand: rand.New(rand.NewSource(2))}
	out, err := op.Apply(context.Background(), model.Genome{1}, bounds)
	require.NoError(t, err)
	assert.Contains(t, []float64{-3, 7}, out[0])
}

func TestForEachMutatedGeneMutatesAtLeastOne(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		calls := 0
		forEachMutatedGene(rng, 5, 1e-9, func(int) { calls++ })
		assert.Equal(t, 1, calls)
	}
}

func TestCrossoverOperators(t *testing.T) {
	bounds := fitness.UniformRange(4, -10, 10)
	a := model.Genome{1, 2, 3, 4}
	b := model.Genome{-1, -2, -3, -4}
	rng := rand.New(rand.NewSource(11))

	child, err := UniformCrossover{}.Cross(rng, a, b, bounds)
	require.NoError(t, err)
	for i := range child {
		assert.Contains(t, []float64{a[i], b[i]}, child[i])
	}

	child, err = ArithmeticCrossover{}.Cross(rng, a, b, bounds)
	require.NoError(t, err)
	for i := range child {
		assert.GreaterOrEqual(t, child[i], b[i])
		assert.LessOrEqual(t, child[i], a[i])
	}

	child, err = SinglePointCrossover{}.Cross(rng, a, b, bounds)
	require.NoError(t, err)
	assert.Equal(t, a[0], child[0], "cut point is never before the first gene")
	assert.Equal(t, b[3], child[3], "cut point is never after the last gene")

	child, err = BLXAlphaCrossover{Alpha: 0.5}.Cross(rng, a, b, bounds)
	require.NoError(t, err)
	for i := range child {
		spread := (a[i] - b[i]) * 0.5
		assert.GreaterOrEqual(t, child[i], b[i]-spread)
		assert.LessOrEqual(t, child[i], a[i]+spread)
	}

	_, err = BLXAlphaCrossover{Alpha: -1}.Cross(rng, a, b, bounds)
	assert.Error(t, err)
	_, err = UniformCrossover{}.Cross(rng, a, b[:2], bounds)
	assert.ErrorIs(t, err, ErrGenomeShape)
	_, err = UniformCrossover{}.Cross(nil, a, b, bounds)
	assert.Error(t, err)
}

func TestCrossoverFromName(t *testing.T) {
	none, err := CrossoverFromName("none", 0)
	require.NoError(t, err)
	assert.Nil(t, none)

	for _, name := range []string{"uniform", "arithmetic", "single_point", "blx_alpha"} {
		c, err := CrossoverFromName(name, 0)
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
	blx, err := CrossoverFromName("blx_alpha", 0)
	require.NoError(t, err)
	assert.Equal(t, 0.5, blx.(BLXAlphaCrossover).Alpha)

	_, err = CrossoverFromName("bogus", 0)
	assert.Error(t, err)
}

func TestMutationCountPolicies(t *testing.T) {
	genome := make(model.Genome, 9)
	rng := rand.New(rand.NewSource(1))

	n, err := ConstMutationCount{Count: 2}.MutationCount(genome, 0, rng)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = ConstMutationCount{}.MutationCount(genome, 0, rng)
	assert.Error(t, err)

	n, err = DimensionLinearMutationCount{Multiplier: 0.5}.MutationCount(genome, 0, rng)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	n, err = DimensionLinearMutationCount{Multiplier: 0.5, MaxCount: 3}.MutationCount(genome, 0, rng)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = DimensionLinearMutationCount{Multiplier: 0.01}.MutationCount(genome, 0, rng)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for i := 0; i < 30; i++ {
		n, err = DimensionRandomMutationCount{Power: 0.5}.MutationCount(genome, 0, rng)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, 3)
	}
	_, err = DimensionRandomMutationCount{Power: 0.5}.MutationCount(genome, 0, nil)
	assert.Error(t, err)
}

func TestMutationCountPolicyFromConfig(t *testing.T) {
	p, err := MutationCountPolicyFromConfig("", 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, ConstMutationCount{Count: 1}, p)

	p, err = MutationCountPolicyFromConfig("dimension_linear", 0, 0.3, 4)
	require.NoError(t, err)
	assert.Equal(t, "dimension_linear", p.Name())

	_, err = MutationCountPolicyFromConfig("dimension_random", 0, 0, 0)
	assert.Error(t, err)
	_, err = MutationCountPolicyFromConfig("bogus", 1, 1, 0)
	assert.Error(t, err)
}

func TestApplyMutationParams(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	gaussian := &GaussianMutation{Rand: rng, Sigma: 0.1}
	reset := &UniformResetMutation{Rand: rng}
	creep := &CreepMutation{Rand: rng, Step: 0.05}
	boundary := &BoundaryMutation{Rand: rng}
	policy := []WeightedMutation{
		{Operator: gaussian, Weight: 1},
		{Operator: reset, Weight: 1},
		{Operator: creep, Weight: 1},
		{Operator: boundary, Weight: 1},
	}

	ApplyMutationParams(policy, MutationParams{Sigma: 0.3, Rate: 0.5})
	assert.Equal(t, 0.3, gaussian.Sigma)
	assert.Equal(t, 0.5, gaussian.Rate)
	assert.Equal(t, 0.5, reset.Rate)
	assert.Equal(t, 0.05, creep.Step, "zero step keeps the default")

	ApplyMutationParams(policy, MutationParams{Step: 0.2})
	assert.Equal(t, 0.2, creep.Step)
	assert.Equal(t, 0.3, gaussian.Sigma)
}
