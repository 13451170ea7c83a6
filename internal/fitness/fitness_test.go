package fitness

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natsel/internal/model"
)

type partialProvider struct {
	Unimplemented
	bounds model.GenomeRange
}

func (p partialProvider) GenomeRange() model.GenomeRange { return p.bounds.Clone() }

type shortGenomeProvider struct {
	bounds model.GenomeRange
}

func (p shortGenomeProvider) InitializeGenome() model.Genome { return model.Genome{0} }
func (p shortGenomeProvider) GenomeRange() model.GenomeRange { return p.bounds.Clone() }
func (p shortGenomeProvider) Fitness(model.Genome) (float64, error) {
	return 0, nil
}

type drifting struct {
	calls int
}

func (p *drifting) InitializeGenome() model.Genome { return model.Genome{0.5} }
func (p *drifting) GenomeRange() model.GenomeRange { return UniformRange(1, 0, 1) }
func (p *drifting) Fitness(model.Genome) (float64, error) {
	p.calls++
	return float64(p.calls), nil
}

type noisyDrifting struct {
	drifting
}

func (noisyDrifting) Stochastic() bool { return true }

func TestUnimplementedFailsEveryOperation(t *testing.T) {
	var p Provider = Unimplemented{}

	assertNotImplementedPanic(t, "InitializeGenome", func() { p.InitializeGenome() })
	assertNotImplementedPanic(t, "GenomeRange", func() { p.GenomeRange() })

	_, err := p.Fitness(model.Genome{1, 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotImplemented)
	var nie *NotImplementedError
	require.True(t, errors.As(err, &nie))
	assert.Equal(t, "Fitness", nie.Op)
}

func assertNotImplementedPanic(t *testing.T, op string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected %s to panic", op)
		err, ok := r.(error)
		require.True(t, ok, "expected error panic value, got %T", r)
		assert.ErrorIs(t, err, ErrNotImplemented)
		assert.Contains(t, err.Error(), op)
	}()
	fn()
}

func TestCheckReportsMissingOperation(t *testing.T) {
	err := Check(partialProvider{bounds: UniformRange(2, -1, 1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotImplemented)
	assert.Contains(t, err.Error(), "InitializeGenome")

	err = Check(Unimplemented{})
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestCheckRejectsLengthMismatch(t *testing.T) {
	err := Check(shortGenomeProvider{bounds: UniformRange(3, 0, 1)})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestCheckRejectsNondeterministicFitness(t *testing.T) {
	assert.ErrorIs(t, Check(&drifting{}), ErrNondeterministic)
	assert.NoError(t, Check(&noisyDrifting{}))
}

func TestCheckAcceptsFuncProvider(t *testing.T) {
	p, err := NewFuncProvider("sum", model.GenomeRange{{Min: -2, Max: 3}, {Min: 3, Max: 5}}, Maximize, 7, func(g model.Genome) (float64, error) {
		return g[0] + g[1], nil
	})
	require.NoError(t, err)
	require.NoError(t, Check(p))

	genome := p.InitializeGenome()
	require.Len(t, genome, len(p.GenomeRange()))
	assert.True(t, Contains(p.GenomeRange(), genome))

	_, err = p.Fitness(model.Genome{1})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestGenomeRangeIsCopied(t *testing.T) {
	p, err := NewFuncProvider("copy", UniformRange(2, 0, 1), "", 1, func(model.Genome) (float64, error) { return 0, nil })
	require.NoError(t, err)

	bounds := p.GenomeRange()
	bounds[0].Max = 100
	assert.Equal(t, 1.0, p.GenomeRange()[0].Max)
	assert.Equal(t, Maximize, ObjectiveOf(p))
}

func TestValidateRange(t *testing.T) {
	assert.NoError(t, ValidateRange(model.GenomeRange{{Min: 1, Max: 1}}))
	assert.ErrorIs(t, ValidateRange(nil), ErrInvalidRange)
	assert.ErrorIs(t, ValidateRange(model.GenomeRange{{Min: 2, Max: 1}}), ErrInvalidRange)
	assert.ErrorIs(t, ValidateRange(model.GenomeRange{{Min: math.Inf(-1), Max: 1}}), ErrInvalidRange)
}

func TestClampAndSample(t *testing.T) {
	bounds := model.GenomeRange{{Min: -2, Max: 3}, {Min: 3, Max: 5}}
	assert.Equal(t, model.Genome{-2, 5}, Clamp(bounds, model.Genome{-10, 10}))
	assert.Equal(t, 0.5, ClampGene(bounds[0], math.NaN()))

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		g := Sample(rng, bounds)
		require.True(t, Contains(bounds, g), "sample %v outside %v", g, bounds)
	}
}

func TestObjective(t *testing.T) {
	obj, err := ParseObjective("min")
	require.NoError(t, err)
	assert.Equal(t, Minimize, obj)
	assert.True(t, Minimize.Better(1, 2))
	assert.True(t, Maximize.Better(2, 1))
	assert.True(t, Minimize.Reached(0.001, 0.01))
	assert.False(t, Maximize.Reached(0.001, 0.01))

	_, err = ParseObjective("sideways")
	assert.Error(t, err)
}
