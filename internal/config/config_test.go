package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "natsel.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sphere", cfg.Run.Problem)
	assert.Nil(t, cfg.Run.FitnessGoal)
	assert.Equal(t, map[string]float64{"gaussian": 1}, cfg.Mutation.Weights)
}

func TestLoadExample(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "testdata", "config", "example.toml"))
	require.NoError(t, err)

	assert.Equal(t, "rastrigin", cfg.Run.Problem)
	assert.Equal(t, 6, cfg.Run.Dimensions)
	assert.Equal(t, 40, cfg.Run.Population)
	assert.Equal(t, int64(7), cfg.Run.Seed)
	require.NotNil(t, cfg.Run.FitnessGoal)
	assert.InDelta(t, 0.01, *cfg.Run.FitnessGoal, 1e-12)
	assert.True(t, cfg.Run.Cache)
	assert.Equal(t, "blx_alpha", cfg.Crossover.Operator)
	assert.Equal(t, map[string]float64{"gaussian": 3, "creep": 1, "uniform_reset": 0.5}, cfg.Mutation.Weights)
	assert.Equal(t, "sharing", cfg.Postprocess.Name)
	assert.True(t, cfg.Tuning.Enabled)
	assert.Equal(t, "dynamic_random", cfg.Tuning.Selection)
	assert.Equal(t, "bolt", cfg.Store.Kind)
	assert.Equal(t, "json", cfg.Log.Format)

	params := cfg.ProblemParams()
	assert.Equal(t, 6, params.Dimensions)
	assert.Equal(t, int64(7), params.Seed)
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := writeConfig(t, `
[run]
generations = 10
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, 10, cfg.Run.Generations)
	assert.Equal(t, def.Run.Population, cfg.Run.Population)
	assert.Equal(t, def.Selection, cfg.Selection)
	assert.Equal(t, def.Mutation.Weights, cfg.Mutation.Weights)
	assert.Equal(t, def.Store, cfg.Store)
}

func TestLoadReplacesMutationWeights(t *testing.T) {
	path := writeConfig(t, `
[mutation.weights]
creep = 2
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"creep": 2}, cfg.Mutation.Weights)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
[run]
populaton = 10
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "populaton")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"population":  "[run]\npopulation = 0\n",
		"selection":   "[selection]\nstrategy = \"lottery\"\n",
		"crossover":   "[crossover]\nrate = 1.5\n",
		"weights":     "[mutation.weights]\ngaussian = -1\n",
		"postprocess": "[postprocess]\nname = \"scale\"\n",
		"tuning":      "[tuning]\nenabled = true\nduration_policy = \"forever\"\n",
		"store":       "[store]\nkind = \"sqlite\"\n",
		"log":         "[log]\nlevel = \"loud\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateCollectsEveryError(t *testing.T) {
	cfg := Default()
	cfg.Run.Problem = ""
	cfg.Run.Generations = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run.problem")
	assert.Contains(t, err.Error(), "run.generations")
}
