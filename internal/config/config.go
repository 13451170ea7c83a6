// Package config loads run configuration from TOML files.
//
// Every section is optional. Missing keys keep the values from Default, so a
// file only needs to name what it changes.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"natsel/internal/evo"
	"natsel/internal/logging"
	"natsel/internal/problem"
	"natsel/internal/storage"
	"natsel/internal/tuning"
)

type Run struct {
	Run         RunSection         `toml:"run"`
	Selection   SelectionSection   `toml:"selection"`
	Crossover   CrossoverSection   `toml:"crossover"`
	Mutation    MutationSection    `toml:"mutation"`
	Postprocess PostprocessSection `toml:"postprocess"`
	Tuning      TuningSection      `toml:"tuning"`
	Store       StoreSection       `toml:"store"`
	Log         LogSection         `toml:"log"`
	Metrics     MetricsSection     `toml:"metrics"`
}

type RunSection struct {
	Problem     string  `toml:"problem"`
	Dimensions  int     `toml:"dimensions"`
	Noise       float64 `toml:"noise"`
	DataPath    string  `toml:"data_path"`
	Degree      int     `toml:"degree"`
	Population  int     `toml:"population"`
	Generations int     `toml:"generations"`
	Seed        int64   `toml:"seed"`
	Workers     int     `toml:"workers"`
	EliteCount  int     `toml:"elite_count"`
	// FitnessGoal is left nil when the key is absent.
	FitnessGoal      *float64 `toml:"fitness_goal"`
	EvaluationsLimit int      `toml:"evaluations_limit"`
	Cache            bool     `toml:"cache"`
}

type SelectionSection struct {
	Strategy       string `toml:"strategy"`
	TournamentSize int    `toml:"tournament_size"`
}

type CrossoverSection struct {
	Operator string  `toml:"operator"`
	Rate     float64 `toml:"rate"`
	Alpha    float64 `toml:"alpha"`
}

type MutationSection struct {
	Weights     map[string]float64 `toml:"weights"`
	Sigma       float64            `toml:"sigma"`
	Rate        float64            `toml:"rate"`
	Step        float64            `toml:"step"`
	CountPolicy string             `toml:"count_policy"`
	Count       int                `toml:"count"`
	CountParam  float64            `toml:"count_param"`
	CountMax    int                `toml:"count_max"`
}

type PostprocessSection struct {
	Name          string  `toml:"name"`
	SharingRadius float64 `toml:"sharing_radius"`
}

type TuningSection struct {
	Enabled           bool    `toml:"enabled"`
	Attempts          int     `toml:"attempts"`
	Steps             int     `toml:"steps"`
	StepSize          float64 `toml:"step_size"`
	PerturbationRange float64 `toml:"perturbation_range"`
	AnnealingFactor   float64 `toml:"annealing_factor"`
	MinImprovement    float64 `toml:"min_improvement"`
	Selection         string  `toml:"selection"`
	DurationPolicy    string  `toml:"duration_policy"`
	DurationParam     float64 `toml:"duration_param"`
}

type StoreSection struct {
	Kind string `toml:"kind"`
	Path string `toml:"path"`
}

type LogSection struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type MetricsSection struct {
	// Addr enables the metrics endpoint when set, e.g. "127.0.0.1:9090".
	Addr string `toml:"addr"`
}

func Default() Run {
	return Run{
		Run: RunSection{
			Problem:     problem.SphereName,
			Population:  32,
			Generations: 50,
			Seed:        1,
			Workers:     4,
			EliteCount:  2,
		},
		Selection: SelectionSection{Strategy: "tournament", TournamentSize: 3},
		Crossover: CrossoverSection{Operator: "uniform", Rate: 0.7, Alpha: 0.5},
		Mutation: MutationSection{
			Weights:     map[string]float64{"gaussian": 1},
			CountPolicy: "const",
			Count:       1,
		},
		Postprocess: PostprocessSection{Name: "none"},
		Tuning: TuningSection{
			Attempts:       5,
			Steps:          3,
			StepSize:       0.1,
			Selection:      tuning.CandidateSelectBestSoFar,
			DurationPolicy: "fixed",
		},
		Store: StoreSection{Kind: "memory"},
		Log:   LogSection{Level: "info", Format: logging.FormatConsole},
	}
}

// Load decodes path on top of Default and validates the result.
func Load(path string) (Run, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return Run{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	// Weights in the file replace the default set rather than merge into it.
	cfg.Mutation.Weights = nil
	md, err := toml.NewDecoder(f).Decode(&cfg)
	if err != nil {
		return Run{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Run{}, fmt.Errorf("decode config %s: unknown key %s", path, undecoded[0].String())
	}
	if len(cfg.Mutation.Weights) == 0 {
		cfg.Mutation.Weights = Default().Mutation.Weights
	}
	if err := cfg.Validate(); err != nil {
		return Run{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Run) Validate() error {
	var errs []error
	if c.Run.Problem == "" {
		errs = append(errs, errors.New("run.problem is required"))
	}
	if c.Run.Dimensions < 0 {
		errs = append(errs, errors.New("run.dimensions must be >= 0"))
	}
	if c.Run.Noise < 0 {
		errs = append(errs, errors.New("run.noise must be >= 0"))
	}
	if c.Run.Population <= 0 {
		errs = append(errs, errors.New("run.population must be > 0"))
	}
	if c.Run.Generations <= 0 {
		errs = append(errs, errors.New("run.generations must be > 0"))
	}
	if c.Run.Workers < 0 {
		errs = append(errs, errors.New("run.workers must be >= 0"))
	}
	if c.Run.EliteCount < 0 || c.Run.EliteCount > c.Run.Population {
		errs = append(errs, errors.New("run.elite_count must be between 0 and run.population"))
	}
	if c.Run.EvaluationsLimit < 0 {
		errs = append(errs, errors.New("run.evaluations_limit must be >= 0"))
	}
	if _, err := evo.SelectorFromName(c.Selection.Strategy, c.Selection.TournamentSize); err != nil {
		errs = append(errs, err)
	}
	if _, err := evo.CrossoverFromName(c.Crossover.Operator, c.Crossover.Alpha); err != nil {
		errs = append(errs, err)
	}
	if c.Crossover.Rate < 0 || c.Crossover.Rate > 1 {
		errs = append(errs, errors.New("crossover.rate must be in [0, 1]"))
	}
	if len(c.Mutation.Weights) == 0 {
		errs = append(errs, errors.New("mutation.weights must name at least one operator"))
	}
	for name, w := range c.Mutation.Weights {
		if w < 0 {
			errs = append(errs, fmt.Errorf("mutation.weights.%s must be >= 0", name))
		}
	}
	if c.Mutation.Sigma < 0 || c.Mutation.Step < 0 {
		errs = append(errs, errors.New("mutation.sigma and mutation.step must be >= 0"))
	}
	if c.Mutation.Rate < 0 || c.Mutation.Rate > 1 {
		errs = append(errs, errors.New("mutation.rate must be in [0, 1]"))
	}
	if _, err := evo.MutationCountPolicyFromConfig(c.Mutation.CountPolicy, c.Mutation.Count, c.Mutation.CountParam, c.Mutation.CountMax); err != nil {
		errs = append(errs, err)
	}
	if _, err := evo.PostprocessorFromName(c.Postprocess.Name, c.Postprocess.SharingRadius); err != nil {
		errs = append(errs, err)
	}
	if c.Tuning.Enabled {
		if c.Tuning.Attempts <= 0 || c.Tuning.Steps <= 0 || c.Tuning.StepSize <= 0 {
			errs = append(errs, errors.New("tuning.attempts, tuning.steps and tuning.step_size must be > 0 when tuning is enabled"))
		}
		if _, err := tuning.AttemptPolicyFromConfig(c.Tuning.DurationPolicy, c.Tuning.DurationParam); err != nil {
			errs = append(errs, err)
		}
	}
	switch c.Store.Kind {
	case "", "memory":
	case "sqlite", "bolt", "bbolt":
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("store.path is required for %s", c.Store.Kind))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %s", storage.ErrUnsupportedStore, c.Store.Kind))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "", logging.FormatConsole, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unsupported log format: %s", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ProblemParams returns the parameters used to build the configured problem.
func (c Run) ProblemParams() problem.Params {
	return problem.Params{
		Dimensions: c.Run.Dimensions,
		Seed:       c.Run.Seed,
		Noise:      c.Run.Noise,
		DataPath:   c.Run.DataPath,
		Degree:     c.Run.Degree,
	}
}
