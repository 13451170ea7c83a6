package problem

import (
	"fmt"
	"math"

	"natsel/internal/fitness"
	"natsel/internal/model"
)

const (
	ParaboloidName  = "paraboloid"
	SphereName      = "sphere"
	RastriginName   = "rastrigin"
	RosenbrockName  = "rosenbrock"
	AckleyName      = "ackley"
	NoisySphereName = "noisy_sphere"
)

// Paraboloid peaks at Centre with value 0: fitness = -sum((x_i - c_i)^2).
// The default instance has two genes bounded by [-2, 3] and [3, 5] centred on
// (0.5, 4).
type Paraboloid struct {
	*bounded
	centre model.Genome
}

var (
	_ fitness.Provider  = (*Paraboloid)(nil)
	_ fitness.Directed  = (*Paraboloid)(nil)
	_ fitness.Describer = (*Paraboloid)(nil)
)

func DefaultParaboloidRange() model.GenomeRange {
	return model.GenomeRange{{Min: -2, Max: 3}, {Min: 3, Max: 5}}
}

func NewParaboloid(bounds model.GenomeRange, centre model.Genome, seed int64) (*Paraboloid, error) {
	base, err := newBounded(bounds, seed)
	if err != nil {
		return nil, err
	}
	if centre == nil {
		centre = make(model.Genome, len(bounds))
		for i, b := range bounds {
			centre[i] = b.Min + b.Span()/2
		}
	}
	if len(centre) != len(bounds) {
		return nil, fmt.Errorf("paraboloid centre: %w", fitness.ErrLengthMismatch)
	}
	return &Paraboloid{bounded: base, centre: centre.Clone()}, nil
}

// NewParaboloidFromParams uses the default two-gene range unless another
// dimension count is requested, in which case every gene is bounded by [-2, 3].
func NewParaboloidFromParams(p Params) (*Paraboloid, error) {
	if p.Dimensions == 0 || p.Dimensions == 2 {
		return NewParaboloid(DefaultParaboloidRange(), nil, p.Seed)
	}
	if err := requireDimensions(p.Dimensions, 1); err != nil {
		return nil, err
	}
	return NewParaboloid(fitness.UniformRange(p.Dimensions, -2, 3), nil, p.Seed)
}

func (p *Paraboloid) Name() string                 { return ParaboloidName }
func (p *Paraboloid) Objective() fitness.Objective { return fitness.Maximize }
func (p *Paraboloid) Description() string {
	return "negated squared distance to a fixed centre; maximum 0"
}

func (p *Paraboloid) Centre() model.Genome { return p.centre.Clone() }

func (p *Paraboloid) Fitness(genome model.Genome) (float64, error) {
	if err := p.checkLength(genome); err != nil {
		return 0, err
	}
	total := 0.0
	for i, v := range genome {
		d := v - p.centre[i]
		total += d * d
	}
	return -total, nil
}

type Sphere struct {
	*bounded
}

var _ fitness.Provider = (*Sphere)(nil)

func NewSphere(dimensions int, seed int64) (*Sphere, error) {
	if err := requireDimensions(dimensions, 1); err != nil {
		return nil, err
	}
	base, err := newBounded(fitness.UniformRange(dimensions, -5.12, 5.12), seed)
	if err != nil {
		return nil, err
	}
	return &Sphere{bounded: base}, nil
}

func (s *Sphere) Name() string                 { return SphereName }
func (s *Sphere) Objective() fitness.Objective { return fitness.Minimize }
func (s *Sphere) Description() string          { return "sum of squares; minimum 0 at the origin" }

func (s *Sphere) Fitness(genome model.Genome) (float64, error) {
	if err := s.checkLength(genome); err != nil {
		return 0, err
	}
	return sphere(genome), nil
}

func sphere(genome model.Genome) float64 {
	total := 0.0
	for _, v := range genome {
		total += v * v
	}
	return total
}

type Rastrigin struct {
	*bounded
}

var _ fitness.Provider = (*Rastrigin)(nil)

func NewRastrigin(dimensions int, seed int64) (*Rastrigin, error) {
	if err := requireDimensions(dimensions, 1); err != nil {
		return nil, err
	}
	base, err := newBounded(fitness.UniformRange(dimensions, -5.12, 5.12), seed)
	if err != nil {
		return nil, err
	}
	return &Rastrigin{bounded: base}, nil
}

func (r *Rastrigin) Name() string                 { return RastriginName }
func (r *Rastrigin) Objective() fitness.Objective { return fitness.Minimize }
func (r *Rastrigin) Description() string {
	return "highly multimodal; minimum 0 at the origin"
}

func (r *Rastrigin) Fitness(genome model.Genome) (float64, error) {
	if err := r.checkLength(genome); err != nil {
		return 0, err
	}
	total := 10 * float64(len(genome))
	for _, v := range genome {
		total += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return total, nil
}

type Rosenbrock struct {
	*bounded
}

var _ fitness.Provider = (*Rosenbrock)(nil)

func NewRosenbrock(dimensions int, seed int64) (*Rosenbrock, error) {
	if err := requireDimensions(dimensions, 2); err != nil {
		return nil, err
	}
	base, err := newBounded(fitness.UniformRange(dimensions, -5, 10), seed)
	if err != nil {
		return nil, err
	}
	return &Rosenbrock{bounded: base}, nil
}

func (r *Rosenbrock) Name() string                 { return RosenbrockName }
func (r *Rosenbrock) Objective() fitness.Objective { return fitness.Minimize }
func (r *Rosenbrock) Description() string {
	return "narrow curved valley; minimum 0 at (1, ..., 1)"
}

func (r *Rosenbrock) Fitness(genome model.Genome) (float64, error) {
	if err := r.checkLength(genome); err != nil {
		return 0, err
	}
	total := 0.0
	for i := 0; i < len(genome)-1; i++ {
		a := genome[i+1] - genome[i]*genome[i]
		b := 1 - genome[i]
		total += 100*a*a + b*b
	}
	return total, nil
}

type Ackley struct {
	*bounded
}

var _ fitness.Provider = (*Ackley)(nil)

func NewAckley(dimensions int, seed int64) (*Ackley, error) {
	if err := requireDimensions(dimensions, 1); err != nil {
		return nil, err
	}
	base, err := newBounded(fitness.UniformRange(dimensions, -32.768, 32.768), seed)
	if err != nil {
		return nil, err
	}
	return &Ackley{bounded: base}, nil
}

func (a *Ackley) Name() string                 { return AckleyName }
func (a *Ackley) Objective() fitness.Objective { return fitness.Minimize }
func (a *Ackley) Description() string          { return "nearly flat outer region; minimum 0 at the origin" }

func (a *Ackley) Fitness(genome model.Genome) (float64, error) {
	if err := a.checkLength(genome); err != nil {
		return 0, err
	}
	n := float64(len(genome))
	squares, cosines := 0.0, 0.0
	for _, v := range genome {
		squares += v * v
		cosines += math.Cos(2 * math.Pi * v)
	}
	value := -20*math.Exp(-0.2*math.Sqrt(squares/n)) - math.Exp(cosines/n) + 20 + math.E
	if value < 0 {
		// rounding near the optimum
		value = 0
	}
	return value, nil
}

// NoisySphere adds zero-mean Gaussian noise to Sphere.
type NoisySphere struct {
	*bounded
	noise float64
}

var _ fitness.Stochastic = (*NoisySphere)(nil)

func NewNoisySphere(dimensions int, noise float64, seed int64) (*NoisySphere, error) {
	if err := requireDimensions(dimensions, 1); err != nil {
		return nil, err
	}
	if noise < 0 {
		return nil, fmt.Errorf("noise must be >= 0, got %g", noise)
	}
	if noise == 0 {
		noise = 0.1
	}
	base, err := newBounded(fitness.UniformRange(dimensions, -5.12, 5.12), seed)
	if err != nil {
		return nil, err
	}
	return &NoisySphere{bounded: base, noise: noise}, nil
}

func (s *NoisySphere) Name() string                 { return NoisySphereName }
func (s *NoisySphere) Objective() fitness.Objective { return fitness.Minimize }
func (s *NoisySphere) Stochastic() bool             { return true }
func (s *NoisySphere) Description() string {
	return fmt.Sprintf("sphere with gaussian noise sigma=%g", s.noise)
}

func (s *NoisySphere) Fitness(genome model.Genome) (float64, error) {
	if err := s.checkLength(genome); err != nil {
		return 0, err
	}
	s.mu.Lock()
	jitter := s.rng.NormFloat64() * s.noise
	s.mu.Unlock()
	return sphere(genome) + jitter, nil
}
