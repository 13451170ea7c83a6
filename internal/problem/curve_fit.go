package problem

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"natsel/internal/fitness"
	"natsel/internal/model"
)

const (
	CurveFitName          = "curve_fit"
	defaultCurveFitDegree = 2
)

type Sample struct {
	X float64
	Y float64
}

// CurveFit scores polynomial coefficients by mean squared error against a
// fixed sample set. Genome position i is the coefficient of x^i.
type CurveFit struct {
	*bounded
	samples []Sample
}

var (
	_ fitness.Provider  = (*CurveFit)(nil)
	_ fitness.Describer = (*CurveFit)(nil)
)

func NewCurveFit(samples []Sample, degree int, seed int64) (*CurveFit, error) {
	if len(samples) == 0 {
		return nil, errors.New("curve fit requires at least one sample")
	}
	if degree < 0 {
		return nil, fmt.Errorf("degree must be >= 0, got %d", degree)
	}
	base, err := newBounded(fitness.UniformRange(degree+1, -10, 10), seed)
	if err != nil {
		return nil, err
	}
	return &CurveFit{bounded: base, samples: append([]Sample(nil), samples...)}, nil
}

// NewCurveFitFromParams loads samples from DataPath when set and otherwise
// fits the quadratic 1 + 2x - 0.5x^2 sampled on [-2, 2].
func NewCurveFitFromParams(p Params) (*CurveFit, error) {
	degree := p.Degree
	if degree == 0 {
		degree = defaultCurveFitDegree
	}
	samples := DefaultCurveSamples()
	if p.DataPath != "" {
		loaded, err := LoadSamplesCSV(p.DataPath)
		if err != nil {
			return nil, err
		}
		samples = loaded
	}
	return NewCurveFit(samples, degree, p.Seed)
}

func DefaultCurveSamples() []Sample {
	out := make([]Sample, 0, 17)
	for i := 0; i <= 16; i++ {
		x := -2 + float64(i)*0.25
		out = append(out, Sample{X: x, Y: 1 + 2*x - 0.5*x*x})
	}
	return out
}

func (c *CurveFit) Name() string                 { return CurveFitName }
func (c *CurveFit) Objective() fitness.Objective { return fitness.Minimize }
func (c *CurveFit) Description() string {
	return fmt.Sprintf("polynomial of degree %d fitted to %d samples by mean squared error", len(c.bounds)-1, len(c.samples))
}

func (c *CurveFit) Fitness(genome model.Genome) (float64, error) {
	if err := c.checkLength(genome); err != nil {
		return 0, err
	}
	total := 0.0
	for _, s := range c.samples {
		d := polynomial(genome, s.X) - s.Y
		total += d * d
	}
	return total / float64(len(c.samples)), nil
}

func polynomial(coefficients model.Genome, x float64) float64 {
	y := 0.0
	for i := len(coefficients) - 1; i >= 0; i-- {
		y = y*x + coefficients[i]
	}
	return y
}

// LoadSamplesCSV reads x,y rows. A non-numeric first row is treated as a header.
func LoadSamplesCSV(path string) ([]Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadSamplesCSV(file)
}

func ReadSamplesCSV(r io.Reader) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	samples := make([]Sample, 0, 64)
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row++
		if len(record) < 2 {
			return nil, fmt.Errorf("sample row %d must have x and y columns", row)
		}
		x, xErr := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
		y, yErr := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if xErr != nil || yErr != nil {
			if row == 1 {
				continue
			}
			return nil, fmt.Errorf("sample row %d: invalid number", row)
		}
		samples = append(samples, Sample{X: x, Y: y})
	}
	if len(samples) == 0 {
		return nil, errors.New("no samples found")
	}
	return samples, nil
}
