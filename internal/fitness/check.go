package fitness

import (
	"errors"
	"fmt"
	"math"

	"natsel/internal/model"
)

var (
	ErrOutOfRange       = errors.New("initial genome outside range")
	ErrUnstableRange    = errors.New("genome range changed between calls")
	ErrInvalidFitness   = errors.New("fitness is NaN")
	ErrNondeterministic = errors.New("fitness differs for identical genome")
)

// Check exercises all three provider operations once and verifies the
// contract invariants. A provider that panics with a *NotImplementedError is
// reported through the returned error, which then matches ErrNotImplemented.
func Check(p Provider) error {
	if p == nil {
		return errors.New("fitness provider is required")
	}
	name := NameOf(p)

	var bounds model.GenomeRange
	if err := guard("GenomeRange", func() { bounds = p.GenomeRange() }); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := ValidateRange(bounds); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	var again model.GenomeRange
	if err := guard("GenomeRange", func() { again = p.GenomeRange() }); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if !sameRange(bounds, again) {
		return fmt.Errorf("%s: %w", name, ErrUnstableRange)
	}

	var genome model.Genome
	if err := guard("InitializeGenome", func() { genome = p.InitializeGenome() }); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := CheckLength(bounds, genome); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if !Contains(bounds, genome) {
		return fmt.Errorf("%s: %w", name, ErrOutOfRange)
	}

	first, err := evaluate(p, genome.Clone())
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if IsStochastic(p) {
		return nil
	}
	second, err := evaluate(p, genome.Clone())
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if first != second {
		return fmt.Errorf("%s: %w: %g != %g", name, ErrNondeterministic, first, second)
	}
	return nil
}

func evaluate(p Provider, genome model.Genome) (float64, error) {
	var (
		value float64
		err   error
	)
	if perr := guard("Fitness", func() { value, err = p.Fitness(genome) }); perr != nil {
		return 0, perr
	}
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) {
		return 0, ErrInvalidFitness
	}
	return value, nil
}

func guard(op string, fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if rerr, ok := r.(error); ok {
			err = rerr
			return
		}
		err = fmt.Errorf("%s panicked: %v", op, r)
	}()
	fn()
	return nil
}

func sameRange(a, b model.GenomeRange) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
