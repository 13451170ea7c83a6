package fitness

import (
	"errors"
	"fmt"

	"natsel/internal/model"
)

var ErrNotImplemented = errors.New("not implemented")

// NotImplementedError names the contract operation a provider left out.
type NotImplementedError struct {
	Op string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("fitness provider %s: %v", e.Op, ErrNotImplemented)
}

func (e *NotImplementedError) Unwrap() error {
	return ErrNotImplemented
}

// Unimplemented can be embedded by providers under construction. Every
// operation fails: InitializeGenome and GenomeRange panic with a
// *NotImplementedError, Fitness returns one.
type Unimplemented struct{}

var _ Provider = Unimplemented{}

func (Unimplemented) InitializeGenome() model.Genome {
	panic(&NotImplementedError{Op: "InitializeGenome"})
}

func (Unimplemented) GenomeRange() model.GenomeRange {
	panic(&NotImplementedError{Op: "GenomeRange"})
}

func (Unimplemented) Fitness(model.Genome) (float64, error) {
	return 0, &NotImplementedError{Op: "Fitness"}
}
