package tuning

import (
	"context"

	"natsel/internal/model"
)

// ScoreFn evaluates a genome on a scale where larger is better.
type ScoreFn func(ctx context.Context, genome model.Genome) (float64, error)

type TuneReport struct {
	AttemptsPlanned      int  `json:"attempts_planned"`
	AttemptsExecuted     int  `json:"attempts_executed"`
	CandidateEvaluations int  `json:"candidate_evaluations"`
	AcceptedCandidates   int  `json:"accepted_candidates"`
	RejectedCandidates   int  `json:"rejected_candidates"`
	GoalReached          bool `json:"goal_reached"`
}

// Tuner refines a single genome by local search inside bounds.
type Tuner interface {
	Name() string
	Tune(ctx context.Context, genome model.Genome, bounds model.GenomeRange, attempts int, score ScoreFn) (model.Genome, TuneReport, error)
}
