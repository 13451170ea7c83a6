package tuning

import (
	"testing"

	"natsel/internal/model"
)

func TestFixedAttemptPolicy(t *testing.T) {
	p := FixedAttemptPolicy{}
	if got := p.Attempts(4, 1, 10, model.Genome{}); got != 4 {
		t.Fatalf("expected fixed attempts=4, got=%d", got)
	}
	if got := p.Attempts(-3, 1, 10, model.Genome{}); got != 0 {
		t.Fatalf("expected negative budget clamped to 0, got=%d", got)
	}
}

func TestLinearDecayAttemptPolicy(t *testing.T) {
	p := LinearDecayAttemptPolicy{MinAttempts: 1}
	if got := p.Attempts(4, 0, 4, model.Genome{}); got != 4 {
		t.Fatalf("expected gen0 attempts=4, got=%d", got)
	}
	if got := p.Attempts(4, 2, 4, model.Genome{}); got != 2 {
		t.Fatalf("expected gen2 attempts=2, got=%d", got)
	}
	if got := p.Attempts(4, 9, 4, model.Genome{}); got != 1 {
		t.Fatalf("expected clamped attempts=1, got=%d", got)
	}
}

func TestDimensionScaledAttemptPolicy(t *testing.T) {
	p := DimensionScaledAttemptPolicy{Scale: 1.0, MinAttempts: 1}
	if got := p.Attempts(4, 0, 1, make(model.Genome, 10)); got != 8 {
		t.Fatalf("expected scaled attempts=8, got=%d", got)
	}
	capped := DimensionScaledAttemptPolicy{Scale: 1.0, MinAttempts: 1, MaxAttempts: 5}
	if got := capped.Attempts(4, 0, 1, make(model.Genome, 10)); got != 5 {
		t.Fatalf("expected capped attempts=5, got=%d", got)
	}
}

func TestAttemptPolicyFromConfig(t *testing.T) {
	for _, name := range []string{"", "fixed", "const", "linear_decay", "dimension_scaled"} {
		if _, err := AttemptPolicyFromConfig(name, 1.2); err != nil {
			t.Fatalf("%q policy: %v", name, err)
		}
	}
	if _, err := AttemptPolicyFromConfig("unknown", 1); err == nil {
		t.Fatal("expected unknown policy error")
	}
}
