package evo

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"natsel/internal/fitness"
	"natsel/internal/model"
)

type noopOperator struct{}

func (noopOperator) Name() string { return "noop" }

func (noopOperator) Apply(_ context.Context, genome model.Genome, _ model.GenomeRange) (model.Genome, error) {
	return genome.Clone(), nil
}

func noopFactory(*rand.Rand) Operator { return noopOperator{} }

var currentRecord = model.VersionedRecord{SchemaVersion: SupportedSchemaVersion, CodecVersion: SupportedCodecVersion}

func TestRegisterAndResolveOperator(t *testing.T) {
	resetOperatorRegistryForTests()
	t.Cleanup(resetOperatorRegistryForTests)

	if err := RegisterOperator("noop", noopFactory); err != nil {
		t.Fatalf("register: %v", err)
	}

	op, err := ResolveOperator("noop", rand.New(rand.NewSource(1)), currentRecord, fitness.UniformRange(2, 0, 1))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if op.Name() != "noop" {
		t.Fatalf("unexpected operator: %s", op.Name())
	}
}

func TestBuiltinOperatorsResolve(t *testing.T) {
	resetOperatorRegistryForTests()
	t.Cleanup(resetOperatorRegistryForTests)

	bounds := fitness.UniformRange(3, -1, 1)
	for _, name := range []string{"gaussian", "uniform_reset", "creep", "boundary"} {
		op, err := ResolveOperator(name, rand.New(rand.NewSource(1)), currentRecord, bounds)
		if err != nil {
			t.Fatalf("resolve %s: %v", name, err)
		}
		if op.Name() != name {
			t.Fatalf("resolved %s as %s", name, op.Name())
		}
		out, err := op.Apply(context.Background(), model.Genome{0, 0, 0}, bounds)
		if err != nil {
			t.Fatalf("apply %s: %v", name, err)
		}
		if len(out) != 3 {
			t.Fatalf("apply %s changed genome length: %v", name, out)
		}
	}
}

func TestRegisterOperatorDuplicate(t *testing.T) {
	resetOperatorRegistryForTests()
	t.Cleanup(resetOperatorRegistryForTests)

	if err := RegisterOperator("noop", noopFactory); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := RegisterOperator("noop", noopFactory); !errors.Is(err, ErrOperatorExists) {
		t.Fatalf("expected ErrOperatorExists, got: %v", err)
	}
	if err := RegisterOperator("gaussian", noopFactory); !errors.Is(err, ErrOperatorExists) {
		t.Fatalf("expected builtin name to be taken, got: %v", err)
	}
}

func TestRegisterOperatorValidation(t *testing.T) {
	resetOperatorRegistryForTests()
	t.Cleanup(resetOperatorRegistryForTests)

	if err := RegisterOperator("", noopFactory); err == nil {
		t.Fatal("expected empty name error")
	}
	if err := RegisterOperator("nil", nil); err == nil {
		t.Fatal("expected nil factory error")
	}
	if err := RegisterOperatorWithSpec(OperatorSpec{
		Name:          "bad-version",
		Factory:       noopFactory,
		SchemaVersion: 99,
		CodecVersion:  1,
	}); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestResolveOperatorNotFound(t *testing.T) {
	resetOperatorRegistryForTests()
	t.Cleanup(resetOperatorRegistryForTests)

	_, err := ResolveOperator("missing", rand.New(rand.NewSource(1)), currentRecord, nil)
	if !errors.Is(err, ErrOperatorNotFound) {
		t.Fatalf("expected ErrOperatorNotFound, got: %v", err)
	}
}

func TestResolveOperatorVersionMismatch(t *testing.T) {
	resetOperatorRegistryForTests()
	t.Cleanup(resetOperatorRegistryForTests)

	record := model.VersionedRecord{SchemaVersion: SupportedSchemaVersion, CodecVersion: SupportedCodecVersion + 1}
	_, err := ResolveOperator("gaussian", rand.New(rand.NewSource(1)), record, nil)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestResolveOperatorCompatibility(t *testing.T) {
	resetOperatorRegistryForTests()
	t.Cleanup(resetOperatorRegistryForTests)

	compatibilityErr := errors.New("requires at least two genes")
	if err := RegisterOperatorWithSpec(OperatorSpec{
		Name:          "needs-pair",
		Factory:       noopFactory,
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
		Compatible: func(bounds model.GenomeRange) error {
			if len(bounds) < 2 {
				return compatibilityErr
			}
			return nil
		},
	}); err != nil {
		t.Fatalf("register with compatibility: %v", err)
	}

	_, err := ResolveOperator("needs-pair", rand.New(rand.NewSource(1)), currentRecord, fitness.UniformRange(1, 0, 1))
	if !errors.Is(err, ErrOperatorIncompatible) {
		t.Fatalf("expected ErrOperatorIncompatible, got: %v", err)
	}
	if _, err := ResolveOperator("needs-pair", rand.New(rand.NewSource(1)), currentRecord, fitness.UniformRange(2, 0, 1)); err != nil {
		t.Fatalf("expected compatible resolve, got: %v", err)
	}
}

func TestListOperatorsSorted(t *testing.T) {
	resetOperatorRegistryForTests()
	t.Cleanup(resetOperatorRegistryForTests)

	if err := RegisterOperator("b-op", noopFactory); err != nil {
		t.Fatalf("register b-op: %v", err)
	}
	if err := RegisterOperator("a-op", noopFactory); err != nil {
		t.Fatalf("register a-op: %v", err)
	}

	names := ListOperators()
	want := []string{"a-op", "b-op", "boundary", "creep", "gaussian", "uniform_reset"}
	if len(names) != len(want) {
		t.Fatalf("unexpected operator list: %+v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("unexpected operator list: %+v", names)
		}
	}
}

func TestMutationPolicyFromWeights(t *testing.T) {
	resetOperatorRegistryForTests()
	t.Cleanup(resetOperatorRegistryForTests)

	bounds := fitness.UniformRange(2, 0, 1)
	policy, err := MutationPolicyFromWeights(map[string]float64{"gaussian": 2, "creep": 1, "boundary": 0}, 5, bounds)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if len(policy) != 2 || policy[0].Operator.Name() != "creep" || policy[1].Operator.Name() != "gaussian" {
		t.Fatalf("unexpected policy: %+v", policy)
	}
	if policy[1].Weight != 2 {
		t.Fatalf("unexpected weight: %f", policy[1].Weight)
	}

	if _, err := MutationPolicyFromWeights(map[string]float64{"gaussian": -1}, 5, bounds); err == nil {
		t.Fatal("expected negative weight error")
	}
	if _, err := MutationPolicyFromWeights(map[string]float64{"gaussian": 0}, 5, bounds); err == nil {
		t.Fatal("expected all-zero weights error")
	}
	if _, err := MutationPolicyFromWeights(map[string]float64{"missing": 1}, 5, bounds); !errors.Is(err, ErrOperatorNotFound) {
		t.Fatalf("expected ErrOperatorNotFound, got: %v", err)
	}
}
