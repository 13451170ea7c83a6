package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"natsel/internal/model"
)

func TestDecodeIndividualFixture(t *testing.T) {
	individual, err := DecodeIndividual(readFixture(t, "minimal_individual_v1.json"))
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if individual.ID != "ind-g0-i0" {
		t.Fatalf("unexpected individual id: %s", individual.ID)
	}
	if !reflect.DeepEqual(individual.Genes, model.Genome{0.5, -1.25, 3}) {
		t.Fatalf("unexpected genes: %v", individual.Genes)
	}
}

func TestDecodePopulationFixture(t *testing.T) {
	population, err := DecodePopulation(readFixture(t, "minimal_population_v1.json"))
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if population.ID != "run-1:final" {
		t.Fatalf("unexpected population id: %s", population.ID)
	}
	if len(population.IndividualIDs) != 2 || population.Generation != 2 {
		t.Fatalf("unexpected population: %+v", population)
	}
}

func TestDecodeProblemSummaryFixture(t *testing.T) {
	summary, err := DecodeProblemSummary(readFixture(t, "minimal_problem_summary_v1.json"))
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if summary.Name != "sphere" || summary.Objective != "minimize" || summary.Runs != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestDecodeIndividualRejectsFutureSchema(t *testing.T) {
	_, err := DecodeIndividual(readFixture(t, "future_individual_v2.json"))
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestDecodeLineageRejectsUnversionedRecord(t *testing.T) {
	_, err := DecodeLineage([]byte(`[{"individual_id":"ind-g1-i0","generation":1,"operation":"perturb_gene"}]`))
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestDecodeTopIndividualsChecksEmbeddedVersion(t *testing.T) {
	top := []model.TopIndividualRecord{{
		Rank:    1,
		Fitness: 2.5,
		Individual: model.Individual{
			VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: 9},
			ID:              "ind-g0-i0",
		},
	}}
	data, err := EncodeTopIndividuals(top)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeTopIndividuals(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	if _, err := DecodeGenerationDiagnostics([]byte(`{`)); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := DecodeFitnessHistory([]byte(`"x"`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "fixtures", name))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}
