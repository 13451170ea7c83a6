package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"natsel/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeIndividual(ind model.Individual) ([]byte, error) {
	return json.Marshal(ind)
}

func DecodeIndividual(data []byte) (model.Individual, error) {
	var ind model.Individual
	if err := json.Unmarshal(data, &ind); err != nil {
		return model.Individual{}, err
	}
	if err := checkVersion(ind.VersionedRecord); err != nil {
		return model.Individual{}, err
	}
	return ind, nil
}

func EncodePopulation(p model.Population) ([]byte, error) {
	return json.Marshal(p)
}

func DecodePopulation(data []byte) (model.Population, error) {
	var population model.Population
	if err := json.Unmarshal(data, &population); err != nil {
		return model.Population{}, err
	}
	if err := checkVersion(population.VersionedRecord); err != nil {
		return model.Population{}, err
	}
	return population, nil
}

func EncodeProblemSummary(s model.ProblemSummary) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeProblemSummary(data []byte) (model.ProblemSummary, error) {
	var summary model.ProblemSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return model.ProblemSummary{}, err
	}
	if err := checkVersion(summary.VersionedRecord); err != nil {
		return model.ProblemSummary{}, err
	}
	return summary, nil
}

func EncodeLineage(records []model.LineageRecord) ([]byte, error) {
	return json.Marshal(records)
}

func DecodeLineage(data []byte) ([]model.LineageRecord, error) {
	var records []model.LineageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	for _, record := range records {
		if err := checkVersion(record.VersionedRecord); err != nil {
			return nil, fmt.Errorf("lineage %s: %w", record.IndividualID, err)
		}
	}
	return records, nil
}

func EncodeTopIndividuals(top []model.TopIndividualRecord) ([]byte, error) {
	return json.Marshal(top)
}

func DecodeTopIndividuals(data []byte) ([]model.TopIndividualRecord, error) {
	var top []model.TopIndividualRecord
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, err
	}
	for _, record := range top {
		if err := checkVersion(record.Individual.VersionedRecord); err != nil {
			return nil, fmt.Errorf("top individual %s: %w", record.Individual.ID, err)
		}
	}
	return top, nil
}

func EncodeFitnessHistory(history []float64) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeFitnessHistory(data []byte) ([]float64, error) {
	var history []float64
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func EncodeGenerationDiagnostics(diagnostics []model.GenerationDiagnostics) ([]byte, error) {
	return json.Marshal(diagnostics)
}

func DecodeGenerationDiagnostics(data []byte) ([]model.GenerationDiagnostics, error) {
	var diagnostics []model.GenerationDiagnostics
	if err := json.Unmarshal(data, &diagnostics); err != nil {
		return nil, err
	}
	return diagnostics, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}
