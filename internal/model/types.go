package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Genome is the ordered parameter vector of one candidate solution.
type Genome []float64

func (g Genome) Clone() Genome {
	if g == nil {
		return nil
	}
	return append(Genome(nil), g...)
}

// Bound limits one genome position to [Min, Max].
type Bound struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (b Bound) Span() float64 {
	return b.Max - b.Min
}

// GenomeRange holds one bound per genome position.
type GenomeRange []Bound

func (r GenomeRange) Clone() GenomeRange {
	if r == nil {
		return nil
	}
	return append(GenomeRange(nil), r...)
}

type Individual struct {
	VersionedRecord
	ID         string   `json:"id"`
	Genes      Genome   `json:"genes"`
	ParentIDs  []string `json:"parent_ids,omitempty"`
	Generation int      `json:"generation"`
}

func (i Individual) Clone() Individual {
	out := i
	out.Genes = i.Genes.Clone()
	out.ParentIDs = append([]string(nil), i.ParentIDs...)
	return out
}

type Population struct {
	VersionedRecord
	ID            string   `json:"id"`
	IndividualIDs []string `json:"individual_ids"`
	Generation    int      `json:"generation"`
}

type ProblemSummary struct {
	VersionedRecord
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Objective   string  `json:"objective"`
	Dimensions  int     `json:"dimensions"`
	BestFitness float64 `json:"best_fitness"`
	Runs        int     `json:"runs"`
}
