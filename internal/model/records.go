package model

type GenerationDiagnostics struct {
	Generation         int     `json:"generation"`
	BestFitness        float64 `json:"best_fitness"`
	MeanFitness        float64 `json:"mean_fitness"`
	MinFitness         float64 `json:"min_fitness"`
	MaxFitness         float64 `json:"max_fitness"`
	StdDevFitness      float64 `json:"std_dev_fitness"`
	GeneDiversity      float64 `json:"gene_diversity"`
	DistinctGenomes    int     `json:"distinct_genomes"`
	NicheCount         int     `json:"niche_count"`
	NicheThreshold     float64 `json:"niche_threshold"`
	LargestNicheSize   int     `json:"largest_niche_size"`
	Evaluations        int     `json:"evaluations"`
	CacheHits          int     `json:"cache_hits"`
	TuningInvocations  int     `json:"tuning_invocations"`
	TuningEvaluations  int     `json:"tuning_evaluations"`
	TuningAccepted     int     `json:"tuning_accepted"`
	TuningGoalsReached int     `json:"tuning_goals_reached"`
}

type LineageRecord struct {
	VersionedRecord
	IndividualID string   `json:"individual_id"`
	ParentIDs    []string `json:"parent_ids,omitempty"`
	Generation   int      `json:"generation"`
	Operation    string   `json:"operation"`
	Fingerprint  string   `json:"fingerprint,omitempty"`
}

type TopIndividualRecord struct {
	Rank       int        `json:"rank"`
	Fitness    float64    `json:"fitness"`
	Individual Individual `json:"individual"`
}
