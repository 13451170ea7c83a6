package evo

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports engine counters. A nil *Metrics records nothing.
type Metrics struct {
	evaluations *prometheus.CounterVec
	cacheHits   *prometheus.CounterVec
	generations *prometheus.CounterVec
	bestFitness *prometheus.GaugeVec
	evalSeconds *prometheus.HistogramVec
}

// NewMetrics registers the engine collectors on reg. Collectors that are
// already registered are reused, so several monitors may share one registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, errors.New("metrics registerer is required")
	}
	m := &Metrics{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "natsel",
			Name:      "evaluations_total",
			Help:      "Fitness evaluations performed by the provider.",
		}, []string{"problem"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "natsel",
			Name:      "cache_hits_total",
			Help:      "Fitness evaluations answered by the evaluation cache.",
		}, []string{"problem"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "natsel",
			Name:      "generations_total",
			Help:      "Generations evaluated.",
		}, []string{"problem"}),
		bestFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "natsel",
			Name:      "generation_best_fitness",
			Help:      "Best raw fitness of the latest generation.",
		}, []string{"problem"}),
		evalSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "natsel",
			Name:      "evaluation_seconds",
			Help:      "Duration of single provider fitness evaluations.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"problem"}),
	}

	var err error
	if m.evaluations, err = register(reg, m.evaluations); err != nil {
		return nil, err
	}
	if m.cacheHits, err = register(reg, m.cacheHits); err != nil {
		return nil, err
	}
	if m.generations, err = register(reg, m.generations); err != nil {
		return nil, err
	}
	if m.bestFitness, err = register(reg, m.bestFitness); err != nil {
		return nil, err
	}
	if m.evalSeconds, err = register(reg, m.evalSeconds); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

func (m *Metrics) observeEvaluation(problem string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(problem).Inc()
	m.evalSeconds.WithLabelValues(problem).Observe(elapsed.Seconds())
}

func (m *Metrics) observeCacheHit(problem string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(problem).Inc()
}

func (m *Metrics) observeGeneration(problem string, best float64) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(problem).Inc()
	m.bestFitness.WithLabelValues(problem).Set(best)
}
