package evo

import (
	"sync"
	"sync/atomic"

	"natsel/internal/model"
)

const defaultCacheEntries = 1 << 16

type cacheEntry struct {
	genes   model.Genome
	fitness float64
}

// EvaluationCache memoizes fitness for deterministic providers. Entries are
// keyed by GenomeHash and confirmed gene by gene, so hash collisions never
// return a wrong value. The cache is cleared when it reaches MaxEntries.
type EvaluationCache struct {
	MaxEntries int

	mu      sync.RWMutex
	entries map[uint64][]cacheEntry
	size    int

	hits   atomic.Int64
	misses atomic.Int64
}

func NewEvaluationCache(maxEntries int) *EvaluationCache {
	if maxEntries <= 0 {
		maxEntries = defaultCacheEntries
	}
	return &EvaluationCache{MaxEntries: maxEntries, entries: make(map[uint64][]cacheEntry)}
}

func (c *EvaluationCache) Lookup(genome model.Genome) (float64, bool) {
	key := GenomeHash(genome)
	c.mu.RLock()
	bucket := c.entries[key]
	c.mu.RUnlock()
	for _, entry := range bucket {
		if sameGenes(entry.genes, genome) {
			c.hits.Add(1)
			return entry.fitness, true
		}
	}
	c.misses.Add(1)
	return 0, false
}

func (c *EvaluationCache) Store(genome model.Genome, fitness float64) {
	key := GenomeHash(genome)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries[key] {
		if sameGenes(entry.genes, genome) {
			return
		}
	}
	if c.size >= c.MaxEntries {
		c.entries = make(map[uint64][]cacheEntry)
		c.size = 0
	}
	c.entries[key] = append(c.entries[key], cacheEntry{genes: genome.Clone(), fitness: fitness})
	c.size++
}

func (c *EvaluationCache) Hits() int64   { return c.hits.Load() }
func (c *EvaluationCache) Misses() int64 { return c.misses.Load() }

func (c *EvaluationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

func sameGenes(a, b model.Genome) bool {
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
