// Package runcache holds the run-scoped shared state: the embedding cache
// that closes the window between "candidate extracted" and "candidate
// durably indexed", the budget tracker for capped external calls, and the
// cooperative cancellation flag. Everything here is constructed at run
// start and dropped at run end; nothing is persisted.
package runcache

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/civiclens/signalgraph/internal/signal"
)

// ErrPoisoned is returned once a writer has panicked mid-mutation. The
// cache fails loudly from then on rather than risk serving a torn entry.
var ErrPoisoned = errors.New("embedding cache poisoned by failed writer")

// Entry pairs an embedding with the identity it resolved to earlier in
// the same run. Entries never outlive the run.
type Entry struct {
	Embedding []float32
	NodeID    string
	NodeType  signal.NodeType
	SourceURL string
}

// EmbeddingCache is the in-memory, run-scoped match source consulted
// alongside the durable index. Readers scan concurrently under a shared
// lock; writers take exclusive access, so a reader can never observe a
// partially-inserted entry.
type EmbeddingCache struct {
	mu       sync.RWMutex
	poisoned atomic.Bool
	entries  []Entry
}

// NewEmbeddingCache returns an empty cache.
func NewEmbeddingCache() *EmbeddingCache {
	return &EmbeddingCache{}
}

// Add inserts an entry. The embedding slice is copied so later caller
// mutation cannot tear a stored entry.
func (c *EmbeddingCache) Add(e Entry) error {
	if c.poisoned.Load() {
		return ErrPoisoned
	}

	emb := make([]float32, len(e.Embedding))
	copy(emb, e.Embedding)
	e.Embedding = emb

	c.mu.Lock()
	defer func() {
		if p := recover(); p != nil {
			c.poisoned.Store(true)
			c.mu.Unlock()
			panic(p)
		}
		c.mu.Unlock()
	}()

	c.entries = append(c.entries, e)
	return nil
}

// BestMatch scans entries of the given node type and returns the one with
// the highest cosine similarity to the query, along with that similarity.
// ok is false when the cache is empty for the type or poisoned.
func (c *EmbeddingCache) BestMatch(embedding []float32, nodeType signal.NodeType) (Entry, float64, bool) {
	if c.poisoned.Load() {
		return Entry{}, 0, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var best Entry
	bestSim := math.Inf(-1)
	found := false
	for _, e := range c.entries {
		if e.NodeType != nodeType {
			continue
		}
		sim := CosineSimilarity(embedding, e.Embedding)
		if sim > bestSim {
			best = e
			bestSim = sim
			found = true
		}
	}
	if !found {
		return Entry{}, 0, false
	}
	return best, bestSim, true
}

// Len returns the number of cached entries.
func (c *EmbeddingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Poisoned reports whether a writer panic has disabled the cache.
func (c *EmbeddingCache) Poisoned() bool {
	return c.poisoned.Load()
}

// CosineSimilarity computes the cosine of the angle between two dense
// vectors. Mismatched lengths and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
