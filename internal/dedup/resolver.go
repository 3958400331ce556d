package dedup

import (
	"context"
	"fmt"
	"log"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/civiclens/signalgraph/internal/graph"
	"github.com/civiclens/signalgraph/internal/runcache"
	"github.com/civiclens/signalgraph/internal/signal"
)

// DefaultSimilarityThreshold is the production cross-source identity
// cutoff. A coarser clustering threshold exists elsewhere in the system;
// this one decides identity.
const DefaultSimilarityThreshold = 0.92

// SimilarityIndex is the durable match source: approximate nearest
// neighbor over embeddings already committed to storage. Distances are
// cosine distance (1 - similarity), ascending.
type SimilarityIndex interface {
	SearchSimilar(ctx context.Context, embedding []float32, nodeType signal.NodeType, limit int, maxDistance float64) ([]graph.Match, error)
}

// NodeWriter is the narrow slice of the graph store the routers write
// through: node commits and per-verdict bookkeeping.
type NodeWriter interface {
	CommitNode(ctx context.Context, id string, pending signal.PendingNode) error
	RecordCorroboration(ctx context.Context, nodeID, sourceURL string) error
	RecordReencounter(ctx context.Context, nodeID string) error
	RecordScrape(ctx context.Context, sourceURL string, signalsExtracted int) error
}

// Options tune identity resolution per run.
type Options struct {
	// SimilarityThreshold is the minimum cosine similarity for a match.
	// Just-under-threshold candidates always resolve to "new"; there is
	// no uncertain state.
	SimilarityThreshold float64
	// SearchLimit bounds durable-index hits per lookup.
	SearchLimit int
	// FailOpen makes an unavailable similarity index degrade a candidate
	// toward "new" instead of aborting the batch.
	FailOpen bool
}

func (o Options) withDefaults() Options {
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if o.SearchLimit <= 0 {
		o.SearchLimit = 5
	}
	return o
}

// Deps is the dependency bag one run's dispatch carries: the durable
// index, the node writer, the run-scoped cache and options, plus the
// in-memory handoff of accepted candidates between the resolution step
// and the commit handler.
type Deps struct {
	Index SimilarityIndex
	Nodes NodeWriter
	Cache *runcache.EmbeddingCache
	Opts  Options

	pendingMu sync.Mutex
	pending   map[string]signal.PendingNode
}

// NewDeps builds a dependency bag for one run.
func NewDeps(index SimilarityIndex, nodes NodeWriter, cache *runcache.EmbeddingCache, opts Options) *Deps {
	return &Deps{
		Index:   index,
		Nodes:   nodes,
		Cache:   cache,
		Opts:    opts.withDefaults(),
		pending: make(map[string]signal.PendingNode),
	}
}

func (d *Deps) stashPending(id string, cand signal.PendingNode) {
	d.pendingMu.Lock()
	d.pending[id] = cand
	d.pendingMu.Unlock()
}

func (d *Deps) takePending(id string) (signal.PendingNode, bool) {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	cand, ok := d.pending[id]
	if ok {
		delete(d.pending, id)
	}
	return cand, ok
}

// resolve decides one candidate's identity. It consults the durable index
// and the run cache, takes the single best match across both, and returns
// exactly one verdict event. Resolution itself is read-mostly: the only
// mutation is the cache insert for an accepted candidate.
func (d *Deps) resolve(ctx context.Context, cand signal.PendingNode) (Event, error) {
	if !cand.NodeType.Valid() {
		return nil, fmt.Errorf("invalid node type %q for candidate %q", cand.NodeType, cand.Title)
	}

	var bestID, bestSourceURL string
	bestSim := -1.0

	if len(cand.Embedding) > 0 {
		// Durable index first. maxDistance mirrors the similarity
		// threshold: distance = 1 - similarity.
		maxDistance := 1 - d.Opts.SimilarityThreshold
		matches, err := d.Index.SearchSimilar(ctx, cand.Embedding, cand.NodeType, d.Opts.SearchLimit, maxDistance)
		if err != nil {
			if !d.Opts.FailOpen {
				return nil, fmt.Errorf("similarity index lookup for %q: %w", cand.Title, err)
			}
			log.Printf("Warning: similarity index unavailable for candidate %q, defaulting toward new: %v", cand.Title, err)
		}
		for _, m := range matches {
			if sim := m.Similarity(); sim > bestSim {
				bestID = m.NodeID
				bestSourceURL = m.SourceURL
				bestSim = sim
			}
		}

		// Run cache second: catches near-duplicates accepted earlier in
		// this run that the durable index has not absorbed yet.
		if entry, sim, ok := d.Cache.BestMatch(cand.Embedding, cand.NodeType); ok && sim >= d.Opts.SimilarityThreshold && sim > bestSim {
			bestID = entry.NodeID
			bestSourceURL = entry.SourceURL
			bestSim = sim
		}
	}

	if bestSim < d.Opts.SimilarityThreshold {
		// No match above threshold, including borderline just-under.
		id, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate node id: %w", err)
		}
		if err := d.Cache.Add(runcache.Entry{
			Embedding: cand.Embedding,
			NodeID:    id,
			NodeType:  cand.NodeType,
			SourceURL: cand.SourceURL,
		}); err != nil {
			return nil, fmt.Errorf("cache insert for candidate %q: %w", cand.Title, err)
		}
		d.stashPending(id, cand)
		return NewSignalAccepted{
			NodeID:    id,
			NodeType:  cand.NodeType,
			Title:     cand.Title,
			SourceURL: cand.SourceURL,
		}, nil
	}

	if bestSourceURL != cand.SourceURL {
		return CrossSourceMatchDetected{
			MatchedNodeID:      bestID,
			NodeType:           cand.NodeType,
			CandidateTitle:     cand.Title,
			CandidateSourceURL: cand.SourceURL,
			MatchedSourceURL:   bestSourceURL,
			Similarity:         bestSim,
		}, nil
	}

	return SameSourceReencountered{
		NodeID:     bestID,
		NodeType:   cand.NodeType,
		SourceURL:  cand.SourceURL,
		Similarity: bestSim,
	}, nil
}
