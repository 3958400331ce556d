// Package signalgraph provides the library-first API over the ingestion
// core: batch ingest with identity resolution, severity review, and
// causal-history reads, without any transport layer.
package signalgraph

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/civiclens/signalgraph/internal/dedup"
	"github.com/civiclens/signalgraph/internal/dispatch"
	"github.com/civiclens/signalgraph/internal/embeddings"
	"github.com/civiclens/signalgraph/internal/graph"
	"github.com/civiclens/signalgraph/internal/ledger"
	"github.com/civiclens/signalgraph/internal/runcache"
	"github.com/civiclens/signalgraph/internal/signal"
	"github.com/civiclens/signalgraph/internal/trust"
)

// Service wires the node store, the event ledger, and the embeddings
// provider into one handle. Safe for concurrent use; each ingest call
// owns its run id, state, and cache.
type Service struct {
	cfg      *Config
	graph    *graph.Store
	ledger   *ledger.Store
	provider embeddings.Provider
}

// NewService opens the database, applies both schemas, and picks up the
// embeddings provider from the environment. A nil provider is allowed:
// candidates must then arrive with embeddings attached or they resolve
// as new signals.
func NewService(cfg *Config) (*Service, error) {
	cfg = cfg.withDefaults()

	gs, err := graph.NewStore(cfg.graphConfig())
	if err != nil {
		return nil, err
	}
	ls, err := ledger.OpenDB(gs.DB())
	if err != nil {
		gs.Close()
		return nil, err
	}

	provider := embeddings.WrapToDims(embeddings.NewFromEnv(), cfg.EmbeddingDims)
	if provider == nil {
		log.Printf("Warning: no embeddings provider configured; candidates without embeddings resolve as new")
	}

	return &Service{cfg: cfg, graph: gs, ledger: ls, provider: provider}, nil
}

// Close releases resources. The ledger shares the graph store's handle,
// so closing the store closes both.
func (s *Service) Close() error {
	return s.graph.Close()
}

// IngestResult summarizes one settled ingest run.
type IngestResult struct {
	RunID           string          `json:"runId"`
	EventsPersisted int             `json:"eventsPersisted"`
	EmbeddingsUsed  int64           `json:"embeddingsUsed"`
	Summary         *dedup.RunState `json:"summary"`
}

// IngestBatch runs one extracted batch through identity resolution to
// settlement. Candidates missing embeddings are embedded first, under the
// per-run budget; a refused or failed embedding downgrades that candidate
// to embedding-less resolution rather than failing the batch.
func (s *Service) IngestBatch(ctx context.Context, sourceURL string, candidates []signal.PendingNode) (*IngestResult, error) {
	if sourceURL == "" {
		return nil, fmt.Errorf("source URL must be non-empty")
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("batch must contain at least one candidate")
	}

	runID := uuid.NewString()
	budget := runcache.NewBudget(s.cfg.EmbeddingBudget)
	s.embedMissing(ctx, candidates, budget)

	deps := dedup.NewDeps(s.graph, s.graph, runcache.NewEmbeddingCache(), dedup.Options{
		SimilarityThreshold: s.cfg.SimilarityThreshold,
		SearchLimit:         s.cfg.SearchLimit,
		FailOpen:            s.cfg.FailOpen,
	})
	eng := dispatch.NewEngine(s.ledger, s.cfg.Actor, dedup.Reduce, dedup.Route)
	state := dedup.NewRunState()

	n, err := eng.Dispatch(ctx, runID, dedup.NewBatch(sourceURL, candidates), state, deps)
	if err != nil {
		return nil, fmt.Errorf("ingest run %s: %w", runID, err)
	}

	return &IngestResult{
		RunID:           runID,
		EventsPersisted: n,
		EmbeddingsUsed:  budget.Used(),
		Summary:         state,
	}, nil
}

// embedMissing fills in absent candidate embeddings, one budget unit per
// embedding call. Failures degrade the candidate, never the batch.
func (s *Service) embedMissing(ctx context.Context, candidates []signal.PendingNode, budget *runcache.Budget) {
	if s.provider == nil {
		return
	}
	for i := range candidates {
		if len(candidates[i].Embedding) > 0 {
			continue
		}
		if !budget.TryConsume(1) {
			log.Printf("Warning: embedding budget exhausted; candidate %q resolves without a vector", candidates[i].Title)
			continue
		}
		text := candidates[i].Title
		if candidates[i].Summary != "" {
			text += "\n" + candidates[i].Summary
		}
		vec, err := embeddings.EmbedOne(ctx, s.provider, text)
		if err != nil {
			log.Printf("Warning: failed to embed candidate %q: %v", candidates[i].Title, err)
			continue
		}
		candidates[i].Embedding = vec
	}
}

// RecalculateSeverity runs the batch severity review over every stored
// node, writing corrections and audit records for changed rows.
func (s *Service) RecalculateSeverity(ctx context.Context, cancel *runcache.CancelFlag) (trust.Report, error) {
	return trust.ReviewSeverities(ctx, s.graph, cancel)
}

// EventsByRun returns the full causal event history of one run in seq
// order.
func (s *Service) EventsByRun(ctx context.Context, runID string) ([]ledger.StoredEvent, error) {
	return s.ledger.EventsByRun(ctx, runID)
}

// GetNode reads one committed node.
func (s *Service) GetNode(ctx context.Context, id string) (*signal.Node, error) {
	return s.graph.GetNode(ctx, id)
}

// GetSourceMetrics reads the trust metrics for one source URL.
func (s *Service) GetSourceMetrics(ctx context.Context, sourceURL string) (*signal.SourceMetrics, error) {
	return s.graph.GetSourceMetrics(ctx, sourceURL)
}

// FieldCorrections returns the audit trail for one node.
func (s *Service) FieldCorrections(ctx context.Context, nodeID string) ([]signal.FieldCorrection, error) {
	return s.graph.FieldCorrections(ctx, nodeID)
}
