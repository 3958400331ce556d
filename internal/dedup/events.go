// Package dedup decides, for every freshly extracted candidate signal,
// whether it is genuinely new, a cross-source corroboration of a known
// node, or a same-source re-fetch. It is the dispatch engine's most
// important concrete application: one batch event fans out into exactly
// one verdict event per candidate, each causally chained to the batch.
package dedup

import (
	"github.com/civiclens/signalgraph/internal/signal"
)

// Event is the closed event family this package dispatches. The sealed
// marker keeps the sum closed: a reducer or router meeting an unknown
// variant is a programmer error, not a recoverable condition.
type Event interface {
	EventType() string
	sealed()
}

// SignalsExtracted is the batch root: one fetched page/post produced
// these candidates. The candidates themselves (with their embeddings)
// travel in memory only; the persisted payload records the source and
// count, never a raw embedding.
type SignalsExtracted struct {
	SourceURL      string `json:"sourceUrl"`
	CandidateCount int    `json:"candidateCount"`

	candidates []signal.PendingNode
}

// NewBatch builds the batch root event for candidates fetched from
// sourceURL.
func NewBatch(sourceURL string, candidates []signal.PendingNode) SignalsExtracted {
	return SignalsExtracted{
		SourceURL:      sourceURL,
		CandidateCount: len(candidates),
		candidates:     candidates,
	}
}

func (SignalsExtracted) EventType() string { return "signals.extracted" }
func (SignalsExtracted) sealed()           {}

// NewSignalAccepted records that a candidate matched nothing above
// threshold and becomes a new durable node under NodeID.
type NewSignalAccepted struct {
	NodeID    string          `json:"nodeId"`
	NodeType  signal.NodeType `json:"nodeType"`
	Title     string          `json:"title"`
	SourceURL string          `json:"sourceUrl"`
}

func (NewSignalAccepted) EventType() string { return "signal.accepted" }
func (NewSignalAccepted) sealed()           {}

// CrossSourceMatchDetected records that a candidate re-observed an
// existing node from a different source. The candidate is discarded; the
// matched node gains corroboration.
type CrossSourceMatchDetected struct {
	MatchedNodeID      string          `json:"matchedNodeId"`
	NodeType           signal.NodeType `json:"nodeType"`
	CandidateTitle     string          `json:"candidateTitle"`
	CandidateSourceURL string          `json:"candidateSourceUrl"`
	MatchedSourceURL   string          `json:"matchedSourceUrl"`
	Similarity         float64         `json:"similarity"`
}

func (CrossSourceMatchDetected) EventType() string { return "signal.cross_source_match" }
func (CrossSourceMatchDetected) sealed()           {}

// SameSourceReencountered records a stale re-fetch: the same source
// re-surfaced an already-known signal. Freshness only, no corroboration.
type SameSourceReencountered struct {
	NodeID     string          `json:"nodeId"`
	NodeType   signal.NodeType `json:"nodeType"`
	SourceURL  string          `json:"sourceUrl"`
	Similarity float64         `json:"similarity"`
}

func (SameSourceReencountered) EventType() string { return "signal.same_source_reencounter" }
func (SameSourceReencountered) sealed()           {}
