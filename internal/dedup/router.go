package dedup

import (
	"context"
	"fmt"
	"log"

	"github.com/civiclens/signalgraph/internal/ledger"
	"github.com/civiclens/signalgraph/internal/metrics"
)

// Route is the effectful handler for the dedup event family. It runs
// inside the dispatch loop: the event it receives is already durably
// persisted, and every child it returns is chained under that event.
func Route(ctx context.Context, e Event, stored ledger.StoredEvent, state *RunState, deps *Deps) ([]Event, error) {
	switch ev := e.(type) {
	case SignalsExtracted:
		return routeBatch(ctx, ev, deps)

	case NewSignalAccepted:
		metrics.Default().IncVerdict("accepted")
		cand, ok := deps.takePending(ev.NodeID)
		if !ok {
			return nil, fmt.Errorf("no pending candidate for accepted node %s", ev.NodeID)
		}
		if err := deps.Nodes.CommitNode(ctx, ev.NodeID, cand); err != nil {
			return nil, fmt.Errorf("commit node %s: %w", ev.NodeID, err)
		}
		return nil, nil

	case CrossSourceMatchDetected:
		metrics.Default().IncVerdict("cross_source")
		if err := deps.Nodes.RecordCorroboration(ctx, ev.MatchedNodeID, ev.CandidateSourceURL); err != nil {
			return nil, fmt.Errorf("record corroboration for node %s: %w", ev.MatchedNodeID, err)
		}
		return nil, nil

	case SameSourceReencountered:
		metrics.Default().IncVerdict("same_source")
		if err := deps.Nodes.RecordReencounter(ctx, ev.NodeID); err != nil {
			return nil, fmt.Errorf("record reencounter for node %s: %w", ev.NodeID, err)
		}
		return nil, nil

	default:
		panic(fmt.Sprintf("dedup: router has no arm for event type %q", e.EventType()))
	}
}

// routeBatch resolves every candidate in the batch and emits one verdict
// child per candidate, in candidate order. A resolution error fails the
// batch unless the per-candidate soft-fail already absorbed it.
func routeBatch(ctx context.Context, ev SignalsExtracted, deps *Deps) ([]Event, error) {
	// Scrape bookkeeping is best-effort: losing a counter update must not
	// block identity resolution.
	if err := deps.Nodes.RecordScrape(ctx, ev.SourceURL, ev.CandidateCount); err != nil {
		log.Printf("Warning: failed to record scrape for %q: %v", ev.SourceURL, err)
	}

	children := make([]Event, 0, len(ev.candidates))
	for _, cand := range ev.candidates {
		verdict, err := deps.resolve(ctx, cand)
		if err != nil {
			return nil, err
		}
		children = append(children, verdict)
	}
	return children, nil
}
