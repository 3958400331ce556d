// Package dispatch implements the generic settle-to-completion loop:
// persist, reduce, route, recurse, until the work queue is empty. It is
// parameterized over a closed event family, a caller-owned state type,
// and a dependency bag, and carries no domain knowledge of its own.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/civiclens/signalgraph/internal/ledger"
	"github.com/civiclens/signalgraph/internal/metrics"
)

// Typed is the constraint every event family satisfies: a stable string
// tag that becomes the ledger's event_type column.
type Typed interface {
	EventType() string
}

// Reducer folds an event into the caller-owned state. It must be pure:
// no I/O, deterministic given (state, event). Replaying the same ordered
// event sequence through a fresh state must yield an identical result.
type Reducer[E Typed, S any] func(state *S, event E)

// Router performs the effects for one event and returns zero or more
// child events. Each child is persisted with the routed event's seq as
// its parent, in the exact order returned. Routers may do arbitrary I/O.
type Router[E Typed, S any, D any] func(ctx context.Context, event E, stored ledger.StoredEvent, state *S, deps D) ([]E, error)

// Engine drives one event family to settlement against a ledger.
//
// A single Dispatch call processes its queue sequentially to completion;
// independent Dispatch calls (separate runs) may execute concurrently
// because each owns its run id, state, and causal tree.
type Engine[E Typed, S any, D any] struct {
	store  *ledger.Store
	actor  string
	reduce Reducer[E, S]
	route  Router[E, S, D]
}

// NewEngine builds an engine over the given ledger, reducer, and router.
// actor is recorded on every event the engine persists.
func NewEngine[E Typed, S any, D any](store *ledger.Store, actor string, reduce Reducer[E, S], route Router[E, S, D]) *Engine[E, S, D] {
	return &Engine[E, S, D]{store: store, actor: actor, reduce: reduce, route: route}
}

type queued[E Typed] struct {
	event     E
	parentSeq *int64
}

// Dispatch seeds the queue with root and loops until settlement. It
// returns the number of events persisted.
//
// Failure semantics: a persist failure aborts immediately, since an event
// that was not durably recorded must never be reduced or routed. A route
// failure propagates to the caller; events persisted up to that point
// remain durable and replayable, the rest of the queue is abandoned.
//
// The loop has no depth or count guard: a router that always emits at
// least one child never settles. Callers own termination.
func (g *Engine[E, S, D]) Dispatch(ctx context.Context, runID string, root E, state *S, deps D) (int, error) {
	queue := []queued[E]{{event: root}}
	persisted := 0

	for len(queue) > 0 {
		item := queue[0]
		queue[0] = queued[E]{}
		queue = queue[1:]

		payload, err := json.Marshal(item.event)
		if err != nil {
			return persisted, fmt.Errorf("failed to encode %s payload: %w", item.event.EventType(), err)
		}

		ev := ledger.NewAppendEvent(item.event.EventType(), payload).WithRun(runID).WithActor(g.actor)

		var stored ledger.StoredEvent
		if item.parentSeq == nil {
			stored, err = g.store.Persist(ctx, ev)
		} else {
			stored, err = g.store.PersistChild(ctx, *item.parentSeq, ev)
		}
		if err != nil {
			return persisted, fmt.Errorf("failed to persist %s: %w", item.event.EventType(), err)
		}
		persisted++
		metrics.Default().IncEventTotal(item.event.EventType())

		g.reduce(state, item.event)

		children, err := g.route(ctx, item.event, stored, state, deps)
		if err != nil {
			return persisted, fmt.Errorf("route %s (seq %d): %w", item.event.EventType(), stored.Seq, err)
		}

		parent := stored.Seq
		for _, child := range children {
			queue = append(queue, queued[E]{event: child, parentSeq: &parent})
		}
	}

	return persisted, nil
}
