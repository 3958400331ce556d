package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civiclens/signalgraph/internal/ledger"
)

// testEvent is a minimal closed event family for engine tests.
type testEvent struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

func (e testEvent) EventType() string { return e.Kind }

type testState struct {
	Applied []string
}

func reduceNames(s *testState, e testEvent) {
	s.Applied = append(s.Applied, e.Name)
}

type testDeps struct{}

func setupEngineStore(t *testing.T) *ledger.Store {
	t.Helper()
	url := fmt.Sprintf("file:dispatch-%s?mode=memory&cache=shared", t.Name())
	store, err := ledger.Open(url, "")
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func TestDispatchSettlesSingleChild(t *testing.T) {
	store := setupEngineStore(t)
	ctx := context.Background()

	route := func(ctx context.Context, e testEvent, stored ledger.StoredEvent, s *testState, d testDeps) ([]testEvent, error) {
		if e.Name == "a" {
			return []testEvent{{Kind: "test.b", Name: "b"}}, nil
		}
		return nil, nil
	}

	eng := NewEngine(store, "test", reduceNames, route)
	var state testState
	n, err := eng.Dispatch(ctx, "run-settle", testEvent{Kind: "test.a", Name: "a"}, &state, testDeps{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events, err := store.EventsByRun(ctx, "run-settle")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Nil(t, events[0].ParentSeq)
	require.NotNil(t, events[1].ParentSeq)
	assert.Equal(t, events[0].Seq, *events[1].ParentSeq)
	assert.Equal(t, "test.a", events[0].EventType)
	assert.Equal(t, "test.b", events[1].EventType)
}

func TestDispatchBreadthFirstOrdering(t *testing.T) {
	store := setupEngineStore(t)
	ctx := context.Background()

	// root emits b1, b2; b1 emits c1. Siblings b1 and b2 must both be
	// processed before the grandchild c1.
	route := func(ctx context.Context, e testEvent, stored ledger.StoredEvent, s *testState, d testDeps) ([]testEvent, error) {
		switch e.Name {
		case "root":
			return []testEvent{{Kind: "test.b", Name: "b1"}, {Kind: "test.b", Name: "b2"}}, nil
		case "b1":
			return []testEvent{{Kind: "test.c", Name: "c1"}}, nil
		}
		return nil, nil
	}

	eng := NewEngine(store, "test", reduceNames, route)
	var state testState
	n, err := eng.Dispatch(ctx, "run-order", testEvent{Kind: "test.a", Name: "root"}, &state, testDeps{})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []string{"root", "b1", "b2", "c1"}, state.Applied)

	events, err := store.EventsByRun(ctx, "run-order")
	require.NoError(t, err)
	require.Len(t, events, 4)
	// c1's parent is b1, not the root.
	require.NotNil(t, events[3].ParentSeq)
	assert.Equal(t, events[1].Seq, *events[3].ParentSeq)
}

func TestReducerReplayIsDeterministic(t *testing.T) {
	store := setupEngineStore(t)
	ctx := context.Background()

	route := func(ctx context.Context, e testEvent, stored ledger.StoredEvent, s *testState, d testDeps) ([]testEvent, error) {
		if e.Name == "root" {
			return []testEvent{{Kind: "test.b", Name: "x"}, {Kind: "test.b", Name: "y"}}, nil
		}
		return nil, nil
	}

	eng := NewEngine(store, "test", reduceNames, route)
	var first testState
	_, err := eng.Dispatch(ctx, "run-replay", testEvent{Kind: "test.a", Name: "root"}, &first, testDeps{})
	require.NoError(t, err)

	// Replay the persisted sequence through a fresh state via the reducer
	// alone; the fold must match the live run exactly.
	events, err := store.EventsByRun(ctx, "run-replay")
	require.NoError(t, err)

	var replayed testState
	for _, ev := range events {
		var te testEvent
		require.NoError(t, json.Unmarshal(ev.Payload, &te))
		reduceNames(&replayed, te)
	}
	assert.Equal(t, first.Applied, replayed.Applied)
}

func TestRouteFailureKeepsPersistedPrefix(t *testing.T) {
	store := setupEngineStore(t)
	ctx := context.Background()

	boom := errors.New("downstream unavailable")
	route := func(ctx context.Context, e testEvent, stored ledger.StoredEvent, s *testState, d testDeps) ([]testEvent, error) {
		switch e.Name {
		case "root":
			return []testEvent{{Kind: "test.b", Name: "ok"}, {Kind: "test.b", Name: "bad"}}, nil
		case "bad":
			return nil, boom
		}
		return nil, nil
	}

	eng := NewEngine(store, "test", reduceNames, route)
	var state testState
	n, err := eng.Dispatch(ctx, "run-fail", testEvent{Kind: "test.a", Name: "root"}, &state, testDeps{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, n)

	// Partial progress stays durable and replayable.
	events, storeErr := store.EventsByRun(ctx, "run-fail")
	require.NoError(t, storeErr)
	assert.Len(t, events, 3)
}

func TestPersistFailureAbortsBeforeEffects(t *testing.T) {
	store := setupEngineStore(t)
	require.NoError(t, store.Close())

	routed := false
	route := func(ctx context.Context, e testEvent, stored ledger.StoredEvent, s *testState, d testDeps) ([]testEvent, error) {
		routed = true
		return nil, nil
	}

	eng := NewEngine(store, "test", reduceNames, route)
	var state testState
	n, err := eng.Dispatch(context.Background(), "run-dead", testEvent{Kind: "test.a", Name: "a"}, &state, testDeps{})
	require.Error(t, err)
	assert.Equal(t, 0, n)
	assert.False(t, routed)
	assert.Empty(t, state.Applied)
}

func TestBoundedEmissionSettles(t *testing.T) {
	store := setupEngineStore(t)
	ctx := context.Background()

	// The engine itself has no depth guard; this double bounds its own
	// emission so the test proves settlement is reached the moment the
	// router stops producing children.
	const bound = 50
	emitted := 0
	route := func(ctx context.Context, e testEvent, stored ledger.StoredEvent, s *testState, d testDeps) ([]testEvent, error) {
		if emitted >= bound {
			return nil, nil
		}
		emitted++
		return []testEvent{{Kind: "test.chain", Name: fmt.Sprintf("n%d", emitted)}}, nil
	}

	eng := NewEngine(store, "test", reduceNames, route)
	var state testState
	n, err := eng.Dispatch(ctx, "run-chain", testEvent{Kind: "test.a", Name: "n0"}, &state, testDeps{})
	require.NoError(t, err)
	assert.Equal(t, bound+1, n)
	assert.Len(t, state.Applied, bound+1)
}
