package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	// cache=shared keeps the in-memory database alive across connections
	// within the process, matching how the graph store tests do it.
	url := fmt.Sprintf("file:ledger-%s?mode=memory&cache=shared", t.Name())
	store, err := Open(url, "")
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func TestPersistRootAssignsSeqWithoutParent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	ev, err := store.Persist(ctx, NewAppendEvent("run.started", json.RawMessage(`{"page":"a"}`)).WithRun("run-1"))
	require.NoError(t, err)
	assert.Greater(t, ev.Seq, int64(0))
	assert.Nil(t, ev.ParentSeq)
	assert.Equal(t, "run.started", ev.EventType)
	assert.Equal(t, "run-1", ev.RunID)
	assert.Equal(t, 1, ev.SchemaVersion)
}

func TestPersistChildChainsToParent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	root, err := store.Persist(ctx, NewAppendEvent("run.started", nil).WithRun("run-1"))
	require.NoError(t, err)

	child, err := store.PersistChild(ctx, root.Seq, NewAppendEvent("signal.accepted", nil).WithRun("run-1"))
	require.NoError(t, err)
	require.NotNil(t, child.ParentSeq)
	assert.Equal(t, root.Seq, *child.ParentSeq)
	assert.Greater(t, child.Seq, root.Seq)
}

func TestSeqStrictlyIncreasing(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 20; i++ {
		ev, err := store.Persist(ctx, NewAppendEvent("tick", nil).WithRun("run-seq"))
		require.NoError(t, err)
		assert.Greater(t, ev.Seq, last)
		last = ev.Seq
	}
}

func TestPersistRejectsEmptyEventType(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Persist(context.Background(), NewAppendEvent("  ", nil))
	assert.Error(t, err)
}

func TestEventsByRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	root, err := store.Persist(ctx, NewAppendEvent("run.started", json.RawMessage(`{"n":1}`)).WithRun("run-a").WithActor("ingest"))
	require.NoError(t, err)
	_, err = store.PersistChild(ctx, root.Seq, NewAppendEvent("signal.accepted", nil).WithRun("run-a"))
	require.NoError(t, err)
	_, err = store.Persist(ctx, NewAppendEvent("run.started", nil).WithRun("run-b"))
	require.NoError(t, err)

	events, err := store.EventsByRun(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "run.started", events[0].EventType)
	assert.Equal(t, "ingest", events[0].Actor)
	assert.Nil(t, events[0].ParentSeq)
	require.NotNil(t, events[1].ParentSeq)
	assert.Equal(t, events[0].Seq, *events[1].ParentSeq)
	assert.JSONEq(t, `{"n":1}`, string(events[0].Payload))
}

func TestEventsBySeqRange(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var seqs []int64
	for i := 0; i < 5; i++ {
		ev, err := store.Persist(ctx, NewAppendEvent("tick", nil).WithRun("run-r"))
		require.NoError(t, err)
		seqs = append(seqs, ev.Seq)
	}

	events, err := store.EventsBySeqRange(ctx, seqs[1], seqs[3])
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, seqs[1], events[0].Seq)
	assert.Equal(t, seqs[3], events[2].Seq)

	_, err = store.EventsBySeqRange(ctx, 10, 1)
	assert.Error(t, err)
}

func TestCausedBySeqRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first, err := store.Persist(ctx, NewAppendEvent("run.started", nil).WithRun("run-c"))
	require.NoError(t, err)

	second, err := store.Persist(ctx, NewAppendEvent("severity.recalculated", nil).WithRun("run-c").WithCausedBy(first.Seq))
	require.NoError(t, err)
	require.NotNil(t, second.CausedBySeq)
	assert.Equal(t, first.Seq, *second.CausedBySeq)

	events, err := store.EventsByRun(ctx, "run-c")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.NotNil(t, events[1].CausedBySeq)
	assert.Equal(t, first.Seq, *events[1].CausedBySeq)
	assert.Nil(t, events[1].ParentSeq)
}

func TestLastSeq(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	seq, err := store.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	ev, err := store.Persist(ctx, NewAppendEvent("tick", nil))
	require.NoError(t, err)

	seq, err = store.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, ev.Seq, seq)
}
