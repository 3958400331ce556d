package graph

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civiclens/signalgraph/internal/signal"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	config := NewConfig()
	// cache=shared is crucial for sharing the in-memory database across
	// connections within the same process.
	config.URL = fmt.Sprintf("file:graph-%s?mode=memory&cache=shared", t.Name())
	config.EmbeddingDims = 4
	store, err := NewStore(config)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func pendingNode(title, sourceURL string, embedding []float32) signal.PendingNode {
	return signal.PendingNode{
		NodeType:  signal.NodeEvent,
		Title:     title,
		SourceURL: sourceURL,
		Severity:  signal.SeverityMedium,
		Embedding: embedding,
	}
}

func TestCommitAndGetNode(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.CommitNode(ctx, "n1", pendingNode("food drive saturday", "https://a.example/post/1", []float32{1, 0, 0, 0}))
	require.NoError(t, err)

	node, err := store.GetNode(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "food drive saturday", node.Title)
	assert.Equal(t, signal.NodeEvent, node.NodeType)
	assert.Equal(t, signal.SeverityMedium, node.Severity)
	assert.Equal(t, 0, node.CorroborationCount)
	assert.Equal(t, 1, node.SourceCount)

	// The stored F32_BLOB round-trips.
	vec, err := store.NodeEmbedding(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 0}, vec)

	_, err = store.NodeEmbedding(ctx, "missing")
	assert.Error(t, err)
}

func TestCommitNodeValidation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.CommitNode(ctx, "", pendingNode("t", "https://a.example", nil))
	assert.Error(t, err)

	err = store.CommitNode(ctx, "n1", signal.PendingNode{NodeType: "bogus", Title: "t", SourceURL: "https://a.example"})
	assert.Error(t, err)

	err = store.CommitNode(ctx, "n1", signal.PendingNode{NodeType: signal.NodeAsk, SourceURL: "https://a.example"})
	assert.Error(t, err)

	// Wrong embedding dims.
	err = store.CommitNode(ctx, "n1", pendingNode("t", "https://a.example", []float32{1, 0}))
	assert.Error(t, err)
}

func TestSearchSimilarScopedToTypeAndThreshold(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CommitNode(ctx, "ev1", pendingNode("warming center open", "https://a.example", []float32{1, 0, 0, 0})))
	offer := pendingNode("warming center open", "https://b.example", []float32{1, 0, 0, 0})
	offer.NodeType = signal.NodeOffer
	require.NoError(t, store.CommitNode(ctx, "of1", offer))
	require.NoError(t, store.CommitNode(ctx, "ev2", pendingNode("road closure", "https://a.example", []float32{0, 1, 0, 0})))

	// Same type, identical vector: one hit, the orthogonal node is past
	// the distance cutoff and the offer is type-excluded.
	matches, err := store.SearchSimilar(ctx, []float32{1, 0, 0, 0}, signal.NodeEvent, 5, 0.08)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "ev1", matches[0].NodeID)
	assert.InDelta(t, 0.0, matches[0].Distance, 1e-5)
	assert.InDelta(t, 1.0, matches[0].Similarity(), 1e-5)

	matches, err = store.SearchSimilar(ctx, []float32{1, 0, 0, 0}, signal.NodeNotice, 5, 0.08)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRecordCorroboration(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordScrape(ctx, "https://a.example", 1))
	require.NoError(t, store.CommitNode(ctx, "n1", pendingNode("coat drive", "https://a.example", []float32{1, 0, 0, 0})))

	// New source: both counters rise.
	require.NoError(t, store.RecordCorroboration(ctx, "n1", "https://b.example"))
	node, err := store.GetNode(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, 1, node.CorroborationCount)
	assert.Equal(t, 2, node.SourceCount)

	// Repeat source: corroboration rises, distinct source count does not.
	require.NoError(t, store.RecordCorroboration(ctx, "n1", "https://b.example"))
	node, err = store.GetNode(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, 2, node.CorroborationCount)
	assert.Equal(t, 2, node.SourceCount)

	// The original source got trust credit.
	m, err := store.GetSourceMetrics(ctx, "https://a.example")
	require.NoError(t, err)
	assert.Equal(t, 2, m.SignalsCorroborated)

	err = store.RecordCorroboration(ctx, "missing", "https://b.example")
	assert.Error(t, err)
}

func TestRecordReencounter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CommitNode(ctx, "n1", pendingNode("coat drive", "https://a.example", []float32{1, 0, 0, 0})))
	require.NoError(t, store.RecordReencounter(ctx, "n1"))

	// A freshness refresh never counts as corroboration.
	node, err := store.GetNode(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, 0, node.CorroborationCount)

	assert.Error(t, store.RecordReencounter(ctx, "missing"))
}

func TestRecordScrapeAveragesSignals(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordScrape(ctx, "https://a.example", 4))
	require.NoError(t, store.RecordScrape(ctx, "https://a.example", 8))

	m, err := store.GetSourceMetrics(ctx, "https://a.example")
	require.NoError(t, err)
	assert.Equal(t, 2, m.ScrapeCount)
	assert.InDelta(t, 6.0, m.AvgSignalsPerScrape, 1e-9)
}

func TestSeverityReviewAndCorrection(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordScrape(ctx, "https://a.example", 2))
	require.NoError(t, store.CommitNode(ctx, "n1", pendingNode("flooding on main st", "https://a.example", []float32{1, 0, 0, 0})))
	require.NoError(t, store.CommitNode(ctx, "n2", pendingNode("lost cat", "https://unknown.example", []float32{0, 1, 0, 0})))

	rows, err := store.SeverityReviewRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "n1", rows[0].NodeID)
	assert.Equal(t, signal.SeverityMedium, rows[0].Severity)
	assert.Equal(t, 1, rows[0].Metrics.ScrapeCount)
	// Unregistered source: zero-valued metrics.
	assert.Equal(t, 0, rows[1].Metrics.ScrapeCount)

	require.NoError(t, store.ApplySeverityCorrection(ctx, "n1", signal.SeverityMedium, signal.SeverityHigh, "trusted_grounded_floor"))

	node, err := store.GetNode(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, signal.SeverityHigh, node.Severity)

	corrections, err := store.FieldCorrections(ctx, "n1")
	require.NoError(t, err)
	require.Len(t, corrections, 1)
	assert.Equal(t, "severity", corrections[0].Field)
	assert.Equal(t, "medium", corrections[0].OldValue)
	assert.Equal(t, "high", corrections[0].NewValue)
	assert.Equal(t, "trusted_grounded_floor", corrections[0].Reason)

	assert.Error(t, store.ApplySeverityCorrection(ctx, "missing", signal.SeverityLow, signal.SeverityHigh, "x"))
}
