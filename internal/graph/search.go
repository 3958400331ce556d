package graph

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/civiclens/signalgraph/internal/metrics"
	"github.com/civiclens/signalgraph/internal/signal"
)

// Match is one durable-index hit. Distance is cosine distance
// (1 - cosine similarity), ascending: 0 is identical, 2 is opposite.
type Match struct {
	NodeID    string
	NodeType  signal.NodeType
	Title     string
	SourceURL string
	Distance  float64
}

// Similarity converts the stored cosine distance back to similarity.
func (m Match) Similarity() float64 {
	return 1 - m.Distance
}

// SearchSimilar performs vector similarity search restricted to one node
// type, returning up to limit matches with distance <= maxDistance,
// ordered by ascending distance. Candidates never match across types.
func (s *Store) SearchSimilar(ctx context.Context, embedding []float32, nodeType signal.NodeType, limit int, maxDistance float64) ([]Match, error) {
	done := metrics.TimeOp("graph_search_similar")
	success := false
	defer func() { done(success) }()

	if len(embedding) == 0 {
		return nil, fmt.Errorf("search embedding cannot be empty")
	}
	if limit <= 0 {
		limit = 5
	}

	vectorString, err := s.vectorToString(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to convert search embedding: %w", err)
	}
	zeroString := s.vectorZeroString()

	s.capMu.RLock()
	useTopK := s.caps.vectorTopK
	s.capMu.RUnlock()

	var rows *sql.Rows
	if useTopK {
		// ANN pre-filter; over-fetch because the index is not type-scoped.
		topK := `WITH vt AS (
            SELECT id FROM vector_top_k('idx_nodes_embedding', vector32(?), ?)
        )
        SELECT n.id, n.node_type, n.title, n.source_url,
               vector_distance_cos(n.embedding, vector32(?)) as distance
        FROM vt JOIN nodes n ON n.rowid = vt.id
        WHERE n.node_type = ? AND n.embedding IS NOT NULL AND n.embedding != vector32(?)
          AND vector_distance_cos(n.embedding, vector32(?)) <= ?
        ORDER BY distance ASC
        LIMIT ?`
		stmt, perr := s.getPreparedStmt(ctx, topK)
		if perr != nil {
			return nil, perr
		}
		rows, err = stmt.QueryContext(ctx, vectorString, limit*4, vectorString,
			string(nodeType), zeroString, vectorString, maxDistance, limit)
		if err != nil && strings.Contains(strings.ToLower(err.Error()), "no such function: vector_top_k") {
			s.capMu.Lock()
			s.caps.vectorTopK = false
			s.capMu.Unlock()
			useTopK = false
		} else if err != nil {
			return nil, fmt.Errorf("failed ANN search: %w", err)
		}
	}
	if !useTopK {
		query := `SELECT n.id, n.node_type, n.title, n.source_url,
               vector_distance_cos(n.embedding, vector32(?)) as distance
        FROM nodes n
        WHERE n.node_type = ? AND n.embedding IS NOT NULL AND n.embedding != vector32(?)
          AND vector_distance_cos(n.embedding, vector32(?)) <= ?
        ORDER BY distance ASC
        LIMIT ?`
		stmt, perr := s.getPreparedStmt(ctx, query)
		if perr != nil {
			return nil, perr
		}
		rows, err = stmt.QueryContext(ctx, vectorString, string(nodeType), zeroString, vectorString, maxDistance, limit)
	}
	if err != nil {
		low := strings.ToLower(err.Error())
		if strings.Contains(low, "no such function: vector_distance_cos") || strings.Contains(low, "no such function: vector32") {
			return nil, fmt.Errorf("vector search functions are unavailable in this libSQL build: %w", err)
		}
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var nodeType string
		if err := rows.Scan(&m.NodeID, &nodeType, &m.Title, &m.SourceURL, &m.Distance); err != nil {
			log.Printf("Warning: Failed to scan search result row: %v", err)
			continue
		}
		m.NodeType = signal.NodeType(nodeType)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search results: %w", err)
	}

	success = true
	return matches, nil
}
