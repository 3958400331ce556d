package graph

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/civiclens/signalgraph/internal/metrics"
	"github.com/civiclens/signalgraph/internal/signal"
)

// CommitNode promotes a pending candidate into a durable node under the
// given id. Writing the embedding is what inserts the node into the
// durable similarity index; there is no separate index write.
func (s *Store) CommitNode(ctx context.Context, id string, pending signal.PendingNode) error {
	done := metrics.TimeOp("graph_commit_node")
	success := false
	defer func() { done(success) }()

	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("node id must be a non-empty string")
	}
	if strings.TrimSpace(pending.Title) == "" {
		return fmt.Errorf("node %q must have a title", id)
	}
	if !pending.NodeType.Valid() {
		return fmt.Errorf("invalid node type %q for node %q", pending.NodeType, id)
	}

	vectorString, err := s.vectorToString(pending.Embedding)
	if err != nil {
		return fmt.Errorf("failed to convert embedding for node %q: %w", id, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for node %q: %w", id, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO nodes (id, node_type, title, source_url, summary, severity, embedding)
        VALUES (?, ?, ?, ?, ?, ?, vector32(?))`,
		id, string(pending.NodeType), pending.Title, pending.SourceURL,
		pending.Summary, string(pending.Severity.Normalize()), vectorString)
	if err != nil {
		return fmt.Errorf("failed to insert node %q: %w", id, err)
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO node_sources (node_id, source_url) VALUES (?, ?)
        ON CONFLICT (node_id, source_url) DO NOTHING`,
		id, pending.SourceURL)
	if err != nil {
		return fmt.Errorf("failed to record source for node %q: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}

// GetNode retrieves a single node by id.
func (s *Store) GetNode(ctx context.Context, id string) (*signal.Node, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, node_type, title, source_url, COALESCE(summary, ''), severity,
               corroboration_count, source_count
        FROM nodes WHERE id = ?`, id)

	var n signal.Node
	var nodeType, severity string
	if err := row.Scan(&n.ID, &nodeType, &n.Title, &n.SourceURL, &n.Summary,
		&severity, &n.CorroborationCount, &n.SourceCount); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("node not found: %s", id)
		}
		return nil, fmt.Errorf("failed to scan node %q: %w", id, err)
	}
	n.NodeType = signal.NodeType(nodeType)
	n.Severity = signal.Severity(severity).Normalize()
	return &n, nil
}

// NodeEmbedding reads back a node's stored vector, decoded from the
// F32_BLOB column.
func (s *Store) NodeEmbedding(ctx context.Context, id string) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT embedding FROM nodes WHERE id = ?", id).Scan(&blob)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("node not found: %s", id)
		}
		return nil, fmt.Errorf("failed to read embedding for node %q: %w", id, err)
	}
	return s.extractVector(blob)
}

// RecordCorroboration registers a cross-source re-observation of nodeID
// from sourceURL: the corroboration count always rises, the distinct
// source count only when this source is new for the node. The matched
// node's original source gets credit in its trust metrics.
func (s *Store) RecordCorroboration(ctx context.Context, nodeID, sourceURL string) error {
	done := metrics.TimeOp("graph_record_corroboration")
	success := false
	defer func() { done(success) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin corroboration transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
        INSERT INTO node_sources (node_id, source_url) VALUES (?, ?)
        ON CONFLICT (node_id, source_url) DO NOTHING`, nodeID, sourceURL)
	if err != nil {
		return fmt.Errorf("failed to record corroborating source: %w", err)
	}
	newSource, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
        UPDATE nodes
        SET corroboration_count = corroboration_count + 1,
            source_count = source_count + ?,
            last_seen_at = CURRENT_TIMESTAMP
        WHERE id = ?`, newSource, nodeID)
	if err != nil {
		return fmt.Errorf("failed to update corroboration for node %q: %w", nodeID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("node not found: %s", nodeID)
	}

	_, err = tx.ExecContext(ctx, `
        UPDATE sources SET signals_corroborated = signals_corroborated + 1
        WHERE url = (SELECT source_url FROM nodes WHERE id = ?)`, nodeID)
	if err != nil {
		return fmt.Errorf("failed to credit source for node %q: %w", nodeID, err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}

// RecordReencounter refreshes last_seen_at for a same-source re-fetch.
// No corroboration increment: a source repeating itself is not evidence.
func (s *Store) RecordReencounter(ctx context.Context, nodeID string) error {
	done := metrics.TimeOp("graph_record_reencounter")
	success := false
	defer func() { done(success) }()

	res, err := s.db.ExecContext(ctx,
		"UPDATE nodes SET last_seen_at = CURRENT_TIMESTAMP WHERE id = ?", nodeID)
	if err != nil {
		return fmt.Errorf("failed to refresh node %q: %w", nodeID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("node not found: %s", nodeID)
	}
	success = true
	return nil
}

// RecordScrape updates the per-source scrape bookkeeping after a fetch
// that yielded signalsExtracted candidates.
func (s *Store) RecordScrape(ctx context.Context, sourceURL string, signalsExtracted int) error {
	if strings.TrimSpace(sourceURL) == "" {
		return fmt.Errorf("source url cannot be empty")
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO sources (url, scrape_count, avg_signals_per_scrape)
        VALUES (?, 1, ?)
        ON CONFLICT (url) DO UPDATE SET
            scrape_count = scrape_count + 1,
            avg_signals_per_scrape =
                (avg_signals_per_scrape * scrape_count + ?) / (scrape_count + 1)`,
		sourceURL, float64(signalsExtracted), float64(signalsExtracted))
	if err != nil {
		return fmt.Errorf("failed to record scrape for %q: %w", sourceURL, err)
	}
	return nil
}
