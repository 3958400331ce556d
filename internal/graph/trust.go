package graph

import (
	"context"
	"fmt"
	"log"

	"github.com/civiclens/signalgraph/internal/metrics"
	"github.com/civiclens/signalgraph/internal/signal"
)

// ReviewRow is one node joined with its source's trust metrics, as
// consumed by the severity batch pass. Fetched in a single query so the
// pass never issues per-node reads.
type ReviewRow struct {
	NodeID             string
	NodeType           signal.NodeType
	Severity           signal.Severity
	CorroborationCount int
	SourceCount        int
	Metrics            signal.SourceMetrics
}

// SeverityReviewRows fetches every node with its source metrics. Nodes
// whose source has no registered metrics get zero-valued metrics, which
// the trust predicate classifies as untrusted.
func (s *Store) SeverityReviewRows(ctx context.Context) ([]ReviewRow, error) {
	done := metrics.TimeOp("graph_severity_review")
	success := false
	defer func() { done(success) }()

	rows, err := s.db.QueryContext(ctx, `
        SELECT n.id, n.node_type, n.severity, n.corroboration_count, n.source_count,
               n.source_url,
               COALESCE(src.scrape_count, 0),
               COALESCE(src.signals_corroborated, 0),
               COALESCE(src.quality_penalty, 0),
               COALESCE(src.avg_signals_per_scrape, 0)
        FROM nodes n
        LEFT JOIN sources src ON src.url = n.source_url
        ORDER BY n.created_at ASC, n.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query severity review rows: %w", err)
	}
	defer rows.Close()

	var result []ReviewRow
	for rows.Next() {
		var r ReviewRow
		var nodeType, severity string
		if err := rows.Scan(&r.NodeID, &nodeType, &severity, &r.CorroborationCount,
			&r.SourceCount, &r.Metrics.URL, &r.Metrics.ScrapeCount,
			&r.Metrics.SignalsCorroborated, &r.Metrics.QualityPenalty,
			&r.Metrics.AvgSignalsPerScrape); err != nil {
			log.Printf("Warning: Failed to scan severity review row: %v", err)
			continue
		}
		r.NodeType = signal.NodeType(nodeType)
		r.Severity = signal.Severity(severity).Normalize()
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating severity review rows: %w", err)
	}

	success = true
	return result, nil
}

// GetSourceMetrics reads the trust metrics for one source URL.
func (s *Store) GetSourceMetrics(ctx context.Context, sourceURL string) (*signal.SourceMetrics, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT url, scrape_count, signals_corroborated, quality_penalty, avg_signals_per_scrape
        FROM sources WHERE url = ?`, sourceURL)

	var m signal.SourceMetrics
	if err := row.Scan(&m.URL, &m.ScrapeCount, &m.SignalsCorroborated,
		&m.QualityPenalty, &m.AvgSignalsPerScrape); err != nil {
		return nil, fmt.Errorf("failed to read metrics for source %q: %w", sourceURL, err)
	}
	return &m, nil
}

// ApplySeverityCorrection writes the new severity and the audit record in
// one transaction. Called only for rows whose computed severity differs
// from the stored one.
func (s *Store) ApplySeverityCorrection(ctx context.Context, nodeID string, oldValue, newValue signal.Severity, reason string) error {
	done := metrics.TimeOp("graph_severity_correction")
	success := false
	defer func() { done(success) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin correction transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE nodes SET severity = ? WHERE id = ?", string(newValue), nodeID)
	if err != nil {
		return fmt.Errorf("failed to update severity for node %q: %w", nodeID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("node not found: %s", nodeID)
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO field_corrections (node_id, field, old_value, new_value, reason)
        VALUES (?, 'severity', ?, ?, ?)`,
		nodeID, string(oldValue), string(newValue), reason)
	if err != nil {
		return fmt.Errorf("failed to record field correction for node %q: %w", nodeID, err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}

// FieldCorrections returns the audit trail for one node.
func (s *Store) FieldCorrections(ctx context.Context, nodeID string) ([]signal.FieldCorrection, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT node_id, field, old_value, new_value, reason
        FROM field_corrections WHERE node_id = ? ORDER BY id ASC`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query field corrections: %w", err)
	}
	defer rows.Close()

	var corrections []signal.FieldCorrection
	for rows.Next() {
		var c signal.FieldCorrection
		if err := rows.Scan(&c.NodeID, &c.Field, &c.OldValue, &c.NewValue, &c.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan field correction: %w", err)
		}
		corrections = append(corrections, c)
	}
	return corrections, rows.Err()
}
