package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EventsByRun returns every event recorded for a run in seq order. This is
// the replay/audit read path; it is not on the dispatch hot path.
func (s *Store) EventsByRun(ctx context.Context, runID string) ([]StoredEvent, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id cannot be empty")
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT seq, ts, event_type, parent_seq, caused_by_seq, run_id, actor, payload, schema_v
        FROM events WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for run %q: %w", runID, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventsBySeqRange returns events with fromSeq <= seq <= toSeq in seq order.
func (s *Store) EventsBySeqRange(ctx context.Context, fromSeq, toSeq int64) ([]StoredEvent, error) {
	if fromSeq > toSeq {
		return nil, fmt.Errorf("invalid seq range: %d > %d", fromSeq, toSeq)
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT seq, ts, event_type, parent_seq, caused_by_seq, run_id, actor, payload, schema_v
        FROM events WHERE seq >= ? AND seq <= ? ORDER BY seq ASC`, fromSeq, toSeq)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by seq range: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// LastSeq returns the highest assigned seq, or 0 for an empty ledger.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(seq) FROM events").Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to read last seq: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}

func scanEvents(rows *sql.Rows) ([]StoredEvent, error) {
	var events []StoredEvent
	for rows.Next() {
		var ev StoredEvent
		var ts time.Time
		var parentSeq, causedBySeq sql.NullInt64
		var runID, actor sql.NullString
		var payload string

		if err := rows.Scan(&ev.Seq, &ts, &ev.EventType, &parentSeq, &causedBySeq,
			&runID, &actor, &payload, &ev.SchemaVersion); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		ev.TS = ts
		if parentSeq.Valid {
			v := parentSeq.Int64
			ev.ParentSeq = &v
		}
		if causedBySeq.Valid {
			v := causedBySeq.Int64
			ev.CausedBySeq = &v
		}
		ev.RunID = runID.String
		ev.Actor = actor.String
		ev.Payload = []byte(payload)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}
