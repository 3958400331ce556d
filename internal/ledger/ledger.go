package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/civiclens/signalgraph/internal/metrics"
)

// Store is the durable, append-only event ledger. It is single-writer per
// process: one *sql.DB handle, monotonic seq assignment delegated to the
// primary key, no node-to-node coordination.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the ledger at the given libsql URL and applies
// the schema. Idempotent.
func Open(dbURL, authToken string) (*Store, error) {
	var db *sql.DB
	var err error

	if strings.HasPrefix(dbURL, "file:") {
		db, err = sql.Open("libsql", dbURL)
	} else {
		authURL := dbURL
		if authToken != "" {
			if u, perr := url.Parse(dbURL); perr == nil {
				q := u.Query()
				q.Set("authToken", authToken)
				u.RawQuery = q.Encode()
				authURL = u.String()
			}
		}
		db, err = sql.Open("libsql", authURL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	if err := initialize(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenDB wraps an existing handle, applying the ledger schema. Used when
// the ledger shares a database file with the graph store.
func OpenDB(db *sql.DB) (*Store, error) {
	if err := initialize(db); err != nil {
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}
	return &Store{db: db}, nil
}

func initialize(db *sql.DB) error {
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for initialization: %w", err)
	}
	defer tx.Rollback()

	for _, statement := range schema {
		if _, err := tx.Exec(statement); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return tx.Commit()
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Persist appends a root event (parent_seq NULL) and returns it with the
// store-assigned seq and timestamp. A storage error here is fatal to the
// enclosing dispatch call: no effect may run for an unrecorded event.
func (s *Store) Persist(ctx context.Context, ev AppendEvent) (StoredEvent, error) {
	return s.append(ctx, ev, nil)
}

// PersistChild appends an event causally chained under parentSeq. The
// parent must already be persisted; callers only ever hold a parentSeq
// that a previous Persist call returned.
func (s *Store) PersistChild(ctx context.Context, parentSeq int64, ev AppendEvent) (StoredEvent, error) {
	return s.append(ctx, ev, &parentSeq)
}

func (s *Store) append(ctx context.Context, ev AppendEvent, parentSeq *int64) (StoredEvent, error) {
	done := metrics.TimeOp("ledger_append")
	success := false
	defer func() { done(success) }()

	if strings.TrimSpace(ev.EventType) == "" {
		return StoredEvent{}, fmt.Errorf("event type must be a non-empty string")
	}
	payload := ev.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	schemaV := ev.SchemaVersion
	if schemaV <= 0 {
		schemaV = 1
	}

	ts := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
        INSERT INTO events (ts, event_type, parent_seq, caused_by_seq, run_id, actor, payload, schema_v)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ts, ev.EventType, parentSeq, ev.CausedBySeq,
		nullIfEmpty(ev.RunID), nullIfEmpty(ev.Actor), string(payload), schemaV)
	if err != nil {
		return StoredEvent{}, fmt.Errorf("failed to append event %q: %w", ev.EventType, err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return StoredEvent{}, fmt.Errorf("failed to read assigned seq for %q: %w", ev.EventType, err)
	}

	success = true
	return StoredEvent{
		Seq:           seq,
		TS:            ts,
		EventType:     ev.EventType,
		ParentSeq:     parentSeq,
		CausedBySeq:   ev.CausedBySeq,
		RunID:         ev.RunID,
		Actor:         ev.Actor,
		Payload:       payload,
		SchemaVersion: schemaV,
	}, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
