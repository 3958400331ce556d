package ledger

// schema is the append-only ledger DDL. seq doubles as the global causal
// order; AUTOINCREMENT keeps seq values from ever being reused even after
// a crash mid-run.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        event_type TEXT NOT NULL,
        parent_seq INTEGER REFERENCES events(seq),
        caused_by_seq INTEGER REFERENCES events(seq),
        run_id TEXT,
        actor TEXT,
        payload TEXT NOT NULL,
        schema_v INTEGER NOT NULL DEFAULT 1
    )`,

	`CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, seq)`,
	`CREATE INDEX IF NOT EXISTS idx_events_parent ON events(parent_seq)`,
	`CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type)`,
}
