package graph

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/civiclens/signalgraph/internal/metrics"
)

// Store handles all durable node-store operations: node commits, the
// vector similarity index, corroboration bookkeeping, source trust
// metrics, and field-correction audit writes.
type Store struct {
	config *Config
	db     *sql.DB

	stmtMu    sync.RWMutex
	stmtCache map[string]*sql.Stmt

	capMu sync.RWMutex
	caps  capFlags
}

// NewStore opens the graph database and applies the schema.
func NewStore(config *Config) (*Store, error) {
	if config.EmbeddingDims <= 0 || config.EmbeddingDims > 65536 {
		return nil, fmt.Errorf("embedding dims must be between 1 and 65536 inclusive, got %d", config.EmbeddingDims)
	}

	var db *sql.DB
	var err error
	if strings.HasPrefix(config.URL, "file:") {
		db, err = sql.Open("libsql", config.URL)
	} else {
		authURL := config.URL
		if config.AuthToken != "" {
			if u, perr := url.Parse(config.URL); perr == nil {
				q := u.Query()
				q.Set("authToken", config.AuthToken)
				u.RawQuery = q.Encode()
				authURL = u.String()
			}
		}
		db, err = sql.Open("libsql", authURL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create database connector: %w", err)
	}

	s := &Store{
		config:    config,
		db:        db,
		stmtCache: make(map[string]*sql.Stmt),
	}

	if err := s.initialize(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize graph database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	s.detectCapabilities(context.Background())
	return s, nil
}

// DB exposes the underlying handle so the event ledger can share a single
// database file with the node store.
func (s *Store) DB() *sql.DB {
	return s.db
}

// initialize creates tables and indexes if they don't exist.
func (s *Store) initialize(db *sql.DB) error {
	done := metrics.TimeOp("graph_initialize")
	success := false
	defer func() { done(success) }()

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for initialization: %w", err)
	}
	defer tx.Rollback()

	for _, statement := range dynamicSchema(s.config.EmbeddingDims) {
		if _, err := tx.Exec(statement); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}

// getPreparedStmt returns or prepares and caches a statement.
func (s *Store) getPreparedStmt(ctx context.Context, sqlText string) (*sql.Stmt, error) {
	s.stmtMu.RLock()
	if stmt, ok := s.stmtCache[sqlText]; ok {
		s.stmtMu.RUnlock()
		return stmt, nil
	}
	s.stmtMu.RUnlock()

	stmt, err := s.db.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	s.stmtMu.Lock()
	s.stmtCache[sqlText] = stmt
	s.stmtMu.Unlock()
	return stmt, nil
}

// Close closes prepared statements and the database connection.
func (s *Store) Close() error {
	s.stmtMu.Lock()
	for _, stmt := range s.stmtCache {
		_ = stmt.Close()
	}
	s.stmtCache = make(map[string]*sql.Stmt)
	s.stmtMu.Unlock()
	return s.db.Close()
}

// capFlags stores capability detection results for the open handle.
type capFlags struct {
	checked    bool
	vectorTopK bool
}

// detectCapabilities probes for vector_top_k support and records the flag.
func (s *Store) detectCapabilities(ctx context.Context) {
	s.capMu.RLock()
	caps := s.caps
	s.capMu.RUnlock()
	if caps.checked {
		return
	}

	// Skip the ANN probe for in-memory test URLs to avoid driver quirks.
	if strings.Contains(s.config.URL, "mode=memory") {
		s.capMu.Lock()
		s.caps = capFlags{checked: true, vectorTopK: false}
		s.capMu.Unlock()
		return
	}

	zero := s.vectorZeroString()
	ctx2, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	rows, err := s.db.QueryContext(ctx2, "SELECT id FROM vector_top_k('idx_nodes_embedding', vector32(?), 1) LIMIT 1", zero)
	if rows != nil {
		rows.Close()
	}

	s.capMu.Lock()
	s.caps = capFlags{checked: true, vectorTopK: err == nil}
	s.capMu.Unlock()
}
