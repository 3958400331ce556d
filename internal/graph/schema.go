package graph

import "fmt"

// dynamicSchema returns the node-store DDL using the configured embedding
// dimension. The embedding column doubles as the durable similarity index:
// committing a node is what makes it visible to SearchSimilar.
func dynamicSchema(embeddingDims int) []string {
	if embeddingDims <= 0 {
		embeddingDims = 4
	}
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS nodes (
        id TEXT PRIMARY KEY,
        node_type TEXT NOT NULL,
        title TEXT NOT NULL,
        source_url TEXT NOT NULL,
        summary TEXT,
        severity TEXT NOT NULL DEFAULT 'low',
        corroboration_count INTEGER NOT NULL DEFAULT 0,
        source_count INTEGER NOT NULL DEFAULT 1,
        embedding F32_BLOB(%d),
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        last_seen_at DATETIME DEFAULT CURRENT_TIMESTAMP
    )`, embeddingDims),

		// One row per distinct source that has surfaced a node; backs the
		// source_count increment on cross-source corroboration.
		`CREATE TABLE IF NOT EXISTS node_sources (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        node_id TEXT NOT NULL,
        source_url TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (node_id) REFERENCES nodes(id),
        UNIQUE (node_id, source_url)
    )`,

		`CREATE TABLE IF NOT EXISTS sources (
        url TEXT PRIMARY KEY,
        scrape_count INTEGER NOT NULL DEFAULT 0,
        signals_corroborated INTEGER NOT NULL DEFAULT 0,
        quality_penalty REAL NOT NULL DEFAULT 1.0,
        avg_signals_per_scrape REAL NOT NULL DEFAULT 0,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    )`,

		`CREATE TABLE IF NOT EXISTS field_corrections (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        node_id TEXT NOT NULL,
        field TEXT NOT NULL,
        old_value TEXT NOT NULL,
        new_value TEXT NOT NULL,
        reason TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (node_id) REFERENCES nodes(id)
    )`,

		`CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(node_type)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_source ON nodes(source_url)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_created_at ON nodes(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_node_sources_node ON node_sources(node_id)`,
		`CREATE INDEX IF NOT EXISTS idx_field_corrections_node ON field_corrections(node_id)`,

		`CREATE INDEX IF NOT EXISTS idx_nodes_embedding ON nodes(libsql_vector_idx(embedding))`,
	}
}
