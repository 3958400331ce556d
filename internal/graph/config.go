package graph

import (
	"os"
	"strconv"
)

// Config holds the graph store configuration.
type Config struct {
	URL           string
	AuthToken     string
	EmbeddingDims int
	MaxOpenConns  int
	MaxIdleConns  int
}

// NewConfig creates a Config from environment variables.
func NewConfig() *Config {
	url := os.Getenv("SIGNALGRAPH_DB_URL")
	if url == "" {
		url = "file:./signalgraph.db"
	}

	dims := 4
	if v := os.Getenv("SIGNALGRAPH_EMBEDDING_DIMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			dims = n
		}
	}

	return &Config{
		URL:           url,
		AuthToken:     os.Getenv("SIGNALGRAPH_DB_AUTH_TOKEN"),
		EmbeddingDims: dims,
	}
}
