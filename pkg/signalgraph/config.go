package signalgraph

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/civiclens/signalgraph/internal/dedup"
	"github.com/civiclens/signalgraph/internal/graph"
)

// Config is the stable library-mode configuration surface. Zero values
// fall back to sensible defaults at service construction.
type Config struct {
	// DBURL is the libsql database URL. The event ledger and the node
	// store share this single database.
	DBURL       string `yaml:"dbUrl"`
	DBAuthToken string `yaml:"dbAuthToken"`

	// EmbeddingDims fixes the vector column width. Changing it requires a
	// new database.
	EmbeddingDims int `yaml:"embeddingDims"`

	// SimilarityThreshold is the cosine similarity identity cutoff.
	SimilarityThreshold float64 `yaml:"similarityThreshold"`
	// SearchLimit bounds durable-index hits per candidate lookup.
	SearchLimit int `yaml:"searchLimit"`
	// FailOpen degrades candidates toward "new" when the similarity index
	// is unavailable instead of failing the batch.
	FailOpen bool `yaml:"failOpen"`

	// EmbeddingBudget caps embedding calls per ingest run. Non-positive
	// means unlimited.
	EmbeddingBudget int64 `yaml:"embeddingBudget"`

	// Actor is recorded on every ledger event this service persists.
	Actor string `yaml:"actor"`

	MaxOpenConns int `yaml:"maxOpenConns"`
	MaxIdleConns int `yaml:"maxIdleConns"`
}

// NewConfigFromEnv builds a Config from SIGNALGRAPH_* environment
// variables, leaving unset fields at their defaults.
func NewConfigFromEnv() *Config {
	cfg := &Config{
		DBURL:       os.Getenv("SIGNALGRAPH_DB_URL"),
		DBAuthToken: os.Getenv("SIGNALGRAPH_DB_AUTH_TOKEN"),
	}
	if v := os.Getenv("SIGNALGRAPH_EMBEDDING_DIMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EmbeddingDims = n
		}
	}
	if v := os.Getenv("SIGNALGRAPH_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SimilarityThreshold = f
		}
	}
	if v := os.Getenv("SIGNALGRAPH_EMBEDDING_BUDGET"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.EmbeddingBudget = n
		}
	}
	return cfg
}

// LoadConfig reads a YAML config file over env-derived defaults, so file
// values win where both are set.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfigFromEnv()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.DBURL == "" {
		out.DBURL = "file:./signalgraph.db"
	}
	if out.EmbeddingDims <= 0 {
		out.EmbeddingDims = 4
	}
	if out.SimilarityThreshold <= 0 {
		out.SimilarityThreshold = dedup.DefaultSimilarityThreshold
	}
	if out.Actor == "" {
		out.Actor = "signalgraph"
	}
	return &out
}

func (c *Config) graphConfig() *graph.Config {
	return &graph.Config{
		URL:           c.DBURL,
		AuthToken:     c.DBAuthToken,
		EmbeddingDims: c.EmbeddingDims,
		MaxOpenConns:  c.MaxOpenConns,
		MaxIdleConns:  c.MaxIdleConns,
	}
}
